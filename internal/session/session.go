// Package session connects to the chat service: commands go out through the
// Web API and are correlated with their replies through ReplyHandles, while
// events arrive over the RTM websocket and are fanned out by a Bus.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"channel-history/internal/domain"

	"github.com/gorilla/websocket"
)

const rtmConnectCommand = "rtm.connect"

// MessageDecoder turns a wire message entry into a domain message
type MessageDecoder interface {
	Decode(channelID string, entry json.RawMessage) (*domain.Message, error)
}

// Options configures a Session
type Options struct {
	APIURL         string
	Token          string
	RequestTimeout time.Duration
	CommandRate    float64
	CommandBurst   int
	EventQueueSize int
}

// Session is the connection to the chat service
type Session struct {
	api     *WebAPI
	bus     *Bus
	decoder MessageDecoder
	dialer  *websocket.Dialer
	nextID  atomic.Int64

	runCtx    context.Context
	runCancel context.CancelFunc
	busOnce   sync.Once

	mu  sync.Mutex
	rtm *RTM
}

// New creates a session. Commands can be posted right away; events only
// flow after Connect.
func New(opts Options, decoder MessageDecoder) *Session {
	runCtx, cancel := context.WithCancel(context.Background())

	return &Session{
		api:       NewWebAPI(opts.APIURL, opts.Token, opts.RequestTimeout, opts.CommandRate, opts.CommandBurst),
		bus:       NewBus(opts.EventQueueSize),
		decoder:   decoder,
		dialer:    websocket.DefaultDialer,
		runCtx:    runCtx,
		runCancel: cancel,
	}
}

// NextMessageID returns a fresh request id
func (s *Session) NextMessageID() int64 {
	return s.nextID.Add(1)
}

// PostCommand sends a command asynchronously. The reply, or the reason
// there is none, is delivered through handle.
func (s *Session) PostCommand(ctx context.Context, params map[string]string, command string, handle *ReplyHandle) error {
	if handle == nil {
		return fmt.Errorf("%w: reply handle is required", domain.ErrInvalidInput)
	}
	if command == "" {
		return fmt.Errorf("%w: command is required", domain.ErrInvalidInput)
	}

	form := make(map[string]string, len(params))
	for k, v := range params {
		form[k] = v
	}

	go func() {
		body, err := s.api.Post(ctx, command, form)
		if err != nil {
			handle.Fail(err)
			return
		}
		handle.Resolve(body)
	}()
	return nil
}

// AddReactionAddedListener registers fn for reaction_added events
func (s *Session) AddReactionAddedListener(fn func(domain.ReactionAdded)) func() {
	return s.bus.Subscribe(domain.KindReactionAdded, func(e domain.Event) {
		if ev, ok := e.(domain.ReactionAdded); ok {
			fn(ev)
		}
	})
}

// AddReactionRemovedListener registers fn for reaction_removed events
func (s *Session) AddReactionRemovedListener(fn func(domain.ReactionRemoved)) func() {
	return s.bus.Subscribe(domain.KindReactionRemoved, func(e domain.Event) {
		if ev, ok := e.(domain.ReactionRemoved); ok {
			fn(ev)
		}
	})
}

// AddMessagePostedListener registers fn for posted messages
func (s *Session) AddMessagePostedListener(fn func(domain.MessagePosted)) func() {
	return s.bus.Subscribe(domain.KindMessagePosted, func(e domain.Event) {
		if ev, ok := e.(domain.MessagePosted); ok {
			fn(ev)
		}
	})
}

type rtmConnectReply struct {
	URL string `json:"url"`
}

// Connect opens the RTM websocket. An existing connection is replaced.
func (s *Session) Connect(ctx context.Context) error {
	body, err := s.api.Post(ctx, rtmConnectCommand, nil)
	if err != nil {
		return err
	}

	var reply rtmConnectReply
	if err := json.Unmarshal(body, &reply); err != nil || reply.URL == "" {
		return fmt.Errorf("%w: %s reply has no url", domain.ErrMalformedReply, rtmConnectCommand)
	}

	conn, _, err := s.dialer.DialContext(ctx, reply.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: dial rtm: %v", domain.ErrRequestFailed, err)
	}

	s.busOnce.Do(func() {
		go func() {
			if err := s.bus.Run(s.runCtx); err != nil && err != context.Canceled {
				slog.Error("event bus error", slog.String("error", err.Error()))
			}
		}()
	})

	rtm := newRTM(s.runCtx, conn, s.bus, s.decoder)

	s.mu.Lock()
	old := s.rtm
	s.rtm = rtm
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}

	go rtm.ReadPump()
	go rtm.WritePump()

	slog.Info("rtm connected")
	return nil
}

// IsConnected reports whether the RTM read pump is running
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	rtm := s.rtm
	s.mu.Unlock()

	if rtm == nil {
		return false
	}
	select {
	case <-rtm.Done():
		return false
	default:
		return true
	}
}

// Close disconnects the RTM stream and stops event dispatch
func (s *Session) Close() error {
	s.runCancel()

	s.mu.Lock()
	rtm := s.rtm
	s.rtm = nil
	s.mu.Unlock()

	if rtm != nil {
		rtm.Close()
	}
	return nil
}
