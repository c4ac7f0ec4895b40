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
	"channel-history/internal/observability"

	"github.com/gorilla/websocket"
	"github.com/slack-go/slack"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second // Must be less than pongWait
	maxMessageSize = 1 << 20
)

// RTM reads real-time events from a websocket and publishes them on a Bus
type RTM struct {
	conn      *websocket.Conn
	bus       *Bus
	decoder   MessageDecoder
	writeMu   sync.Mutex
	closed    atomic.Bool
	ctx       context.Context
	ctxCancel context.CancelFunc
	done      chan struct{}
}

type rtmFrame struct {
	Type    string `json:"type"`
	SubType string `json:"subtype,omitempty"`
}

func newRTM(ctx context.Context, conn *websocket.Conn, bus *Bus, decoder MessageDecoder) *RTM {
	rtmCtx, cancel := context.WithCancel(ctx)

	return &RTM{
		conn:      conn,
		bus:       bus,
		decoder:   decoder,
		ctx:       rtmCtx,
		ctxCancel: cancel,
		done:      make(chan struct{}),
	}
}

// ReadPump reads frames until the connection fails or the RTM is closed
func (r *RTM) ReadPump() {
	defer func() {
		r.ctxCancel()
		r.closeConnection()
		observability.RTMConnected.Set(0)
		close(r.done)
	}()

	r.conn.SetReadLimit(maxMessageSize)
	if err := r.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		slog.Warn("failed to set read deadline", slog.String("error", err.Error()))
		return
	}
	r.conn.SetPongHandler(func(string) error {
		return r.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	observability.RTMConnected.Set(1)

	for {
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("rtm connection error", slog.String("error", err.Error()))
			}
			return
		}

		if err := r.handleFrame(data); err != nil {
			if r.ctx.Err() != nil {
				return
			}
			slog.Warn("dropping rtm frame",
				slog.String("error", err.Error()),
				slog.Int("size", len(data)))
		}
	}
}

// WritePump keeps the connection alive with pings until the RTM is closed
func (r *RTM) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			_ = r.writeMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			r.closeConnection()
			return
		case <-ticker.C:
			if err := r.writeMessage(websocket.PingMessage, nil); err != nil {
				r.ctxCancel()
				return
			}
		}
	}
}

func (r *RTM) handleFrame(data []byte) error {
	var frame rtmFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return fmt.Errorf("invalid frame: %w", err)
	}
	if frame.Type != "" {
		observability.RTMEventsReceived.WithLabelValues(frame.Type).Inc()
	}

	switch frame.Type {
	case string(domain.KindReactionAdded):
		var ev slack.ReactionAddedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("invalid reaction_added event: %w", err)
		}
		return r.bus.Publish(r.ctx, domain.ReactionAdded{
			Emoji:         ev.Reaction,
			User:          ev.User,
			ChannelID:     ev.Item.Channel,
			ItemTimestamp: ev.Item.Timestamp,
		})

	case string(domain.KindReactionRemoved):
		var ev slack.ReactionRemovedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("invalid reaction_removed event: %w", err)
		}
		return r.bus.Publish(r.ctx, domain.ReactionRemoved{
			Emoji:         ev.Reaction,
			User:          ev.User,
			ChannelID:     ev.Item.Channel,
			ItemTimestamp: ev.Item.Timestamp,
		})

	case string(domain.KindMessagePosted):
		// Edits, joins and other system messages are not posted messages
		if frame.SubType != "" {
			slog.Debug("skipping message subtype", slog.String("subtype", frame.SubType))
			return nil
		}
		msg, err := r.decoder.Decode("", data)
		if err != nil {
			return fmt.Errorf("invalid message event: %w", err)
		}
		return r.bus.Publish(r.ctx, domain.MessagePosted{Message: msg})

	default:
		slog.Debug("ignoring rtm frame", slog.String("type", frame.Type))
		return nil
	}
}

// Close stops both pumps and closes the connection
func (r *RTM) Close() {
	r.ctxCancel()
	r.closeConnection()
}

// Done is closed when the read pump has exited
func (r *RTM) Done() <-chan struct{} {
	return r.done
}

// writeMessage writes a message to the connection in a thread-safe manner
func (r *RTM) writeMessage(messageType int, data []byte) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if r.closed.Load() {
		return websocket.ErrCloseSent
	}

	if err := r.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return r.conn.WriteMessage(messageType, data)
}

// closeConnection safely closes the websocket connection
func (r *RTM) closeConnection() {
	if r.closed.CompareAndSwap(false, true) {
		r.writeMu.Lock()
		r.conn.Close()
		r.writeMu.Unlock()
	}
}
