// Package history fetches channel histories and keeps them up to date from
// session events.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"channel-history/internal/domain"
	"channel-history/internal/observability"
	"channel-history/internal/session"
)

const historyCommand = "channels.history"

// Session is the part of the chat session the history service relies on
type Session interface {
	NextMessageID() int64
	PostCommand(ctx context.Context, params map[string]string, command string, handle *session.ReplyHandle) error
	AddReactionAddedListener(fn func(domain.ReactionAdded)) func()
	AddReactionRemovedListener(fn func(domain.ReactionRemoved)) func()
	AddMessagePostedListener(fn func(domain.MessagePosted)) func()
}

// Service fetches histories through a session
type Service struct {
	session Session
	decoder session.MessageDecoder
}

// NewService creates a history service
func NewService(sess Session, decoder session.MessageDecoder) *Service {
	return &Service{
		session: sess,
		decoder: decoder,
	}
}

// Fetch retrieves the messages selected by q in the order the server
// returns them. Entries carrying a subtype are left out.
func (s *Service) Fetch(ctx context.Context, q domain.Query) ([]*domain.Message, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ctx = observability.WithChannelID(ctx, q.ChannelID)
	log := observability.FromContext(ctx)

	start := time.Now()
	messages, err := s.fetch(ctx, q)
	duration := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.HistoryFetchDuration.WithLabelValues(status).Observe(duration.Seconds())
	observability.HistoryFetchesTotal.WithLabelValues(status).Inc()

	if err != nil {
		log.Error("history fetch failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", duration))
		return nil, err
	}

	log.Info("history fetched",
		slog.Int("messages", len(messages)),
		slog.Int("count", q.EffectiveCount()),
		slog.Duration("duration", duration))
	return messages, nil
}

func (s *Service) fetch(ctx context.Context, q domain.Query) ([]*domain.Message, error) {
	handle := session.NewReplyHandle(s.session.NextMessageID())

	if err := s.session.PostCommand(ctx, historyParams(q), historyCommand, handle); err != nil {
		return nil, asRequestFailure(err)
	}

	reply, err := handle.Wait(ctx)
	if err != nil {
		return nil, asRequestFailure(err)
	}

	return s.decodeMessages(q.ChannelID, reply)
}

func (s *Service) decodeMessages(channelID string, reply session.Reply) ([]*domain.Message, error) {
	messages := make([]*domain.Message, 0)

	raw, ok := reply.Field("messages")
	if !ok || isNull(raw) {
		return messages, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: messages is not an array: %v", domain.ErrMalformedReply, err)
	}

	for i, entry := range entries {
		if !isObject(entry) {
			return nil, fmt.Errorf("%w: message %d is not an object", domain.ErrMalformedReply, i)
		}

		var probe struct {
			SubType json.RawMessage `json:"subtype"`
		}
		if err := json.Unmarshal(entry, &probe); err != nil {
			return nil, fmt.Errorf("%w: message %d: %v", domain.ErrMalformedReply, i, err)
		}
		if len(probe.SubType) > 0 && !isNull(probe.SubType) {
			continue
		}

		msg, err := s.decoder.Decode(channelID, entry)
		if err != nil {
			if errors.Is(err, domain.ErrMalformedReply) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: message %d: %v", domain.ErrMalformedReply, i, err)
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// asRequestFailure classifies a session error. Errors already classified
// by the session are kept as they are.
func asRequestFailure(err error) error {
	if errors.Is(err, domain.ErrRequestFailed) || errors.Is(err, domain.ErrMalformedReply) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrRequestFailed, err)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
