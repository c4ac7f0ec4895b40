package history

import (
	"context"
	"log/slog"
	"time"

	"channel-history/internal/domain"
	"channel-history/internal/observability"

	"github.com/google/uuid"
)

// TrackOption customizes an updating fetch
type TrackOption func(*Tracked)

// WithTargetedReactions applies a reaction to the message named by the
// event's item timestamp when that message is tracked. Other reactions fall
// back to the first-holder rule.
func WithTargetedReactions() TrackOption {
	return func(t *Tracked) {
		t.targeted = true
	}
}

// WithChannelScope ignores events that name a channel other than the
// tracked one
func WithChannelScope() TrackOption {
	return func(t *Tracked) {
		t.scoped = true
	}
}

// WithObserver registers fn to receive every applied change. Observers run
// on the session's dispatch goroutine.
func WithObserver(fn func(domain.Change)) TrackOption {
	return func(t *Tracked) {
		if fn != nil {
			t.observers = append(t.observers, fn)
		}
	}
}

// FetchUpdating fetches the history selected by q and keeps it up to date
// from reaction and message events until the returned value is closed.
// Nothing is registered when the fetch fails.
func (s *Service) FetchUpdating(ctx context.Context, q domain.Query, opts ...TrackOption) (*Tracked, error) {
	messages, err := s.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	for _, m := range messages {
		if m.Reactions == nil {
			m.Reactions = make(map[string]int)
		}
	}

	t := &Tracked{
		id:        uuid.New().String(),
		query:     q,
		createdAt: time.Now().UTC(),
		messages:  messages,
	}
	for _, opt := range opts {
		opt(t)
	}

	t.unsubscribe = []func(){
		s.session.AddReactionAddedListener(t.onReactionAdded),
		s.session.AddReactionRemovedListener(t.onReactionRemoved),
		s.session.AddMessagePostedListener(t.onMessagePosted),
	}
	observability.TrackedHistoriesActive.Inc()

	observability.FromContext(observability.WithChannelID(ctx, q.ChannelID)).Info("tracking history",
		slog.String("tracked_id", t.id),
		slog.Int("messages", len(messages)))

	return t, nil
}
