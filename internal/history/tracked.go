package history

import (
	"sync"
	"time"

	"channel-history/internal/domain"
	"channel-history/internal/observability"
)

// Tracked is a history kept up to date by session events. The message list
// is owned by the Tracked value; readers get deep copies.
type Tracked struct {
	id        string
	query     domain.Query
	createdAt time.Time

	mu       sync.RWMutex
	messages []*domain.Message

	targeted    bool
	scoped      bool
	observers   []func(domain.Change)
	unsubscribe []func()
	closeOnce   sync.Once
}

// ID returns the identifier of the tracked history
func (t *Tracked) ID() string {
	return t.id
}

// Query returns the query the history was fetched with
func (t *Tracked) Query() domain.Query {
	return t.query
}

// CreatedAt returns when tracking started
func (t *Tracked) CreatedAt() time.Time {
	return t.createdAt
}

// Len returns the current number of messages
func (t *Tracked) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Messages returns a snapshot of the current messages
func (t *Tracked) Messages() []*domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*domain.Message, len(t.messages))
	for i, m := range t.messages {
		out[i] = m.Clone()
	}
	return out
}

// Close stops applying events. The last state stays readable.
func (t *Tracked) Close() {
	t.closeOnce.Do(func() {
		for _, unsubscribe := range t.unsubscribe {
			unsubscribe()
		}
		observability.TrackedHistoriesActive.Dec()
	})
}

func (t *Tracked) ignores(channelID string) bool {
	return t.scoped && channelID != "" && channelID != t.query.ChannelID
}

func (t *Tracked) onReactionAdded(ev domain.ReactionAdded) {
	if t.ignores(ev.ChannelID) {
		return
	}

	t.mu.Lock()
	var target *domain.Message
	if t.targeted {
		target = t.findByTimestamp(ev.ItemTimestamp)
	}
	if target != nil {
		target.Reactions[ev.Emoji]++
	} else {
		target = t.addToFirstHolder(ev.Emoji)
	}
	change := t.changeFor(domain.KindReactionAdded, target, ev.Emoji)
	t.mu.Unlock()

	t.notify(change)
}

// addToFirstHolder increments the first message holding emoji. When none
// holds it, the last message gets a new entry.
func (t *Tracked) addToFirstHolder(emoji string) *domain.Message {
	if len(t.messages) == 0 {
		return nil
	}
	for _, m := range t.messages {
		if _, ok := m.Reactions[emoji]; ok {
			m.Reactions[emoji]++
			return m
		}
	}
	last := t.messages[len(t.messages)-1]
	last.Reactions[emoji] = 1
	return last
}

func (t *Tracked) onReactionRemoved(ev domain.ReactionRemoved) {
	if t.ignores(ev.ChannelID) {
		return
	}

	t.mu.Lock()
	var target *domain.Message
	for _, m := range t.messages {
		count, ok := m.Reactions[ev.Emoji]
		if !ok {
			continue
		}
		if count <= 1 {
			delete(m.Reactions, ev.Emoji)
		} else {
			m.Reactions[ev.Emoji] = count - 1
		}
		target = m
		break
	}
	change := t.changeFor(domain.KindReactionRemoved, target, ev.Emoji)
	t.mu.Unlock()

	t.notify(change)
}

func (t *Tracked) onMessagePosted(ev domain.MessagePosted) {
	if ev.Message == nil || t.ignores(ev.Message.ChannelID) {
		return
	}

	msg := ev.Message.Clone()
	t.mu.Lock()
	t.messages = append(t.messages, msg)
	change := t.changeFor(domain.KindMessagePosted, msg, "")
	t.mu.Unlock()

	t.notify(change)
}

func (t *Tracked) findByTimestamp(ts string) *domain.Message {
	if ts == "" {
		return nil
	}
	for _, m := range t.messages {
		if m.Timestamp == ts {
			return m
		}
	}
	return nil
}

// changeFor must be called with mu held. A nil target means nothing changed.
func (t *Tracked) changeFor(kind domain.EventKind, target *domain.Message, emoji string) *domain.Change {
	if target == nil {
		return nil
	}
	return &domain.Change{
		TrackedID:        t.id,
		ChannelID:        t.query.ChannelID,
		Kind:             kind,
		MessageTimestamp: target.Timestamp,
		Emoji:            emoji,
		Count:            target.Reactions[emoji],
		At:               time.Now().UTC(),
	}
}

func (t *Tracked) notify(change *domain.Change) {
	if change == nil {
		return
	}
	observability.TrackedHistoryEvents.WithLabelValues(string(change.Kind)).Inc()
	for _, observe := range t.observers {
		observe(*change)
	}
}
