package domain

import "time"

// Change describes one mutation applied to a tracked history
type Change struct {
	TrackedID        string    `json:"tracked_id"`
	ChannelID        string    `json:"channel_id"`
	Kind             EventKind `json:"kind"`
	MessageTimestamp string    `json:"message_ts"`
	Emoji            string    `json:"emoji,omitempty"`
	// Count is the reaction count after the change, 0 when the entry
	// was removed
	Count int       `json:"count"`
	At    time.Time `json:"at"`
}

// Snapshot is a fetched history as archived at one point in time
type Snapshot struct {
	ID        string     `json:"id"`
	ChannelID string     `json:"channel_id"`
	Day       *time.Time `json:"day,omitempty"`
	Count     int        `json:"count"`
	TakenAt   time.Time  `json:"taken_at"`
	Messages  []*Message `json:"messages"`
}

// NewSnapshot captures messages fetched for q
func NewSnapshot(id string, q Query, messages []*Message) *Snapshot {
	return &Snapshot{
		ID:        id,
		ChannelID: q.ChannelID,
		Day:       q.Day,
		Count:     q.EffectiveCount(),
		TakenAt:   time.Now().UTC(),
		Messages:  messages,
	}
}
