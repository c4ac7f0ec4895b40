package testutil

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"channel-history/internal/domain"
)

// Counter for generating unique timestamps
var idCounter atomic.Int64

// nextTimestamp generates a unique Slack timestamp for test fixtures
func nextTimestamp() string {
	return fmt.Sprintf("1705276800.%06d", idCounter.Add(1))
}

// MessageOptions allows customizing message fixture creation
type MessageOptions struct {
	ChannelID string
	Timestamp string
	User      string
	Text      string
	Reactions map[string]int
}

// NewTestMessage creates a test message with sensible defaults
// Pass options to override specific fields
func NewTestMessage(opts ...func(*MessageOptions)) *domain.Message {
	o := &MessageOptions{
		ChannelID: "C0TEST",
		Timestamp: nextTimestamp(),
		User:      "U0TEST",
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.Text == "" {
		o.Text = "message " + o.Timestamp
	}

	msg := domain.NewMessage(o.ChannelID, o.Timestamp, o.User, o.Text)
	for name, count := range o.Reactions {
		msg.Reactions[name] = count
	}
	return msg
}

// WithChannel sets the channel ID
func WithChannel(channelID string) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.ChannelID = channelID
	}
}

// WithTimestamp sets the message timestamp
func WithTimestamp(ts string) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.Timestamp = ts
	}
}

// WithUser sets the author
func WithUser(user string) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.User = user
	}
}

// WithText sets the message text
func WithText(text string) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.Text = text
	}
}

// WithReactions sets the reaction counts
func WithReactions(reactions map[string]int) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.Reactions = reactions
	}
}

// HistoryReply builds a channels.history reply body for messages in the
// shape of the Web API
func HistoryReply(messages ...*domain.Message) string {
	type reaction struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	type entry struct {
		Type      string     `json:"type"`
		User      string     `json:"user"`
		Text      string     `json:"text"`
		Timestamp string     `json:"ts"`
		Reactions []reaction `json:"reactions,omitempty"`
	}

	entries := make([]entry, 0, len(messages))
	for _, m := range messages {
		e := entry{Type: "message", User: m.User, Text: m.Text, Timestamp: m.Timestamp}
		for name, count := range m.Reactions {
			e.Reactions = append(e.Reactions, reaction{Name: name, Count: count})
		}
		entries = append(entries, e)
	}

	body, err := json.Marshal(map[string]any{"ok": true, "messages": entries, "has_more": false})
	if err != nil {
		panic(err)
	}
	return string(body)
}
