package domain

import (
	"strconv"
	"strings"
	"time"
)

// Message represents a message posted to a channel
type Message struct {
	Timestamp       string         `json:"ts"`
	ChannelID       string         `json:"channel_id"`
	User            string         `json:"user,omitempty"`
	Text            string         `json:"text"`
	ThreadTimestamp string         `json:"thread_ts,omitempty"`
	SubType         string         `json:"subtype,omitempty"`
	Reactions       map[string]int `json:"reactions"`
}

// NewMessage returns a message with an initialized reaction map
func NewMessage(channelID, ts, user, text string) *Message {
	return &Message{
		Timestamp: ts,
		ChannelID: channelID,
		User:      user,
		Text:      text,
		Reactions: make(map[string]int),
	}
}

// HasReactions reports whether the message carries at least one reaction
func (m *Message) HasReactions() bool {
	return len(m.Reactions) > 0
}

// TotalReactionCount sums the counts of every reaction on the message
func (m *Message) TotalReactionCount() int {
	total := 0
	for _, count := range m.Reactions {
		total += count
	}
	return total
}

// Time converts the Slack timestamp ("seconds.micros") to a time.Time.
// The zero time is returned for an unparsable timestamp.
func (m *Message) Time() time.Time {
	secs, frac, _ := strings.Cut(m.Timestamp, ".")
	sec, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return time.Time{}
	}
	var usec int64
	if frac != "" {
		if len(frac) > 6 {
			frac = frac[:6]
		}
		frac += strings.Repeat("0", 6-len(frac))
		usec, _ = strconv.ParseInt(frac, 10, 64)
	}
	return time.Unix(sec, usec*int64(time.Microsecond)).UTC()
}

// Clone returns a deep copy, including the reaction map
func (m *Message) Clone() *Message {
	c := *m
	c.Reactions = make(map[string]int, len(m.Reactions))
	for name, count := range m.Reactions {
		c.Reactions[name] = count
	}
	return &c
}
