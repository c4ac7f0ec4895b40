package domain

import (
	"testing"
	"time"
)

func TestMessage_HasReactions(t *testing.T) {
	tests := []struct {
		name     string
		message  *Message
		expected bool
	}{
		{"with_reactions", &Message{Reactions: map[string]int{"thumbsup": 2}}, true},
		{"empty_map", &Message{Reactions: map[string]int{}}, false},
		{"nil_map", &Message{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.message.HasReactions(); got != tt.expected {
				t.Errorf("HasReactions() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMessage_TotalReactionCount(t *testing.T) {
	msg := &Message{Reactions: map[string]int{"thumbsup": 5, "smile": 3, "heart": 2}}
	if got := msg.TotalReactionCount(); got != 10 {
		t.Errorf("TotalReactionCount() = %d, want 10", got)
	}
}

func TestMessage_Time(t *testing.T) {
	tests := []struct {
		name     string
		ts       string
		expected time.Time
	}{
		{"seconds_and_micros", "1705276800.123456", time.Unix(1705276800, 123456000).UTC()},
		{"short_fraction", "1705276800.5", time.Unix(1705276800, 500000000).UTC()},
		{"seconds_only", "1705276800", time.Unix(1705276800, 0).UTC()},
		{"invalid", "abc", time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &Message{Timestamp: tt.ts}
			if got := msg.Time(); !got.Equal(tt.expected) {
				t.Errorf("Time() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMessage_Clone(t *testing.T) {
	orig := NewMessage("C1", "1.000001", "U1", "hi")
	orig.Reactions["wave"] = 1

	c := orig.Clone()
	c.Reactions["wave"] = 7
	c.Text = "changed"

	if orig.Reactions["wave"] != 1 {
		t.Errorf("clone shares reaction map with original")
	}
	if orig.Text != "hi" {
		t.Errorf("clone shares fields with original")
	}
}
