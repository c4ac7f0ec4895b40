// Package parser decodes Slack wire messages into domain messages.
package parser

import (
	"encoding/json"
	"fmt"

	"channel-history/internal/domain"

	"github.com/slack-go/slack"
)

// SlackDecoder decodes history entries and RTM message frames
type SlackDecoder struct{}

// NewSlackDecoder creates a decoder
func NewSlackDecoder() *SlackDecoder {
	return &SlackDecoder{}
}

// Decode converts one wire entry into a Message. channelID is used when the
// entry does not name its channel, which is the case for history replies.
func (d *SlackDecoder) Decode(channelID string, entry json.RawMessage) (*domain.Message, error) {
	var msg slack.Message
	if err := json.Unmarshal(entry, &msg); err != nil {
		return nil, fmt.Errorf("%w: message entry: %v", domain.ErrMalformedReply, err)
	}
	return convertToDomainMessage(&msg, channelID), nil
}

func convertToDomainMessage(msg *slack.Message, channelID string) *domain.Message {
	if channelID == "" {
		channelID = msg.Channel
	}

	m := domain.NewMessage(channelID, msg.Timestamp, msg.User, msg.Text)
	m.ThreadTimestamp = msg.ThreadTimestamp
	m.SubType = msg.SubType
	for _, reaction := range msg.Reactions {
		m.Reactions[reaction.Name] += reaction.Count
	}
	return m
}
