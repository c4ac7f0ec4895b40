package parser

import (
	"encoding/json"
	"errors"
	"testing"

	"channel-history/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackDecoder_Decode(t *testing.T) {
	decoder := NewSlackDecoder()

	t.Run("history_entry", func(t *testing.T) {
		entry := json.RawMessage(`{
			"type": "message",
			"user": "U1",
			"text": "hello",
			"ts": "1705276800.000100",
			"thread_ts": "1705276700.000001",
			"reactions": [
				{"name": "thumbsup", "count": 2, "users": ["U2", "U3"]},
				{"name": "eyes", "count": 1, "users": ["U4"]}
			]
		}`)

		msg, err := decoder.Decode("C1", entry)
		require.NoError(t, err)

		assert.Equal(t, "C1", msg.ChannelID)
		assert.Equal(t, "U1", msg.User)
		assert.Equal(t, "hello", msg.Text)
		assert.Equal(t, "1705276800.000100", msg.Timestamp)
		assert.Equal(t, "1705276700.000001", msg.ThreadTimestamp)
		assert.Equal(t, map[string]int{"thumbsup": 2, "eyes": 1}, msg.Reactions)
	})

	t.Run("rtm_frame_names_its_channel", func(t *testing.T) {
		entry := json.RawMessage(`{"type":"message","channel":"C9","user":"U1","text":"hi","ts":"1.2"}`)

		msg, err := decoder.Decode("", entry)
		require.NoError(t, err)
		assert.Equal(t, "C9", msg.ChannelID)
	})

	t.Run("no_reactions_gives_empty_map", func(t *testing.T) {
		msg, err := decoder.Decode("C1", json.RawMessage(`{"text":"hi","subtype":null}`))
		require.NoError(t, err)
		require.NotNil(t, msg.Reactions)
		assert.Empty(t, msg.Reactions)
		assert.Equal(t, "", msg.SubType)
	})

	t.Run("malformed_entry", func(t *testing.T) {
		_, err := decoder.Decode("C1", json.RawMessage(`["not", "an", "object"]`))
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrMalformedReply))
	})
}
