package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"channel-history/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyHandle_Resolve(t *testing.T) {
	h := NewReplyHandle(7)

	go h.Resolve(json.RawMessage(`{"ok":true,"messages":[]}`))

	reply, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), reply.ID)
	assert.Equal(t, int64(7), h.ID())

	raw, ok := reply.Field("messages")
	assert.True(t, ok)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestReplyHandle_FirstCompletionWins(t *testing.T) {
	h := NewReplyHandle(1)
	failure := errors.New("first")

	h.Fail(failure)
	h.Resolve(json.RawMessage(`{}`))
	h.Fail(errors.New("second"))

	_, err := h.Wait(context.Background())
	assert.Equal(t, failure, err)

	select {
	case <-h.Done():
	default:
		t.Error("expected handle to be done")
	}
}

func TestReplyHandle_WaitCancelled(t *testing.T) {
	h := NewReplyHandle(3)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := h.Wait(ctx)
	assert.ErrorIs(t, err, domain.ErrRequestFailed)
	assert.Contains(t, err.Error(), "reply 3")
}

func TestReply_Field(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		field  string
		wantOK bool
	}{
		{"present", `{"messages":[1]}`, "messages", true},
		{"missing", `{"ok":true}`, "messages", false},
		{"not_an_object", `[1,2]`, "messages", false},
		{"invalid_json", `{`, "messages", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Reply{Body: json.RawMessage(tt.body)}.Field(tt.field)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}
