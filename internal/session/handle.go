package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"channel-history/internal/domain"
)

// Reply is the decoded answer to a posted command
type Reply struct {
	ID   int64
	Body json.RawMessage
}

// Field returns the raw value of a top-level field of the reply body.
// The second result is false when the body is not an object or the field
// is missing.
func (r Reply) Field(name string) (json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(r.Body, &fields); err != nil {
		return nil, false
	}
	v, ok := fields[name]
	return v, ok
}

// ReplyHandle is a one-shot future for the reply to one command.
// The first call to Resolve or Fail completes it; later calls are ignored.
type ReplyHandle struct {
	id   int64
	once sync.Once
	done chan struct{}

	reply Reply
	err   error
}

// NewReplyHandle creates a pending handle for the request id
func NewReplyHandle(id int64) *ReplyHandle {
	return &ReplyHandle{
		id:   id,
		done: make(chan struct{}),
	}
}

// ID returns the request id the handle correlates with
func (h *ReplyHandle) ID() int64 {
	return h.id
}

// Resolve completes the handle with a reply
func (h *ReplyHandle) Resolve(body json.RawMessage) {
	h.once.Do(func() {
		h.reply = Reply{ID: h.id, Body: body}
		close(h.done)
	})
}

// Fail completes the handle with an error
func (h *ReplyHandle) Fail(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}

// Done is closed once the handle is completed
func (h *ReplyHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the handle completes or ctx is done. Abandoning the
// wait is reported as a request failure.
func (h *ReplyHandle) Wait(ctx context.Context) (Reply, error) {
	select {
	case <-h.done:
		if h.err != nil {
			return Reply{}, h.err
		}
		return h.reply, nil
	case <-ctx.Done():
		return Reply{}, fmt.Errorf("%w: waiting for reply %d: %v", domain.ErrRequestFailed, h.id, ctx.Err())
	}
}
