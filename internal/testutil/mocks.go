// Package testutil provides shared test utilities, mocks, and fixtures
// for testing the channel-history application.
package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"channel-history/internal/domain"
	"channel-history/internal/session"
)

// PostedCommand records a call to FakeSession.PostCommand
type PostedCommand struct {
	Command  string
	Params   map[string]string
	HandleID int64
}

type registration[T any] struct {
	id     int
	fn     func(T)
	active bool
}

// FakeSession implements history.Session. Replies are delivered
// synchronously from PostCommand; events are emitted by the test.
type FakeSession struct {
	mu sync.Mutex

	// Function override - set this to customize reply behavior
	PostCommandFunc func(ctx context.Context, params map[string]string, command string, handle *session.ReplyHandle) error

	// Scripted outcome used when PostCommandFunc is nil
	ReplyBody json.RawMessage
	ReplyErr  error
	PostErr   error

	// Call tracking
	Commands []PostedCommand

	nextID          int64
	nextListener    int
	reactionAdded   []*registration[domain.ReactionAdded]
	reactionRemoved []*registration[domain.ReactionRemoved]
	messagePosted   []*registration[domain.MessagePosted]
}

// NewFakeSession creates a FakeSession that answers every command with body
func NewFakeSession(body string) *FakeSession {
	return &FakeSession{
		ReplyBody: json.RawMessage(body),
		Commands:  make([]PostedCommand, 0),
	}
}

func (f *FakeSession) NextMessageID() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID
}

func (f *FakeSession) PostCommand(ctx context.Context, params map[string]string, command string, handle *session.ReplyHandle) error {
	f.mu.Lock()
	copied := make(map[string]string, len(params))
	for k, v := range params {
		copied[k] = v
	}
	f.Commands = append(f.Commands, PostedCommand{Command: command, Params: copied, HandleID: handle.ID()})
	override := f.PostCommandFunc
	body, replyErr, postErr := f.ReplyBody, f.ReplyErr, f.PostErr
	f.mu.Unlock()

	if override != nil {
		return override(ctx, params, command, handle)
	}
	if postErr != nil {
		return postErr
	}
	if replyErr != nil {
		handle.Fail(replyErr)
		return nil
	}
	handle.Resolve(body)
	return nil
}

// LastCommand returns the most recent posted command
func (f *FakeSession) LastCommand() (PostedCommand, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Commands) == 0 {
		return PostedCommand{}, false
	}
	return f.Commands[len(f.Commands)-1], true
}

func (f *FakeSession) AddReactionAddedListener(fn func(domain.ReactionAdded)) func() {
	return register(f, &f.reactionAdded, fn)
}

func (f *FakeSession) AddReactionRemovedListener(fn func(domain.ReactionRemoved)) func() {
	return register(f, &f.reactionRemoved, fn)
}

func (f *FakeSession) AddMessagePostedListener(fn func(domain.MessagePosted)) func() {
	return register(f, &f.messagePosted, fn)
}

func register[T any](f *FakeSession, list *[]*registration[T], fn func(T)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextListener++
	r := &registration[T]{id: f.nextListener, fn: fn, active: true}
	*list = append(*list, r)

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		r.active = false
	}
}

func active[T any](f *FakeSession, list []*registration[T]) []func(T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]func(T), 0, len(list))
	for _, r := range list {
		if r.active {
			out = append(out, r.fn)
		}
	}
	return out
}

// EmitReactionAdded delivers ev to the active listeners in registration order
func (f *FakeSession) EmitReactionAdded(ev domain.ReactionAdded) {
	for _, fn := range active(f, f.reactionAdded) {
		fn(ev)
	}
}

// EmitReactionRemoved delivers ev to the active listeners in registration order
func (f *FakeSession) EmitReactionRemoved(ev domain.ReactionRemoved) {
	for _, fn := range active(f, f.reactionRemoved) {
		fn(ev)
	}
}

// EmitMessagePosted delivers ev to the active listeners in registration order
func (f *FakeSession) EmitMessagePosted(ev domain.MessagePosted) {
	for _, fn := range active(f, f.messagePosted) {
		fn(ev)
	}
}

// ListenerCount returns the number of active listeners of every kind
func (f *FakeSession) ListenerCount() int {
	return len(active(f, f.reactionAdded)) + len(active(f, f.reactionRemoved)) + len(active(f, f.messagePosted))
}

// MockSnapshotRepository records archived snapshots
type MockSnapshotRepository struct {
	mu sync.RWMutex

	// Function overrides
	SaveFunc   func(ctx context.Context, snapshot *domain.Snapshot) error
	LatestFunc func(ctx context.Context, channelID string) (*domain.Snapshot, error)

	Snapshots []*domain.Snapshot
}

// NewMockSnapshotRepository creates an empty MockSnapshotRepository
func NewMockSnapshotRepository() *MockSnapshotRepository {
	return &MockSnapshotRepository{
		Snapshots: make([]*domain.Snapshot, 0),
	}
}

func (m *MockSnapshotRepository) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, snapshot)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Snapshots = append(m.Snapshots, snapshot)
	return nil
}

func (m *MockSnapshotRepository) Latest(ctx context.Context, channelID string) (*domain.Snapshot, error) {
	if m.LatestFunc != nil {
		return m.LatestFunc(ctx, channelID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.Snapshots) - 1; i >= 0; i-- {
		if m.Snapshots[i].ChannelID == channelID {
			return m.Snapshots[i], nil
		}
	}
	return nil, domain.ErrSnapshotNotFound
}

// GetSnapshots returns all recorded snapshots
func (m *MockSnapshotRepository) GetSnapshots() []*domain.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.Snapshot{}, m.Snapshots...)
}

// MockChangePublisher records published changes
type MockChangePublisher struct {
	mu sync.RWMutex

	// Function override
	PublishChangeFunc func(ctx context.Context, change domain.Change) error

	Changes []domain.Change
}

// NewMockChangePublisher creates a new MockChangePublisher
func NewMockChangePublisher() *MockChangePublisher {
	return &MockChangePublisher{
		Changes: make([]domain.Change, 0),
	}
}

func (m *MockChangePublisher) PublishChange(ctx context.Context, change domain.Change) error {
	if m.PublishChangeFunc != nil {
		return m.PublishChangeFunc(ctx, change)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Changes = append(m.Changes, change)
	return nil
}

// GetChanges returns all recorded changes
func (m *MockChangePublisher) GetChanges() []domain.Change {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Change{}, m.Changes...)
}
