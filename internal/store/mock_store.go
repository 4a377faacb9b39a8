// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu         sync.RWMutex
	threads    map[string]*Thread    // keyed by thread ID
	order      []string              // thread IDs in creation order
	messages   map[string][]*Message // keyed by thread ID, append order
	activities []*Activity           // append order
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		threads:  make(map[string]*Thread),
		messages: make(map[string][]*Message),
	}
}

// CreateThread stores a new thread.
func (m *MockStore) CreateThread(ctx context.Context, thread *Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.threads[thread.ID]; ok {
		return ErrDuplicateThread
	}

	m.threads[thread.ID] = thread.Clone()
	m.order = append(m.order, thread.ID)
	return nil
}

// UpdateThread replaces an existing thread.
func (m *MockStore) UpdateThread(ctx context.Context, thread *Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.threads[thread.ID]; !ok {
		return ErrNotFound
	}

	m.threads[thread.ID] = thread.Clone()
	return nil
}

// GetThread retrieves a thread by ID.
func (m *MockStore) GetThread(ctx context.Context, id string) (*Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.threads[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

// GetSessionThreads retrieves all threads for a session in creation order.
func (m *MockStore) GetSessionThreads(ctx context.Context, sessionID string) ([]*Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var threads []*Thread
	for _, id := range m.order {
		t := m.threads[id]
		if t.SessionID == sessionID {
			threads = append(threads, t.Clone())
		}
	}
	return threads, nil
}

// SearchThreads filters session threads by the query, ordered by most recent
// activity. Mirrors the SQLite search semantics.
func (m *MockStore) SearchThreads(ctx context.Context, sessionID string, q SearchQuery) ([]*Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var threads []*Thread
	for _, id := range m.order {
		t := m.threads[id]
		if t.SessionID != sessionID {
			continue
		}
		if q.Status != "" && t.Status != q.Status {
			continue
		}
		if q.Participant != "" && !t.HasParticipant(q.Participant) {
			continue
		}
		if q.Text != "" {
			text := strings.ToLower(q.Text)
			if !strings.Contains(strings.ToLower(t.Title), text) &&
				!strings.Contains(strings.ToLower(t.Description), text) {
				continue
			}
		}
		threads = append(threads, t.Clone())
	}

	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].LastActivityAt.After(threads[j].LastActivityAt)
	})

	limit := normalizeLimit(q.Limit)
	if len(threads) > limit {
		threads = threads[:limit]
	}
	return threads, nil
}

// SaveMessage appends a message to its thread. Returns ErrDuplicateMessage
// if the message id was already appended to any thread.
func (m *MockStore) SaveMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msgs := range m.messages {
		for _, existing := range msgs {
			if existing.ID == msg.ID {
				return ErrDuplicateMessage
			}
		}
	}

	c := *msg
	if c.Type == "" {
		c.Type = MessageTypeText
	}
	m.messages[msg.ThreadID] = append(m.messages[msg.ThreadID], &c)
	return nil
}

// GetThreadMessages retrieves messages for a thread in append order.
func (m *MockStore) GetThreadMessages(ctx context.Context, threadID string, limit, offset int) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[threadID]
	if offset < 0 {
		offset = 0
	}
	if offset >= len(msgs) {
		return nil, nil
	}
	msgs = msgs[offset:]

	limit = normalizeLimit(limit)
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}

	out := make([]*Message, len(msgs))
	for i, msg := range msgs {
		c := *msg
		out[i] = &c
	}
	return out, nil
}

// SaveActivity appends an activity record.
func (m *MockStore) SaveActivity(ctx context.Context, act *Activity) error {
	if !act.Type.Valid() {
		return fmt.Errorf("invalid activity type %q", act.Type)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := *act
	m.activities = append(m.activities, &c)
	return nil
}

// GetSessionActivities retrieves the most recent activities for a session,
// newest first.
func (m *MockStore) GetSessionActivities(ctx context.Context, sessionID string, limit int) ([]*Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Activity
	for i := len(m.activities) - 1; i >= 0; i-- {
		if m.activities[i].SessionID != sessionID {
			continue
		}
		c := *m.activities[i]
		out = append(out, &c)
	}

	limit = normalizeLimit(limit)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}
