// ABOUTME: Tests for the thread lifecycle Service
// ABOUTME: Verifies creation, merge updates, unread bookkeeping and failure atomicity

package thread

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"braid/internal/store"
)

var errBoom = errors.New("boom")

// failingStore wraps a Store and fails selected operations.
type failingStore struct {
	store.Store
	failCreate  bool
	failUpdate  bool
	failMessage bool
	failSearch  bool
}

func (f *failingStore) CreateThread(ctx context.Context, thread *store.Thread) error {
	if f.failCreate {
		return errBoom
	}
	return f.Store.CreateThread(ctx, thread)
}

func (f *failingStore) UpdateThread(ctx context.Context, thread *store.Thread) error {
	if f.failUpdate {
		return errBoom
	}
	return f.Store.UpdateThread(ctx, thread)
}

func (f *failingStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if f.failMessage {
		return errBoom
	}
	return f.Store.SaveMessage(ctx, msg)
}

func (f *failingStore) SearchThreads(ctx context.Context, sessionID string, q store.SearchQuery) ([]*store.Thread, error) {
	if f.failSearch {
		return nil, errBoom
	}
	return f.Store.SearchThreads(ctx, sessionID, q)
}

// countingStore wraps a Store and counts GetThread calls.
type countingStore struct {
	store.Store
	getThreadCalls atomic.Int32
}

func (c *countingStore) GetThread(ctx context.Context, id string) (*store.Thread, error) {
	c.getThreadCalls.Add(1)
	return c.Store.GetThread(ctx, id)
}

func newTestService(t *testing.T) (*Service, *store.MockStore) {
	t.Helper()
	m := store.NewMockStore()
	svc := New(m, nil, nil)
	t.Cleanup(svc.Close)
	return svc, m
}

func createTestThread(t *testing.T, svc *Service, sessionID string) *store.Thread {
	t.Helper()
	thread, err := svc.CreateThread(context.Background(), CreateThreadRequest{
		SessionID:    sessionID,
		Title:        "Test thread",
		CreatedBy:    "alice",
		Participants: []string{"bob", "carol"},
	})
	require.NoError(t, err)
	return thread
}

func TestService_CreateThread(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	thread, err := svc.CreateThread(ctx, CreateThreadRequest{
		SessionID:    "session-1",
		Title:        "Planning",
		Description:  "sprint planning",
		Participants: []string{"bob", "alice"},
		Metadata:     map[string]any{"priority": "high"},
		CreatedBy:    "alice",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, thread.ID)
	assert.Equal(t, "session-1", thread.SessionID)
	assert.Equal(t, store.StatusActive, thread.Status)
	assert.Equal(t, 0, thread.MessageCount)
	assert.Empty(t, thread.UnreadCounts)
	assert.Equal(t, thread.CreatedAt, thread.LastActivityAt)
	assert.Equal(t, []string{"bob", "alice"}, thread.Participants, "creator not duplicated")
	assert.Equal(t, "high", thread.Metadata["priority"])
}

func TestService_CreateThread_CreatorAlwaysParticipant(t *testing.T) {
	svc, _ := newTestService(t)

	thread, err := svc.CreateThread(context.Background(), CreateThreadRequest{
		SessionID: "session-1",
		Title:     "Solo",
		CreatedBy: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, thread.Participants)
}

func TestService_CreateThread_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateThreadRequest
	}{
		{"missing session", CreateThreadRequest{Title: "t", CreatedBy: "alice"}},
		{"missing title", CreateThreadRequest{SessionID: "s", CreatedBy: "alice"}},
		{"missing creator", CreateThreadRequest{SessionID: "s", Title: "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateThread(ctx, tt.req)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestService_CreateThread_ParentChecks(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	parent := createTestThread(t, svc, "session-1")

	t.Run("unknown parent", func(t *testing.T) {
		_, err := svc.CreateThread(ctx, CreateThreadRequest{
			SessionID:      "session-1",
			Title:          "child",
			CreatedBy:      "alice",
			ParentThreadID: "ghost",
		})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("cross-session parent rejected", func(t *testing.T) {
		_, err := svc.CreateThread(ctx, CreateThreadRequest{
			SessionID:      "session-2",
			Title:          "child",
			CreatedBy:      "alice",
			ParentThreadID: parent.ID,
		})
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("same-session parent accepted", func(t *testing.T) {
		child, err := svc.CreateThread(ctx, CreateThreadRequest{
			SessionID:       "session-1",
			Title:           "child",
			CreatedBy:       "alice",
			ParentThreadID:  parent.ID,
			OriginMessageID: "msg-1",
		})
		require.NoError(t, err)
		assert.Equal(t, parent.ID, child.ParentThreadID)
		assert.Equal(t, "msg-1", child.OriginMessageID)
	})
}

func TestService_CreateThread_PersistFailureIsAtomic(t *testing.T) {
	m := store.NewMockStore()
	svc := New(&failingStore{Store: m, failCreate: true}, nil, nil)
	ctx := context.Background()

	var notified atomic.Int32
	svc.AddThreadListener("session-1", func(event Event, thread *store.Thread, payload any) {
		notified.Add(1)
	})

	_, err := svc.CreateThread(ctx, CreateThreadRequest{
		SessionID: "session-1",
		Title:     "doomed",
		CreatedBy: "alice",
	})
	require.ErrorIs(t, err, errBoom)

	assert.Zero(t, notified.Load(), "no notification on failed create")
	acts, err := m.GetSessionActivities(ctx, "session-1", 10)
	require.NoError(t, err)
	assert.Empty(t, acts, "no activity on failed create")
}

func TestService_UpdateThread_MergeSemantics(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	thread, err := svc.CreateThread(ctx, CreateThreadRequest{
		SessionID: "session-1",
		Title:     "Original",
		CreatedBy: "alice",
		Metadata:  map[string]any{"priority": "low", "topic": "infra"},
	})
	require.NoError(t, err)

	title := "Renamed"
	updated, err := svc.UpdateThread(ctx, thread.ID, UpdateThreadRequest{
		Title:    &title,
		Metadata: map[string]any{"priority": "high"},
		ActorID:  "alice",
	})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "high", updated.Metadata["priority"], "provided keys replaced")
	assert.Equal(t, "infra", updated.Metadata["topic"], "existing keys preserved")
	assert.True(t, updated.LastActivityAt.After(thread.LastActivityAt) ||
		updated.LastActivityAt.Equal(thread.LastActivityAt))
}

func TestService_UpdateThread_Participants(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	thread := createTestThread(t, svc, "session-1") // alice (creator) + bob, carol

	updated, err := svc.UpdateThread(ctx, thread.ID, UpdateThreadRequest{
		AddParticipants:    []string{"dave", "erin"},
		RemoveParticipants: []string{"carol", "erin"}, // erin in both lists ends removed
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"bob", "alice", "dave"}, updated.Participants)
}

func TestService_UpdateThread_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.UpdateThread(context.Background(), "ghost", UpdateThreadRequest{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_StatusTransitions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t.Run("archived threads can be reopened", func(t *testing.T) {
		thread := createTestThread(t, svc, "session-1")
		_, err := svc.ArchiveThread(ctx, thread.ID, "alice")
		require.NoError(t, err)

		active := store.StatusActive
		reopened, err := svc.UpdateThread(ctx, thread.ID, UpdateThreadRequest{Status: &active})
		require.NoError(t, err)
		assert.Equal(t, store.StatusActive, reopened.Status)
	})

	t.Run("closed threads are terminal", func(t *testing.T) {
		thread := createTestThread(t, svc, "session-1")
		_, err := svc.CloseThread(ctx, thread.ID, "alice")
		require.NoError(t, err)

		active := store.StatusActive
		_, err = svc.UpdateThread(ctx, thread.ID, UpdateThreadRequest{Status: &active})
		assert.ErrorIs(t, err, ErrThreadClosed)

		_, err = svc.ArchiveThread(ctx, thread.ID, "alice")
		assert.ErrorIs(t, err, ErrThreadClosed)
	})

	t.Run("invalid status rejected", func(t *testing.T) {
		thread := createTestThread(t, svc, "session-1")
		bogus := store.ThreadStatus("bogus")
		_, err := svc.UpdateThread(ctx, thread.ID, UpdateThreadRequest{Status: &bogus})
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestService_ArchiveAndCloseActivities(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()

	thread := createTestThread(t, svc, "session-1")
	_, err := svc.ArchiveThread(ctx, thread.ID, "alice")
	require.NoError(t, err)

	acts, err := m.GetSessionActivities(ctx, "session-1", 10)
	require.NoError(t, err)
	// Newest first: thread_archived, then the generic thread_updated, then thread_created
	require.Len(t, acts, 3)
	assert.Equal(t, store.ActivityThreadArchived, acts[0].Type)
	assert.Equal(t, store.ActivityThreadUpdated, acts[1].Type)
	assert.Equal(t, store.ActivityThreadCreated, acts[2].Type)

	other := createTestThread(t, svc, "session-1")
	_, err = svc.CloseThread(ctx, other.ID, "bob")
	require.NoError(t, err)

	acts, err = m.GetSessionActivities(ctx, "session-1", 1)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, store.ActivityThreadClosed, acts[0].Type)
	assert.Equal(t, "bob", acts[0].UserID)
}

func TestService_AddMessage(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()

	thread := createTestThread(t, svc, "session-1") // participants: bob, carol, alice

	msg := &store.Message{SenderID: "alice", Content: "hello"}
	require.NoError(t, svc.AddMessage(ctx, thread.ID, msg))

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, thread.ID, msg.ThreadID)
	assert.Equal(t, store.MessageTypeText, msg.Type)

	updated, err := svc.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.MessageCount)
	assert.Equal(t, 1, updated.UnreadCounts["bob"])
	assert.Equal(t, 1, updated.UnreadCounts["carol"])
	assert.Zero(t, updated.UnreadCounts["alice"], "sender gets no unread increment")
	assert.True(t, updated.LastActivityAt.After(thread.LastActivityAt) ||
		updated.LastActivityAt.Equal(thread.LastActivityAt))

	msgs, err := m.GetThreadMessages(ctx, thread.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestService_AddMessage_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.AddMessage(context.Background(), "ghost", &store.Message{SenderID: "alice"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_AddMessage_MonotonicCounters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	thread := createTestThread(t, svc, "session-1")

	// alice sends 3, bob sends 2
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.AddMessage(ctx, thread.ID, &store.Message{SenderID: "alice", Content: "a"}))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, svc.AddMessage(ctx, thread.ID, &store.Message{SenderID: "bob", Content: "b"}))
	}

	updated, err := svc.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.MessageCount)
	assert.Equal(t, 2, updated.UnreadCounts["alice"], "N minus messages sent by alice")
	assert.Equal(t, 3, updated.UnreadCounts["bob"], "N minus messages sent by bob")
	assert.Equal(t, 5, updated.UnreadCounts["carol"])
}

func TestService_AddMessage_ConcurrentIncrements(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	thread := createTestThread(t, svc, "session-1")

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.AddMessage(ctx, thread.ID, &store.Message{SenderID: "alice", Content: "x"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	updated, err := svc.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, n, updated.MessageCount, "no lost increments under concurrency")
	assert.Equal(t, n, updated.UnreadCounts["bob"])
}

func TestService_AddMessage_PersistFailure(t *testing.T) {
	m := store.NewMockStore()
	fs := &failingStore{Store: m}
	svc := New(fs, nil, nil)
	ctx := context.Background()

	thread, err := svc.CreateThread(ctx, CreateThreadRequest{
		SessionID: "session-1", Title: "t", CreatedBy: "alice",
	})
	require.NoError(t, err)

	fs.failMessage = true
	err = svc.AddMessage(ctx, thread.ID, &store.Message{SenderID: "alice", Content: "x"})
	require.ErrorIs(t, err, errBoom)

	unchanged, err := svc.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Zero(t, unchanged.MessageCount, "counter unchanged when message save fails")
}

func TestService_AddMessage_DuplicateDeliverySuppressed(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()

	thread := createTestThread(t, svc, "session-1")

	msg := &store.Message{ID: "bridge-msg-1", SenderID: "alice", Content: "hello"}
	require.NoError(t, svc.AddMessage(ctx, thread.ID, msg))

	redelivery := &store.Message{ID: "bridge-msg-1", SenderID: "alice", Content: "hello"}
	err := svc.AddMessage(ctx, thread.ID, redelivery)
	assert.ErrorIs(t, err, store.ErrDuplicateMessage)

	updated, err := svc.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.MessageCount, "re-delivery appends nothing")

	msgs, err := m.GetThreadMessages(ctx, thread.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestService_AddMessage_FailedAppendCanBeRetried(t *testing.T) {
	m := store.NewMockStore()
	fs := &failingStore{Store: m}
	svc := New(fs, nil, nil)
	ctx := context.Background()

	thread, err := svc.CreateThread(ctx, CreateThreadRequest{
		SessionID: "session-1", Title: "t", CreatedBy: "alice",
	})
	require.NoError(t, err)

	fs.failMessage = true
	msg := &store.Message{ID: "bridge-msg-1", SenderID: "alice", Content: "x"}
	require.ErrorIs(t, svc.AddMessage(ctx, thread.ID, msg), errBoom)

	fs.failMessage = false
	retry := &store.Message{ID: "bridge-msg-1", SenderID: "alice", Content: "x"}
	require.NoError(t, svc.AddMessage(ctx, thread.ID, retry),
		"an id is only remembered after a successful append")
}

func TestService_MarkThreadAsRead(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()

	thread := createTestThread(t, svc, "session-1")
	require.NoError(t, svc.AddMessage(ctx, thread.ID, &store.Message{SenderID: "alice", Content: "x"}))
	require.NoError(t, svc.AddMessage(ctx, thread.ID, &store.Message{SenderID: "alice", Content: "y"}))

	require.NoError(t, svc.MarkThreadAsRead(ctx, thread.ID, "bob"))

	updated, err := svc.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Zero(t, updated.UnreadCounts["bob"])
	assert.Equal(t, 2, updated.UnreadCounts["carol"], "other participants unaffected")

	// A subsequent message from a different sender restores the count to 1
	require.NoError(t, svc.AddMessage(ctx, thread.ID, &store.Message{SenderID: "alice", Content: "z"}))
	updated, err = svc.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.UnreadCounts["bob"])

	// Reads are part of the audit trail
	acts, err := m.GetSessionActivities(ctx, "session-1", 100)
	require.NoError(t, err)
	var readActs int
	for _, act := range acts {
		if act.Type == store.ActivityThreadRead {
			readActs++
		}
	}
	assert.Equal(t, 1, readActs)
}

func TestService_GetThread_CacheIdempotent(t *testing.T) {
	m := store.NewMockStore()
	cs := &countingStore{Store: m}
	svc := New(cs, nil, nil)
	ctx := context.Background()

	seed := &store.Thread{
		ID:        "thread-1",
		SessionID: "session-1",
		Title:     "seeded",
		CreatedBy: "alice",
		Status:    store.StatusActive,
	}
	require.NoError(t, m.CreateThread(ctx, seed))

	for i := 0; i < 5; i++ {
		thread, err := svc.GetThread(ctx, "thread-1")
		require.NoError(t, err)
		assert.Equal(t, "seeded", thread.Title)
	}

	assert.Equal(t, int32(1), cs.getThreadCalls.Load(),
		"repeated reads served from cache without re-invoking the store")
}

// gatedStore blocks the next GetThread read between arming and release, so
// tests can hold a store fetch in flight.
type gatedStore struct {
	store.Store
	entered chan struct{}
	release chan struct{}
	armed   atomic.Bool
}

func (g *gatedStore) GetThread(ctx context.Context, id string) (*store.Thread, error) {
	if g.armed.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
	return g.Store.GetThread(ctx, id)
}

func TestService_GetThread_MissPathSerializesWithWrites(t *testing.T) {
	m := store.NewMockStore()
	gs := &gatedStore{Store: m, entered: make(chan struct{}), release: make(chan struct{})}
	svc := New(gs, nil, nil)
	t.Cleanup(svc.Close)
	ctx := context.Background()

	require.NoError(t, m.CreateThread(ctx, &store.Thread{
		ID: "thread-1", SessionID: "session-1", Title: "v1",
		CreatedBy: "alice", Status: store.StatusActive,
	}))

	gs.armed.Store(true)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_, err := svc.GetThread(ctx, "thread-1")
		assert.NoError(t, err)
	}()
	<-gs.entered // reader is inside the store fetch, holding the thread lock

	updDone := make(chan struct{})
	go func() {
		defer close(updDone)
		title := "v2"
		_, err := svc.UpdateThread(ctx, "thread-1", UpdateThreadRequest{Title: &title})
		assert.NoError(t, err)
	}()

	select {
	case <-updDone:
		t.Fatal("update committed while a cache-miss read was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(gs.release)
	<-readDone
	<-updDone

	got, err := svc.GetThread(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Title, "cache holds the newest committed write")
}

func TestService_GetSessionThreads_DoesNotPopulateCache(t *testing.T) {
	m := store.NewMockStore()
	svc := New(m, nil, nil)
	t.Cleanup(svc.Close)
	ctx := context.Background()

	seed := &store.Thread{
		ID: "thread-1", SessionID: "session-1", Title: "v1",
		CreatedBy: "alice", Status: store.StatusActive,
	}
	require.NoError(t, m.CreateThread(ctx, seed))

	require.Len(t, svc.GetSessionThreads(ctx, "session-1"), 1)

	// A write landing after the listing must still be what the first
	// read-through fetch observes.
	v2 := seed.Clone()
	v2.Title = "v2"
	require.NoError(t, m.UpdateThread(ctx, v2))

	got, err := svc.GetThread(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Title, "listing must not pin stale rows into the cache")
}

func TestService_GetSessionThreads_DegradesToEmpty(t *testing.T) {
	m := store.NewMockStore()
	svc := New(&erroringSessionStore{Store: m}, nil, nil)

	threads := svc.GetSessionThreads(context.Background(), "session-1")
	assert.Empty(t, threads)
}

// erroringSessionStore fails all session-level reads.
type erroringSessionStore struct {
	store.Store
}

func (e *erroringSessionStore) GetSessionThreads(ctx context.Context, sessionID string) ([]*store.Thread, error) {
	return nil, errBoom
}

func (e *erroringSessionStore) GetSessionActivities(ctx context.Context, sessionID string, limit int) ([]*store.Activity, error) {
	return nil, errBoom
}

func TestService_Listeners_EventFlow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var mu sync.Mutex
	var events []Event
	var msgPayload *store.Message
	id := svc.AddThreadListener("session-1", func(event Event, thread *store.Thread, payload any) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event)
		if event == EventMessageAdded {
			msgPayload, _ = payload.(*store.Message)
		}
	})

	thread := createTestThread(t, svc, "session-1")
	title := "renamed"
	_, err := svc.UpdateThread(ctx, thread.ID, UpdateThreadRequest{Title: &title})
	require.NoError(t, err)
	require.NoError(t, svc.AddMessage(ctx, thread.ID, &store.Message{SenderID: "alice", Content: "x"}))
	require.NoError(t, svc.MarkThreadAsRead(ctx, thread.ID, "bob"))

	mu.Lock()
	assert.Equal(t, []Event{EventThreadCreated, EventThreadUpdated, EventMessageAdded, EventThreadRead}, events)
	require.NotNil(t, msgPayload, "message_added carries the message as payload")
	assert.Equal(t, "x", msgPayload.Content)
	mu.Unlock()

	svc.RemoveThreadListener("session-1", id)
	createTestThread(t, svc, "session-1")
	mu.Lock()
	assert.Len(t, events, 4, "removed listener receives no further events")
	mu.Unlock()
}
