// ABOUTME: Service is the thread lifecycle manager - create, update, append, read
// ABOUTME: Every mutation writes through the store, then cache, activity log, listeners

package thread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"braid/internal/dedupe"
	"braid/internal/metrics"
	"braid/internal/store"
)

// Window and capacity for remembering caller-supplied message ids. Beyond
// the window the store's id uniqueness still rejects the duplicate.
const (
	dedupeTTL = 5 * time.Minute
	dedupeCap = 8192
)

// Service is the thread lifecycle manager. It owns id generation, unread
// count bookkeeping, the read-through cache and listener notification.
//
// Mutations on the same thread are serialized with a per-thread lock;
// operations on different threads proceed concurrently. Sessions share no
// locks.
type Service struct {
	store   store.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	cache   *threadCache
	hub     *ListenerHub
	locks   *keyedMutex
	recent  *dedupe.Cache // caller-supplied message ids seen recently
}

// New creates a thread service. Pass nil logger for default; metrics may be
// nil to disable instrumentation.
func New(st store.Store, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "thread")
	return &Service{
		store:   st,
		logger:  logger,
		metrics: m,
		cache:   newThreadCache(),
		hub:     NewListenerHub(logger, m),
		locks:   newKeyedMutex(),
		recent:  dedupe.New(dedupeTTL, dedupeCap),
	}
}

// Close releases the service's background resources. The underlying store is
// not closed; the caller owns it.
func (s *Service) Close() {
	s.recent.Close()
}

// CreateThreadRequest contains everything needed to create a thread.
type CreateThreadRequest struct {
	SessionID       string
	Title           string
	Description     string
	ParentThreadID  string // optional; must reference a thread in the same session
	OriginMessageID string // optional; the parent-context message branched from
	Participants    []string
	Metadata        map[string]any
	CreatedBy       string
}

// CreateThread creates a new active thread. The creator is always included
// in the participant set. If persistence fails the operation has no side
// effects: no cache entry, no activity, no notification.
func (s *Service) CreateThread(ctx context.Context, req CreateThreadRequest) (*store.Thread, error) {
	defer s.metrics.ObserveOp("create_thread", time.Now())

	if req.SessionID == "" {
		return nil, requiredField("session_id")
	}
	if req.Title == "" {
		return nil, requiredField("title")
	}
	if req.CreatedBy == "" {
		return nil, requiredField("created_by")
	}

	if req.ParentThreadID != "" {
		parent, err := s.GetThread(ctx, req.ParentThreadID)
		if err != nil {
			return nil, fmt.Errorf("looking up parent thread: %w", err)
		}
		if parent.SessionID != req.SessionID {
			return nil, &ValidationError{Field: "parent_thread_id", Reason: "belongs to a different session"}
		}
	}

	now := time.Now().UTC()
	thread := &store.Thread{
		ID:              newThreadID(),
		SessionID:       req.SessionID,
		ParentThreadID:  req.ParentThreadID,
		Title:           req.Title,
		Description:     req.Description,
		OriginMessageID: req.OriginMessageID,
		CreatedBy:       req.CreatedBy,
		Participants:    participantSet(req.Participants, req.CreatedBy),
		Status:          store.StatusActive,
		Metadata:        req.Metadata,
		MessageCount:    0,
		UnreadCounts:    map[string]int{},
		CreatedAt:       now,
		LastActivityAt:  now,
	}

	if err := s.store.CreateThread(ctx, thread); err != nil {
		return nil, fmt.Errorf("creating thread: %w", err)
	}

	s.cache.put(thread)
	s.recordActivity(ctx, thread, store.ActivityThreadCreated, req.CreatedBy, map[string]any{
		"title": thread.Title,
	})
	s.metrics.ThreadCreated()
	s.hub.Notify(thread.SessionID, EventThreadCreated, thread, nil)

	s.logger.Info("thread created",
		"thread_id", thread.ID,
		"session_id", thread.SessionID,
		"parent_thread_id", thread.ParentThreadID,
	)
	return thread.Clone(), nil
}

// UpdateThreadRequest carries the fields to merge over an existing thread.
// Nil pointer fields are left unchanged; Metadata is shallow-merged, not
// replaced. Participants are applied as union(Add) then difference(Remove),
// so an id present in both lists ends up removed.
type UpdateThreadRequest struct {
	Title              *string
	Description        *string
	Status             *store.ThreadStatus
	Metadata           map[string]any
	AddParticipants    []string
	RemoveParticipants []string
	ActorID            string // attributed in the activity record
}

// UpdateThread merges the request over the stored thread and persists it.
// Returns store.ErrNotFound if the thread does not exist, ErrThreadClosed
// when attempting to change the status of a closed thread.
func (s *Service) UpdateThread(ctx context.Context, threadID string, req UpdateThreadRequest) (*store.Thread, error) {
	defer s.metrics.ObserveOp("update_thread", time.Now())

	unlock := s.locks.lock(threadID)
	defer unlock()

	thread, err := s.loadThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown value %q", *req.Status)}
		}
		// Closed is terminal. Archived threads may be reopened.
		if thread.Status == store.StatusClosed && *req.Status != store.StatusClosed {
			return nil, ErrThreadClosed
		}
		thread.Status = *req.Status
	}
	if req.Title != nil {
		thread.Title = *req.Title
	}
	if req.Description != nil {
		thread.Description = *req.Description
	}
	if len(req.Metadata) > 0 {
		if thread.Metadata == nil {
			thread.Metadata = make(map[string]any, len(req.Metadata))
		}
		for k, v := range req.Metadata {
			thread.Metadata[k] = v
		}
	}
	if len(req.AddParticipants) > 0 {
		thread.Participants = participantSet(thread.Participants, req.AddParticipants...)
	}
	for _, id := range req.RemoveParticipants {
		thread.Participants = removeParticipant(thread.Participants, id)
	}
	thread.LastActivityAt = time.Now().UTC()

	if err := s.store.UpdateThread(ctx, thread); err != nil {
		return nil, fmt.Errorf("updating thread: %w", err)
	}

	s.cache.put(thread)
	s.recordActivity(ctx, thread, store.ActivityThreadUpdated, req.ActorID, updateDetail(req))
	s.metrics.ThreadUpdated()
	s.hub.Notify(thread.SessionID, EventThreadUpdated, thread, nil)

	return thread.Clone(), nil
}

// ArchiveThread sets the thread status to archived and records a
// thread_archived activity in addition to the generic update record.
func (s *Service) ArchiveThread(ctx context.Context, threadID, userID string) (*store.Thread, error) {
	status := store.StatusArchived
	thread, err := s.UpdateThread(ctx, threadID, UpdateThreadRequest{Status: &status, ActorID: userID})
	if err != nil {
		return nil, err
	}
	s.recordActivity(ctx, thread, store.ActivityThreadArchived, userID, nil)
	return thread, nil
}

// CloseThread sets the thread status to closed and records a thread_closed
// activity in addition to the generic update record. No operation reopens a
// closed thread.
func (s *Service) CloseThread(ctx context.Context, threadID, userID string) (*store.Thread, error) {
	status := store.StatusClosed
	thread, err := s.UpdateThread(ctx, threadID, UpdateThreadRequest{Status: &status, ActorID: userID})
	if err != nil {
		return nil, err
	}
	s.recordActivity(ctx, thread, store.ActivityThreadClosed, userID, nil)
	return thread, nil
}

// AddMessage appends a message to a thread. The message is persisted first,
// then the thread's message count, last-activity timestamp and per-participant
// unread counts are updated in one write. Message order within a thread is
// the append order observed by this call. Re-delivery of a message with the
// same caller-supplied id returns store.ErrDuplicateMessage.
func (s *Service) AddMessage(ctx context.Context, threadID string, msg *store.Message) error {
	defer s.metrics.ObserveOp("add_message", time.Now())

	if msg.SenderID == "" {
		return requiredField("sender_id")
	}

	unlock := s.locks.lock(threadID)
	defer unlock()

	thread, err := s.loadThread(ctx, threadID)
	if err != nil {
		return err
	}

	// Caller-supplied ids guard against repeated delivery of the same
	// message. The id is only remembered once the append succeeds, so a
	// failed append can be retried with the same id.
	callerID := msg.ID != ""
	if callerID && s.recent.Check(msg.ID) {
		return store.ErrDuplicateMessage
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Type == "" {
		msg.Type = store.MessageTypeText
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.ThreadID = thread.ID

	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return fmt.Errorf("saving message: %w", err)
	}

	thread.MessageCount++
	thread.LastActivityAt = time.Now().UTC()
	if thread.UnreadCounts == nil {
		thread.UnreadCounts = make(map[string]int)
	}
	for _, p := range thread.Participants {
		if p != msg.SenderID {
			thread.UnreadCounts[p]++
		}
	}

	// The message is already persisted; a failure here leaves it in place
	// without the counter update. Committed writes are not rolled back.
	if err := s.store.UpdateThread(ctx, thread); err != nil {
		return fmt.Errorf("updating thread after message: %w", err)
	}

	if callerID {
		s.recent.Mark(msg.ID)
	}
	s.cache.put(thread)
	s.recordActivity(ctx, thread, store.ActivityMessageAdded, msg.SenderID, map[string]any{
		"message_id": msg.ID,
	})
	s.metrics.MessageAppended()
	s.hub.Notify(thread.SessionID, EventMessageAdded, thread, msg)

	return nil
}

// MarkThreadAsRead resets the unread count for a participant to zero.
func (s *Service) MarkThreadAsRead(ctx context.Context, threadID, userID string) error {
	defer s.metrics.ObserveOp("mark_read", time.Now())

	if userID == "" {
		return requiredField("user_id")
	}

	unlock := s.locks.lock(threadID)
	defer unlock()

	thread, err := s.loadThread(ctx, threadID)
	if err != nil {
		return err
	}

	if thread.UnreadCounts == nil {
		thread.UnreadCounts = make(map[string]int)
	}
	thread.UnreadCounts[userID] = 0

	if err := s.store.UpdateThread(ctx, thread); err != nil {
		return fmt.Errorf("marking thread read: %w", err)
	}

	s.cache.put(thread)
	s.recordActivity(ctx, thread, store.ActivityThreadRead, userID, nil)
	s.hub.Notify(thread.SessionID, EventThreadRead, thread, nil)

	return nil
}

// GetThread retrieves a thread, serving repeated reads from the cache.
// Returns store.ErrNotFound if the thread does not exist.
func (s *Service) GetThread(ctx context.Context, threadID string) (*store.Thread, error) {
	if thread, ok := s.cache.get(threadID); ok {
		s.metrics.CacheHit()
		return thread, nil
	}

	// The miss path takes the thread lock so a slow store read cannot
	// overwrite a newer cache entry written by a concurrent mutation.
	unlock := s.locks.lock(threadID)
	defer unlock()
	return s.loadThread(ctx, threadID)
}

// loadThread reads through the cache. The caller must hold the thread lock.
func (s *Service) loadThread(ctx context.Context, threadID string) (*store.Thread, error) {
	if thread, ok := s.cache.get(threadID); ok {
		s.metrics.CacheHit()
		return thread, nil
	}
	s.metrics.CacheMiss()

	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("fetching thread: %w", err)
	}

	s.cache.put(thread)
	return thread, nil
}

// GetSessionThreads returns all threads for a session in creation order.
// This is a best-effort view: on a store failure it logs and returns an
// empty list. The listing does not populate the cache; doing so without the
// per-thread locks could replace newer entries with stale rows.
func (s *Service) GetSessionThreads(ctx context.Context, sessionID string) []*store.Thread {
	threads, err := s.store.GetSessionThreads(ctx, sessionID)
	if err != nil {
		s.logger.Error("failed to fetch session threads", "session_id", sessionID, "error", err)
		return nil
	}
	return threads
}

// GetThreadMessages returns messages for a thread in append order.
func (s *Service) GetThreadMessages(ctx context.Context, threadID string, limit, offset int) ([]*store.Message, error) {
	msgs, err := s.store.GetThreadMessages(ctx, threadID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("fetching thread messages: %w", err)
	}
	return msgs, nil
}

// GetRecentActivity returns the most recent activity records for a session,
// newest first. Best-effort: on a store failure it logs and returns an empty
// list.
func (s *Service) GetRecentActivity(ctx context.Context, sessionID string, limit int) []*store.Activity {
	activities, err := s.store.GetSessionActivities(ctx, sessionID, limit)
	if err != nil {
		s.logger.Error("failed to fetch activities", "session_id", sessionID, "error", err)
		return nil
	}
	return activities
}

// AddThreadListener registers a listener for a session's thread events and
// returns its subscription id.
func (s *Service) AddThreadListener(sessionID string, fn Listener) string {
	return s.hub.Add(sessionID, fn)
}

// RemoveThreadListener unregisters a listener by subscription id.
func (s *Service) RemoveThreadListener(sessionID, id string) {
	s.hub.Remove(sessionID, id)
}

// recordActivity appends an activity record. Activity persistence is
// best-effort after the primary write: failures are logged, not surfaced.
func (s *Service) recordActivity(ctx context.Context, thread *store.Thread, typ store.ActivityType, userID string, detail map[string]any) {
	act := &store.Activity{
		ThreadID:  thread.ID,
		SessionID: thread.SessionID,
		Type:      typ,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Detail:    detail,
	}
	if act.ID == "" {
		act.ID = uuid.New().String()
	}
	if err := s.store.SaveActivity(ctx, act); err != nil {
		s.logger.Error("failed to record activity",
			"thread_id", thread.ID,
			"type", typ,
			"error", err,
		)
	}
}

// updateDetail captures the raw update request for the audit record.
func updateDetail(req UpdateThreadRequest) map[string]any {
	detail := make(map[string]any)
	if req.Title != nil {
		detail["title"] = *req.Title
	}
	if req.Description != nil {
		detail["description"] = *req.Description
	}
	if req.Status != nil {
		detail["status"] = string(*req.Status)
	}
	if len(req.Metadata) > 0 {
		detail["metadata"] = req.Metadata
	}
	if len(req.AddParticipants) > 0 {
		detail["add_participants"] = req.AddParticipants
	}
	if len(req.RemoveParticipants) > 0 {
		detail["remove_participants"] = req.RemoveParticipants
	}
	return detail
}

// participantSet returns base extended with ids, preserving order and
// dropping duplicates.
func participantSet(base []string, ids ...string) []string {
	seen := make(map[string]bool, len(base)+len(ids))
	out := make([]string, 0, len(base)+len(ids))
	for _, p := range base {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range ids {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// removeParticipant drops one id from the participant list.
func removeParticipant(participants []string, id string) []string {
	out := participants[:0]
	for _, p := range participants {
		if p != id {
			out = append(out, p)
		}
	}
	return out
}
