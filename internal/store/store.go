// ABOUTME: Store interface and data types for braid persistence
// ABOUTME: Defines Thread, Message, Activity structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateThread is returned when trying to create a thread that already exists
var ErrDuplicateThread = errors.New("thread already exists")

// ErrDuplicateMessage is returned when appending a message whose id was
// already appended
var ErrDuplicateMessage = errors.New("message already exists")

// ThreadStatus represents the lifecycle state of a thread
type ThreadStatus string

const (
	StatusActive   ThreadStatus = "active"
	StatusArchived ThreadStatus = "archived"
	StatusClosed   ThreadStatus = "closed"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s ThreadStatus) Valid() bool {
	switch s {
	case StatusActive, StatusArchived, StatusClosed:
		return true
	}
	return false
}

// Thread represents a conversation branch within a session. A thread may
// branch from a message in a parent thread (ParentThreadID + OriginMessageID),
// forming a forest per session.
type Thread struct {
	ID              string
	SessionID       string
	ParentThreadID  string // empty for root threads
	Title           string
	Description     string
	OriginMessageID string // message in the parent context this thread branched from
	CreatedBy       string
	Participants    []string
	Status          ThreadStatus
	Metadata        map[string]any
	MessageCount    int
	UnreadCounts    map[string]int // participant id -> unread messages
	CreatedAt       time.Time
	LastActivityAt  time.Time
}

// Clone returns a deep copy of the thread. Participants, Metadata and
// UnreadCounts are copied so callers cannot mutate shared state.
func (t *Thread) Clone() *Thread {
	if t == nil {
		return nil
	}
	c := *t
	if t.Participants != nil {
		c.Participants = make([]string, len(t.Participants))
		copy(c.Participants, t.Participants)
	}
	if t.Metadata != nil {
		c.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	if t.UnreadCounts != nil {
		c.UnreadCounts = make(map[string]int, len(t.UnreadCounts))
		for k, v := range t.UnreadCounts {
			c.UnreadCounts[k] = v
		}
	}
	return &c
}

// HasParticipant reports whether the given participant id is in the thread's
// participant set.
func (t *Thread) HasParticipant(id string) bool {
	for _, p := range t.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// MessageType constants for message types
const (
	MessageTypeText   = "text"   // Regular text message
	MessageTypeSystem = "system" // System-generated message
)

// Message represents a single message within a thread. Messages are
// append-only; they are never mutated or deleted.
type Message struct {
	ID        string
	ThreadID  string
	SenderID  string
	Type      string // defaults to "text"
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// ActivityType categorizes thread activity records
type ActivityType string

const (
	ActivityThreadCreated  ActivityType = "thread_created"
	ActivityThreadUpdated  ActivityType = "thread_updated"
	ActivityThreadArchived ActivityType = "thread_archived"
	ActivityThreadClosed   ActivityType = "thread_closed"
	ActivityMessageAdded   ActivityType = "message_added"
	ActivityThreadRead     ActivityType = "thread_read"
)

// Activity is an immutable audit record of a state-changing operation on a
// thread. Write-once; the authoritative history of a thread.
type Activity struct {
	ID        string
	ThreadID  string
	SessionID string
	Type      ActivityType
	UserID    string
	Timestamp time.Time
	Detail    map[string]any
}

// SearchQuery specifies thread search criteria. Zero-value fields are not
// applied as filters.
type SearchQuery struct {
	Text        string       // free-text match on title and description
	Status      ThreadStatus // exact status match
	Participant string       // threads the participant is a member of
	Limit       int          // max results (default 100, max 1000)
}

// Store defines the interface for thread, message and activity persistence.
// All operations are atomic at the single-record level and surface failures
// as errors rather than silent no-ops.
type Store interface {
	// Threads
	CreateThread(ctx context.Context, thread *Thread) error
	UpdateThread(ctx context.Context, thread *Thread) error
	GetThread(ctx context.Context, id string) (*Thread, error)
	GetSessionThreads(ctx context.Context, sessionID string) ([]*Thread, error)
	SearchThreads(ctx context.Context, sessionID string, q SearchQuery) ([]*Thread, error)

	// Messages (append-only)
	SaveMessage(ctx context.Context, msg *Message) error
	GetThreadMessages(ctx context.Context, threadID string, limit, offset int) ([]*Message, error)

	// Activities (append-only audit log)
	SaveActivity(ctx context.Context, act *Activity) error
	GetSessionActivities(ctx context.Context, sessionID string, limit int) ([]*Activity, error)

	// Close releases any resources held by the store
	Close() error
}
