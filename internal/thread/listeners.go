// ABOUTME: Per-session listener registry with synchronous in-order dispatch
// ABOUTME: A panicking listener is isolated and logged, never failing the caller

package thread

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"braid/internal/metrics"
	"braid/internal/store"
)

// Event identifies the state change a listener is being notified about.
type Event string

const (
	EventThreadCreated Event = "thread_created"
	EventThreadUpdated Event = "thread_updated"
	EventMessageAdded  Event = "message_added"
	EventThreadRead    Event = "thread_read"
)

// Listener receives synchronous notifications after state-changing
// operations. payload carries operation-specific data: the appended
// *store.Message for EventMessageAdded, nil otherwise.
type Listener func(event Event, thread *store.Thread, payload any)

// registration pairs a listener with its subscription id.
type registration struct {
	id string
	fn Listener
}

// ListenerHub is a per-session registry of callback listeners. Listeners for
// a session are invoked synchronously, in registration order, after every
// state-changing operation on that session's threads.
type ListenerHub struct {
	mu        sync.RWMutex
	listeners map[string][]registration // sessionID -> ordered registrations
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewListenerHub creates a hub. Pass nil logger for default.
func NewListenerHub(logger *slog.Logger, m *metrics.Metrics) *ListenerHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListenerHub{
		listeners: make(map[string][]registration),
		logger:    logger.With("component", "listeners"),
		metrics:   m,
	}
}

// Add registers a listener for a session and returns its subscription id.
func (h *ListenerHub) Add(sessionID string, fn Listener) string {
	id := uuid.New().String()

	h.mu.Lock()
	h.listeners[sessionID] = append(h.listeners[sessionID], registration{id: id, fn: fn})
	h.mu.Unlock()

	h.logger.Debug("listener added", "session_id", sessionID, "listener_id", id)
	return id
}

// Remove unregisters a listener by subscription id.
func (h *ListenerHub) Remove(sessionID, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	regs := h.listeners[sessionID]
	for i, reg := range regs {
		if reg.id == id {
			h.listeners[sessionID] = append(regs[:i], regs[i+1:]...)
			break
		}
	}
	if len(h.listeners[sessionID]) == 0 {
		delete(h.listeners, sessionID)
	}
}

// Notify invokes all listeners registered for the session, synchronously and
// in registration order. Each listener receives its own copy of the thread.
func (h *ListenerHub) Notify(sessionID string, event Event, thread *store.Thread, payload any) {
	h.mu.RLock()
	regs := make([]registration, len(h.listeners[sessionID]))
	copy(regs, h.listeners[sessionID])
	h.mu.RUnlock()

	for _, reg := range regs {
		h.invoke(reg, sessionID, event, thread, payload)
	}
}

// invoke calls one listener, recovering from panics so a failing listener
// cannot prevent the rest from running.
func (h *ListenerHub) invoke(reg registration, sessionID string, event Event, thread *store.Thread, payload any) {
	defer func() {
		if r := recover(); r != nil {
			h.metrics.ListenerPanicked()
			h.logger.Error("listener panicked",
				"session_id", sessionID,
				"listener_id", reg.id,
				"event", event,
				"panic", r,
			)
		}
	}()

	h.metrics.ListenerNotified()
	reg.fn(event, thread.Clone(), payload)
}
