// Package thread is the conversation-threading engine. It organizes a flat
// stream of chat messages into a navigable tree of threads, tracks
// per-participant unread counts, maintains an append-only activity log per
// thread, and supports search and statistics over a session's thread set.
//
// # Architecture
//
// Service is the lifecycle manager and the only mutation path. Every
// state-changing operation writes through the store, replaces the cache
// entry, appends an activity record and finally notifies session listeners,
// in that order. Persistence failures abort before any side effect.
//
// The tree builder (BuildNavigationContext) and the search and stats views
// are pure, read-only computations over the current flat thread list.
//
// # Concurrency
//
// Mutations on the same thread are serialized with a per-thread lock, so
// concurrent AddMessage calls never lose a counter increment. Operations on
// different threads and different sessions proceed concurrently. Listener
// callbacks run synchronously on the mutating goroutine, in registration
// order; a panicking listener is isolated and logged.
//
// # Lifecycle
//
// Threads start active. Archived threads may be reopened via UpdateThread;
// closed threads are terminal and status changes on them return
// ErrThreadClosed. Threads are never deleted.
package thread
