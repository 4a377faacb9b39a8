// Package store provides persistent storage for threads, messages and
// activity records using SQLite.
//
// # Architecture
//
// The Store interface defines the persistence contract consumed by the
// threading engine. Two implementations exist:
//
//   - SQLiteStore: the real backing store (modernc.org/sqlite, WAL mode)
//   - MockStore: an in-memory test double with deep-copy semantics
//
// # Data Models
//
//   - Thread: a conversation branch within a session; may branch from a
//     message in a parent thread, forming a forest per session
//   - Message: an append-only message scoped to a thread
//   - Activity: an immutable audit record of a state-changing operation
//
// Set- and map-valued thread fields (participants, metadata, unread
// counts) are stored as JSON text columns.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as RFC 3339 text with nanosecond precision so
// creation order survives the round-trip.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrDuplicateThread: Thread already exists
//   - ErrDuplicateMessage: Message id already appended
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests and NewSQLiteStore with a temporary
// path for integration tests with real SQLite.
package store
