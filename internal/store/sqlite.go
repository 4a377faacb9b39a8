// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides thread persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			parent_thread_id TEXT,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			origin_message_id TEXT,
			created_by TEXT NOT NULL,
			participants TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT 'active',
			metadata TEXT,
			message_count INTEGER NOT NULL DEFAULT 0,
			unread_counts TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			last_activity_at TEXT NOT NULL,

			CHECK (status IN ('active', 'archived', 'closed'))
		);

		CREATE INDEX IF NOT EXISTS idx_threads_session
			ON threads(session_id, created_at);

		CREATE INDEX IF NOT EXISTS idx_threads_parent
			ON threads(parent_thread_id);

		CREATE TABLE IF NOT EXISTS thread_messages (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT 'text',
			content TEXT NOT NULL,
			metadata TEXT,
			created_at TEXT NOT NULL,
			FOREIGN KEY (thread_id) REFERENCES threads(id)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_thread_created
			ON thread_messages(thread_id, created_at);

		CREATE TABLE IF NOT EXISTS thread_activities (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			type TEXT NOT NULL,
			user_id TEXT NOT NULL,
			ts TEXT NOT NULL,
			detail_json TEXT,

			CHECK (type IN (
				'thread_created',
				'thread_updated',
				'thread_archived',
				'thread_closed',
				'message_added',
				'thread_read'
			))
		);

		CREATE INDEX IF NOT EXISTS idx_activities_session_ts
			ON thread_activities(session_id, ts DESC);

		CREATE INDEX IF NOT EXISTS idx_activities_thread
			ON thread_activities(thread_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// CreateThread creates a new thread in the database.
// If a thread with the same id already exists, it returns ErrDuplicateThread.
func (s *SQLiteStore) CreateThread(ctx context.Context, thread *Thread) error {
	participants, metadata, unread, err := marshalThreadJSON(thread)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO threads (
			id, session_id, parent_thread_id, title, description, origin_message_id,
			created_by, participants, status, metadata, message_count, unread_counts,
			created_at, last_activity_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		thread.ID,
		thread.SessionID,
		nullable(thread.ParentThreadID),
		thread.Title,
		thread.Description,
		nullable(thread.OriginMessageID),
		thread.CreatedBy,
		participants,
		string(thread.Status),
		metadata,
		thread.MessageCount,
		unread,
		formatTime(thread.CreatedAt),
		formatTime(thread.LastActivityAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateThread
		}
		return fmt.Errorf("inserting thread: %w", err)
	}

	s.logger.Debug("created thread", "id", thread.ID, "session", thread.SessionID)
	return nil
}

// UpdateThread replaces the stored record for an existing thread.
// Returns ErrNotFound if the thread doesn't exist.
func (s *SQLiteStore) UpdateThread(ctx context.Context, thread *Thread) error {
	participants, metadata, unread, err := marshalThreadJSON(thread)
	if err != nil {
		return err
	}

	query := `
		UPDATE threads
		SET title = ?, description = ?, participants = ?, status = ?, metadata = ?,
			message_count = ?, unread_counts = ?, last_activity_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		thread.Title,
		thread.Description,
		participants,
		string(thread.Status),
		metadata,
		thread.MessageCount,
		unread,
		formatTime(thread.LastActivityAt),
		thread.ID,
	)
	if err != nil {
		return fmt.Errorf("updating thread: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated thread", "id", thread.ID)
	return nil
}

// GetThread retrieves a thread by ID.
// Returns ErrNotFound if the thread doesn't exist.
func (s *SQLiteStore) GetThread(ctx context.Context, id string) (*Thread, error) {
	query := threadSelect + ` WHERE id = ?`

	thread, err := scanThread(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying thread: %w", err)
	}
	return thread, nil
}

// GetSessionThreads retrieves all threads for a session in creation order.
// Sibling order in the navigation tree follows this order.
func (s *SQLiteStore) GetSessionThreads(ctx context.Context, sessionID string) ([]*Thread, error) {
	query := threadSelect + ` WHERE session_id = ? ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying session threads: %w", err)
	}
	defer rows.Close()

	var threads []*Thread
	for rows.Next() {
		thread, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		threads = append(threads, thread)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session threads: %w", err)
	}
	return threads, nil
}

const threadSelect = `
	SELECT id, session_id, parent_thread_id, title, description, origin_message_id,
		created_by, participants, status, metadata, message_count, unread_counts,
		created_at, last_activity_at
	FROM threads`

// rowScanner abstracts sql.Row and sql.Rows for scanThread.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanThread scans a threads row into a Thread.
func scanThread(row rowScanner) (*Thread, error) {
	var thread Thread
	var parentID, originID, metadataJSON sql.NullString
	var participantsJSON, unreadJSON, statusStr, createdAtStr, lastActivityStr string

	err := row.Scan(
		&thread.ID,
		&thread.SessionID,
		&parentID,
		&thread.Title,
		&thread.Description,
		&originID,
		&thread.CreatedBy,
		&participantsJSON,
		&statusStr,
		&metadataJSON,
		&thread.MessageCount,
		&unreadJSON,
		&createdAtStr,
		&lastActivityStr,
	)
	if err != nil {
		return nil, err
	}

	thread.ParentThreadID = parentID.String
	thread.OriginMessageID = originID.String
	thread.Status = ThreadStatus(statusStr)

	if err := json.Unmarshal([]byte(participantsJSON), &thread.Participants); err != nil {
		return nil, fmt.Errorf("parsing participants: %w", err)
	}
	if err := json.Unmarshal([]byte(unreadJSON), &thread.UnreadCounts); err != nil {
		return nil, fmt.Errorf("parsing unread_counts: %w", err)
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &thread.Metadata); err != nil {
			return nil, fmt.Errorf("parsing metadata: %w", err)
		}
	}

	if thread.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if thread.LastActivityAt, err = parseTime(lastActivityStr); err != nil {
		return nil, fmt.Errorf("parsing last_activity_at: %w", err)
	}

	return &thread, nil
}

// marshalThreadJSON serializes the thread's JSON-backed columns.
func marshalThreadJSON(thread *Thread) (participants, metadata, unread string, err error) {
	p := thread.Participants
	if p == nil {
		p = []string{}
	}
	pb, err := json.Marshal(p)
	if err != nil {
		return "", "", "", fmt.Errorf("marshaling participants: %w", err)
	}

	u := thread.UnreadCounts
	if u == nil {
		u = map[string]int{}
	}
	ub, err := json.Marshal(u)
	if err != nil {
		return "", "", "", fmt.Errorf("marshaling unread_counts: %w", err)
	}

	if thread.Metadata != nil {
		mb, err := json.Marshal(thread.Metadata)
		if err != nil {
			return "", "", "", fmt.Errorf("marshaling metadata: %w", err)
		}
		metadata = string(mb)
	}

	return string(pb), metadata, string(ub), nil
}

// isConstraintViolation checks if the error is a SQLite constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// nullable converts an empty string to a SQL NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// timeLayout is fixed-width down to nanoseconds. RFC3339Nano trims trailing
// fractional zeros, which breaks lexicographic ordering across a second
// boundary ("...:00Z" sorts after "...:00.5Z"); padding keeps the text
// columns ordered like the timestamps they encode.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime serializes a timestamp for storage. Nanosecond precision is
// kept so creation order survives the round-trip.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime deserializes a stored timestamp.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
