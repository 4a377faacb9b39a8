// ABOUTME: Thread message persistence for the SQLite store
// ABOUTME: Messages are append-only; never mutated or deleted

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// SaveMessage persists a thread message. Returns ErrDuplicateMessage if a
// message with the same id was already appended.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	var metadataJSON any
	if msg.Metadata != nil {
		data, err := json.Marshal(msg.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling message metadata: %w", err)
		}
		metadataJSON = string(data)
	}

	msgType := msg.Type
	if msgType == "" {
		msgType = MessageTypeText
	}

	query := `
		INSERT INTO thread_messages (id, thread_id, sender_id, type, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.ThreadID,
		msg.SenderID,
		msgType,
		msg.Content,
		metadataJSON,
		formatTime(msg.CreatedAt),
	)
	if err != nil {
		// Only the id uniqueness maps to the sentinel; a foreign key failure
		// on thread_id is reported as-is.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateMessage
		}
		return fmt.Errorf("inserting message: %w", err)
	}

	s.logger.Debug("saved message", "id", msg.ID, "thread_id", msg.ThreadID)
	return nil
}

// GetThreadMessages retrieves messages for a thread in append order.
// limit <= 0 applies the default of 100; offset skips from the start.
func (s *SQLiteStore) GetThreadMessages(ctx context.Context, threadID string, limit, offset int) ([]*Message, error) {
	limit = normalizeLimit(limit)
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, thread_id, sender_id, type, content, metadata, created_at
		FROM thread_messages
		WHERE thread_id = ?
		ORDER BY created_at, rowid
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, threadID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		var metadataJSON *string
		var createdAtStr string

		if err := rows.Scan(
			&msg.ID,
			&msg.ThreadID,
			&msg.SenderID,
			&msg.Type,
			&msg.Content,
			&metadataJSON,
			&createdAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}

		if metadataJSON != nil && *metadataJSON != "" {
			if err := json.Unmarshal([]byte(*metadataJSON), &msg.Metadata); err != nil {
				return nil, fmt.Errorf("parsing message metadata: %w", err)
			}
		}
		if msg.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, fmt.Errorf("parsing message created_at: %w", err)
		}

		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return messages, nil
}

// normalizeLimit applies default (100) and cap (1000) to query limits.
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}
