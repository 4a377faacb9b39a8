// ABOUTME: Activity log persistence for tracking thread state changes
// ABOUTME: Records who did what to which thread for audit and recent-activity queries

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValidActivityTypes lists all valid activity types.
var ValidActivityTypes = []ActivityType{
	ActivityThreadCreated,
	ActivityThreadUpdated,
	ActivityThreadArchived,
	ActivityThreadClosed,
	ActivityMessageAdded,
	ActivityThreadRead,
}

// Valid reports whether the type is a known activity type.
func (t ActivityType) Valid() bool {
	for _, known := range ValidActivityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// SaveActivity appends a new entry to the activity log.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) SaveActivity(ctx context.Context, act *Activity) error {
	if !act.Type.Valid() {
		return fmt.Errorf("invalid activity type %q", act.Type)
	}
	if act.ID == "" {
		act.ID = uuid.New().String()
	}
	if act.Timestamp.IsZero() {
		act.Timestamp = time.Now().UTC()
	}

	var detailJSON *string
	if act.Detail != nil {
		data, err := json.Marshal(act.Detail)
		if err != nil {
			return fmt.Errorf("marshaling activity detail: %w", err)
		}
		str := string(data)
		detailJSON = &str
	}

	query := `
		INSERT INTO thread_activities (id, thread_id, session_id, type, user_id, ts, detail_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		act.ID,
		act.ThreadID,
		act.SessionID,
		string(act.Type),
		act.UserID,
		formatTime(act.Timestamp),
		detailJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting activity: %w", err)
	}

	s.logger.Debug("saved activity",
		"id", act.ID,
		"thread_id", act.ThreadID,
		"type", act.Type,
	)
	return nil
}

// GetSessionActivities retrieves the most recent activities for a session,
// newest first. limit <= 0 applies the default of 100.
func (s *SQLiteStore) GetSessionActivities(ctx context.Context, sessionID string, limit int) ([]*Activity, error) {
	limit = normalizeLimit(limit)

	query := `
		SELECT id, thread_id, session_id, type, user_id, ts, detail_json
		FROM thread_activities
		WHERE session_id = ?
		ORDER BY ts DESC, rowid DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()

	var activities []*Activity
	for rows.Next() {
		var act Activity
		var typeStr, tsStr string
		var detailJSON *string

		if err := rows.Scan(
			&act.ID,
			&act.ThreadID,
			&act.SessionID,
			&typeStr,
			&act.UserID,
			&tsStr,
			&detailJSON,
		); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}

		act.Type = ActivityType(typeStr)
		if act.Timestamp, err = parseTime(tsStr); err != nil {
			return nil, fmt.Errorf("parsing activity timestamp: %w", err)
		}
		if detailJSON != nil && *detailJSON != "" {
			if err := json.Unmarshal([]byte(*detailJSON), &act.Detail); err != nil {
				return nil, fmt.Errorf("parsing activity detail: %w", err)
			}
		}

		activities = append(activities, &act)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activities: %w", err)
	}
	return activities, nil
}
