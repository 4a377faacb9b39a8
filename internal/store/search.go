// ABOUTME: Thread search for the SQLite store
// ABOUTME: Filters by free text, status and participant; ordered by recent activity

package store

import (
	"context"
	"fmt"
	"strings"
)

// SearchThreads retrieves threads in a session matching the query, ordered by
// most recent activity. Zero-value query fields are not applied as filters.
func (s *SQLiteStore) SearchThreads(ctx context.Context, sessionID string, q SearchQuery) ([]*Thread, error) {
	query := threadSelect + ` WHERE session_id = ?`
	args := []any{sessionID}

	if q.Text != "" {
		query += ` AND (title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`
		pattern := "%" + escapeLike(q.Text) + "%"
		args = append(args, pattern, pattern)
	}
	if q.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(q.Status))
	}
	if q.Participant != "" {
		// Participants are stored as a JSON array of strings; match the
		// quoted element to avoid substring false positives.
		query += ` AND participants LIKE ? ESCAPE '\'`
		args = append(args, `%"`+escapeLike(q.Participant)+`"%`)
	}

	query += ` ORDER BY last_activity_at DESC, id LIMIT ?`
	args = append(args, normalizeLimit(q.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching threads: %w", err)
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
		return nil, fmt.Errorf("iterating search results: %w", err)
	}
	return threads, nil
}

// escapeLike neutralizes LIKE wildcards in user-supplied search text. The
// escape character itself goes first, so a literal backslash in the query
// cannot swallow the escapes added for % and _.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
