// ABOUTME: Aggregated statistics over a session's thread set
// ABOUTME: Best-effort view - store failures yield zeroed stats, not errors

package thread

import (
	"context"

	"braid/internal/store"
)

// recentActivityLimit is how many activity records a stats result carries.
const recentActivityLimit = 10

// Stats aggregates counts over all threads of a session.
type Stats struct {
	TotalThreads    int
	ActiveThreads   int
	ArchivedThreads int
	ClosedThreads   int
	TotalMessages   int
	TotalUnread     int // sum of unread counts over all participants of all threads

	// MostActiveThread is the thread with the highest message count; ties
	// are broken by creation order, first encountered wins. Nil when the
	// session has no threads.
	MostActiveThread *store.Thread

	// RecentActivity holds the newest activity records, newest first.
	RecentActivity []*store.Activity
}

// GetThreadStats computes aggregate statistics for a session. Best-effort:
// store failures are logged and yield zeroed stats.
func (s *Service) GetThreadStats(ctx context.Context, sessionID string) *Stats {
	threads := s.GetSessionThreads(ctx, sessionID)

	stats := &Stats{TotalThreads: len(threads)}
	for _, t := range threads {
		switch t.Status {
		case store.StatusActive:
			stats.ActiveThreads++
		case store.StatusArchived:
			stats.ArchivedThreads++
		case store.StatusClosed:
			stats.ClosedThreads++
		}

		stats.TotalMessages += t.MessageCount
		for _, n := range t.UnreadCounts {
			stats.TotalUnread += n
		}

		if stats.MostActiveThread == nil || t.MessageCount > stats.MostActiveThread.MessageCount {
			stats.MostActiveThread = t
		}
	}

	stats.RecentActivity = s.GetRecentActivity(ctx, sessionID, recentActivityLimit)
	return stats
}
