// ABOUTME: Thread search delegating filter semantics to the store
// ABOUTME: Reports wall-clock execution time alongside the echoed criteria

package thread

import (
	"context"
	"fmt"
	"time"

	"braid/internal/store"
)

// SearchMetadata describes how a search was executed, for observability.
type SearchMetadata struct {
	Query      store.SearchQuery
	ExecutedAt time.Time
	Elapsed    time.Duration
}

// SearchResult holds matching threads plus execution metadata.
type SearchResult struct {
	Threads    []*store.Thread
	TotalCount int
	Metadata   SearchMetadata
}

// SearchThreads filters a session's threads by the query. Exact filter
// semantics are delegated to the store. Unlike the best-effort stat and tree
// views, a store failure here is propagated.
func (s *Service) SearchThreads(ctx context.Context, sessionID string, q store.SearchQuery) (*SearchResult, error) {
	start := time.Now()
	defer s.metrics.ObserveOp("search_threads", start)

	threads, err := s.store.SearchThreads(ctx, sessionID, q)
	if err != nil {
		return nil, fmt.Errorf("searching threads: %w", err)
	}

	return &SearchResult{
		Threads:    threads,
		TotalCount: len(threads),
		Metadata: SearchMetadata{
			Query:      q,
			ExecutedAt: start.UTC(),
			Elapsed:    time.Since(start),
		},
	}, nil
}
