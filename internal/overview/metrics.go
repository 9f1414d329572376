package overview

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"opsdeck/internal/domain"
)

// collectMetrics runs the three counting queries concurrently and merges
// them with the in-memory active-project reduction. If any sub-query fails
// the aggregation fails as a whole; no partial records are returned.
func (s *Service) collectMetrics(ctx context.Context, since time.Time, entries []domain.LogEntry) (domain.Metrics, error) {
	var metrics domain.Metrics
	metrics.ActiveProjects = distinctProjectCount(entries)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.counter.TasksDoneSince(gctx, since)
		if err != nil {
			return fmt.Errorf("count tasks done: %w", err)
		}
		metrics.TasksDone = n
		return nil
	})
	g.Go(func() error {
		n, err := s.counter.LeadsCreatedSince(gctx, since)
		if err != nil {
			return fmt.Errorf("count new leads: %w", err)
		}
		metrics.NewLeads = n
		return nil
	})
	g.Go(func() error {
		// Current snapshot, not window-bound.
		n, err := s.counter.TasksBlocked(gctx)
		if err != nil {
			return fmt.Errorf("count blocked tasks: %w", err)
		}
		metrics.BlockedTasks = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.Metrics{}, err
	}
	return metrics, nil
}

// distinctProjectCount counts unique project ids referenced by the fetched
// log slice.
func distinctProjectCount(entries []domain.LogEntry) int {
	seen := map[string]struct{}{}
	for _, entry := range entries {
		if entry.ProjectID == "" {
			continue
		}
		seen[entry.ProjectID] = struct{}{}
	}
	return len(seen)
}
