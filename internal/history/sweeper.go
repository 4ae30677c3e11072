package history

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Number of repositories to sweep in parallel.
const sweepConcurrency = 5

// Sweeper runs the retention policy on a timer: every interval it prunes
// each repository's commit cache down to retentionDays of cache age.
type Sweeper struct {
	svc           *Service
	interval      time.Duration
	retentionDays int
	logger        *slog.Logger
}

func NewSweeper(svc *Service, interval time.Duration, retentionDays int, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		svc:           svc,
		interval:      interval,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// Start blocks until ctx is done, running a sweep on every tick.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting retention sweeper",
		"interval", s.interval.String(), "retention_days", s.retentionDays)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runSweep(ctx)
		case <-ctx.Done():
			s.logger.Info("Retention sweeper shutting down", "reason", ctx.Err())
			return
		}
	}
}

// runSweep prunes all repositories with bounded concurrency. Per-repository
// failures are logged and skipped so one bad row cannot stall the sweep.
func (s *Sweeper) runSweep(ctx context.Context) {
	ids, err := s.svc.q.ListRepositoryIDs(ctx)
	if err != nil {
		s.logger.Error("Failed to list repositories for retention sweep", "error", err)
		return
	}

	var total int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)

	results := make(chan int64, len(ids))
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			deleted, err := s.svc.CleanupOldCommits(gctx, id, s.retentionDays)
			if err != nil {
				s.logger.Error("Retention sweep failed for repository", "repository_id", id, "error", err)
				return nil
			}
			results <- deleted
			return nil
		})
	}

	_ = g.Wait()
	close(results)
	for n := range results {
		total += n
	}
	s.logger.Info("Retention sweep finished", "repositories", len(ids), "deleted", total)
}
