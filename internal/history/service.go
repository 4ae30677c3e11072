// Package history persists per-repository commit records: deduplicated
// upserts keyed by (repository, sha), cache-windowed and filtered queries,
// aggregate statistics, and retention pruning by cache age.
package history

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github-pr-backend/internal/model"
	"github-pr-backend/internal/store"
	"github-pr-backend/internal/timeutil"
)

// BatchResult tallies one batch save. On a failed commit nothing is
// persisted and Failed covers the whole batch: "failed" means attempted but
// not persisted.
type BatchResult struct {
	Success        bool `json:"success"`
	Saved          int  `json:"saved_count"`
	Updated        int  `json:"updated_count"`
	Failed         int  `json:"failed_count"`
	TotalProcessed int  `json:"total_processed"`
}

// Service is the commit history store.
type Service struct {
	pool   *pgxpool.Pool
	q      store.Querier
	logger *slog.Logger
}

func NewService(pool *pgxpool.Pool, q store.Querier, logger *slog.Logger) *Service {
	return &Service{pool: pool, q: q, logger: logger}
}

// SaveCommit upserts one commit keyed by (repository, sha), refreshing
// cached_at. Persistence faults are returned, never swallowed.
func (s *Service) SaveCommit(ctx context.Context, c model.CommitRecord) (model.CommitRecord, error) {
	saved, _, err := saveOne(ctx, s.q, c)
	if err != nil {
		s.logger.Error("Failed to save commit history", "sha", c.SHA, "repository_id", c.RepositoryID, "error", err)
		return model.CommitRecord{}, err
	}
	return saved, nil
}

// saveOne performs the upsert against the given Querier so BatchSave can run
// it inside a transaction.
func saveOne(ctx context.Context, q store.Querier, c model.CommitRecord) (model.CommitRecord, bool, error) {
	c.CachedAt = timeutil.Now()
	c.CommittedAt = timeutil.Normalize(c.CommittedAt)

	existing, err := q.GetCommitBySHA(ctx, c.RepositoryID, c.SHA)
	if errors.Is(err, pgx.ErrNoRows) {
		created, err := q.InsertCommit(ctx, c)
		return created, true, err
	} else if err != nil {
		return model.CommitRecord{}, false, err
	}

	c.ID = existing.ID
	if err := q.UpdateCommit(ctx, c); err != nil {
		return model.CommitRecord{}, false, err
	}
	return c, false, nil
}

// BatchSave applies the per-record upsert across the whole list inside one
// transaction. Individual record faults are logged and counted as failed;
// a failed final commit rolls back the entire batch.
func (s *Service) BatchSave(ctx context.Context, commits []model.CommitRecord) (BatchResult, error) {
	result := BatchResult{TotalProcessed: len(commits)}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		result.Failed = len(commits)
		return result, err
	}
	defer tx.Rollback(ctx) // no-op once committed

	qtx := store.New(tx)
	for _, c := range commits {
		_, created, err := saveOne(ctx, qtx, c)
		if err != nil {
			s.logger.Error("Failed to save commit in batch", "sha", c.SHA, "error", err)
			result.Failed++
			continue
		}
		if created {
			result.Saved++
		} else {
			result.Updated++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.Error("Batch save commit failed, rolling back", "error", err)
		return BatchResult{Failed: len(commits), TotalProcessed: len(commits)}, err
	}

	result.Success = true
	s.logger.Info("Batch save completed",
		"saved", result.Saved, "updated", result.Updated, "failed", result.Failed)
	return result, nil
}

// GetCommitBySHA returns the stored record for (repository, sha), or nil
// when none exists.
func (s *Service) GetCommitBySHA(ctx context.Context, repositoryID int64, sha string) (*model.CommitRecord, error) {
	c, err := s.q.GetCommitBySHA(ctx, repositoryID, sha)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCachedCommits returns commits whose cache entry is younger than maxAge,
// newest-committed first.
func (s *Service) GetCachedCommits(ctx context.Context, repositoryID int64, maxAge time.Duration, limit int) ([]model.CommitRecord, error) {
	cutoff := timeutil.Now().Add(-maxAge)
	return s.q.ListCachedCommits(ctx, repositoryID, cutoff, limit)
}

func (s *Service) GetRepositoryCommits(ctx context.Context, repositoryID int64, limit int) ([]model.CommitRecord, error) {
	return s.q.ListCommits(ctx, repositoryID, limit)
}

func (s *Service) GetCommitsByAuthor(ctx context.Context, repositoryID int64, authorEmail string, limit int) ([]model.CommitRecord, error) {
	return s.q.ListCommitsByAuthor(ctx, repositoryID, authorEmail, limit)
}

// GetCommitsByDateRange is inclusive on both ends and unlimited.
func (s *Service) GetCommitsByDateRange(ctx context.Context, repositoryID int64, start, end time.Time) ([]model.CommitRecord, error) {
	return s.q.ListCommitsByDateRange(ctx, repositoryID, timeutil.Normalize(start), timeutil.Normalize(end))
}

func (s *Service) GetStats(ctx context.Context, repositoryID int64) (model.CommitStats, error) {
	return s.q.GetCommitStats(ctx, repositoryID)
}

// GetRecentActivity projects the last N days of commits to the light
// activity shape.
func (s *Service) GetRecentActivity(ctx context.Context, repositoryID int64, days int) ([]model.ActivityEntry, error) {
	since := timeutil.Now().AddDate(0, 0, -days)
	commits, err := s.q.ListCommitsSince(ctx, repositoryID, since)
	if err != nil {
		return nil, err
	}

	activity := make([]model.ActivityEntry, 0, len(commits))
	for _, c := range commits {
		entry := model.ActivityEntry{
			SHA:         c.SHA,
			Message:     c.Message,
			CommittedAt: c.CommittedAt,
			Additions:   c.Additions,
			Deletions:   c.Deletions,
			FileCount:   c.FileCount,
		}
		if c.AuthorName != nil {
			entry.Author = *c.AuthorName
		}
		activity = append(activity, entry)
	}
	return activity, nil
}

// CleanupOldCommits deletes records cached before now−daysToKeep and returns
// the number removed. Pruning keys on cache age, not commit age.
func (s *Service) CleanupOldCommits(ctx context.Context, repositoryID int64, daysToKeep int) (int64, error) {
	cutoff := timeutil.Now().AddDate(0, 0, -daysToKeep)
	deleted, err := s.q.DeleteCommitsOlderThan(ctx, repositoryID, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Cleaned up old commit histories",
		"repository_id", repositoryID, "deleted", deleted, "days_to_keep", daysToKeep)
	return deleted, nil
}
