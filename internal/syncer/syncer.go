// Package syncer is the repository cache & sync engine. It decides when the
// local mirror can answer on its own, when to make a conditional (ETag)
// upstream call, and how to fold a fresh upstream list back into the store.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github-pr-backend/internal/errors"
	gh "github-pr-backend/internal/github"
	"github-pr-backend/internal/history"
	"github-pr-backend/internal/model"
	"github-pr-backend/internal/store"
	"github-pr-backend/internal/timeutil"
)

// Result sources.
const (
	SourceCache     = "cache"
	SourceETagCache = "etag_cache"
	SourceGithubAPI = "github_api"
)

// Gateway is the upstream call surface the engine depends on.
type Gateway interface {
	ListRepositories(ctx context.Context, token, etag string) (*gh.RepoPage, error)
	ListCommits(ctx context.Context, token, owner, name string, perPage int) ([]model.CommitRecord, error)
	GetCommit(ctx context.Context, token, owner, name, sha string) (*model.CommitRecord, error)
}

// History is the commit-store surface used by the fetch flows.
type History interface {
	SaveCommit(ctx context.Context, c model.CommitRecord) (model.CommitRecord, error)
	BatchSave(ctx context.Context, commits []model.CommitRecord) (history.BatchResult, error)
	GetCommitBySHA(ctx context.Context, repositoryID int64, sha string) (*model.CommitRecord, error)
	GetCachedCommits(ctx context.Context, repositoryID int64, maxAge time.Duration, limit int) ([]model.CommitRecord, error)
}

// RepoList is the envelope returned to the consumer layer, carrying the
// repositories plus provenance for how they were obtained.
type RepoList struct {
	Repos       []model.Repository `json:"data"`
	Source      string             `json:"source"`
	SyncStats   *model.SyncStats   `json:"sync_stats,omitempty"`
	CacheHit    bool               `json:"cache_hit,omitempty"`
	CachedAt    *time.Time         `json:"cached_at,omitempty"`
	ETagMatched bool               `json:"etag_matched,omitempty"`
	ETagUpdated bool               `json:"etag_updated,omitempty"`
}

// CommitList is the envelope for commit-listing results.
type CommitList struct {
	Commits []model.CommitRecord `json:"data"`
	Source  string               `json:"source"`
	Saved   int                  `json:"saved,omitempty"`
}

// CommitDetail is the envelope for a single-commit result.
type CommitDetail struct {
	Commit *model.CommitRecord `json:"data"`
	Source string              `json:"source"`
}

// Service orchestrates cache decisions, upstream calls and incremental sync.
type Service struct {
	pool      *pgxpool.Pool
	q         store.Querier
	gw        Gateway
	history   History
	repoTTL   time.Duration
	commitTTL time.Duration
	logger    *slog.Logger
}

// NewService creates the engine. repoTTL is the per-user list freshness
// window; commitTTL is the commit-cache freshness window.
func NewService(pool *pgxpool.Pool, q store.Querier, gw Gateway, hist History, repoTTL, commitTTL time.Duration, logger *slog.Logger) *Service {
	return &Service{
		pool:      pool,
		q:         q,
		gw:        gw,
		history:   hist,
		repoTTL:   repoTTL,
		commitTTL: commitTTL,
		logger:    logger,
	}
}

// GetUserRepositories returns the user's repository list, serving from the
// local cache when any of the user's repositories synced within the
// freshness window, and otherwise making a conditional upstream call.
func (s *Service) GetUserRepositories(ctx context.Context, userID int64, forceRefresh, includeArchived bool) (*RepoList, error) {
	if !forceRefresh {
		cached, err := s.cachedRepoList(ctx, userID, includeArchived)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			return cached, nil
		}
	}
	return s.fetchWithETag(ctx, userID, forceRefresh, includeArchived)
}

// cachedRepoList returns the local list when the coarse per-user freshness
// signal holds, or nil when the remote path must be taken. One recently
// synced repository counts as freshness for the whole list.
func (s *Service) cachedRepoList(ctx context.Context, userID int64, includeArchived bool) (*RepoList, error) {
	cutoff := timeutil.Now().Add(-s.repoTTL)
	syncedAt, err := s.q.LatestSyncAfter(ctx, userID, cutoff)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	repos, err := s.q.ListUserRepositories(ctx, userID, includeArchived)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Using cached repositories", "user_id", userID, "count", len(repos))
	return &RepoList{
		Repos:    repos,
		Source:   SourceCache,
		CacheHit: true,
		CachedAt: &syncedAt,
	}, nil
}

// fetchWithETag performs the conditional upstream call. The stored validator
// is skipped entirely on force refresh.
func (s *Service) fetchWithETag(ctx context.Context, userID int64, forceRefresh, includeArchived bool) (*RepoList, error) {
	u, err := s.q.GetUser(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("user", userID)
	}
	if err != nil {
		return nil, err
	}
	if u.AccessToken == "" {
		return nil, apperrors.NotFound("github token for user", userID)
	}

	var etag string
	if !forceRefresh && u.Preferences != nil {
		etag, _ = u.Preferences[model.PrefReposETag].(string)
	}

	page, err := s.gw.ListRepositories(ctx, u.AccessToken, etag)
	if err != nil {
		return nil, err
	}

	if page.NotModified {
		s.logger.Info("No repository changes upstream", "user_id", userID)
		repos, err := s.q.ListUserRepositories(ctx, userID, includeArchived)
		if err != nil {
			return nil, err
		}
		return &RepoList{
			Repos:       repos,
			Source:      SourceETagCache,
			ETagMatched: true,
		}, nil
	}

	if page.ETag != "" {
		if err := s.storeETag(ctx, u, page.ETag); err != nil {
			return nil, err
		}
	}

	stats, err := s.syncIncremental(ctx, userID, page.Repos)
	if err != nil {
		return nil, err
	}

	return &RepoList{
		Repos:       page.Repos,
		Source:      SourceGithubAPI,
		SyncStats:   &stats,
		ETagUpdated: page.ETag != "",
	}, nil
}

// storeETag persists the new validator and its timestamp into the user's
// preferences.
func (s *Service) storeETag(ctx context.Context, u model.User, etag string) error {
	prefs := u.Preferences
	if prefs == nil {
		prefs = make(map[string]any)
	}
	prefs[model.PrefReposETag] = etag
	prefs[model.PrefReposETagUpdatedAt] = timeutil.Now().Format(time.RFC3339)

	s.logger.Debug("Storing repository list ETag", "user_id", u.ID, "etag", etag)
	return s.q.UpdateUserPreferences(ctx, u.ID, prefs)
}

// syncIncremental runs the reconcile inside a single transaction: either
// every mutation from the sync lands, or none do.
func (s *Service) syncIncremental(ctx context.Context, userID int64, remote []model.Repository) (model.SyncStats, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.SyncStats{}, err
	}
	defer tx.Rollback(ctx) // no-op once committed

	stats, err := s.reconcile(ctx, store.New(tx), userID, remote)
	if err != nil {
		return stats, err
	}
	return stats, tx.Commit(ctx)
}

// reconcile partitions the remote list against the local mirror by upstream
// id: updates rows the remote reports newer, inserts unseen ones, and
// archives local rows the remote no longer lists. Archiving instead of
// deleting preserves commit history and favorite/access state for
// repositories that later reappear.
func (s *Service) reconcile(ctx context.Context, q store.Querier, userID int64, remote []model.Repository) (model.SyncStats, error) {
	var stats model.SyncStats

	existing, err := q.ListUserRepositories(ctx, userID, true)
	if err != nil {
		return stats, err
	}
	byGithubID := make(map[int64]model.Repository, len(existing))
	for _, r := range existing {
		byGithubID[r.GithubRepoID] = r
	}

	now := timeutil.Now()
	remoteSeen := make(map[int64]bool, len(remote))
	for _, r := range remote {
		remoteSeen[r.GithubRepoID] = true
		r.UserID = userID
		r.LastSyncedAt = &now

		local, ok := byGithubID[r.GithubRepoID]
		if !ok {
			r.IsFavorited = false
			r.AccessCount = 0
			if _, err := q.CreateRepository(ctx, r); err != nil {
				return stats, err
			}
			stats.Created++
			continue
		}

		if remoteIsNewer(r.RepoUpdatedAt, local.RepoUpdatedAt) {
			r.ID = local.ID
			if err := q.UpdateRepositoryFromRemote(ctx, r); err != nil {
				return stats, err
			}
			stats.Updated++
		} else {
			stats.Unchanged++
		}
	}

	for githubID, local := range byGithubID {
		if remoteSeen[githubID] {
			continue
		}
		if err := q.ArchiveRepository(ctx, local.ID); err != nil {
			return stats, err
		}
		stats.Deleted++
	}

	s.logger.Info("Repository sync stats", "user_id", userID,
		"created", stats.Created, "updated", stats.Updated,
		"deleted", stats.Deleted, "unchanged", stats.Unchanged)
	return stats, nil
}

// remoteIsNewer implements the update rule: overwrite when the remote
// reports a strictly newer updated-at, or when the local value is absent.
// An absent remote timestamp never triggers an update.
func remoteIsNewer(remote, local *time.Time) bool {
	if remote == nil {
		return false
	}
	if local == nil {
		return true
	}
	return timeutil.After(*remote, *local)
}

// ToggleFavorite flips the favorite flag for a repository the user owns.
// An unowned or unknown pair is a no-op reported as false.
func (s *Service) ToggleFavorite(ctx context.Context, userID, repositoryID int64) (bool, error) {
	favorited, err := s.q.ToggleFavorite(ctx, userID, repositoryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return favorited, err
}

// GetRepositoryByName resolves a non-archived repository owned by the user.
func (s *Service) GetRepositoryByName(ctx context.Context, userID int64, name string) (model.Repository, error) {
	repo, err := s.q.GetRepositoryByName(ctx, userID, name)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Repository{}, apperrors.NotFound("repository", name)
	}
	return repo, err
}

// FetchCommits lists commits for a repository, serving from the commit
// cache only when history persistence is disabled. The access counter is
// bumped regardless of where the commits come from.
func (s *Service) FetchCommits(ctx context.Context, userID int64, owner, name string, saveHistory bool, perPage int) (*CommitList, error) {
	token, err := s.userToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	repo, err := s.GetRepositoryByName(ctx, userID, name)
	if err != nil {
		return nil, err
	}

	if err := s.q.IncrementAccessCount(ctx, repo.ID); err != nil {
		return nil, err
	}

	if !saveHistory {
		cached, err := s.history.GetCachedCommits(ctx, repo.ID, s.commitTTL, 100)
		if err != nil {
			return nil, err
		}
		if len(cached) > 0 {
			s.logger.Info("Using cached commits", "owner", owner, "repo", name, "count", len(cached))
			return &CommitList{Commits: cached, Source: SourceCache}, nil
		}
	}

	commits, err := s.gw.ListCommits(ctx, token, owner, name, perPage)
	if err != nil {
		return nil, err
	}
	for i := range commits {
		commits[i].RepositoryID = repo.ID
	}

	result := &CommitList{Commits: commits, Source: SourceGithubAPI}
	if saveHistory && len(commits) > 0 {
		batch, err := s.history.BatchSave(ctx, commits)
		if err != nil {
			// The fetch itself succeeded; report the data and log the
			// failed cache write rather than failing the request.
			s.logger.Error("Failed to persist fetched commits", "owner", owner, "repo", name, "error", err)
		} else {
			result.Saved = batch.Saved + batch.Updated
		}
	}
	return result, nil
}

// FetchCommitDetail returns one commit with per-file detail, preferring a
// cached record that already carries the file list.
func (s *Service) FetchCommitDetail(ctx context.Context, userID int64, owner, name, sha string, saveHistory bool) (*CommitDetail, error) {
	token, err := s.userToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	repo, err := s.GetRepositoryByName(ctx, userID, name)
	if err != nil {
		return nil, err
	}

	cached, err := s.history.GetCommitBySHA(ctx, repo.ID, sha)
	if err != nil {
		return nil, err
	}
	if cached != nil && len(cached.Files) > 0 {
		s.logger.Info("Using cached commit detail", "sha", sha)
		return &CommitDetail{Commit: cached, Source: SourceCache}, nil
	}

	commit, err := s.gw.GetCommit(ctx, token, owner, name, sha)
	if err != nil {
		return nil, err
	}
	commit.RepositoryID = repo.ID

	if saveHistory {
		saved, err := s.history.SaveCommit(ctx, *commit)
		if err != nil {
			return nil, err
		}
		commit = &saved
	}
	return &CommitDetail{Commit: commit, Source: SourceGithubAPI}, nil
}

func (s *Service) userToken(ctx context.Context, userID int64) (string, error) {
	u, err := s.q.GetUser(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperrors.NotFound("user", userID)
	}
	if err != nil {
		return "", err
	}
	if u.AccessToken == "" {
		return "", apperrors.NotFound("github token for user", userID)
	}
	return u.AccessToken, nil
}
