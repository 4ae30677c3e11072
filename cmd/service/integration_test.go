//go:build integration

// cmd/service/integration_test.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github-pr-backend/internal/github"
	"github-pr-backend/internal/history"
	"github-pr-backend/internal/model"
	"github-pr-backend/internal/store"
	"github-pr-backend/internal/syncer"
)

func setupTestDatabase(ctx context.Context, t *testing.T) (*pgxpool.Pool, func()) {
	// Start a postgres container
	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second),
		),
	)
	require.NoError(t, err)

	// Get the connection string
	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	m, err := migrate.New("file://../../migrations", connStr)
	require.NoError(t, err)
	err = m.Up()
	require.NoError(t, err)

	// Create a connection pool
	dbpool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	// Teardown function to be called by the test
	teardown := func() {
		dbpool.Close()
		err := pgContainer.Terminate(ctx)
		require.NoError(t, err)
	}

	return dbpool, teardown
}

// fakeGithub is a stateful stand-in for the GitHub REST API. The repository
// list and its validator are mutable so tests can simulate upstream drift.
type fakeGithub struct {
	mu        sync.Mutex
	repos     []map[string]any
	etag      string
	listCalls int
	lastINM   string
}

func fakeRepo(id int64, name, owner, updatedAt string) map[string]any {
	return map[string]any{
		"id":             id,
		"name":           name,
		"full_name":      owner + "/" + name,
		"private":        false,
		"default_branch": "main",
		"language":       "Go",
		"url":            fmt.Sprintf("https://api.github.test/repos/%s/%s", owner, name),
		"html_url":       fmt.Sprintf("https://github.test/%s/%s", owner, name),
		"created_at":     "2024-01-01T00:00:00Z",
		"updated_at":     updatedAt,
		"pushed_at":      updatedAt,
		"archived":       false,
	}
}

func (f *fakeGithub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user/repos":
			f.mu.Lock()
			defer f.mu.Unlock()
			f.listCalls++
			f.lastINM = r.Header.Get("If-None-Match")
			if f.lastINM != "" && f.lastINM == f.etag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			w.Header().Set("ETag", f.etag)
			json.NewEncoder(w).Encode(f.repos)
		case "/repos/me/alpha/commits":
			w.Write([]byte(`[
				{"sha": "abc", "commit": {"author": {"name": "tester", "email": "t@t.com", "date": "2024-06-01T12:00:00Z"}, "message": "feat: new feature"}},
				{"sha": "def", "commit": {"author": {"name": "tester", "email": "t@t.com", "date": "2024-06-02T12:00:00Z"}, "message": "fix: a bug"}}
			]`))
		case "/repos/me/alpha/commits/abc":
			w.Write([]byte(`{
				"sha": "abc",
				"commit": {"author": {"name": "tester", "email": "t@t.com", "date": "2024-06-01T12:00:00Z"}, "message": "feat: new feature"},
				"files": [
					{"filename": "main.go", "status": "modified", "additions": 10, "deletions": 2, "changes": 12},
					{"filename": "main_test.go", "status": "added", "additions": 30, "deletions": 0, "changes": 30}
				]
			}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func TestSyncEngine_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbpool, teardown := setupTestDatabase(ctx, t)
	defer teardown()

	fake := &fakeGithub{
		etag: `"v1"`,
		repos: []map[string]any{
			fakeRepo(101, "alpha", "me", "2024-06-01T00:00:00Z"),
			fakeRepo(102, "bravo", "me", "2024-06-02T00:00:00Z"),
			fakeRepo(103, "charlie", "me", "2024-06-03T00:00:00Z"),
		},
	}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	queries := store.New(dbpool)
	gateway := github.NewClient(server.URL, 100, 5*time.Second, 5*time.Second, logger)
	historySvc := history.NewService(dbpool, queries, logger)
	syncSvc := syncer.NewService(dbpool, queries, gateway, historySvc, time.Hour, 30*time.Minute, logger)

	user, err := queries.CreateUser(ctx, model.User{
		GithubID:    9001,
		AccessToken: "gho_testtoken",
		Username:    "me",
		Preferences: map[string]any{},
	})
	require.NoError(t, err)

	t.Run("first fetch syncs everything from upstream", func(t *testing.T) {
		result, err := syncSvc.GetUserRepositories(ctx, user.ID, false, false)
		require.NoError(t, err)

		assert.Equal(t, syncer.SourceGithubAPI, result.Source)
		require.NotNil(t, result.SyncStats)
		assert.Equal(t, model.SyncStats{Created: 3}, *result.SyncStats)
		assert.True(t, result.ETagUpdated)
		assert.Len(t, result.Repos, 3)

		// The validator must have been stored for the next conditional call.
		u, err := queries.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, `"v1"`, u.Preferences[model.PrefReposETag])
	})

	t.Run("second fetch is served from the local cache", func(t *testing.T) {
		before := fake.listCalls

		result, err := syncSvc.GetUserRepositories(ctx, user.ID, false, false)
		require.NoError(t, err)

		assert.Equal(t, syncer.SourceCache, result.Source)
		assert.True(t, result.CacheHit)
		assert.Len(t, result.Repos, 3)
		assert.Equal(t, before, fake.listCalls, "cache hit must not reach upstream")
	})

	t.Run("force refresh skips the stored validator", func(t *testing.T) {
		result, err := syncSvc.GetUserRepositories(ctx, user.ID, true, false)
		require.NoError(t, err)

		// The forced call is unconditional, so the unchanged upstream list
		// comes back in full and reconciles to all-unchanged.
		assert.Equal(t, syncer.SourceGithubAPI, result.Source)
		assert.Equal(t, model.SyncStats{Unchanged: 3}, *result.SyncStats)
	})

	t.Run("upstream drift reconciles incrementally", func(t *testing.T) {
		fake.mu.Lock()
		fake.etag = `"v2"`
		fake.repos = []map[string]any{
			fakeRepo(101, "alpha", "me", "2024-06-01T00:00:00Z"),  // unchanged
			fakeRepo(102, "bravo", "me", "2024-07-01T00:00:00Z"),  // updated upstream
			fakeRepo(104, "delta", "me", "2024-07-02T00:00:00Z"),  // new
			// 103 "charlie" is gone upstream
		}
		fake.mu.Unlock()

		result, err := syncSvc.GetUserRepositories(ctx, user.ID, true, false)
		require.NoError(t, err)

		require.NotNil(t, result.SyncStats)
		assert.Equal(t, model.SyncStats{Created: 1, Updated: 1, Deleted: 1, Unchanged: 1}, *result.SyncStats)

		// The vanished repository is archived, not deleted.
		all, err := queries.ListUserRepositories(ctx, user.ID, true)
		require.NoError(t, err)
		assert.Len(t, all, 4)
		var archived *model.Repository
		for i := range all {
			if all[i].GithubRepoID == 103 {
				archived = &all[i]
			}
		}
		require.NotNil(t, archived)
		assert.True(t, archived.Archived)

		active, err := queries.ListUserRepositories(ctx, user.ID, false)
		require.NoError(t, err)
		assert.Len(t, active, 3)
	})

	t.Run("unchanged upstream answers 304 against the stored validator", func(t *testing.T) {
		// Age the cache so the freshness probe misses and the conditional
		// path runs with the stored validator.
		_, err := dbpool.Exec(ctx,
			`UPDATE repository SET last_synced_at = last_synced_at - interval '2 hours' WHERE user_id = $1`, user.ID)
		require.NoError(t, err)

		result, err := syncSvc.GetUserRepositories(ctx, user.ID, false, false)
		require.NoError(t, err)

		assert.Equal(t, syncer.SourceETagCache, result.Source)
		assert.True(t, result.ETagMatched)
		assert.Equal(t, `"v2"`, fake.lastINM)
		assert.Len(t, result.Repos, 3)
	})

	t.Run("commit fetch persists history idempotently", func(t *testing.T) {
		first, err := syncSvc.FetchCommits(ctx, user.ID, "me", "alpha", true, 30)
		require.NoError(t, err)
		assert.Equal(t, syncer.SourceGithubAPI, first.Source)
		assert.Len(t, first.Commits, 2)
		assert.Equal(t, 2, first.Saved)

		// A second fetch upserts the same rows instead of duplicating them.
		_, err = syncSvc.FetchCommits(ctx, user.ID, "me", "alpha", true, 30)
		require.NoError(t, err)

		repo, err := queries.GetRepositoryByName(ctx, user.ID, "alpha")
		require.NoError(t, err)
		stats, err := historySvc.GetStats(ctx, repo.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.TotalCommits)
		assert.Equal(t, int64(1), stats.UniqueAuthors)
		assert.Equal(t, 2, repo.AccessCount)
	})

	t.Run("commit detail carries file changes and is cached", func(t *testing.T) {
		detail, err := syncSvc.FetchCommitDetail(ctx, user.ID, "me", "alpha", "abc", true)
		require.NoError(t, err)
		require.NotNil(t, detail.Commit)
		assert.Len(t, detail.Commit.Files, 2)
		assert.Equal(t, 40, detail.Commit.Additions)
		assert.Equal(t, 2, detail.Commit.Deletions)

		// The persisted detail satisfies the next request from cache.
		again, err := syncSvc.FetchCommitDetail(ctx, user.ID, "me", "alpha", "abc", true)
		require.NoError(t, err)
		assert.Equal(t, syncer.SourceCache, again.Source)
		assert.Len(t, again.Commit.Files, 2)
	})

	t.Run("retention prunes by cache age", func(t *testing.T) {
		repo, err := queries.GetRepositoryByName(ctx, user.ID, "alpha")
		require.NoError(t, err)

		// Backdate one cached row past the retention horizon.
		_, err = dbpool.Exec(ctx,
			`UPDATE commit_history SET cached_at = now() - interval '40 days'
			 WHERE repository_id = $1 AND commit_sha = 'def'`, repo.ID)
		require.NoError(t, err)

		deleted, err := historySvc.CleanupOldCommits(ctx, repo.ID, 30)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		stats, err := historySvc.GetStats(ctx, repo.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.TotalCommits)
	})
}
