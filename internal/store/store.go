// Package store is the hand-written pgx query layer. Queries runs against
// either a pool or a transaction through the DBTX interface, so a service can
// group several statements into one atomic commit with pool.Begin + New(tx).
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github-pr-backend/internal/model"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries exposes all SQL operations over a DBTX.
type Queries struct {
	db DBTX
}

// New creates a Queries bound to the given pool or transaction.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Querier is the query surface the services depend on; tests substitute a
// mock implementation.
type Querier interface {
	// Users
	GetUser(ctx context.Context, id int64) (model.User, error)
	GetUserByGithubID(ctx context.Context, githubID int64) (model.User, error)
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	UpdateUserProfile(ctx context.Context, u model.User) (model.User, error)
	UpdateUserToken(ctx context.Context, id int64, token string) error
	UpdateUserPreferences(ctx context.Context, id int64, prefs map[string]any) error

	// Repositories
	GetRepository(ctx context.Context, id int64) (model.Repository, error)
	GetRepositoryByName(ctx context.Context, userID int64, name string) (model.Repository, error)
	ListUserRepositories(ctx context.Context, userID int64, includeArchived bool) ([]model.Repository, error)
	ListRepositoryIDs(ctx context.Context) ([]int64, error)
	LatestSyncAfter(ctx context.Context, userID int64, cutoff time.Time) (time.Time, error)
	CreateRepository(ctx context.Context, r model.Repository) (model.Repository, error)
	UpdateRepositoryFromRemote(ctx context.Context, r model.Repository) error
	ArchiveRepository(ctx context.Context, id int64) error
	ToggleFavorite(ctx context.Context, userID, repositoryID int64) (bool, error)
	IncrementAccessCount(ctx context.Context, repositoryID int64) error

	// Commit history
	GetCommitBySHA(ctx context.Context, repositoryID int64, sha string) (model.CommitRecord, error)
	InsertCommit(ctx context.Context, c model.CommitRecord) (model.CommitRecord, error)
	UpdateCommit(ctx context.Context, c model.CommitRecord) error
	ListCachedCommits(ctx context.Context, repositoryID int64, cutoff time.Time, limit int) ([]model.CommitRecord, error)
	ListCommits(ctx context.Context, repositoryID int64, limit int) ([]model.CommitRecord, error)
	ListCommitsByAuthor(ctx context.Context, repositoryID int64, authorEmail string, limit int) ([]model.CommitRecord, error)
	ListCommitsByDateRange(ctx context.Context, repositoryID int64, start, end time.Time) ([]model.CommitRecord, error)
	ListCommitsSince(ctx context.Context, repositoryID int64, since time.Time) ([]model.CommitRecord, error)
	GetCommitStats(ctx context.Context, repositoryID int64) (model.CommitStats, error)
	DeleteCommitsOlderThan(ctx context.Context, repositoryID int64, cutoff time.Time) (int64, error)

	// PR generations
	CreatePRGeneration(ctx context.Context, g model.PRGeneration) (model.PRGeneration, error)
}

var _ Querier = (*Queries)(nil)
