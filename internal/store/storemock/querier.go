// Package storemock provides a testify mock of store.Querier shared by the
// service unit tests.
package storemock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github-pr-backend/internal/model"
	"github-pr-backend/internal/store"
)

// Querier is a mock of the store.Querier interface.
type Querier struct {
	mock.Mock
}

var _ store.Querier = (*Querier)(nil)

func (m *Querier) GetUser(ctx context.Context, id int64) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *Querier) GetUserByGithubID(ctx context.Context, githubID int64) (model.User, error) {
	args := m.Called(ctx, githubID)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *Querier) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *Querier) UpdateUserProfile(ctx context.Context, u model.User) (model.User, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *Querier) UpdateUserToken(ctx context.Context, id int64, token string) error {
	args := m.Called(ctx, id, token)
	return args.Error(0)
}

func (m *Querier) UpdateUserPreferences(ctx context.Context, id int64, prefs map[string]any) error {
	args := m.Called(ctx, id, prefs)
	return args.Error(0)
}

func (m *Querier) GetRepository(ctx context.Context, id int64) (model.Repository, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Repository), args.Error(1)
}

func (m *Querier) GetRepositoryByName(ctx context.Context, userID int64, name string) (model.Repository, error) {
	args := m.Called(ctx, userID, name)
	return args.Get(0).(model.Repository), args.Error(1)
}

func (m *Querier) ListUserRepositories(ctx context.Context, userID int64, includeArchived bool) ([]model.Repository, error) {
	args := m.Called(ctx, userID, includeArchived)
	return args.Get(0).([]model.Repository), args.Error(1)
}

func (m *Querier) ListRepositoryIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	return args.Get(0).([]int64), args.Error(1)
}

func (m *Querier) LatestSyncAfter(ctx context.Context, userID int64, cutoff time.Time) (time.Time, error) {
	args := m.Called(ctx, userID, cutoff)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *Querier) CreateRepository(ctx context.Context, r model.Repository) (model.Repository, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(model.Repository), args.Error(1)
}

func (m *Querier) UpdateRepositoryFromRemote(ctx context.Context, r model.Repository) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *Querier) ArchiveRepository(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *Querier) ToggleFavorite(ctx context.Context, userID, repositoryID int64) (bool, error) {
	args := m.Called(ctx, userID, repositoryID)
	return args.Bool(0), args.Error(1)
}

func (m *Querier) IncrementAccessCount(ctx context.Context, repositoryID int64) error {
	args := m.Called(ctx, repositoryID)
	return args.Error(0)
}

func (m *Querier) GetCommitBySHA(ctx context.Context, repositoryID int64, sha string) (model.CommitRecord, error) {
	args := m.Called(ctx, repositoryID, sha)
	return args.Get(0).(model.CommitRecord), args.Error(1)
}

func (m *Querier) InsertCommit(ctx context.Context, c model.CommitRecord) (model.CommitRecord, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(model.CommitRecord), args.Error(1)
}

func (m *Querier) UpdateCommit(ctx context.Context, c model.CommitRecord) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *Querier) ListCachedCommits(ctx context.Context, repositoryID int64, cutoff time.Time, limit int) ([]model.CommitRecord, error) {
	args := m.Called(ctx, repositoryID, cutoff, limit)
	return args.Get(0).([]model.CommitRecord), args.Error(1)
}

func (m *Querier) ListCommits(ctx context.Context, repositoryID int64, limit int) ([]model.CommitRecord, error) {
	args := m.Called(ctx, repositoryID, limit)
	return args.Get(0).([]model.CommitRecord), args.Error(1)
}

func (m *Querier) ListCommitsByAuthor(ctx context.Context, repositoryID int64, authorEmail string, limit int) ([]model.CommitRecord, error) {
	args := m.Called(ctx, repositoryID, authorEmail, limit)
	return args.Get(0).([]model.CommitRecord), args.Error(1)
}

func (m *Querier) ListCommitsByDateRange(ctx context.Context, repositoryID int64, start, end time.Time) ([]model.CommitRecord, error) {
	args := m.Called(ctx, repositoryID, start, end)
	return args.Get(0).([]model.CommitRecord), args.Error(1)
}

func (m *Querier) ListCommitsSince(ctx context.Context, repositoryID int64, since time.Time) ([]model.CommitRecord, error) {
	args := m.Called(ctx, repositoryID, since)
	return args.Get(0).([]model.CommitRecord), args.Error(1)
}

func (m *Querier) GetCommitStats(ctx context.Context, repositoryID int64) (model.CommitStats, error) {
	args := m.Called(ctx, repositoryID)
	return args.Get(0).(model.CommitStats), args.Error(1)
}

func (m *Querier) DeleteCommitsOlderThan(ctx context.Context, repositoryID int64, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, repositoryID, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Querier) CreatePRGeneration(ctx context.Context, g model.PRGeneration) (model.PRGeneration, error) {
	args := m.Called(ctx, g)
	return args.Get(0).(model.PRGeneration), args.Error(1)
}
