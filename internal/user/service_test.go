package user

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github-pr-backend/internal/errors"
	"github-pr-backend/internal/model"
	"github-pr-backend/internal/store/storemock"
)

func newTestService(q *storemock.Querier) *Service {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewService(q, logger)
}

func strptr(s string) *string { return &s }

func TestCreateOrUpdateUser(t *testing.T) {
	ctx := context.Background()
	profile := Profile{
		GithubID:    42,
		Username:    "octocat",
		Email:       strptr("octo@example.com"),
		AccessToken: "gho_secret",
	}

	t.Run("creates when the github id is unknown", func(t *testing.T) {
		mockQ := new(storemock.Querier)
		svc := newTestService(mockQ)

		mockQ.On("GetUserByGithubID", ctx, int64(42)).Return(model.User{}, pgx.ErrNoRows).Once()
		created := model.User{ID: 1, GithubID: 42, Username: "octocat", AccessToken: "gho_secret"}
		mockQ.On("CreateUser", ctx, mock.Anything).Return(created, nil).Once()

		got, err := svc.CreateOrUpdateUser(ctx, profile)

		require.NoError(t, err)
		assert.Equal(t, created, got)
		mockQ.AssertExpectations(t)
	})

	t.Run("updates profile fields when the user exists", func(t *testing.T) {
		mockQ := new(storemock.Querier)
		svc := newTestService(mockQ)

		existing := model.User{ID: 1, GithubID: 42, Username: "oldname", AccessToken: "gho_old"}
		mockQ.On("GetUserByGithubID", ctx, int64(42)).Return(existing, nil).Once()
		mockQ.On("UpdateUserProfile", ctx, mock.MatchedBy(func(u model.User) bool {
			return u.ID == 1 && u.Username == "octocat" && u.AccessToken == "gho_old"
		})).Return(model.User{ID: 1, GithubID: 42, Username: "octocat"}, nil).Once()

		got, err := svc.CreateOrUpdateUser(ctx, profile)

		require.NoError(t, err)
		assert.Equal(t, "octocat", got.Username)
		mockQ.AssertExpectations(t)
		mockQ.AssertNotCalled(t, "CreateUser")
	})

	t.Run("rejects an incomplete profile", func(t *testing.T) {
		mockQ := new(storemock.Querier)
		svc := newTestService(mockQ)

		_, err := svc.CreateOrUpdateUser(ctx, Profile{Username: "octocat"})

		var vErr *apperrors.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})
}

func TestGetToken(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the stored token", func(t *testing.T) {
		mockQ := new(storemock.Querier)
		svc := newTestService(mockQ)

		mockQ.On("GetUser", ctx, int64(1)).Return(model.User{ID: 1, AccessToken: "gho_secret"}, nil).Once()

		token, err := svc.GetToken(ctx, 1)

		require.NoError(t, err)
		assert.Equal(t, "gho_secret", token)
	})

	t.Run("unknown user is a not-found, never an upstream call", func(t *testing.T) {
		mockQ := new(storemock.Querier)
		svc := newTestService(mockQ)

		mockQ.On("GetUser", ctx, int64(99)).Return(model.User{}, pgx.ErrNoRows).Once()

		_, err := svc.GetToken(ctx, 99)

		var nfErr *apperrors.NotFoundError
		assert.ErrorAs(t, err, &nfErr)
	})

	t.Run("empty stored token is treated as absent", func(t *testing.T) {
		mockQ := new(storemock.Querier)
		svc := newTestService(mockQ)

		mockQ.On("GetUser", ctx, int64(1)).Return(model.User{ID: 1}, nil).Once()

		_, err := svc.GetToken(ctx, 1)

		var nfErr *apperrors.NotFoundError
		assert.ErrorAs(t, err, &nfErr)
	})
}

func TestUpdateToken(t *testing.T) {
	ctx := context.Background()
	mockQ := new(storemock.Querier)
	svc := newTestService(mockQ)

	mockQ.On("GetUser", ctx, int64(1)).Return(model.User{ID: 1}, nil).Once()
	mockQ.On("UpdateUserToken", ctx, int64(1), "gho_new").Return(nil).Once()

	require.NoError(t, svc.UpdateToken(ctx, 1, "gho_new"))
	mockQ.AssertExpectations(t)

	var vErr *apperrors.ValidationError
	assert.ErrorAs(t, svc.UpdateToken(ctx, 1, ""), &vErr)
}
