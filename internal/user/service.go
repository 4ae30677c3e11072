// Package user maps internal identities to GitHub accounts and their opaque
// access tokens. Tokens are stored as given; this service never talks to
// GitHub itself.
package user

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	apperrors "github-pr-backend/internal/errors"
	"github-pr-backend/internal/model"
	"github-pr-backend/internal/store"
)

// Profile is the upstream-shaped identity used to create or refresh a user.
type Profile struct {
	GithubID    int64   `json:"id"`
	Username    string  `json:"login"`
	Email       *string `json:"email"`
	DisplayName *string `json:"name"`
	AvatarURL   *string `json:"avatar_url"`
	AccessToken string  `json:"-"`
}

// Service is the user/token store. Every mutation commits immediately.
type Service struct {
	q      store.Querier
	logger *slog.Logger
}

func NewService(q store.Querier, logger *slog.Logger) *Service {
	return &Service{q: q, logger: logger}
}

func (s *Service) GetUser(ctx context.Context, id int64) (model.User, error) {
	u, err := s.q.GetUser(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, apperrors.NotFound("user", id)
	}
	return u, err
}

func (s *Service) GetUserByGithubID(ctx context.Context, githubID int64) (model.User, error) {
	u, err := s.q.GetUserByGithubID(ctx, githubID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, apperrors.NotFound("user", githubID)
	}
	return u, err
}

// CreateOrUpdateUser upserts a user keyed by GitHub id: mutable profile
// fields are refreshed when the user exists, otherwise a new record is
// inserted with the supplied token.
func (s *Service) CreateOrUpdateUser(ctx context.Context, p Profile) (model.User, error) {
	if p.GithubID == 0 || p.Username == "" {
		return model.User{}, apperrors.Validationf("github id and username are required")
	}

	existing, err := s.q.GetUserByGithubID(ctx, p.GithubID)
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Info("Creating new user", "github_id", p.GithubID, "username", p.Username)
		return s.q.CreateUser(ctx, model.User{
			GithubID:    p.GithubID,
			AccessToken: p.AccessToken,
			Username:    p.Username,
			Email:       p.Email,
			DisplayName: p.DisplayName,
			AvatarURL:   p.AvatarURL,
		})
	} else if err != nil {
		return model.User{}, err
	}

	existing.Username = p.Username
	existing.Email = p.Email
	existing.DisplayName = p.DisplayName
	existing.AvatarURL = p.AvatarURL
	return s.q.UpdateUserProfile(ctx, existing)
}

// UpdateToken replaces the stored access token for a user.
func (s *Service) UpdateToken(ctx context.Context, userID int64, token string) error {
	if token == "" {
		return apperrors.Validationf("token must not be empty")
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return err
	}
	return s.q.UpdateUserToken(ctx, userID, token)
}

// GetToken returns the stored token for a user. It never fetches from
// upstream; an unknown user or empty token is a not-found.
func (s *Service) GetToken(ctx context.Context, userID int64) (string, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.AccessToken == "" {
		return "", apperrors.NotFound("github token for user", userID)
	}
	return u.AccessToken, nil
}
