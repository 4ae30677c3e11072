// Package prgen generates pull-request descriptions from commit data. The
// generation itself is a placeholder for now; every run is still recorded so
// the audit trail and consuming API are in place.
package prgen

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"

	apperrors "github-pr-backend/internal/errors"
	"github-pr-backend/internal/model"
	"github-pr-backend/internal/store"
)

// Fixed output until a real generator is wired in.
const (
	stubTitle   = "Test PR"
	stubContent = "This is a test PR body"
)

type Service struct {
	q      store.Querier
	logger *slog.Logger
}

func NewService(q store.Querier, logger *slog.Logger) *Service {
	return &Service{q: q, logger: logger}
}

// Generate produces a PR title and body for the given commits and records
// the run.
func (s *Service) Generate(ctx context.Context, userID, repositoryID int64, commitSHAs []string) (model.PRGeneration, error) {
	if len(commitSHAs) == 0 {
		return model.PRGeneration{}, apperrors.Validationf("at least one commit sha is required")
	}

	gen := model.PRGeneration{
		UserID:       userID,
		RepositoryID: repositoryID,
		SessionID:    newSessionID(),
		CommitSHAs:   commitSHAs,
		Title:        stubTitle,
		Content:      stubContent,
	}

	s.logger.Debug("Generating PR description", "user_id", userID,
		"repository_id", repositoryID, "commits", len(commitSHAs))
	return s.q.CreatePRGeneration(ctx, gen)
}

func newSessionID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
