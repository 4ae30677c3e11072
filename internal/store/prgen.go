package store

import (
	"context"

	"github-pr-backend/internal/model"
)

func (q *Queries) CreatePRGeneration(ctx context.Context, g model.PRGeneration) (model.PRGeneration, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO pr_generation (user_id, repository_id, session_id, commit_shas, generated_title, generated_content)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, repository_id, session_id, commit_shas, generated_title, generated_content, created_at`,
		g.UserID, g.RepositoryID, g.SessionID, g.CommitSHAs, g.Title, g.Content)

	var out model.PRGeneration
	err := row.Scan(
		&out.ID, &out.UserID, &out.RepositoryID, &out.SessionID,
		&out.CommitSHAs, &out.Title, &out.Content, &out.CreatedAt,
	)
	return out, err
}
