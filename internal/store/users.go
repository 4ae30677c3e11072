package store

import (
	"context"

	"github-pr-backend/internal/model"
)

const userColumns = `id, github_id, github_access_token, username, email,
	display_name, avatar_url, preferences, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.GithubID, &u.AccessToken, &u.Username, &u.Email,
		&u.DisplayName, &u.AvatarURL, &u.Preferences, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

func (q *Queries) GetUser(ctx context.Context, id int64) (model.User, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM user_account WHERE id = $1`, id)
	return scanUser(row)
}

func (q *Queries) GetUserByGithubID(ctx context.Context, githubID int64) (model.User, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM user_account WHERE github_id = $1`, githubID)
	return scanUser(row)
}

func (q *Queries) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO user_account (github_id, github_access_token, username, email, display_name, avatar_url, preferences)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+userColumns,
		u.GithubID, u.AccessToken, u.Username, u.Email, u.DisplayName, u.AvatarURL, u.Preferences)
	return scanUser(row)
}

// UpdateUserProfile overwrites the mutable profile fields, keyed by id. The
// access token and preferences are managed by their own statements.
func (q *Queries) UpdateUserProfile(ctx context.Context, u model.User) (model.User, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE user_account
		SET username = $2, email = $3, display_name = $4, avatar_url = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		u.ID, u.Username, u.Email, u.DisplayName, u.AvatarURL)
	return scanUser(row)
}

func (q *Queries) UpdateUserToken(ctx context.Context, id int64, token string) error {
	_, err := q.db.Exec(ctx, `
		UPDATE user_account SET github_access_token = $2, updated_at = now() WHERE id = $1`,
		id, token)
	return err
}

func (q *Queries) UpdateUserPreferences(ctx context.Context, id int64, prefs map[string]any) error {
	_, err := q.db.Exec(ctx, `
		UPDATE user_account SET preferences = $2, updated_at = now() WHERE id = $1`,
		id, prefs)
	return err
}
