package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github-pr-backend/internal/model"
)

const repoColumns = `id, github_repo_id, user_id, name, full_name, description,
	is_private, default_branch, language, url, html_url,
	repo_created_at, repo_updated_at, repo_pushed_at,
	archived, is_favorited, access_count, last_synced_at, created_at, updated_at`

func scanRepository(row interface{ Scan(dest ...any) error }) (model.Repository, error) {
	var r model.Repository
	err := row.Scan(
		&r.ID, &r.GithubRepoID, &r.UserID, &r.Name, &r.FullName, &r.Description,
		&r.IsPrivate, &r.DefaultBranch, &r.Language, &r.URL, &r.HTMLURL,
		&r.RepoCreatedAt, &r.RepoUpdatedAt, &r.RepoPushedAt,
		&r.Archived, &r.IsFavorited, &r.AccessCount, &r.LastSyncedAt,
		&r.DBCreatedAt, &r.DBUpdatedAt,
	)
	return r, err
}

func collectRepositories(rows pgx.Rows) ([]model.Repository, error) {
	defer rows.Close()
	var repos []model.Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

func (q *Queries) GetRepository(ctx context.Context, id int64) (model.Repository, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+repoColumns+` FROM repository WHERE id = $1`, id)
	return scanRepository(row)
}

// GetRepositoryByName resolves a non-archived repository by (user, name).
// The schema does not force name uniqueness per user, so ordering by push
// time makes the pick deterministic when duplicates ever appear.
func (q *Queries) GetRepositoryByName(ctx context.Context, userID int64, name string) (model.Repository, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+repoColumns+`
		FROM repository
		WHERE user_id = $1 AND name = $2 AND archived = FALSE
		ORDER BY repo_pushed_at DESC NULLS LAST
		LIMIT 1`,
		userID, name)
	return scanRepository(row)
}

func (q *Queries) ListUserRepositories(ctx context.Context, userID int64, includeArchived bool) ([]model.Repository, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+repoColumns+`
		FROM repository
		WHERE user_id = $1 AND (archived = FALSE OR $2)
		ORDER BY repo_pushed_at DESC NULLS LAST`,
		userID, includeArchived)
	if err != nil {
		return nil, err
	}
	return collectRepositories(rows)
}

func (q *Queries) ListRepositoryIDs(ctx context.Context) ([]int64, error) {
	rows, err := q.db.Query(ctx, `SELECT id FROM repository ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LatestSyncAfter returns the newest last_synced_at for the user that is
// later than cutoff, or pgx.ErrNoRows when nothing that recent exists. One
// fresh repository counts as freshness for the whole list.
func (q *Queries) LatestSyncAfter(ctx context.Context, userID int64, cutoff time.Time) (time.Time, error) {
	var syncedAt time.Time
	err := q.db.QueryRow(ctx, `
		SELECT last_synced_at
		FROM repository
		WHERE user_id = $1 AND last_synced_at > $2
		ORDER BY last_synced_at DESC
		LIMIT 1`,
		userID, cutoff).Scan(&syncedAt)
	return syncedAt, err
}

func (q *Queries) CreateRepository(ctx context.Context, r model.Repository) (model.Repository, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO repository (
			github_repo_id, user_id, name, full_name, description,
			is_private, default_branch, language, url, html_url,
			repo_created_at, repo_updated_at, repo_pushed_at,
			archived, is_favorited, access_count, last_synced_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING `+repoColumns,
		r.GithubRepoID, r.UserID, r.Name, r.FullName, r.Description,
		r.IsPrivate, r.DefaultBranch, r.Language, r.URL, r.HTMLURL,
		r.RepoCreatedAt, r.RepoUpdatedAt, r.RepoPushedAt,
		r.Archived, r.IsFavorited, r.AccessCount, r.LastSyncedAt)
	return scanRepository(row)
}

// UpdateRepositoryFromRemote overwrites all fields the upstream payload owns
// and refreshes last_synced_at. Local-only state (favorite, access count)
// is untouched.
func (q *Queries) UpdateRepositoryFromRemote(ctx context.Context, r model.Repository) error {
	_, err := q.db.Exec(ctx, `
		UPDATE repository
		SET name = $2, full_name = $3, description = $4, is_private = $5,
		    default_branch = $6, language = $7, url = $8, html_url = $9,
		    repo_created_at = $10, repo_updated_at = $11, repo_pushed_at = $12,
		    archived = $13, last_synced_at = $14, updated_at = now()
		WHERE id = $1`,
		r.ID, r.Name, r.FullName, r.Description, r.IsPrivate,
		r.DefaultBranch, r.Language, r.URL, r.HTMLURL,
		r.RepoCreatedAt, r.RepoUpdatedAt, r.RepoPushedAt,
		r.Archived, r.LastSyncedAt)
	return err
}

func (q *Queries) ArchiveRepository(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, `
		UPDATE repository SET archived = TRUE, updated_at = now() WHERE id = $1`, id)
	return err
}

// ToggleFavorite flips the flag in a single statement so concurrent toggles
// cannot lose updates. Returns pgx.ErrNoRows when the pair is not owned.
func (q *Queries) ToggleFavorite(ctx context.Context, userID, repositoryID int64) (bool, error) {
	var favorited bool
	err := q.db.QueryRow(ctx, `
		UPDATE repository
		SET is_favorited = NOT is_favorited, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING is_favorited`,
		repositoryID, userID).Scan(&favorited)
	return favorited, err
}

func (q *Queries) IncrementAccessCount(ctx context.Context, repositoryID int64) error {
	_, err := q.db.Exec(ctx, `
		UPDATE repository SET access_count = access_count + 1, updated_at = now() WHERE id = $1`,
		repositoryID)
	return err
}
