package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github-pr-backend/internal/model"
)

const commitColumns = `id, repository_id, commit_sha, commit_message,
	author_name, author_email, committed_at, files_changed,
	file_count, additions, deletions, cached_at`

func scanCommit(row interface{ Scan(dest ...any) error }) (model.CommitRecord, error) {
	var c model.CommitRecord
	err := row.Scan(
		&c.ID, &c.RepositoryID, &c.SHA, &c.Message,
		&c.AuthorName, &c.AuthorEmail, &c.CommittedAt, &c.Files,
		&c.FileCount, &c.Additions, &c.Deletions, &c.CachedAt,
	)
	return c, err
}

func collectCommits(rows pgx.Rows) ([]model.CommitRecord, error) {
	defer rows.Close()
	var commits []model.CommitRecord
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, err
		}
		commits = append(commits, c)
	}
	return commits, rows.Err()
}

func (q *Queries) GetCommitBySHA(ctx context.Context, repositoryID int64, sha string) (model.CommitRecord, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+commitColumns+`
		FROM commit_history
		WHERE repository_id = $1 AND commit_sha = $2`,
		repositoryID, sha)
	return scanCommit(row)
}

func (q *Queries) InsertCommit(ctx context.Context, c model.CommitRecord) (model.CommitRecord, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO commit_history (
			repository_id, commit_sha, commit_message, author_name, author_email,
			committed_at, files_changed, file_count, additions, deletions, cached_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+commitColumns,
		c.RepositoryID, c.SHA, c.Message, c.AuthorName, c.AuthorEmail,
		c.CommittedAt, c.Files, c.FileCount, c.Additions, c.Deletions, c.CachedAt)
	return scanCommit(row)
}

// UpdateCommit overwrites every mutable field of an existing (repository, sha)
// record and refreshes cached_at.
func (q *Queries) UpdateCommit(ctx context.Context, c model.CommitRecord) error {
	_, err := q.db.Exec(ctx, `
		UPDATE commit_history
		SET commit_message = $3, author_name = $4, author_email = $5,
		    committed_at = $6, files_changed = $7, file_count = $8,
		    additions = $9, deletions = $10, cached_at = $11
		WHERE repository_id = $1 AND commit_sha = $2`,
		c.RepositoryID, c.SHA, c.Message, c.AuthorName, c.AuthorEmail,
		c.CommittedAt, c.Files, c.FileCount, c.Additions, c.Deletions, c.CachedAt)
	return err
}

func (q *Queries) ListCachedCommits(ctx context.Context, repositoryID int64, cutoff time.Time, limit int) ([]model.CommitRecord, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+commitColumns+`
		FROM commit_history
		WHERE repository_id = $1 AND cached_at > $2
		ORDER BY committed_at DESC
		LIMIT $3`,
		repositoryID, cutoff, limit)
	if err != nil {
		return nil, err
	}
	return collectCommits(rows)
}

func (q *Queries) ListCommits(ctx context.Context, repositoryID int64, limit int) ([]model.CommitRecord, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+commitColumns+`
		FROM commit_history
		WHERE repository_id = $1
		ORDER BY committed_at DESC
		LIMIT $2`,
		repositoryID, limit)
	if err != nil {
		return nil, err
	}
	return collectCommits(rows)
}

func (q *Queries) ListCommitsByAuthor(ctx context.Context, repositoryID int64, authorEmail string, limit int) ([]model.CommitRecord, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+commitColumns+`
		FROM commit_history
		WHERE repository_id = $1 AND author_email = $2
		ORDER BY committed_at DESC
		LIMIT $3`,
		repositoryID, authorEmail, limit)
	if err != nil {
		return nil, err
	}
	return collectCommits(rows)
}

// ListCommitsByDateRange is inclusive on both ends and deliberately
// unbounded: date-scoped queries are expected to be narrow.
func (q *Queries) ListCommitsByDateRange(ctx context.Context, repositoryID int64, start, end time.Time) ([]model.CommitRecord, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+commitColumns+`
		FROM commit_history
		WHERE repository_id = $1 AND committed_at >= $2 AND committed_at <= $3
		ORDER BY committed_at DESC`,
		repositoryID, start, end)
	if err != nil {
		return nil, err
	}
	return collectCommits(rows)
}

// ListCommitsSince returns all commits committed at or after the given
// instant, newest first. Used by the recent-activity summary.
func (q *Queries) ListCommitsSince(ctx context.Context, repositoryID int64, since time.Time) ([]model.CommitRecord, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+commitColumns+`
		FROM commit_history
		WHERE repository_id = $1 AND committed_at >= $2
		ORDER BY committed_at DESC`,
		repositoryID, since)
	if err != nil {
		return nil, err
	}
	return collectCommits(rows)
}

func (q *Queries) GetCommitStats(ctx context.Context, repositoryID int64) (model.CommitStats, error) {
	var s model.CommitStats
	err := q.db.QueryRow(ctx, `
		SELECT COUNT(id),
		       COALESCE(SUM(additions), 0),
		       COALESCE(SUM(deletions), 0),
		       COALESCE(SUM(file_count), 0),
		       COUNT(DISTINCT author_email)
		FROM commit_history
		WHERE repository_id = $1`,
		repositoryID).Scan(
		&s.TotalCommits, &s.TotalAdditions, &s.TotalDeletions,
		&s.TotalFilesChanged, &s.UniqueAuthors)
	return s, err
}

// DeleteCommitsOlderThan prunes by cache age, not commit age: a recent
// commit cached long ago is eligible.
func (q *Queries) DeleteCommitsOlderThan(ctx context.Context, repositoryID int64, cutoff time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		DELETE FROM commit_history WHERE repository_id = $1 AND cached_at < $2`,
		repositoryID, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
