package model

import "time"

// User is an account known to this service. The GitHub access token is an
// opaque string supplied when the user record is created or refreshed; this
// service never issues tokens itself.
type User struct {
	ID          int64
	GithubID    int64
	AccessToken string
	Username    string
	Email       *string
	DisplayName *string
	AvatarURL   *string
	Preferences map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Preference keys stored in User.Preferences.
const (
	PrefReposETag          = "repos_etag"
	PrefReposETagUpdatedAt = "repos_etag_updated_at"
)

// Repository mirrors one upstream GitHub repository for a single user.
// All timestamps are stored in UTC.
type Repository struct {
	ID            int64      `json:"_db_id"`
	GithubRepoID  int64      `json:"id"`
	UserID        int64      `json:"-"`
	Name          string     `json:"name"`
	FullName      string     `json:"full_name"`
	Description   *string    `json:"description"`
	IsPrivate     bool       `json:"private"`
	DefaultBranch string     `json:"default_branch"`
	Language      *string    `json:"language"`
	URL           string     `json:"url"`
	HTMLURL       *string    `json:"html_url"`
	RepoCreatedAt *time.Time `json:"created_at"`
	RepoUpdatedAt *time.Time `json:"updated_at"`
	RepoPushedAt  *time.Time `json:"pushed_at"`
	Archived      bool       `json:"archived"`
	IsFavorited   bool       `json:"_is_favorited"`
	AccessCount   int        `json:"_access_count"`
	LastSyncedAt  *time.Time `json:"_last_synced_at"`
	DBCreatedAt   time.Time  `json:"-"`
	DBUpdatedAt   time.Time  `json:"-"`
}

// FileChange is one file touched by a commit, as reported by the upstream
// single-commit endpoint.
type FileChange struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
}

// CommitRecord is one cached commit. Identity is (RepositoryID, SHA).
type CommitRecord struct {
	ID           int64        `json:"-"`
	RepositoryID int64        `json:"-"`
	SHA          string       `json:"sha"`
	Message      string       `json:"message"`
	AuthorName   *string      `json:"author_name"`
	AuthorEmail  *string      `json:"author_email"`
	CommittedAt  time.Time    `json:"committed_at"`
	Files        []FileChange `json:"files,omitempty"`
	FileCount    int          `json:"file_count"`
	Additions    int          `json:"additions"`
	Deletions    int          `json:"deletions"`
	CachedAt     time.Time    `json:"_cached_at"`
}

// SyncStats partitions an incremental sync run.
type SyncStats struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`
}

// CommitStats aggregates the stored history of one repository.
type CommitStats struct {
	TotalCommits      int64 `json:"total_commits"`
	TotalAdditions    int64 `json:"total_additions"`
	TotalDeletions    int64 `json:"total_deletions"`
	TotalFilesChanged int64 `json:"total_files_changed"`
	UniqueAuthors     int64 `json:"unique_authors"`
}

// ActivityEntry is the light projection used by the recent-activity summary.
type ActivityEntry struct {
	SHA         string    `json:"sha"`
	Message     string    `json:"message"`
	Author      string    `json:"author"`
	CommittedAt time.Time `json:"committed_at"`
	Additions   int       `json:"additions"`
	Deletions   int       `json:"deletions"`
	FileCount   int       `json:"file_count"`
}

// PRGeneration records one run of the pull-request text generator.
type PRGeneration struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	RepositoryID int64     `json:"repository_id"`
	SessionID    string    `json:"session_id"`
	CommitSHAs   []string  `json:"commit_shas"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}
