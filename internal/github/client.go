// Package github is the outbound gateway to the GitHub REST API. It is a
// stateless translator: per-user authenticated calls in, domain results or
// typed gateway errors out. All caching policy lives with the callers.
package github

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	apperrors "github-pr-backend/internal/errors"
	"github-pr-backend/internal/model"
	"github-pr-backend/internal/timeutil"
)

const defaultBaseURL = "https://api.github.com"

// RepoPage is the outcome of a conditional repository-list call. Exactly one
// of NotModified or Repos is meaningful.
type RepoPage struct {
	Repos       []model.Repository
	ETag        string
	NotModified bool
}

// Client wraps go-github with per-user token auth and a shared rate limiter.
type Client struct {
	baseURL       string
	limiter       *rate.Limiter
	listTimeout   time.Duration
	commitTimeout time.Duration
	logger        *slog.Logger
}

// NewClient creates and configures a new Client instance. baseURL is
// overridable for tests; rateLimit is requests per second across all users.
func NewClient(baseURL string, rateLimit int, listTimeout, commitTimeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:       baseURL,
		limiter:       rate.NewLimiter(rate.Limit(rateLimit), 1),
		listTimeout:   listTimeout,
		commitTimeout: commitTimeout,
		logger:        logger,
	}
}

// conditionalTransport injects an If-None-Match header so an unchanged
// upstream list comes back as 304 with no body.
type conditionalTransport struct {
	next http.RoundTripper
	etag string
}

func (t *conditionalTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("If-None-Match", t.etag)
	return t.next.RoundTrip(req)
}

// apiClient builds a go-github client authenticated as one user. The bearer
// token rides on the oauth2 transport; go-github itself sets the Accept and
// X-GitHub-Api-Version headers.
func (c *Client) apiClient(token, etag string, timeout time.Duration) (*github.Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = timeout
	if etag != "" {
		httpClient.Transport = &conditionalTransport{next: httpClient.Transport, etag: etag}
	}

	gh := github.NewClient(httpClient)
	if c.baseURL != defaultBaseURL {
		base, err := url.Parse(strings.TrimSuffix(c.baseURL, "/") + "/")
		if err != nil {
			return nil, err
		}
		gh.BaseURL = base
	}
	return gh, nil
}

// ListRepositories fetches the authenticated user's repositories, newest
// updated first. When etag is non-empty the call is conditional and an
// unchanged list is reported via RepoPage.NotModified.
func (c *Client) ListRepositories(ctx context.Context, token, etag string) (*RepoPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	gh, err := c.apiClient(token, etag, c.listTimeout)
	if err != nil {
		return nil, err
	}

	opts := &github.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	repos, resp, err := gh.Repositories.ListByAuthenticatedUser(ctx, opts)
	if err != nil {
		if isNotModified(err) {
			c.logger.Debug("Repository list not modified upstream")
			return &RepoPage{NotModified: true}, nil
		}
		return nil, translateError(err)
	}

	page := &RepoPage{ETag: resp.Header.Get("ETag")}
	for _, r := range repos {
		page.Repos = append(page.Repos, toRepository(r))
	}
	return page, nil
}

// ListCommits fetches a single page of commits for a repository. Per-file
// detail is not included by this endpoint.
func (c *Client) ListCommits(ctx context.Context, token, owner, name string, perPage int) ([]model.CommitRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	gh, err := c.apiClient(token, "", c.commitTimeout)
	if err != nil {
		return nil, err
	}

	opts := &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	commits, _, err := gh.Repositories.ListCommits(ctx, owner, name, opts)
	if err != nil {
		return nil, translateError(err)
	}

	records := make([]model.CommitRecord, 0, len(commits))
	for _, commit := range commits {
		records = append(records, toCommitRecord(commit))
	}
	return records, nil
}

// GetCommit fetches one commit including its per-file change list.
func (c *Client) GetCommit(ctx context.Context, token, owner, name, sha string) (*model.CommitRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	gh, err := c.apiClient(token, "", c.commitTimeout)
	if err != nil {
		return nil, err
	}

	commit, _, err := gh.Repositories.GetCommit(ctx, owner, name, sha, nil)
	if err != nil {
		return nil, translateError(err)
	}

	record := toCommitRecord(commit)
	return &record, nil
}

func isNotModified(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) &&
		ghErr.Response != nil &&
		ghErr.Response.StatusCode == http.StatusNotModified
}

// translateError maps go-github failures onto the gateway fault type:
// non-2xx statuses keep their code and upstream message, everything else is
// a transport failure wrapping the cause.
func translateError(err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return &apperrors.GatewayError{
			StatusCode: ghErr.Response.StatusCode,
			Body:       ghErr.Message,
		}
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) && rateErr.Response != nil {
		return &apperrors.GatewayError{
			StatusCode: rateErr.Response.StatusCode,
			Body:       rateErr.Message,
		}
	}
	return &apperrors.GatewayError{Err: err}
}

// toRepository translates a github.Repository to the internal model. UserID
// is left unset; the sync engine owns that association. Timestamps are
// normalized to UTC before they ever reach the store.
func toRepository(r *github.Repository) model.Repository {
	repo := model.Repository{
		GithubRepoID:  r.GetID(),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Description:   r.Description,
		IsPrivate:     r.GetPrivate(),
		DefaultBranch: r.GetDefaultBranch(),
		Language:      r.Language,
		URL:           r.GetURL(),
		HTMLURL:       r.HTMLURL,
		Archived:      r.GetArchived(),
	}
	if repo.DefaultBranch == "" {
		repo.DefaultBranch = "main"
	}
	repo.RepoCreatedAt = normalizeTimestamp(r.CreatedAt)
	repo.RepoUpdatedAt = normalizeTimestamp(r.UpdatedAt)
	repo.RepoPushedAt = normalizeTimestamp(r.PushedAt)
	return repo
}

func normalizeTimestamp(ts *github.Timestamp) *time.Time {
	if ts == nil || ts.Time.IsZero() {
		return nil
	}
	t := timeutil.Normalize(ts.Time)
	return &t
}

// toCommitRecord translates a github.RepositoryCommit, summing per-file
// additions and deletions when the payload carries them.
func toCommitRecord(c *github.RepositoryCommit) model.CommitRecord {
	record := model.CommitRecord{
		SHA:         c.GetSHA(),
		Message:     c.GetCommit().GetMessage(),
		AuthorName:  c.GetCommit().GetAuthor().Name,
		AuthorEmail: c.GetCommit().GetAuthor().Email,
		CommittedAt: timeutil.Normalize(c.GetCommit().GetAuthor().GetDate().Time),
	}
	for _, f := range c.Files {
		record.Files = append(record.Files, model.FileChange{
			Filename:  f.GetFilename(),
			Status:    f.GetStatus(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
			Changes:   f.GetChanges(),
		})
		record.Additions += f.GetAdditions()
		record.Deletions += f.GetDeletions()
	}
	record.FileCount = len(record.Files)
	return record
}
