// Package api exposes the consumer-facing HTTP surface. Handlers parse and
// validate input, delegate to the services, and map the error taxonomy to
// HTTP statuses.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apperrors "github-pr-backend/internal/errors"
	"github-pr-backend/internal/model"
	"github-pr-backend/internal/syncer"
	"github-pr-backend/internal/timeutil"
	"github-pr-backend/internal/user"
)

// RepoSyncer is the cache & sync engine surface the handlers call.
type RepoSyncer interface {
	GetUserRepositories(ctx context.Context, userID int64, forceRefresh, includeArchived bool) (*syncer.RepoList, error)
	ToggleFavorite(ctx context.Context, userID, repositoryID int64) (bool, error)
	FetchCommits(ctx context.Context, userID int64, owner, name string, saveHistory bool, perPage int) (*syncer.CommitList, error)
	FetchCommitDetail(ctx context.Context, userID int64, owner, name, sha string, saveHistory bool) (*syncer.CommitDetail, error)
}

// HistoryStore is the stored-history query surface.
type HistoryStore interface {
	GetRepositoryCommits(ctx context.Context, repositoryID int64, limit int) ([]model.CommitRecord, error)
	GetCommitsByAuthor(ctx context.Context, repositoryID int64, authorEmail string, limit int) ([]model.CommitRecord, error)
	GetCommitsByDateRange(ctx context.Context, repositoryID int64, start, end time.Time) ([]model.CommitRecord, error)
	GetStats(ctx context.Context, repositoryID int64) (model.CommitStats, error)
	GetRecentActivity(ctx context.Context, repositoryID int64, days int) ([]model.ActivityEntry, error)
	CleanupOldCommits(ctx context.Context, repositoryID int64, daysToKeep int) (int64, error)
}

// PRGenerator produces pull-request descriptions.
type PRGenerator interface {
	Generate(ctx context.Context, userID, repositoryID int64, commitSHAs []string) (model.PRGeneration, error)
}

// UserStore is the identity and token surface.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (model.User, error)
	CreateOrUpdateUser(ctx context.Context, p user.Profile) (model.User, error)
	UpdateToken(ctx context.Context, userID int64, token string) error
}

// Handler is the container for API dependencies.
type Handler struct {
	users   UserStore
	repos   RepoSyncer
	history HistoryStore
	prgen   PRGenerator
	logger  *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(users UserStore, repos RepoSyncer, history HistoryStore, prgen PRGenerator, logger *slog.Logger) http.Handler {
	h := &Handler{
		users:   users,
		repos:   repos,
		history: history,
		prgen:   prgen,
		logger:  logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/users", h.upsertUser)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/", h.getUser)
			r.Put("/token", h.updateToken)
			r.Get("/repositories", h.getUserRepositories)
			r.Post("/repositories/{repoID}/favorite", h.toggleFavorite)
			r.Get("/repos/{owner}/{name}/commits", h.getCommits)
			r.Get("/repos/{owner}/{name}/commits/{sha}", h.getCommitDetail)
		})
		r.Route("/repositories/{repoID}", func(r chi.Router) {
			r.Get("/history", h.getHistory)
			r.Delete("/history", h.deleteHistory)
			r.Get("/stats", h.getStats)
			r.Get("/activity", h.getActivity)
		})
		r.Post("/pr-generation", h.generatePR)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// userResponse is the outward user shape. The access token never leaves the
// service.
type userResponse struct {
	ID          int64   `json:"id"`
	GithubID    int64   `json:"github_id"`
	Username    string  `json:"username"`
	Email       *string `json:"email"`
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
}

func toUserResponse(u model.User) userResponse {
	return userResponse{
		ID:          u.ID,
		GithubID:    u.GithubID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}

type upsertUserRequest struct {
	user.Profile
	AccessToken string `json:"access_token"`
}

// upsertUser creates or refreshes a user keyed by GitHub id.
// POST /v1/users
func (h *Handler) upsertUser(w http.ResponseWriter, r *http.Request) {
	var req upsertUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Profile.AccessToken = req.AccessToken

	u, err := h.users.CreateOrUpdateUser(r.Context(), req.Profile)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toUserResponse(u))
}

// getUser returns a user's profile.
// GET /v1/users/{userID}
func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	u, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toUserResponse(u))
}

type updateTokenRequest struct {
	AccessToken string `json:"access_token"`
}

// updateToken replaces the stored access token for a user.
// PUT /v1/users/{userID}/token
func (h *Handler) updateToken(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	var req updateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.users.UpdateToken(r.Context(), userID, req.AccessToken); err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// getUserRepositories handles the cached/conditional repository listing.
// GET /v1/users/{userID}/repositories?force_refresh=&include_archived=
func (h *Handler) getUserRepositories(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	forceRefresh := queryBool(r, "force_refresh", false)
	includeArchived := queryBool(r, "include_archived", false)

	result, err := h.repos.GetUserRepositories(r.Context(), userID, forceRefresh, includeArchived)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// toggleFavorite flips the favorite flag for an owned repository.
// POST /v1/users/{userID}/repositories/{repoID}/favorite
func (h *Handler) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	repoID, err := pathID(r, "repoID")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid repository id")
		return
	}

	favorited, err := h.repos.ToggleFavorite(r.Context(), userID, repoID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"favorited": favorited})
}

// getCommits lists commits for a repository, from cache or upstream.
// GET /v1/users/{userID}/repos/{owner}/{name}/commits?save_history=&per_page=
func (h *Handler) getCommits(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	owner := chi.URLParam(r, "owner")
	name := chi.URLParam(r, "name")
	saveHistory := queryBool(r, "save_history", true)

	perPage, err := queryInt(r, "per_page", 30, 1, 100)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid 'per_page' parameter. Must be an integer between 1 and 100.")
		return
	}

	result, err := h.repos.FetchCommits(r.Context(), userID, owner, name, saveHistory, perPage)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// getCommitDetail returns one commit with per-file detail.
// GET /v1/users/{userID}/repos/{owner}/{name}/commits/{sha}?save_history=
func (h *Handler) getCommitDetail(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	owner := chi.URLParam(r, "owner")
	name := chi.URLParam(r, "name")
	sha := chi.URLParam(r, "sha")
	saveHistory := queryBool(r, "save_history", true)

	result, err := h.repos.FetchCommitDetail(r.Context(), userID, owner, name, sha, saveHistory)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// getHistory queries stored commit history, optionally filtered by author
// email or an inclusive date range.
// GET /v1/repositories/{repoID}/history?author=&since=&until=&limit=
func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	repoID, err := pathID(r, "repoID")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid repository id")
		return
	}
	limit, err := queryInt(r, "limit", 100, 1, 500)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 500.")
		return
	}

	ctx := r.Context()
	var commits []model.CommitRecord

	switch {
	case r.URL.Query().Get("author") != "":
		commits, err = h.history.GetCommitsByAuthor(ctx, repoID, r.URL.Query().Get("author"), limit)
	case r.URL.Query().Get("since") != "" || r.URL.Query().Get("until") != "":
		start, ok := timeutil.Parse(r.URL.Query().Get("since"))
		if !ok {
			respondWithError(w, http.StatusBadRequest, "Invalid 'since' parameter. Must be a date or RFC3339 timestamp.")
			return
		}
		end, ok := timeutil.Parse(r.URL.Query().Get("until"))
		if !ok {
			respondWithError(w, http.StatusBadRequest, "Invalid 'until' parameter. Must be a date or RFC3339 timestamp.")
			return
		}
		commits, err = h.history.GetCommitsByDateRange(ctx, repoID, start, end)
	default:
		commits, err = h.history.GetRepositoryCommits(ctx, repoID, limit)
	}
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"data": commits})
}

// deleteHistory runs the retention sweep for one repository.
// DELETE /v1/repositories/{repoID}/history?days_to_keep=
func (h *Handler) deleteHistory(w http.ResponseWriter, r *http.Request) {
	repoID, err := pathID(r, "repoID")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid repository id")
		return
	}
	daysToKeep, err := queryInt(r, "days_to_keep", 30, 1, 3650)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid 'days_to_keep' parameter. Must be a positive integer.")
		return
	}

	deleted, err := h.history.CleanupOldCommits(r.Context(), repoID, daysToKeep)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// getStats returns aggregate commit statistics for a repository.
// GET /v1/repositories/{repoID}/stats
func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	repoID, err := pathID(r, "repoID")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid repository id")
		return
	}

	stats, err := h.history.GetStats(r.Context(), repoID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

// getActivity returns the recent-activity summary.
// GET /v1/repositories/{repoID}/activity?days=N
func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	repoID, err := pathID(r, "repoID")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid repository id")
		return
	}
	days, err := queryInt(r, "days", 7, 1, 365)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid 'days' parameter. Must be an integer between 1 and 365.")
		return
	}

	activity, err := h.history.GetRecentActivity(r.Context(), repoID, days)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"data": activity})
}

type prGenerationRequest struct {
	UserID       int64    `json:"user_id"`
	RepositoryID int64    `json:"repository_id"`
	CommitSHAs   []string `json:"commit_shas"`
}

// generatePR runs the PR description generator.
// POST /v1/pr-generation
func (h *Handler) generatePR(w http.ResponseWriter, r *http.Request) {
	var req prGenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	gen, err := h.prgen.Generate(r.Context(), req.UserID, req.RepositoryID, req.CommitSHAs)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"title": gen.Title,
		"body":  gen.Content,
	})
}

// respondServiceError maps the error taxonomy to HTTP statuses: validation
// faults are client errors, missing resources are 404, upstream failures
// are gateway errors, and anything else is internal.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var vErr *apperrors.ValidationError
	if errors.As(err, &vErr) {
		respondWithError(w, http.StatusBadRequest, vErr.Msg)
		return
	}
	var nfErr *apperrors.NotFoundError
	if errors.As(err, &nfErr) {
		respondWithError(w, http.StatusNotFound, nfErr.Error())
		return
	}
	var gwErr *apperrors.GatewayError
	if errors.As(err, &gwErr) {
		h.logger.Error("Upstream call failed", "error", err)
		respondWithError(w, http.StatusBadGateway, "GitHub API request failed")
		return
	}
	h.logger.Error("Internal error", "error", err)
	respondWithError(w, http.StatusInternalServerError, "Internal server error")
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func queryBool(r *http.Request, name string, def bool) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}

func queryInt(r *http.Request, name string, def, min, max int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < min || parsed > max {
		return 0, strconv.ErrRange
	}
	return parsed, nil
}
