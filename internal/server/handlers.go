package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"curator/internal/artifact"
	"curator/internal/core"
	"curator/internal/logger"
	"curator/internal/review"

	"github.com/go-chi/chi/v5"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks"`
}

// DraftView is the JSON form of a queued artifact
type DraftView struct {
	Slug        string                 `json:"slug"`
	Path        string                 `json:"path"`
	Title       string                 `json:"title"`
	Date        string                 `json:"date"`
	Description string                 `json:"description"`
	Category    string                 `json:"category"`
	Tags        []string               `json:"tags"`
	Status      core.LifecycleState    `json:"status"`
	Kind        core.OutputKind        `json:"kind,omitempty"`
	Source      string                 `json:"source,omitempty"`
	SourceURL   string                 `json:"source_url,omitempty"`
	WordCount   int                    `json:"word_count"`
	ModifiedAt  time.Time              `json:"modified_at"`
	Verdict     core.ValidationVerdict `json:"verdict"`
	ParseError  string                 `json:"parse_error,omitempty"`
	Body        string                 `json:"body,omitempty"`
	Runs        []string               `json:"runs,omitempty"` // Ids of runs that filed the draft, newest first
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}

var serverStartTime = time.Now()

func draftView(it review.Item, withBody bool) DraftView {
	a := it.Doc.Artifact
	v := DraftView{
		Slug:        it.Doc.Slug,
		Path:        it.Doc.Path,
		Title:       a.Title,
		Date:        a.Date,
		Description: a.Description,
		Category:    a.Category,
		Tags:        a.Tags,
		Status:      a.Status,
		Kind:        a.Kind,
		Source:      a.SourceName,
		SourceURL:   a.SourceURL,
		WordCount:   artifact.WordCount(a.Body),
		ModifiedAt:  it.Doc.ModTime,
		Verdict:     it.Verdict,
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	if it.Doc.ParseErr != nil {
		v.ParseError = it.Doc.ParseErr.Error()
	}
	if withBody {
		v.Body = a.Body
	}
	return v
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"content": "ok", "ledger": "ok"}
	status := http.StatusOK

	if _, err := s.deps.Queue.Store().List(); err != nil {
		checks["content"] = "error"
		status = http.StatusServiceUnavailable
	}
	if _, err := s.deps.Ledger.Stats(); err != nil {
		checks["ledger"] = "error"
		status = http.StatusServiceUnavailable
	}

	resp := HealthResponse{Status: "ok", Uptime: time.Since(serverStartTime).Round(time.Second).String(), Checks: checks}
	if status != http.StatusOK {
		resp.Status = "unhealthy"
	}
	s.respondJSON(w, status, resp)
}

// handleListDrafts handles GET /api/drafts
func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Queue.List()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list drafts", err)
		return
	}

	status := core.LifecycleState(r.URL.Query().Get("status"))
	views := make([]DraftView, 0, len(items))
	for _, it := range items {
		if status != "" && it.Doc.Artifact.Status != status {
			continue
		}
		views = append(views, draftView(it, false))
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"drafts": views, "count": len(views)})
}

// handleGetDraft handles GET /api/drafts/{slug}
func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	it, ok := s.loadItem(w, r)
	if !ok {
		return
	}
	view := draftView(*it, true)
	if s.deps.History != nil {
		runs, err := s.deps.History.RunsForSlug(r.Context(), it.Doc.Slug)
		if err != nil {
			logger.Warn("Failed to look up runs for draft", "slug", it.Doc.Slug, "error", err.Error())
		}
		view.Runs = runs
	}
	s.respondJSON(w, http.StatusOK, view)
}

// handlePreviewDraft handles GET /api/drafts/{slug}/preview
func (s *Server) handlePreviewDraft(w http.ResponseWriter, r *http.Request) {
	it, ok := s.loadItem(w, r)
	if !ok {
		return
	}
	page, err := renderPreview(it.Doc.Artifact)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to render preview", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

func (s *Server) loadItem(w http.ResponseWriter, r *http.Request) (*review.Item, bool) {
	slug := chi.URLParam(r, "slug")
	it, err := s.deps.Queue.Get(slug)
	if errors.Is(err, core.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "draft not found", nil)
		return nil, false
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load draft", err)
		return nil, false
	}
	return it, true
}

// handleTransition wraps one review queue action as a POST handler
func (s *Server) handleTransition(action string, apply func(string) (review.Result, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		res, err := apply(slug)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, action+" failed", err)
			return
		}
		if s.deps.Metrics != nil {
			s.deps.Metrics.ObserveTransition(action, string(res.Outcome))
		}

		status := http.StatusOK
		switch res.Outcome {
		case review.OutcomeNotFound:
			status = http.StatusNotFound
		case review.OutcomeInvalid:
			status = http.StatusUnprocessableEntity
		}
		s.respondJSON(w, status, res)
	}
}

// handlePublishApproved handles POST /api/publish
func (s *Server) handlePublishApproved(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Queue.PublishApproved()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "bulk publish failed", err)
		return
	}
	if report.Published == nil {
		report.Published = []string{}
	}
	if report.Skipped == nil {
		report.Skipped = []review.Skipped{}
	}
	if s.deps.Metrics != nil {
		for range report.Published {
			s.deps.Metrics.ObserveTransition("publish", string(review.OutcomeApplied))
		}
	}
	s.respondJSON(w, http.StatusOK, report)
}

// handleLedger handles GET /api/ledger
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Ledger.Stats()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to read ledger", err)
		return
	}
	resp := map[string]any{"stats": stats}

	if r.URL.Query().Get("entries") == "true" {
		entries, err := s.deps.Ledger.Entries()
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, "failed to read ledger", err)
			return
		}
		resp["entries"] = entries
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleListRuns handles GET /api/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			s.respondError(w, http.StatusBadRequest, "limit must be between 1 and 500", nil)
			return
		}
		limit = n
	}

	runs, err := s.deps.History.Recent(r.Context(), limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list runs", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

// handleGetRun handles GET /api/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.deps.History.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, core.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "run not found", nil)
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load run", err)
		return
	}
	s.respondJSON(w, http.StatusOK, run)
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", err)
	}
}

// respondError logs err and writes msg as a JSON error
func (s *Server) respondError(w http.ResponseWriter, status int, msg string, err error) {
	if err != nil {
		logger.Error(msg, err, "status", status)
	}
	s.respondJSON(w, status, ErrorResponse{Error: msg})
}
