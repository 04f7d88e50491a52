package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"curator/internal/artifact"
	"curator/internal/config"
	"curator/internal/core"
	"curator/internal/history"
	"curator/internal/ledger"
	"curator/internal/metrics"
	"curator/internal/quality"
	"curator/internal/review"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuns struct {
	runs   []history.Run
	bySlug map[string][]string
}

func (f *fakeRuns) Recent(_ context.Context, limit int) ([]history.Run, error) {
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeRuns) Get(_ context.Context, id string) (*history.Run, error) {
	for i := range f.runs {
		if f.runs[i].ID == id {
			return &f.runs[i], nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeRuns) RunsForSlug(_ context.Context, slug string) ([]string, error) {
	return f.bySlug[slug], nil
}

type fixture struct {
	srv     *Server
	store   *artifact.Store
	ledger  *ledger.Ledger
	metrics *metrics.Collector
}

func newFixture(t *testing.T, withHistory bool) *fixture {
	t.Helper()
	dir := t.TempDir()
	store := artifact.NewStore(filepath.Join(dir, "blog"), filepath.Join(dir, "blog", "rejected"), ".mdx")
	led := ledger.New(filepath.Join(dir, "ledger.json"), 100)
	col := metrics.NewCollector("curator_test", "")

	deps := Deps{
		Queue:   review.New(store, quality.NewValidator(nil)),
		Ledger:  led,
		Metrics: col,
	}
	if withHistory {
		deps.History = &fakeRuns{runs: []history.Run{
			{ID: "run-2", StartedAt: time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)},
			{ID: "run-1", StartedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
		}, bySlug: map[string][]string{"short": {"run-2", "run-1"}}}
	}
	return &fixture{srv: New(deps, config.Server{}), store: store, ledger: led, metrics: col}
}

func (f *fixture) save(t *testing.T, slug string, status core.LifecycleState, words int) {
	t.Helper()
	_, err := f.store.Save(artifact.ContentArtifact{
		Slug:        slug,
		Title:       "Title " + slug,
		Date:        "2025-03-01",
		Description: "A short description.",
		Status:      status,
		Kind:        core.KindLongForm,
		Body:        "## Heading\n\n" + strings.TrimSpace(strings.Repeat("word ", words)),
	})
	require.NoError(t, err)
}

func (f *fixture) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	decode(t, w, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Checks["ledger"])
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}

func TestHealth_LedgerUnreadable(t *testing.T) {
	dir := t.TempDir()
	store := artifact.NewStore(filepath.Join(dir, "blog"), "", ".mdx")
	// A directory at the ledger path cannot be read as a file.
	ledgerPath := filepath.Join(dir, "ledger")
	require.NoError(t, os.Mkdir(ledgerPath, 0o755))

	srv := New(Deps{
		Queue:  review.New(store, quality.NewValidator(nil)),
		Ledger: ledger.New(ledgerPath, 10),
	}, config.Server{})

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp HealthResponse
	decode(t, w, &resp)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "error", resp.Checks["ledger"])
}

func TestListDrafts(t *testing.T) {
	f := newFixture(t, false)
	f.save(t, "draft-one", core.StatusDraft, 200)
	f.save(t, "in-review", core.StatusReview, 200)
	f.save(t, "live", core.StatusPublished, 200)

	w := f.do(t, http.MethodGet, "/api/drafts")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))

	var resp struct {
		Drafts []DraftView `json:"drafts"`
		Count  int         `json:"count"`
	}
	decode(t, w, &resp)
	assert.Equal(t, 2, resp.Count)
	for _, d := range resp.Drafts {
		assert.NotEqual(t, "live", d.Slug)
		assert.Empty(t, d.Body, "list view omits bodies")
	}

	w = f.do(t, http.MethodGet, "/api/drafts?status=review")
	decode(t, w, &resp)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "in-review", resp.Drafts[0].Slug)
}

func TestGetDraft(t *testing.T) {
	f := newFixture(t, false)
	f.save(t, "short", core.StatusDraft, 20)

	w := f.do(t, http.MethodGet, "/api/drafts/short")
	require.Equal(t, http.StatusOK, w.Code)

	var view DraftView
	decode(t, w, &view)
	assert.Equal(t, "Title short", view.Title)
	assert.Equal(t, core.StatusDraft, view.Status)
	assert.Contains(t, view.Body, "## Heading")
	assert.False(t, view.Verdict.IsValid)
	assert.NotEmpty(t, view.Verdict.Errors)

	assert.Empty(t, view.Runs)

	w = f.do(t, http.MethodGet, "/api/drafts/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetDraft_ListsRuns(t *testing.T) {
	f := newFixture(t, true)
	f.save(t, "short", core.StatusDraft, 20)
	f.save(t, "manual", core.StatusDraft, 20)

	var view DraftView
	w := f.do(t, http.MethodGet, "/api/drafts/short")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	assert.Equal(t, []string{"run-2", "run-1"}, view.Runs)

	view = DraftView{}
	w = f.do(t, http.MethodGet, "/api/drafts/manual")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	assert.Empty(t, view.Runs)
}

func TestPreviewDraft(t *testing.T) {
	f := newFixture(t, false)
	f.save(t, "post", core.StatusDraft, 200)

	w := f.do(t, http.MethodGet, "/api/drafts/post/preview")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<h1>Title post</h1>")
	assert.Contains(t, w.Body.String(), `<h2 id="heading">Heading</h2>`)
}

func TestRenderMarkdown_DropsRawHTML(t *testing.T) {
	out := string(renderMarkdown("hello <script>alert(1)</script> [site](https://example.com)"))
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, `target="_blank"`)
	assert.Empty(t, string(renderMarkdown("")))
}

func TestTransitions(t *testing.T) {
	f := newFixture(t, false)
	f.save(t, "a", core.StatusDraft, 200)
	f.save(t, "b", core.StatusReview, 200)

	w := f.do(t, http.MethodPost, "/api/drafts/a/approve")
	require.Equal(t, http.StatusOK, w.Code)
	var res review.Result
	decode(t, w, &res)
	assert.Equal(t, review.OutcomeApplied, res.Outcome)
	assert.Equal(t, core.StatusPublished, res.Status)

	w = f.do(t, http.MethodPost, "/api/drafts/b/reject")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, f.store.Exists("b"))
	_, err := os.Stat(filepath.Join(f.store.ArchiveDir(), "b.mdx"))
	assert.NoError(t, err)

	w = f.do(t, http.MethodPost, "/api/drafts/nope/approve")
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Transitions.WithLabelValues("approve", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Transitions.WithLabelValues("approve", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Transitions.WithLabelValues("reject", "applied")))
}

func TestTransition_NoFrontMatter(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.store.WriteRaw("raw", "just text, no header\n"))

	w := f.do(t, http.MethodPost, "/api/drafts/raw/approve")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestTransitions_GetNotAllowed(t *testing.T) {
	f := newFixture(t, false)
	f.save(t, "a", core.StatusDraft, 200)

	w := f.do(t, http.MethodGet, "/api/drafts/a/approve")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestPublishApproved(t *testing.T) {
	f := newFixture(t, false)
	f.save(t, "ready", core.StatusReview, 200)
	f.save(t, "thin", core.StatusReview, 10)

	w := f.do(t, http.MethodPost, "/api/publish")
	require.Equal(t, http.StatusOK, w.Code)

	var report review.PublishReport
	decode(t, w, &report)
	assert.Equal(t, []string{"ready"}, report.Published)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "thin", report.Skipped[0].Slug)
	assert.NotEmpty(t, report.Skipped[0].Errors)
}

func TestLedger(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.ledger.MarkProcessed("Speed wins", "Example Blog", "long-form"))

	w := f.do(t, http.MethodGet, "/api/ledger")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Stats   core.LedgerStats         `json:"stats"`
		Entries []core.FingerprintRecord `json:"entries"`
	}
	decode(t, w, &resp)
	assert.Equal(t, 1, resp.Stats.TotalProcessed)
	assert.Equal(t, 1, resp.Stats.CountsBySource["Example Blog"])
	assert.Nil(t, resp.Entries)

	w = f.do(t, http.MethodGet, "/api/ledger?entries=true")
	decode(t, w, &resp)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, ledger.Fingerprint("Speed wins", "Example Blog"), resp.Entries[0].Hash)
}

func TestRuns(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodGet, "/api/runs?limit=1")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Runs  []history.Run `json:"runs"`
		Count int           `json:"count"`
	}
	decode(t, w, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "run-2", list.Runs[0].ID)

	w = f.do(t, http.MethodGet, "/api/runs?limit=zero")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/runs/run-1")
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/runs/run-9")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRuns_AbsentWithoutHistory(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(t, http.MethodGet, "/api/runs")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, false)
	f.do(t, http.MethodGet, "/health")

	w := f.do(t, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "curator_test_http_requests_total")
}

func TestCORS(t *testing.T) {
	dir := t.TempDir()
	store := artifact.NewStore(filepath.Join(dir, "blog"), "", ".mdx")
	srv := New(Deps{
		Queue:  review.New(store, quality.NewValidator(nil)),
		Ledger: ledger.New(filepath.Join(dir, "l.json"), 10),
	}, config.Server{AllowedOrigins: []string{"https://editor.example.com"}})

	req := httptest.NewRequest(http.MethodGet, "/api/drafts", nil)
	req.Header.Set("Origin", "https://editor.example.com")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, "https://editor.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
