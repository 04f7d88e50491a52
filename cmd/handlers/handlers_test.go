package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
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
	"curator/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	dir    string
	config string
}

func newEnv(t *testing.T, extra string) *env {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`
logging:
  level: error
  format: text
content:
  directory: %[1]s/blog
  social_directory: %[1]s/social
  archive_directory: %[1]s/blog/rejected
ledger:
  path: %[1]s/ledger.json
history:
  path: %[1]s/history.db
%[2]s`, dir, extra)
	path := filepath.Join(dir, "curator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	for _, key := range []string{"GEMINI_API_KEY", "GOOGLE_GEMINI_API_KEY", "GOOGLE_AI_API_KEY", "CURATOR_GENERATION_GEMINI_API_KEY"} {
		t.Setenv(key, "")
	}
	config.Reset()
	t.Cleanup(config.Reset)
	return &env{dir: dir, config: path}
}

func (e *env) execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	config.Reset()

	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.config}, args...))
	err := root.Execute()
	return out.String(), err
}

func (e *env) store() *artifact.Store {
	return artifact.NewStore(filepath.Join(e.dir, "blog"), filepath.Join(e.dir, "blog", "rejected"), ".mdx").
		WithSocialDir(filepath.Join(e.dir, "social"))
}

func (e *env) saveDraft(t *testing.T, slug string, status core.LifecycleState, words int) {
	t.Helper()
	_, err := e.store().Save(artifact.ContentArtifact{
		Slug:        slug,
		Title:       "Title " + slug,
		Date:        "2025-03-01",
		Description: "A short description.",
		Status:      status,
		Kind:        core.KindLongForm,
		Body:        strings.TrimSpace(strings.Repeat("word ", words)),
	})
	require.NoError(t, err)
}

func TestValidateCmd(t *testing.T) {
	e := newEnv(t, "")
	e.saveDraft(t, "good", core.StatusDraft, 300)
	e.saveDraft(t, "thin", core.StatusDraft, 10)
	e.saveDraft(t, "linkedin-good", core.StatusDraft, 300)
	require.FileExists(t, filepath.Join(e.dir, "social", "linkedin-good.mdx"))

	out, err := e.execute(t, "", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "3 files checked, 1 with errors")
	assert.Contains(t, out, "❌ "+filepath.Join(e.dir, "blog", "thin.mdx"))

	out, err = e.execute(t, "", "validate", filepath.Join(e.dir, "blog", "good.mdx"))
	require.NoError(t, err)
	assert.Contains(t, out, "1 files checked, 0 with errors")

	_, err = e.execute(t, "", "validate", filepath.Join(e.dir, "nope.mdx"))
	assert.Error(t, err)
}

func TestReviewCmds(t *testing.T) {
	e := newEnv(t, "")
	e.saveDraft(t, "first", core.StatusDraft, 300)
	e.saveDraft(t, "second", core.StatusReview, 300)

	out, err := e.execute(t, "", "review", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "2 drafts awaiting review")
	assert.Contains(t, out, "first")

	out, err = e.execute(t, "", "review", "approve", "first")
	require.NoError(t, err)
	assert.Contains(t, out, "approve first: now published")

	out, err = e.execute(t, "", "review", "reject", "missing")
	require.NoError(t, err)
	assert.Contains(t, out, "reject missing: not_found")

	out, err = e.execute(t, "", "review", "publish-all")
	require.NoError(t, err)
	assert.Contains(t, out, "Published 1, skipped 0")

	out, err = e.execute(t, "", "review", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to review")

	_, err = e.execute(t, "", "review", "approve")
	assert.Error(t, err, "slug argument is required")
}

func TestReviewAuditNeedsCredentials(t *testing.T) {
	e := newEnv(t, "")
	e.saveDraft(t, "first", core.StatusDraft, 300)

	_, err := e.execute(t, "", "review", "audit", "first")
	var cerr *core.ConfigurationError
	assert.ErrorAs(t, err, &cerr)
}

func TestLedgerCmds(t *testing.T) {
	e := newEnv(t, "")
	l := ledger.New(filepath.Join(e.dir, "ledger.json"), 100)
	require.NoError(t, l.MarkProcessed("Speed wins", "Example Blog", "all"))

	out, err := e.execute(t, "", "ledger", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Items processed: 1")
	assert.Contains(t, out, "Example Blog")

	out, err = e.execute(t, "n\n", "ledger", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "cancelled")

	out, err = e.execute(t, "", "ledger", "clear", "--confirm")
	require.NoError(t, err)
	assert.Contains(t, out, "Ledger cleared")

	stats, err := l.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.TotalProcessed)
}

func feedServer(t *testing.T, titles ...string) *httptest.Server {
	t.Helper()
	var items strings.Builder
	for i, title := range titles {
		fmt.Fprintf(&items, `<item><title>%s</title><link>https://example.com/%d</link><description>About %s</description><pubDate>%s</pubDate></item>`,
			title, i, title, time.Now().Add(-time.Duration(i)*time.Hour).UTC().Format(time.RFC1123Z))
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>Example</title>%s</channel></rss>`, items.String())
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestRunDryRun(t *testing.T) {
	ts := feedServer(t, "Speed wins on mobile", "Checkout tests that paid off", "Search trends for spring")

	dir := t.TempDir()
	sourcesFile := filepath.Join(dir, "sources.yaml")
	require.NoError(t, os.WriteFile(sourcesFile, []byte(fmt.Sprintf(`
sources:
  - name: Example Blog
    endpoint: %s/feed
    topics: [seo]
`, ts.URL)), 0o644))
	e := newEnv(t, "sources:\n  file: "+sourcesFile+"\n")

	out, err := e.execute(t, "", "run", "--dry-run", "--json")
	require.NoError(t, err)

	var summary pipeline.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.True(t, summary.DryRun)
	assert.Equal(t, 3, summary.Scanned)
	require.Len(t, summary.Candidates, 2, "item cap defaults to 2")
	assert.Equal(t, "Speed wins on mobile", summary.Candidates[0].Title)
	assert.Empty(t, summary.Artifacts)

	_, err = os.Stat(filepath.Join(e.dir, "ledger.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "dry runs never touch the ledger")
	_, err = os.Stat(filepath.Join(e.dir, "blog"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "dry runs never write drafts")

	out, err = e.execute(t, "", "run", "--dry-run", "--articles", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run: 1 candidates")
	assert.Contains(t, out, "Speed wins on mobile")
	assert.Contains(t, out, "Estimated generation cost (gemini-2.5-flash)")
	assert.Contains(t, out, "Requests: 3")
}

func TestRunNeedsCredentials(t *testing.T) {
	e := newEnv(t, "")

	_, err := e.execute(t, "", "run")
	var cerr *core.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Error(), "gemini API key is required")
}

func TestRunRejectsBadFlags(t *testing.T) {
	e := newEnv(t, "")
	var cerr *core.ConfigurationError

	_, err := e.execute(t, "", "run", "--dry-run", "--outputs", "blog")
	assert.ErrorAs(t, err, &cerr)

	_, err = e.execute(t, "", "run", "--dry-run", "--articles", "1000")
	assert.ErrorAs(t, err, &cerr)
}

func TestRunsCmdEmpty(t *testing.T) {
	e := newEnv(t, "")

	out, err := e.execute(t, "", "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded yet")
}

func (e *env) recordRuns(t *testing.T, sums ...*pipeline.Summary) {
	t.Helper()
	store, err := history.Open(filepath.Join(e.dir, "history.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	for _, s := range sums {
		require.NoError(t, store.RecordRun(context.Background(), s))
	}
}

func TestRunsCmdStatsAndPrune(t *testing.T) {
	e := newEnv(t, "")
	e.recordRuns(t,
		&pipeline.Summary{RunID: "old", StartedAt: time.Now().AddDate(0, -3, 0), SuccessCount: 1,
			Artifacts: []core.ArtifactRef{{Slug: "curated-old", Kind: core.KindLongForm}}},
		&pipeline.Summary{RunID: "new", StartedAt: time.Now().Add(-time.Hour), SuccessCount: 2, ErrorCount: 1},
	)

	out, err := e.execute(t, "", "runs", "--stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Runs: 2")
	assert.Contains(t, out, "Artifacts filed: 1")
	assert.Contains(t, out, "Successes: 3")
	assert.Contains(t, out, "Errors: 1")

	out, err = e.execute(t, "", "runs", "--prune", "30d")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 runs older than 30d")

	out, err = e.execute(t, "", "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "new")
	assert.NotContains(t, out, "old  ")

	_, err = e.execute(t, "", "runs", "--prune", "soon")
	assert.Error(t, err)
}

func TestParseAge(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"30d", 30 * 24 * time.Hour, true},
		{"72h", 72 * time.Hour, true},
		{"0d", 0, false},
		{"-1h", 0, false},
		{"week", 0, false},
	}
	for _, tt := range tests {
		got, err := parseAge(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseOutputs(t *testing.T) {
	kinds, err := parseOutputs("long-form, micro-post")
	require.NoError(t, err)
	assert.Equal(t, []core.OutputKind{core.KindLongForm, core.KindMicroPost}, kinds)

	kinds, err = parseOutputs("")
	require.NoError(t, err)
	assert.Nil(t, kinds)

	_, err = parseOutputs("long-form,thread")
	assert.Error(t, err)
}

func TestRunOptions(t *testing.T) {
	cfg := &config.Config{Ingest: config.Ingest{ItemCap: 2, DefaultTopics: "all", RecencyDays: 3}}

	opts, err := runOptions(cfg, runFlags{})
	require.NoError(t, err)
	assert.Equal(t, 2, opts.ItemCap)
	assert.Equal(t, 3, opts.RecencyDays)
	assert.True(t, opts.Topics.All())

	opts, err = runOptions(cfg, runFlags{articles: 5, topics: "seo,ai", days: 7, dryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 5, opts.ItemCap)
	assert.Equal(t, 7, opts.RecencyDays)
	assert.Equal(t, "seo,ai", opts.Topics.String())
	assert.True(t, opts.DryRun)
}
