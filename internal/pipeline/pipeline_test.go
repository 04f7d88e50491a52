package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"curator/internal/artifact"
	"curator/internal/core"
	"curator/internal/ingest"
	"curator/internal/ledger"
	"curator/internal/llm"
	"curator/internal/prompts"
	"curator/internal/quality"
	"curator/internal/topics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fixedRand int

func (f fixedRand) Intn(n int) int { return int(f) % n }

// fakeSource hands out a fixed item list and records the requested limit.
type fakeSource struct {
	items        []core.CandidateItem
	sourceErrors []core.SourceFailure
	lastOpts     ingest.Options
	searched     bool
	err          error
}

func (f *fakeSource) Ingest(_ context.Context, opts ingest.Options) (*ingest.Result, error) {
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	items := f.items
	if len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return &ingest.Result{Items: items, SourceErrors: f.sourceErrors, Scanned: len(f.items)}, nil
}

func (f *fakeSource) Search(ctx context.Context, opts ingest.Options) (*ingest.Result, error) {
	f.searched = true
	return f.Ingest(ctx, opts)
}

type recorder struct{ runs []*Summary }

func (r *recorder) RecordRun(_ context.Context, s *Summary) error {
	r.runs = append(r.runs, s)
	return nil
}

type fixture struct {
	pipeline *Pipeline
	source   *fakeSource
	gen      *llm.MockGenerator
	store    *artifact.Store
	ledger   *ledger.Ledger
	recorder *recorder
	dir      string
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("practical ", n))
}

// replyFor answers like a well-behaved model for each output kind.
func replyFor(req llm.Request) (string, error) {
	switch {
	case strings.Contains(req.Prompt, "curated insight"):
		return "---\ntitle: \"A sharper angle\"\ndate: \"2025-03-10\"\ndescription: \"Why it matters\"\ncategory: \"CRO\"\ntags: [\"cro\"]\nreadTime: \"3 min read\"\nstatus: \"published\"\n---\n\n## Take\n\n" + words(150), nil
	case strings.Contains(req.Prompt, "professional network post"):
		return words(60), nil
	default:
		return "Worth a read " + prompts.LinkPlaceholder, nil
	}
}

func newFixture(t *testing.T, items ...core.CandidateItem) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		source:   &fakeSource{items: items},
		gen:      llm.NewMockGenerator(),
		store:    artifact.NewStore(filepath.Join(dir, "blog"), filepath.Join(dir, "rejected"), ".mdx"),
		ledger:   ledger.New(filepath.Join(dir, "ledger.json"), 0),
		recorder: &recorder{},
		dir:      dir,
	}
	f.gen.Respond = replyFor

	clock := func() time.Time { return fixedNow }
	f.pipeline = NewPipeline(
		f.source,
		prompts.NewBuilder(prompts.Voice{Author: "Test"}, prompts.WithRand(fixedRand(0)), prompts.WithClock(clock)),
		f.gen,
		f.store,
		f.ledger,
		quality.NewValidator(nil),
		DefaultConfig(),
		WithRecorder(f.recorder),
		WithClock(clock),
	)
	return f
}

func item(title, source string, age time.Duration) core.CandidateItem {
	return core.CandidateItem{
		Title:       title,
		Link:        "https://example.com/" + artifact.Slugify(title, 40),
		PublishedAt: fixedNow.Add(-age),
		Summary:     "Summary of " + title,
		SourceName:  source,
		Topics:      []string{"cro"},
	}
}

func runOpts(cap int) RunOptions {
	return RunOptions{ItemCap: cap, Topics: topics.ParseFilter("all"), RecencyDays: 7}
}

func TestRun_DryRunHasNoSideEffects(t *testing.T) {
	f := newFixture(t, item("First", "Feed A", time.Hour), item("Second", "Feed A", 2*time.Hour))
	opts := runOpts(5)
	opts.DryRun = true

	summary, err := f.pipeline.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.True(t, summary.DryRun)
	assert.Len(t, summary.Candidates, 2)
	assert.Zero(t, summary.Attempted)
	assert.Empty(t, f.gen.Calls())
	assert.Empty(t, f.recorder.runs)

	_, err = os.Stat(f.ledger.Path())
	assert.True(t, os.IsNotExist(err), "ledger must not be written on a dry run")
	docs, err := f.store.List()
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestRun_DryRunWithoutGenerator(t *testing.T) {
	f := newFixture(t, item("First", "Feed A", time.Hour))
	f.pipeline.gen = nil

	opts := runOpts(1)
	opts.DryRun = true
	_, err := f.pipeline.Run(context.Background(), opts)
	require.NoError(t, err)

	opts.DryRun = false
	_, err = f.pipeline.Run(context.Background(), opts)
	var cfgErr *core.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestRun_SecondRunCreatesNothing(t *testing.T) {
	f := newFixture(t, item("Checkout friction study", "Feed A", time.Hour))
	opts := runOpts(5)
	opts.Outputs = []core.OutputKind{core.KindLongForm}

	first, err := f.pipeline.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, first.SuccessCount)
	require.Len(t, first.Artifacts, 1)

	stats, err := f.ledger.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalProcessed)
	calls := len(f.gen.Calls())

	second, err := f.pipeline.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Duplicates)
	assert.Zero(t, second.Attempted)
	assert.Empty(t, second.Artifacts)
	assert.Len(t, f.gen.Calls(), calls)

	stats, err = f.ledger.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalProcessed)

	docs, err := f.store.List()
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Len(t, f.recorder.runs, 2)
}

func TestRun_AllKinds(t *testing.T) {
	f := newFixture(t, item("Speed wins on mobile", "Feed A", time.Hour))

	summary, err := f.pipeline.Run(context.Background(), runOpts(1))
	require.NoError(t, err)
	require.Equal(t, 1, summary.SuccessCount)
	require.Len(t, summary.Artifacts, 3)
	assert.Zero(t, summary.FiledWithErrors)

	slugs := []string{summary.Artifacts[0].Slug, summary.Artifacts[1].Slug, summary.Artifacts[2].Slug}
	assert.Equal(t, []string{"curated-speed-wins-on-mobile", "linkedin-speed-wins-on-mobile", "twitter-speed-wins-on-mobile"}, slugs)

	entries, err := f.ledger.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "all", entries[0].OutputKind)

	long, err := f.store.Load("curated-speed-wins-on-mobile")
	require.NoError(t, err)
	assert.Equal(t, "A sharper angle", long.Artifact.Title)
	assert.Equal(t, core.StatusDraft, long.Artifact.Status, "generated status never survives filing")
	assert.Equal(t, "CRO", long.Artifact.Category)
	assert.Equal(t, "Feed A", long.Artifact.SourceName)

	micro, err := f.store.Load("twitter-speed-wins-on-mobile")
	require.NoError(t, err)
	assert.Contains(t, micro.Artifact.Body, "https://example.com/speed-wins-on-mobile")
	assert.NotContains(t, micro.Artifact.Body, prompts.LinkPlaceholder)
	assert.Equal(t, core.KindMicroPost, micro.Artifact.Kind)
}

func TestRun_GenerationFailureIsIsolated(t *testing.T) {
	f := newFixture(t, item("Good one", "Feed A", time.Hour), item("Bad one", "Feed A", 2*time.Hour), item("Another", "Feed B", 3*time.Hour))
	f.gen.Respond = func(req llm.Request) (string, error) {
		if strings.Contains(req.Prompt, "Bad one") {
			return "", &core.GenerationError{Backend: "mock", Reason: "status 500"}
		}
		return replyFor(req)
	}

	summary, err := f.pipeline.Run(context.Background(), runOpts(5))
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Attempted)
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 1, summary.ErrorCount)
	assert.Equal(t, 1, summary.ErrorsByCategory[core.CategoryGeneration])

	dup, err := f.ledger.IsDuplicate("Bad one", "Feed A")
	require.NoError(t, err)
	assert.False(t, dup, "failed items stay eligible for the next run")
	dup, err = f.ledger.IsDuplicate("Another", "Feed B")
	require.NoError(t, err)
	assert.True(t, dup)
}

func TestRun_PartialFailureKeepsWrittenArtifacts(t *testing.T) {
	f := newFixture(t, item("Half done", "Feed A", time.Hour))
	f.gen.Respond = func(req llm.Request) (string, error) {
		if strings.Contains(req.Prompt, "professional network post") {
			return "", &core.GenerationError{Backend: "mock", Reason: "empty response from model"}
		}
		return replyFor(req)
	}

	summary, err := f.pipeline.Run(context.Background(), runOpts(1))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ErrorCount)
	require.Len(t, summary.Artifacts, 1)
	assert.True(t, f.store.Exists("curated-half-done"))

	stats, err := f.ledger.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.TotalProcessed)
}

func TestRun_FiledWithErrors(t *testing.T) {
	f := newFixture(t, item("Too short", "Feed A", time.Hour))
	f.gen.Respond = func(llm.Request) (string, error) { return "Only a few words here.", nil }
	opts := runOpts(1)
	opts.Outputs = []core.OutputKind{core.KindLongForm}

	summary, err := f.pipeline.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SuccessCount, "validation errors never block filing")
	assert.Equal(t, 1, summary.FiledWithErrors)
	require.Len(t, summary.Artifacts, 1)
	assert.NotEmpty(t, summary.Artifacts[0].Errors)

	doc, err := f.store.Load(summary.Artifacts[0].Slug)
	require.NoError(t, err)
	assert.Equal(t, "Too short", doc.Artifact.Title)
	assert.Equal(t, "2025-03-10", doc.Artifact.Date)
	assert.Equal(t, []string{"cro"}, doc.Artifact.Tags)
}

func TestRun_CleansGeneratedText(t *testing.T) {
	f := newFixture(t, item("Glyphs", "Feed A", time.Hour))
	f.gen.Respond = func(llm.Request) (string, error) {
		return words(120) + " \u201cquoted\u201d \u2014 fine\u2026 \U0001F680", nil
	}
	opts := runOpts(1)
	opts.Outputs = []core.OutputKind{core.KindLongForm}

	summary, err := f.pipeline.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, summary.Artifacts, 1)
	assert.Empty(t, summary.Artifacts[0].Errors)

	doc, err := f.store.Load(summary.Artifacts[0].Slug)
	require.NoError(t, err)
	assert.Contains(t, doc.Artifact.Body, `"quoted"`)
	assert.Contains(t, doc.Artifact.Body, "fine...")
	assert.NotContains(t, doc.Artifact.Body, "\U0001F680")
}

func TestRun_CandidateMultiplierAndCap(t *testing.T) {
	items := []core.CandidateItem{
		item("One", "Feed A", 1*time.Hour),
		item("Two", "Feed A", 2*time.Hour),
		item("Three", "Feed A", 3*time.Hour),
		item("Four", "Feed A", 4*time.Hour),
		item("Five", "Feed A", 5*time.Hour),
	}
	f := newFixture(t, items...)
	require.NoError(t, f.ledger.MarkProcessed("One", "Feed A", "all"))
	require.NoError(t, f.ledger.MarkProcessed("  two ", "feed a", "all"))

	opts := runOpts(2)
	opts.DryRun = true
	summary, err := f.pipeline.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 8, f.source.lastOpts.Limit)
	assert.Equal(t, 2, summary.Duplicates)
	require.Len(t, summary.Candidates, 2)
	assert.Equal(t, "Three", summary.Candidates[0].Title)
	assert.Equal(t, "Four", summary.Candidates[1].Title)
}

func TestRun_SourceErrorsAreReported(t *testing.T) {
	f := newFixture(t, item("Only", "Feed A", time.Hour))
	f.source.sourceErrors = []core.SourceFailure{{Source: "Feed B", Error: "status 503"}}
	opts := runOpts(1)
	opts.Outputs = []core.OutputKind{core.KindMicroPost}

	summary, err := f.pipeline.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SuccessCount)
	assert.Equal(t, 1, summary.ErrorsByCategory[core.CategorySourceFetch])
	assert.Len(t, summary.SourceErrors, 1)

	entries, err := f.ledger.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "micro-post", entries[0].OutputKind)
}

func TestRun_UseSearch(t *testing.T) {
	f := newFixture(t, item("Found", "example.com", time.Hour))
	opts := runOpts(1)
	opts.DryRun = true
	opts.UseSearch = true

	_, err := f.pipeline.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, f.source.searched)
}

func TestRun_IngestFailureStopsRun(t *testing.T) {
	f := newFixture(t)
	f.source.err = &core.ConfigurationError{Problems: []string{"no search provider"}}

	_, err := f.pipeline.Run(context.Background(), runOpts(1))
	var cfgErr *core.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestRunOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    RunOptions
		wantErr bool
	}{
		{"valid", RunOptions{ItemCap: 2, RecencyDays: 3}, false},
		{"zero cap", RunOptions{ItemCap: 0, RecencyDays: 3}, true},
		{"zero days", RunOptions{ItemCap: 1, RecencyDays: 0}, true},
		{"unknown output", RunOptions{ItemCap: 1, RecencyDays: 3, Outputs: []core.OutputKind{"newsletter"}}, true},
		{"known outputs", RunOptions{ItemCap: 1, RecencyDays: 3, Outputs: []core.OutputKind{core.KindMicroPost}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProcessItem_MarkFailure(t *testing.T) {
	f := newFixture(t)
	// A directory where the ledger file should be makes every write fail.
	require.NoError(t, os.MkdirAll(f.ledger.Path(), 0o755))

	result, err := f.pipeline.ProcessItem(context.Background(), item("Stuck", "Feed A", 0), []core.OutputKind{core.KindMicroPost})
	require.Error(t, err)
	assert.Len(t, result.Artifacts, 1, "artifacts are written before the ledger")
	assert.NotEmpty(t, result.Category)
}

func TestKindSet(t *testing.T) {
	assert.Equal(t, "all", kindSet(core.AllOutputKinds))
	assert.Equal(t, "micro-post,professional-post", kindSet([]core.OutputKind{core.KindProfessionalPost, core.KindMicroPost}))
}

func TestSlugFor_Fallback(t *testing.T) {
	it := core.CandidateItem{Title: "!!!", SourceName: "Feed A"}
	slug := slugFor("curated-", it, 60)
	assert.True(t, strings.HasPrefix(slug, "curated-"))
	assert.Greater(t, len(slug), len("curated-"))
	assert.Equal(t, slug, slugFor("curated-", it, 60))
}

func TestSpecificityGate(t *testing.T) {
	gate := NewSpecificityGate(30)

	res := gate.Check(context.Background(), core.KindMicroPost, "anything")
	assert.True(t, res.Passed)

	res = gate.Check(context.Background(), core.KindLongForm, "things are generally quite good in many ways")
	assert.False(t, res.Passed)
	assert.Contains(t, res.Notes, "no concrete numbers")
}

func TestVoiceGate(t *testing.T) {
	gen := llm.NewMockGenerator(`{"score": 82, "issues": [], "suggestions": []}`)
	gate := NewVoiceGate(quality.NewVoiceAuditor(gen, prompts.Voice{Author: "Test"}))

	res := gate.Check(context.Background(), core.KindLongForm, "Conversion rose 12% after Acme cut checkout steps from 5 to 3.")
	assert.True(t, res.Passed)
	assert.Equal(t, 82, res.Score)

	gen.SetError(errors.New("offline"))
	res = gate.Check(context.Background(), core.KindLongForm, "text")
	assert.False(t, res.Passed)
}
