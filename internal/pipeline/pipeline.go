// Package pipeline sequences ingestion, deduplication, generation, cleaning
// and filing into a single run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"curator/internal/core"
	"curator/internal/ingest"
	"curator/internal/llm"
	"curator/internal/logger"
	"curator/internal/topics"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Pipeline orchestrates one curation run. Items are processed strictly one
// at a time so ledger and artifact writes never race.
type Pipeline struct {
	// Core components
	source    CandidateSource
	prompts   PromptBuilder
	gen       llm.TextGenerator // nil is allowed for dry runs
	store     ArtifactStore
	ledger    FingerprintLedger
	validator ArtifactValidator

	// Optional components
	recorders []Recorder
	gates     []QualityGate

	now    func() time.Time
	config *Config
}

// Config holds pipeline configuration
type Config struct {
	// Ingestion is asked for ItemCap * CandidateMultiplier items so that
	// already processed items do not starve a run
	CandidateMultiplier int

	// Output settings
	DefaultOutputs  []core.OutputKind
	DefaultCategory string
	LongFormSlugMax int
	SocialSlugMax   int
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		CandidateMultiplier: 4,
		DefaultOutputs:      core.AllOutputKinds,
		DefaultCategory:     "Insights",
		LongFormSlugMax:     60,
		SocialSlugMax:       40,
	}
}

// Option configures optional pipeline components
type Option func(*Pipeline)

// WithRecorder adds a sink for every finished non-dry summary
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorders = append(p.recorders, r)
		}
	}
}

// WithGates adds non-blocking quality gates run on each filed artifact
func WithGates(gates ...QualityGate) Option {
	return func(p *Pipeline) { p.gates = append(p.gates, gates...) }
}

// WithClock overrides the time source for artifact dates and run timing
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a new pipeline with all dependencies
func NewPipeline(
	source CandidateSource,
	prompts PromptBuilder,
	gen llm.TextGenerator,
	store ArtifactStore,
	ledger FingerprintLedger,
	validator ArtifactValidator,
	config *Config,
	opts ...Option,
) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}
	if config.CandidateMultiplier < 1 {
		config.CandidateMultiplier = 1
	}

	p := &Pipeline{
		source:    source,
		prompts:   prompts,
		gen:       gen,
		store:     store,
		ledger:    ledger,
		validator: validator,
		now:       time.Now,
		config:    config,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunOptions configures one run
type RunOptions struct {
	ItemCap     int `validate:"gte=1,lte=100"`
	Topics      topics.Filter
	RecencyDays int               `validate:"gte=1,lte=365"`
	DryRun      bool              // Report candidates without generating or writing anything
	Outputs     []core.OutputKind `validate:"dive,oneof=long-form professional-post micro-post"`
	UseSearch   bool              // Ingest through the search provider instead of feeds
}

var validate = validator.New()

// Validate checks option bounds.
func (o RunOptions) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid run options: %w", err)
	}
	return nil
}

// ItemResult is the outcome of processing one candidate
type ItemResult struct {
	Title     string             `json:"title"`
	Source    string             `json:"source"`
	Link      string             `json:"link"`
	Artifacts []core.ArtifactRef `json:"artifacts"`
	Gates     []GateResult       `json:"gates,omitempty"`
	Error     string             `json:"error,omitempty"`
	Category  string             `json:"category,omitempty"`
}

// Summary is the report of one run
type Summary struct {
	RunID            string               `json:"run_id"`
	StartedAt        time.Time            `json:"started_at"`
	Duration         time.Duration        `json:"duration"`
	DryRun           bool                 `json:"dry_run"`
	UseSearch        bool                 `json:"use_search"`
	Topics           string               `json:"topics"`
	Scanned          int                  `json:"scanned"`
	Candidates       []core.CandidateItem `json:"candidates"`
	Duplicates       int                  `json:"duplicates"`
	Attempted        int                  `json:"attempted"`
	SuccessCount     int                  `json:"success_count"`
	ErrorCount       int                  `json:"error_count"`
	ErrorsByCategory map[string]int       `json:"errors_by_category"`
	SourceErrors     []core.SourceFailure `json:"source_errors"`
	Artifacts        []core.ArtifactRef   `json:"artifacts"`
	FiledWithErrors  int                  `json:"filed_with_errors"`
	Items            []ItemResult         `json:"items"`
}

// Run executes one curation run. The returned error is non-nil only when the
// run could not start; per-source and per-item failures are reported in the
// summary.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	outputs := opts.Outputs
	if len(outputs) == 0 {
		outputs = p.config.DefaultOutputs
	}
	outputs = uniqueKinds(outputs)
	if !opts.DryRun && p.gen == nil {
		return nil, &core.ConfigurationError{Problems: []string{"a generation backend is required unless --dry-run is set"}}
	}

	started := p.now()
	summary := &Summary{
		RunID:            uuid.NewString(),
		StartedAt:        started,
		DryRun:           opts.DryRun,
		UseSearch:        opts.UseSearch,
		Topics:           opts.Topics.String(),
		ErrorsByCategory: make(map[string]int),
	}
	logger.Info("Starting run", "run_id", summary.RunID, "item_cap", opts.ItemCap,
		"topics", summary.Topics, "recency_days", opts.RecencyDays, "dry_run", opts.DryRun)

	// Step 1: ingest more than needed so duplicates do not starve the run
	ingestOpts := ingest.Options{
		Topics:      opts.Topics,
		RecencyDays: opts.RecencyDays,
		Limit:       opts.ItemCap * p.config.CandidateMultiplier,
	}
	var (
		res *ingest.Result
		err error
	)
	if opts.UseSearch {
		res, err = p.source.Search(ctx, ingestOpts)
	} else {
		res, err = p.source.Ingest(ctx, ingestOpts)
	}
	if err != nil {
		return nil, fmt.Errorf("ingestion failed: %w", err)
	}
	summary.Scanned = res.Scanned
	summary.SourceErrors = res.SourceErrors
	for range res.SourceErrors {
		summary.ErrorsByCategory[core.CategorySourceFetch]++
	}

	// Step 2: drop items already in the ledger
	fresh, dupes := p.dedupe(res.Items)
	summary.Duplicates = dupes
	if len(fresh) > opts.ItemCap {
		fresh = fresh[:opts.ItemCap]
	}
	summary.Candidates = fresh
	logger.Info("Candidates selected", "run_id", summary.RunID, "candidates", len(fresh),
		"duplicates", dupes, "source_errors", len(res.SourceErrors))

	// Step 3: a dry run stops here
	if opts.DryRun {
		summary.Duration = p.now().Sub(started)
		return summary, nil
	}

	// Step 4: generate, clean, file and mark each item in order
	for _, item := range fresh {
		if err := ctx.Err(); err != nil {
			logger.Warn("Run interrupted", "run_id", summary.RunID, "remaining", len(fresh)-summary.Attempted)
			break
		}
		summary.Attempted++

		result, err := p.ProcessItem(ctx, item, outputs)
		summary.Artifacts = append(summary.Artifacts, result.Artifacts...)
		for _, ref := range result.Artifacts {
			if len(ref.Errors) > 0 {
				summary.FiledWithErrors++
			}
		}
		if err != nil {
			summary.ErrorCount++
			summary.ErrorsByCategory[result.Category]++
			logger.Error("Item failed", err, "run_id", summary.RunID, "title", item.Title,
				"source", item.SourceName, "category", result.Category)
		} else {
			summary.SuccessCount++
		}
		summary.Items = append(summary.Items, *result)
	}

	summary.Duration = p.now().Sub(started)
	logger.Info("Run finished", "run_id", summary.RunID, "success", summary.SuccessCount,
		"errors", summary.ErrorCount, "filed_with_errors", summary.FiledWithErrors,
		"duration", summary.Duration.String())

	for _, r := range p.recorders {
		if err := r.RecordRun(ctx, summary); err != nil {
			logger.Warn("Failed to record run", "run_id", summary.RunID, "error", err.Error())
		}
	}
	return summary, nil
}

// dedupe removes items the ledger has seen and repeats within the batch.
// A ledger read failure keeps the item: reprocessing is safe, skipping is not.
func (p *Pipeline) dedupe(items []core.CandidateItem) ([]core.CandidateItem, int) {
	fresh := make([]core.CandidateItem, 0, len(items))
	seen := make(map[string]bool, len(items))
	dupes := 0
	for _, item := range items {
		key := strings.ToLower(strings.TrimSpace(item.Title)) + "|" + strings.ToLower(strings.TrimSpace(item.SourceName))
		if seen[key] {
			dupes++
			continue
		}
		seen[key] = true

		dup, err := p.ledger.IsDuplicate(item.Title, item.SourceName)
		if err != nil {
			logger.Warn("Ledger lookup failed, keeping item", "title", item.Title, "error", err.Error())
		}
		if dup {
			dupes++
			continue
		}
		fresh = append(fresh, item)
	}
	return fresh, dupes
}

func uniqueKinds(kinds []core.OutputKind) []core.OutputKind {
	seen := make(map[core.OutputKind]bool, len(kinds))
	out := make([]core.OutputKind, 0, len(kinds))
	for _, k := range kinds {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// kindSet is the ledger label for the kinds produced.
func kindSet(kinds []core.OutputKind) string {
	if len(kinds) == len(core.AllOutputKinds) {
		return "all"
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// categorize maps a processing error to its summary bucket.
func categorize(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return core.CategoryOther
	}
	return core.Category(err)
}
