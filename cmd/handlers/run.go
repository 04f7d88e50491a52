package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"curator/internal/config"
	"curator/internal/core"
	"curator/internal/cost"
	"curator/internal/history"
	"curator/internal/llm"
	"curator/internal/logger"
	"curator/internal/metrics"
	"curator/internal/pipeline"
	"curator/internal/prompts"
	"curator/internal/search"
	"curator/internal/topics"

	"github.com/spf13/cobra"
)

type runFlags struct {
	articles  int
	topics    string
	days      int
	dryRun    bool
	useSearch bool
	outputs   string
	audit     bool
	jsonOut   bool
}

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest feeds and file new drafts",
		Long: `Run one curation pass.

Recent items are pulled from every source matching --topics, items already
in the fingerprint ledger are dropped, and up to --articles items are turned
into drafts. Each item produces one file per output kind with status draft.

A failing feed or a failing item never stops the run; failures are counted
in the summary. The command exits non-zero only when it cannot start.

Examples:
  # Show the candidates without calling the generation backend
  curator run --dry-run

  # Two SEO articles from the last week, long-form only
  curator run --articles 2 --topics seo --days 7 --outputs long-form

  # Find candidates through the search provider instead of feeds
  curator run --use-search --topics ai`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}

	cmd.Flags().IntVarP(&f.articles, "articles", "n", 0, "Maximum items to generate from (default from config: ingest.item_cap)")
	cmd.Flags().StringVarP(&f.topics, "topics", "t", "", "Comma-separated topics or 'all' (default from config: ingest.default_topics)")
	cmd.Flags().IntVarP(&f.days, "days", "d", 0, "Only consider items published in the last N days (default from config: ingest.recency_days)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "List candidates without generating or writing anything")
	cmd.Flags().BoolVar(&f.useSearch, "use-search", false, "Find candidates with the search provider instead of feeds")
	cmd.Flags().StringVar(&f.outputs, "outputs", "", "Comma-separated output kinds (default: long-form,professional-post,micro-post)")
	cmd.Flags().BoolVar(&f.audit, "audit", false, "Run the brand-voice audit on every long-form draft")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "Print the run summary as JSON")

	return cmd
}

func runRun(ctx context.Context, out io.Writer, f runFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts, err := runOptions(cfg, f)
	if err != nil {
		return err
	}

	// Search through the llm provider needs a backend even on dry runs
	needGen := !f.dryRun || (f.useSearch && search.ProviderType(cfg.Search.Provider) == search.ProviderTypeLLM)

	var gen llm.TextGenerator
	if needGen {
		if err := config.RequireGeneration(cfg, f.useSearch); err != nil {
			return err
		}
		gen, err = llm.NewFromConfig(ctx, cfg)
		if err != nil {
			return &core.ConfigurationError{Problems: []string{err.Error()}}
		}
	}

	builder := pipeline.NewBuilder(cfg).
		WithGenerator(gen).
		WithVoiceAudit(f.audit)

	if f.useSearch {
		provider, err := search.NewFromConfig(ctx, cfg, gen)
		if err != nil {
			return &core.ConfigurationError{Problems: []string{fmt.Sprintf("search provider %q: %v", cfg.Search.Provider, err)}}
		}
		builder.WithSearch(provider)
	}

	if cfg.History.Enabled && !f.dryRun {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			logger.Warn("Run history disabled", "path", cfg.History.Path, "error", err.Error())
		} else {
			defer func() { _ = store.Close() }()
			builder.WithRecorder(store)
		}
	}
	if cfg.Metrics.Textfile != "" {
		builder.WithRecorder(metrics.NewCollector("curator", cfg.Metrics.Textfile))
	}

	p, err := builder.Build()
	if err != nil {
		return err
	}

	summary, err := p.Run(ctx, opts)
	if err != nil {
		return err
	}

	var estimate *cost.RunEstimate
	if summary.DryRun {
		pb := prompts.NewBuilder(prompts.VoiceFromConfig(cfg.Voice))
		estimate, err = cost.EstimateRun(pb, summary.Candidates, opts.Outputs, cfg.BackendSettings().Model)
		if err != nil {
			logger.Warn("Cost estimate unavailable", "error", err.Error())
		}
	}

	if f.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*pipeline.Summary
			Estimate *cost.RunEstimate `json:"estimate,omitempty"`
		}{summary, estimate})
	}
	printSummary(out, summary)
	if estimate != nil && len(summary.Candidates) > 0 {
		fmt.Fprintln(out)
		fmt.Fprint(out, estimate.FormatEstimate())
	}
	return nil
}

// runOptions merges flags over the ingest defaults
func runOptions(cfg *config.Config, f runFlags) (pipeline.RunOptions, error) {
	opts := pipeline.RunOptions{
		ItemCap:     cfg.Ingest.ItemCap,
		Topics:      topics.ParseFilter(cfg.Ingest.DefaultTopics),
		RecencyDays: cfg.Ingest.RecencyDays,
		DryRun:      f.dryRun,
		UseSearch:   f.useSearch,
	}
	if f.articles != 0 {
		opts.ItemCap = f.articles
	}
	if f.topics != "" {
		opts.Topics = topics.ParseFilter(f.topics)
	}
	if f.days != 0 {
		opts.RecencyDays = f.days
	}

	kinds, err := parseOutputs(f.outputs)
	if err != nil {
		return opts, err
	}
	opts.Outputs = kinds

	if err := opts.Validate(); err != nil {
		return opts, &core.ConfigurationError{Problems: []string{err.Error()}}
	}
	return opts, nil
}

func parseOutputs(s string) ([]core.OutputKind, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var kinds []core.OutputKind
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kind, ok := core.ParseOutputKind(part)
		if !ok {
			return nil, &core.ConfigurationError{Problems: []string{
				fmt.Sprintf("unknown output kind %q (want long-form, professional-post or micro-post)", part),
			}}
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func printSummary(out io.Writer, s *pipeline.Summary) {
	if s.DryRun {
		fmt.Fprintf(out, "🔍 Dry run: %d candidates (%d scanned, %d already covered)\n", len(s.Candidates), s.Scanned, s.Duplicates)
		for i, c := range s.Candidates {
			fmt.Fprintf(out, "  %d. %s\n     %s · %s\n", i+1, c.Title, c.SourceName, c.PublishedAt.Format("2006-01-02"))
		}
	} else {
		fmt.Fprintf(out, "✅ Run %s finished in %s\n", s.RunID, s.Duration.Round(time.Millisecond))
		fmt.Fprintf(out, "   Candidates: %d (duplicates skipped: %d)\n", len(s.Candidates), s.Duplicates)
		fmt.Fprintf(out, "   Items: %d succeeded, %d failed of %d attempted\n", s.SuccessCount, s.ErrorCount, s.Attempted)
		fmt.Fprintf(out, "   Drafts written: %d (%d with validation errors)\n", len(s.Artifacts), s.FiledWithErrors)
		for _, a := range s.Artifacts {
			mark := "📝"
			if len(a.Errors) > 0 {
				mark = "⚠️ "
			}
			fmt.Fprintf(out, "   %s %s (%s)\n", mark, a.Path, a.Kind)
		}
		for _, item := range s.Items {
			if item.Error != "" {
				fmt.Fprintf(out, "   ❌ %s: %s\n", item.Title, item.Error)
			}
		}
	}

	if len(s.SourceErrors) > 0 {
		fmt.Fprintf(out, "   Feeds failed: %d\n", len(s.SourceErrors))
		for _, se := range s.SourceErrors {
			fmt.Fprintf(out, "     - %s: %s\n", se.Source, se.Error)
		}
	}
	if len(s.ErrorsByCategory) > 0 {
		cats := make([]string, 0, len(s.ErrorsByCategory))
		for c := range s.ErrorsByCategory {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		parts := make([]string, 0, len(cats))
		for _, c := range cats {
			parts = append(parts, fmt.Sprintf("%s=%d", c, s.ErrorsByCategory[c]))
		}
		fmt.Fprintf(out, "   Errors by category: %s\n", strings.Join(parts, ", "))
	}
}
