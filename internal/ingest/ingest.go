// Package ingest turns sources into a recency- and topic-filtered list of
// candidate items.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"curator/internal/core"
	"curator/internal/feeds"
	"curator/internal/logger"
	"curator/internal/search"
	"curator/internal/sources"
	"curator/internal/topics"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

// FeedFetcher returns the raw entries of one source.
type FeedFetcher interface {
	Fetch(ctx context.Context, src core.SourceDescriptor) ([]feeds.Item, error)
}

// Options bound one ingestion pass.
type Options struct {
	Topics      topics.Filter
	RecencyDays int `validate:"gte=1,lte=365"`
	Limit       int `validate:"gte=1"`
}

// Result is the outcome of one pass. SourceErrors lists skipped sources.
type Result struct {
	Items        []core.CandidateItem
	SourceErrors []core.SourceFailure
	Scanned      int // Raw entries seen before filtering
}

// Ingester fetches from the registry's sources or from a search provider.
type Ingester struct {
	registry    *sources.Registry
	classifier  *topics.Classifier
	fetcher     FeedFetcher
	search      search.Provider
	maxResults  int
	concurrency int
	now         func() time.Time
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithSearch enables the search mode.
func WithSearch(p search.Provider) Option {
	return func(in *Ingester) { in.search = p }
}

// WithSearchResults caps how many results the search provider is asked for.
// 0 asks for twice the candidate limit.
func WithSearchResults(n int) Option {
	return func(in *Ingester) { in.maxResults = n }
}

// WithConcurrency limits parallel source fetches.
func WithConcurrency(n int) Option {
	return func(in *Ingester) {
		if n > 0 {
			in.concurrency = n
		}
	}
}

// WithClock sets the clock used for the recency window.
func WithClock(now func() time.Time) Option {
	return func(in *Ingester) { in.now = now }
}

// New creates an Ingester over registry using fetcher for feed mode.
func New(registry *sources.Registry, fetcher FeedFetcher, opts ...Option) *Ingester {
	in := &Ingester{
		registry:    registry,
		classifier:  registry.Classifier(),
		fetcher:     fetcher,
		concurrency: 4,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

var validate = validator.New()

// Validate checks the option bounds.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid ingest options: %w", err)
	}
	return nil
}

type rawItem struct {
	item   feeds.Item
	source string
}

// Ingest runs feed mode: every selected source is fetched, failures are
// recorded and skipped.
func (in *Ingester) Ingest(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	selected := in.registry.Select(opts.Topics)
	logger.Info("Starting ingestion", "sources", len(selected), "topics", opts.Topics.String(),
		"recency_days", opts.RecencyDays, "limit", opts.Limit)

	var (
		mu     sync.Mutex
		raw    []rawItem
		failed []core.SourceFailure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency)
	for _, src := range selected {
		g.Go(func() error {
			items, err := in.fetcher.Fetch(gctx, src)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fetchErr := &core.SourceFetchError{Source: src.Name, Err: err}
				logger.Warn("Skipping source", "source", src.Name, "error", fetchErr)
				failed = append(failed, core.SourceFailure{Source: src.Name, Error: err.Error()})
				return nil
			}
			logger.Debug("Fetched source", "source", src.Name, "items", len(items))
			for _, it := range items {
				raw = append(raw, rawItem{item: it, source: src.Name})
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Goroutines finish in any order; sort failures for stable reports.
	sort.Slice(failed, func(i, j int) bool { return failed[i].Source < failed[j].Source })

	candidates := make([]core.CandidateItem, 0, len(raw))
	for _, r := range raw {
		candidates = append(candidates, core.CandidateItem{
			Title:       r.item.Title,
			Link:        r.item.Link,
			PublishedAt: r.item.Published,
			RawBody:     r.item.Content,
			Summary:     r.item.Summary,
			SourceName:  r.source,
		})
	}
	// Registry order first so the stable sort is deterministic across runs.
	order := make(map[string]int, len(selected))
	for i, s := range selected {
		order[s.Name] = i
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return order[candidates[i].SourceName] < order[candidates[j].SourceName]
	})

	res := &Result{SourceErrors: failed, Scanned: len(raw)}
	res.Items = in.filter(candidates, opts)
	logger.Info("Ingestion finished", "scanned", res.Scanned, "kept", len(res.Items), "failed_sources", len(failed))
	return res, nil
}

// Search runs search mode: the provider is queried once with the topic list
// and its results go through the same filters as feed items.
func (in *Ingester) Search(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if in.search == nil {
		return nil, &core.ConfigurationError{Problems: []string{"search mode requested but no search provider is configured"}}
	}

	maxResults := in.maxResults
	if maxResults <= 0 {
		maxResults = opts.Limit * 2
	}

	query := SearchQuery(opts.Topics)
	results, err := in.search.Search(ctx, query, search.Config{
		MaxResults: maxResults,
		SinceTime:  time.Duration(opts.RecencyDays) * 24 * time.Hour,
	})
	if err != nil {
		fetchErr := &core.SourceFetchError{Source: in.search.GetName(), Err: err}
		logger.Warn("Search provider failed", "provider", in.search.GetName(), "error", fetchErr)
		return &Result{SourceErrors: []core.SourceFailure{{Source: in.search.GetName(), Error: err.Error()}}}, nil
	}

	candidates := make([]core.CandidateItem, 0, len(results))
	for _, r := range results {
		name := r.Source
		if name == "" || name == "Google" || name == "DuckDuckGo" || name == "Mock" {
			name = r.Domain
		}
		candidates = append(candidates, core.CandidateItem{
			Title:       r.Title,
			Link:        r.URL,
			PublishedAt: r.PublishedAt,
			Summary:     r.Snippet,
			SourceName:  name,
		})
	}

	res := &Result{Scanned: len(results)}
	res.Items = in.filter(candidates, opts)
	logger.Info("Search ingestion finished", "provider", in.search.GetName(), "query", query,
		"scanned", res.Scanned, "kept", len(res.Items))
	return res, nil
}

// filter applies recency, topic match, classification, in-run link dedupe,
// the newest-first sort and the limit.
func (in *Ingester) filter(items []core.CandidateItem, opts Options) []core.CandidateItem {
	now := in.now().UTC()
	cutoff := now.AddDate(0, 0, -opts.RecencyDays)

	seen := make(map[string]bool, len(items))
	kept := make([]core.CandidateItem, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Title) == "" {
			continue
		}
		if it.PublishedAt.IsZero() {
			it.PublishedAt = now
		}
		if it.PublishedAt.Before(cutoff) {
			continue
		}
		blob := it.Blob()
		if !in.classifier.Matches(blob, opts.Topics) {
			continue
		}
		if key := normalizeLink(it.Link); key != "" {
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		it.Topics = in.classifier.Classify(blob)
		kept = append(kept, it)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].PublishedAt.After(kept[j].PublishedAt)
	})
	if len(kept) > opts.Limit {
		kept = kept[:opts.Limit]
	}
	return kept
}

// SearchQuery turns a topic filter into the search text.
func SearchQuery(f topics.Filter) string {
	if f.All() {
		return "AI, Shopify, e-commerce, CRO, web performance"
	}
	return strings.Join(f, ", ")
}

func normalizeLink(link string) string {
	link = strings.TrimSpace(strings.ToLower(link))
	link = strings.TrimPrefix(strings.TrimPrefix(link, "https://"), "http://")
	link = strings.TrimPrefix(link, "www.")
	return strings.TrimSuffix(link, "/")
}
