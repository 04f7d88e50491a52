package pipeline

import (
	"fmt"
	"net/http"
	"time"

	"curator/internal/artifact"
	"curator/internal/config"
	"curator/internal/core"
	"curator/internal/feeds"
	"curator/internal/ingest"
	"curator/internal/ledger"
	"curator/internal/llm"
	"curator/internal/prompts"
	"curator/internal/quality"
	"curator/internal/search"
	"curator/internal/sources"
)

// Builder helps construct a fully configured Pipeline from application config
type Builder struct {
	cfg            *config.Config
	gen            llm.TextGenerator
	search         search.Provider
	fetcher        ingest.FeedFetcher
	recorders      []Recorder
	voiceAudit     bool
	minSpecificity int
}

// NewBuilder creates a new pipeline builder over cfg
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg, minSpecificity: 30}
}

// WithGenerator sets the generation backend. Without one only dry runs work.
func (b *Builder) WithGenerator(gen llm.TextGenerator) *Builder {
	b.gen = gen
	return b
}

// WithSearch sets the provider used by search-mode runs
func (b *Builder) WithSearch(p search.Provider) *Builder {
	b.search = p
	return b
}

// WithFetcher replaces the HTTP feed client
func (b *Builder) WithFetcher(f ingest.FeedFetcher) *Builder {
	b.fetcher = f
	return b
}

// WithRecorder adds a run summary sink such as history or metrics
func (b *Builder) WithRecorder(r Recorder) *Builder {
	b.recorders = append(b.recorders, r)
	return b
}

// WithVoiceAudit enables the brand-voice gate on long-form drafts
func (b *Builder) WithVoiceAudit(enabled bool) *Builder {
	b.voiceAudit = enabled
	return b
}

// Build constructs a fully configured Pipeline
func (b *Builder) Build() (*Pipeline, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	cfg := b.cfg

	registry, err := LoadRegistry(cfg)
	if err != nil {
		return nil, err
	}

	fetcher := b.fetcher
	if fetcher == nil {
		fetcher = feeds.NewClient(
			feeds.WithHTTPClient(&http.Client{Timeout: config.Duration(cfg.Ingest.Timeout, 30*time.Second)}),
			feeds.WithUserAgent(cfg.Ingest.UserAgent),
			feeds.WithMaxItems(cfg.Ingest.MaxItemsPerFeed),
		)
	}
	ingester := ingest.New(registry, fetcher,
		ingest.WithConcurrency(cfg.Ingest.Concurrency),
		ingest.WithSearch(b.search),
		ingest.WithSearchResults(cfg.Search.MaxResults),
	)

	voice := prompts.VoiceFromConfig(cfg.Voice)
	store := NewStore(cfg)
	fingerprints := ledger.New(cfg.Ledger.Path, cfg.Ledger.MaxEntries)
	validator := quality.NewValidatorFromConfig(cfg.Quality, cfg.Voice.BannedPhrases)

	pcfg := DefaultConfig()
	pcfg.CandidateMultiplier = cfg.Ingest.CandidateMultiplier
	if cfg.Content.DefaultCategory != "" {
		pcfg.DefaultCategory = cfg.Content.DefaultCategory
	}
	if cfg.Content.SlugMaxLength > 0 {
		pcfg.LongFormSlugMax = cfg.Content.SlugMaxLength
	}
	if cfg.Content.SocialSlugMaxLength > 0 {
		pcfg.SocialSlugMax = cfg.Content.SocialSlugMaxLength
	}

	opts := []Option{WithGates(NewSpecificityGate(b.minSpecificity))}
	if b.voiceAudit && b.gen != nil {
		opts = append(opts, WithGates(NewVoiceGate(quality.NewVoiceAuditor(b.gen, voice))))
	}
	for _, r := range b.recorders {
		opts = append(opts, WithRecorder(r))
	}

	return NewPipeline(
		ingester,
		prompts.NewBuilder(voice),
		b.gen,
		store,
		fingerprints,
		validator,
		pcfg,
		opts...,
	), nil
}

// LoadRegistry reads sources.file when set and falls back to the built-in list
func LoadRegistry(cfg *config.Config) (*sources.Registry, error) {
	if cfg.Sources.File == "" {
		return sources.Default(), nil
	}
	registry, err := sources.Load(cfg.Sources.File)
	if err != nil {
		return nil, &core.ConfigurationError{Problems: []string{fmt.Sprintf("sources file %s: %v", cfg.Sources.File, err)}}
	}
	return registry, nil
}

// NewStore opens the artifact store named by the content section. Social posts
// go to content.social_directory when it is set.
func NewStore(cfg *config.Config) *artifact.Store {
	return artifact.NewStore(cfg.Content.Directory, cfg.Content.ArchiveDirectory, cfg.Content.Extension).
		WithSocialDir(cfg.Content.SocialDirectory)
}
