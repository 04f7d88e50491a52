package pipeline

import (
	"context"

	"curator/internal/artifact"
	"curator/internal/core"
	"curator/internal/ingest"
	"curator/internal/llm"
	"curator/internal/prompts"
)

// CandidateSource produces candidate items for a run
type CandidateSource interface {
	// Ingest reads the registry's feeds
	Ingest(ctx context.Context, opts ingest.Options) (*ingest.Result, error)

	// Search queries the configured search provider instead of the feeds
	Search(ctx context.Context, opts ingest.Options) (*ingest.Result, error)
}

// PromptBuilder renders the request for one output kind
type PromptBuilder interface {
	Build(kind core.OutputKind, item core.CandidateItem) (llm.Request, prompts.StyleVariant, error)
}

// ArtifactStore persists generated artifacts
type ArtifactStore interface {
	Save(a artifact.ContentArtifact) (string, error)
	Load(slug string) (*artifact.Document, error)
}

// FingerprintLedger remembers processed (title, source) pairs
type FingerprintLedger interface {
	IsDuplicate(title, source string) (bool, error)
	MarkProcessed(title, source, outputKind string) error
}

// ArtifactValidator checks persisted artifact text
type ArtifactValidator interface {
	Validate(text string) core.ValidationVerdict
}

// Recorder receives every finished non-dry run summary
type Recorder interface {
	RecordRun(ctx context.Context, s *Summary) error
}
