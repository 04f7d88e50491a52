package core

import "time"

// LifecycleState is the review status stored in an artifact's front-matter.
type LifecycleState string

const (
	StatusDraft     LifecycleState = "draft"
	StatusReview    LifecycleState = "review"
	StatusPublished LifecycleState = "published"
	StatusRejected  LifecycleState = "rejected"
)

// Valid reports whether s is one of the four known states.
func (s LifecycleState) Valid() bool {
	switch s {
	case StatusDraft, StatusReview, StatusPublished, StatusRejected:
		return true
	}
	return false
}

// OutputKind names a generated artifact flavour.
type OutputKind string

const (
	KindLongForm         OutputKind = "long-form"
	KindProfessionalPost OutputKind = "professional-post"
	KindMicroPost        OutputKind = "micro-post"
)

// AllOutputKinds lists every output kind in generation order.
var AllOutputKinds = []OutputKind{KindLongForm, KindProfessionalPost, KindMicroPost}

// ParseOutputKind maps a flag value to an OutputKind.
func ParseOutputKind(s string) (OutputKind, bool) {
	switch OutputKind(s) {
	case KindLongForm, KindProfessionalPost, KindMicroPost:
		return OutputKind(s), true
	}
	switch s {
	case "blog", "article":
		return KindLongForm, true
	case "linkedin":
		return KindProfessionalPost, true
	case "tweet", "twitter", "x":
		return KindMicroPost, true
	}
	return "", false
}

// TopicGeneral is assigned when no configured keyword matches.
const TopicGeneral = "general"

// SourceDescriptor is a static content source tagged with topics.
type SourceDescriptor struct {
	Name     string   `json:"name" yaml:"name" validate:"required"`                    // Display name, also the ledger source key
	Endpoint string   `json:"endpoint" yaml:"endpoint" validate:"required,url"`        // Feed URL
	Topics   []string `json:"topics" yaml:"topics" validate:"required,min=1,dive,required"` // Topic tags the source covers
}

// CandidateItem is a normalized article produced by ingestion. It only lives for one run.
type CandidateItem struct {
	Title       string    `json:"title"`        // Item title
	Link        string    `json:"link"`         // Canonical URL
	PublishedAt time.Time `json:"published_at"` // Publish time, ingestion time when the source had none
	RawBody     string    `json:"raw_body"`     // Full body text when the source provides it
	Summary     string    `json:"summary"`      // Plain-text summary
	SourceName  string    `json:"source_name"`  // Name of the originating source
	Topics      []string  `json:"topics"`       // Ordered topic set from the classifier
}

// Blob returns the text used for topic matching.
func (c CandidateItem) Blob() string {
	return c.Title + " " + c.Summary + " " + c.RawBody
}

// FingerprintRecord is one ledger entry.
type FingerprintRecord struct {
	Hash        string    `json:"hash"`        // md5 of normalized title|source
	Title       string    `json:"title"`       // Title as first seen
	Source      string    `json:"source"`      // Source as first seen
	ProcessedAt time.Time `json:"processedAt"` // First processing time
	OutputKind  string    `json:"outputType"`  // Output kinds produced, "all" for every kind
}

// LedgerStats summarizes the ledger contents.
type LedgerStats struct {
	TotalProcessed  int            `json:"total_processed"`
	LastProcessedAt *time.Time     `json:"last_processed_at,omitempty"`
	CountsBySource  map[string]int `json:"counts_by_source"`
}

// ValidationVerdict is the result of validating a single artifact text.
type ValidationVerdict struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// ArtifactRef identifies a written artifact in a run summary.
type ArtifactRef struct {
	Slug   string         `json:"slug"`
	Kind   OutputKind     `json:"kind"`
	Path   string         `json:"path"`
	Status LifecycleState `json:"status"`
	Errors []string       `json:"errors,omitempty"` // Hard validation errors at filing time
}

// SourceFailure records a source that was skipped during ingestion.
type SourceFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}
