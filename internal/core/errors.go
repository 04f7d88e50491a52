package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when an artifact slug does not exist.
	ErrNotFound = errors.New("not found")

	// ErrLedgerCorrupt marks a ledger file that could not be used and was treated as empty.
	ErrLedgerCorrupt = errors.New("ledger corrupt")
)

// Error categories reported in run summaries.
const (
	CategorySourceFetch   = "source_fetch"
	CategoryGeneration    = "generation"
	CategoryValidation    = "validation"
	CategoryPersistence   = "persistence"
	CategoryLedger        = "ledger"
	CategoryConfiguration = "configuration"
	CategoryOther         = "other"
)

// SourceFetchError wraps a failure to read one source.
type SourceFetchError struct {
	Source string
	Err    error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("fetch source %q: %v", e.Source, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// GenerationError is returned by every text generation backend.
type GenerationError struct {
	Backend string
	Reason  string
	Err     error
}

func (e *GenerationError) Error() string {
	msg := fmt.Sprintf("generation via %s failed", e.Backend)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ValidationError carries the hard errors of a verdict.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

// PersistenceError wraps a failure to write an artifact or ledger file.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ConfigurationError prevents a run from starting.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration errors:\n- %s", strings.Join(e.Problems, "\n- "))
}

// Category maps an error to the bucket used in run summaries.
func Category(err error) string {
	var (
		sourceErr *SourceFetchError
		genErr    *GenerationError
		valErr    *ValidationError
		persErr   *PersistenceError
		cfgErr    *ConfigurationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &sourceErr):
		return CategorySourceFetch
	case errors.As(err, &genErr):
		return CategoryGeneration
	case errors.As(err, &valErr):
		return CategoryValidation
	case errors.As(err, &persErr):
		return CategoryPersistence
	case errors.Is(err, ErrLedgerCorrupt):
		return CategoryLedger
	case errors.As(err, &cfgErr):
		return CategoryConfiguration
	default:
		return CategoryOther
	}
}
