// Package review drives artifacts through the draft, review, published and
// rejected lifecycle. The content directory is the queue: membership is read
// from each file's status field.
package review

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"curator/internal/artifact"
	"curator/internal/core"
	"curator/internal/logger"
	"curator/internal/quality"
)

// Outcome describes what a transition did.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeNotFound  Outcome = "not_found"
	OutcomeInvalid   Outcome = "invalid" // The file has no usable front-matter
)

// Result is returned by every single-artifact transition.
type Result struct {
	Slug    string              `json:"slug"`
	Outcome Outcome             `json:"outcome"`
	Status  core.LifecycleState `json:"status,omitempty"`
	Message string              `json:"message,omitempty"`
}

// Item is one queued artifact with its current verdict.
type Item struct {
	Doc     *artifact.Document
	Verdict core.ValidationVerdict
}

// Skipped is a review artifact that bulk publish left alone.
type Skipped struct {
	Slug   string              `json:"slug"`
	Status core.LifecycleState `json:"status"`
	Errors []string            `json:"errors"`
}

// PublishReport is the outcome of PublishApproved.
type PublishReport struct {
	Published []string  `json:"published"`
	Skipped   []Skipped `json:"skipped"`
}

// Queue applies lifecycle transitions to a Store. Transitions are serialized
// so concurrent callers never interleave a read and write of the same file.
type Queue struct {
	mu        sync.Mutex
	store     *artifact.Store
	validator *quality.Validator
}

// New creates a queue over store.
func New(store *artifact.Store, validator *quality.Validator) *Queue {
	return &Queue{store: store, validator: validator}
}

// Store returns the underlying artifact store.
func (q *Queue) Store() *artifact.Store { return q.store }

// List returns every non-published artifact with its verdict, newest first.
func (q *Queue) List() ([]Item, error) {
	docs, err := q.store.List()
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(docs))
	for _, d := range docs {
		if d.ParseErr == nil && d.Artifact.Status == core.StatusPublished {
			continue
		}
		items = append(items, Item{Doc: d, Verdict: q.validator.Validate(d.Raw)})
	}
	return items, nil
}

// Get loads one artifact with its verdict, published ones included.
func (q *Queue) Get(slug string) (*Item, error) {
	doc, err := q.store.Load(slug)
	if err != nil {
		return nil, err
	}
	return &Item{Doc: doc, Verdict: q.validator.Validate(doc.Raw)}, nil
}

// load returns nil and a not_found result when slug does not exist.
func (q *Queue) load(slug string) (*artifact.Document, *Result, error) {
	doc, err := q.store.Load(slug)
	if errors.Is(err, core.ErrNotFound) {
		return nil, &Result{Slug: slug, Outcome: OutcomeNotFound, Message: "no active artifact with this slug"}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if doc.ParseErr != nil && !errors.Is(doc.ParseErr, artifact.ErrMalformedFrontMatter) {
		return nil, &Result{Slug: slug, Outcome: OutcomeInvalid, Message: doc.ParseErr.Error()}, nil
	}
	return doc, nil, nil
}

// Approve publishes slug. It is allowed from draft and review; publishing an
// already published artifact is a no-op.
func (q *Queue) Approve(slug string) (Result, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.approve(slug)
}

func (q *Queue) approve(slug string) (Result, error) {
	doc, res, err := q.load(slug)
	if err != nil || res != nil {
		return deref(res), err
	}
	if doc.Artifact.Status == core.StatusPublished {
		return Result{Slug: slug, Outcome: OutcomeUnchanged, Status: core.StatusPublished, Message: "already published"}, nil
	}

	text, err := artifact.SetStatus(doc.Raw, core.StatusPublished)
	if err != nil {
		return Result{Slug: slug, Outcome: OutcomeInvalid, Message: err.Error()}, nil
	}
	if err := q.store.WriteRaw(slug, text); err != nil {
		return Result{}, err
	}

	out := Result{Slug: slug, Outcome: OutcomeApplied, Status: core.StatusPublished}
	if v := q.validator.Validate(text); !v.IsValid {
		out.Message = "published with validation errors: " + strings.Join(v.Errors, "; ")
	}
	logger.Info("Artifact approved", "slug", slug, "from", string(doc.Artifact.Status))
	return out, nil
}

// Reject marks slug rejected and moves it to the archive directory.
func (q *Queue) Reject(slug string) (Result, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	doc, res, err := q.load(slug)
	if err != nil || res != nil {
		return deref(res), err
	}

	if text, err := artifact.SetStatus(doc.Raw, core.StatusRejected); err == nil {
		if err := q.store.WriteRaw(slug, text); err != nil {
			return Result{}, err
		}
	}
	dest, err := q.store.Archive(slug)
	if err != nil {
		return Result{}, err
	}

	logger.Info("Artifact rejected", "slug", slug, "archived_to", dest)
	return Result{Slug: slug, Outcome: OutcomeApplied, Status: core.StatusRejected, Message: "archived to " + dest}, nil
}

// Clean normalizes glyphs in slug and moves it to review. Published artifacts
// are left untouched.
func (q *Queue) Clean(slug string) (Result, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	doc, res, err := q.load(slug)
	if err != nil || res != nil {
		return deref(res), err
	}
	if doc.Artifact.Status == core.StatusPublished {
		return Result{Slug: slug, Outcome: OutcomeUnchanged, Status: core.StatusPublished, Message: "published artifacts are not modified"}, nil
	}

	cleaned := quality.Clean(doc.Raw)
	text, err := artifact.SetStatus(cleaned, core.StatusReview)
	if err != nil {
		return Result{Slug: slug, Outcome: OutcomeInvalid, Message: err.Error()}, nil
	}
	if text == doc.Raw {
		return Result{Slug: slug, Outcome: OutcomeUnchanged, Status: core.StatusReview, Message: "already clean and in review"}, nil
	}
	if err := q.store.WriteRaw(slug, text); err != nil {
		return Result{}, err
	}

	out := Result{Slug: slug, Outcome: OutcomeApplied, Status: core.StatusReview}
	if v := q.validator.Validate(text); !v.IsValid {
		out.Message = fmt.Sprintf("%d validation errors remain", len(v.Errors))
	}
	logger.Info("Artifact cleaned", "slug", slug)
	return out, nil
}

// PublishApproved publishes every review artifact without hard errors.
// Review artifacts with errors are returned in Skipped.
func (q *Queue) PublishApproved() (*PublishReport, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.List()
	if err != nil {
		return nil, err
	}

	report := &PublishReport{}
	for _, it := range items {
		if it.Doc.ParseErr != nil || it.Doc.Artifact.Status != core.StatusReview {
			continue
		}
		if !it.Verdict.IsValid {
			report.Skipped = append(report.Skipped, Skipped{Slug: it.Doc.Slug, Status: core.StatusReview, Errors: it.Verdict.Errors})
			continue
		}
		res, err := q.approve(it.Doc.Slug)
		if err != nil {
			return report, err
		}
		if res.Outcome == OutcomeApplied {
			report.Published = append(report.Published, it.Doc.Slug)
		}
	}

	logger.Info("Bulk publish finished", "published", len(report.Published), "skipped", len(report.Skipped))
	return report, nil
}

func deref(r *Result) Result {
	if r == nil {
		return Result{}
	}
	return *r
}
