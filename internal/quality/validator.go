// Package quality checks generated text against the publishing rules and
// normalizes the glyphs generative models like to emit.
package quality

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"curator/internal/artifact"
	"curator/internal/config"
	"curator/internal/core"
)

// Rules are the thresholds for one output kind.
type Rules struct {
	MinWords            int
	MaxWords            int
	MaxTitleChars       int
	MaxDescriptionChars int
	MaxBodyChars        int // 0 disables the check
	BannedPhrases       []string
}

// DefaultBannedPhrases flags wording that reads as machine-written marketing copy.
var DefaultBannedPhrases = []string{
	"leverage", "revolutionary", "cutting-edge", "synergy",
	"game-changer", "paradigm shift", "holistic approach",
	"seamlessly", "robust solution", "best-in-class",
}

// DefaultRules returns the built-in thresholds for kind.
func DefaultRules(kind core.OutputKind) Rules {
	r := Rules{
		MinWords:            100,
		MaxWords:            2000,
		MaxTitleChars:       60,
		MaxDescriptionChars: 155,
		BannedPhrases:       DefaultBannedPhrases,
	}
	switch kind {
	case core.KindProfessionalPost:
		r.MinWords, r.MaxWords = 30, 300
	case core.KindMicroPost:
		r.MinWords, r.MaxWords, r.MaxBodyChars = 3, 60, 280
	}
	return r
}

// Validator holds rules per output kind.
type Validator struct {
	rules map[core.OutputKind]Rules
}

// NewValidator builds a validator. Kinds missing from overrides use DefaultRules.
func NewValidator(overrides map[core.OutputKind]Rules) *Validator {
	v := &Validator{rules: make(map[core.OutputKind]Rules, len(core.AllOutputKinds))}
	for _, k := range core.AllOutputKinds {
		v.rules[k] = DefaultRules(k)
	}
	for k, r := range overrides {
		v.rules[k] = r
	}
	return v
}

// NewValidatorFromConfig applies the configured long-form thresholds and adds
// the voice's banned phrases to every kind.
func NewValidatorFromConfig(q config.Quality, banned []string) *Validator {
	overrides := make(map[core.OutputKind]Rules, len(core.AllOutputKinds))
	for _, k := range core.AllOutputKinds {
		r := DefaultRules(k)
		r.BannedPhrases = append(append([]string(nil), DefaultBannedPhrases...), banned...)
		if k == core.KindLongForm {
			if q.MinWords > 0 {
				r.MinWords = q.MinWords
			}
			if q.MaxWords > 0 {
				r.MaxWords = q.MaxWords
			}
		}
		if q.MaxTitleChars > 0 {
			r.MaxTitleChars = q.MaxTitleChars
		}
		if q.MaxDescriptionChars > 0 {
			r.MaxDescriptionChars = q.MaxDescriptionChars
		}
		overrides[k] = r
	}
	return NewValidator(overrides)
}

// Rules returns the thresholds applied to kind.
func (v *Validator) Rules(kind core.OutputKind) Rules {
	if r, ok := v.rules[kind]; ok {
		return r
	}
	return v.rules[core.KindLongForm]
}

// Validate checks text using the rules of the kind named in its header.
// Text without a readable kind is checked as long-form.
func (v *Validator) Validate(text string) core.ValidationVerdict {
	a, _ := artifact.Decode(text)
	return v.ValidateAs(a.Kind, text)
}

// ValidateAs checks text with the rules of kind.
func (v *Validator) ValidateAs(kind core.OutputKind, text string) core.ValidationVerdict {
	return Check(v.Rules(kind), text)
}

// Check runs every rule against text.
func Check(r Rules, text string) core.ValidationVerdict {
	verdict := core.ValidationVerdict{Errors: []string{}, Warnings: []string{}}

	a, err := artifact.Decode(text)
	switch {
	case errors.Is(err, artifact.ErrNoFrontMatter):
		verdict.Errors = append(verdict.Errors, "Missing front-matter header")
	case err != nil:
		verdict.Errors = append(verdict.Errors, fmt.Sprintf("Invalid front-matter header: %v", err))
	}

	if found := findEmoji(text); len(found) > 0 {
		verdict.Errors = append(verdict.Errors, fmt.Sprintf("Contains emoji: %s", strings.Join(found, " ")))
	}
	if found := findSmartPunctuation(text); len(found) > 0 {
		verdict.Errors = append(verdict.Errors, fmt.Sprintf("Contains typographic punctuation: %s", strings.Join(found, " ")))
	}

	words := artifact.WordCount(a.Body)
	if words < r.MinWords {
		verdict.Errors = append(verdict.Errors, fmt.Sprintf("Content too short: %d words (minimum: %d)", words, r.MinWords))
	}
	if r.MaxWords > 0 && words > r.MaxWords {
		verdict.Errors = append(verdict.Errors, fmt.Sprintf("Content too long: %d words (maximum: %d)", words, r.MaxWords))
	}

	if phrases := findPhrases(text, r.BannedPhrases); len(phrases) > 0 {
		verdict.Warnings = append(verdict.Warnings, fmt.Sprintf("Contains banned phrases: %s", strings.Join(phrases, ", ")))
	}
	if n := utf8.RuneCountInString(a.Title); r.MaxTitleChars > 0 && n > r.MaxTitleChars {
		verdict.Warnings = append(verdict.Warnings, fmt.Sprintf("Title too long: %d chars (recommended: %d max)", n, r.MaxTitleChars))
	}
	if n := utf8.RuneCountInString(a.Description); r.MaxDescriptionChars > 0 && n > r.MaxDescriptionChars {
		verdict.Warnings = append(verdict.Warnings, fmt.Sprintf("Description too long: %d chars (recommended: %d max)", n, r.MaxDescriptionChars))
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(a.Body)); r.MaxBodyChars > 0 && n > r.MaxBodyChars {
		verdict.Warnings = append(verdict.Warnings, fmt.Sprintf("Body too long: %d chars (recommended: %d max)", n, r.MaxBodyChars))
	}
	if err == nil && a.Status == "" {
		verdict.Warnings = append(verdict.Warnings, "Missing status field (should be draft, review or published)")
	}

	verdict.IsValid = len(verdict.Errors) == 0
	return verdict
}

// VerdictError returns a ValidationError for a verdict with hard errors.
func VerdictError(v core.ValidationVerdict) error {
	if v.IsValid {
		return nil
	}
	return &core.ValidationError{Errors: v.Errors}
}

// FileResult is a verdict for a file on disk.
type FileResult struct {
	Path string `json:"path"`
	core.ValidationVerdict
}

// ValidateFile reads and validates one file.
func (v *Validator) ValidateFile(path string) FileResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileResult{Path: path, ValidationVerdict: core.ValidationVerdict{
			Errors:   []string{fmt.Sprintf("File not readable: %v", err)},
			Warnings: []string{},
		}}
	}
	return FileResult{Path: path, ValidationVerdict: v.Validate(string(data))}
}

// ValidateDir validates every file with one of exts directly inside dir.
func (v *Validator) ValidateDir(dir string, exts ...string) ([]FileResult, error) {
	if len(exts) == 0 {
		exts = []string{".md", ".mdx"}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	var results []FileResult
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		for _, want := range exts {
			if ext == want {
				results = append(results, v.ValidateFile(filepath.Join(dir, e.Name())))
				break
			}
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results, nil
}

func findPhrases(text string, phrases []string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			found = append(found, p)
		}
	}
	return found
}
