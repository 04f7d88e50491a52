package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"curator/internal/artifact"
	"curator/internal/core"
	"curator/internal/ledger"
	"curator/internal/logger"
	"curator/internal/prompts"
	"curator/internal/quality"
)

const maxDescriptionRunes = 155

// ProcessItem generates, cleans and files every kind for one item, then marks
// it processed. The item is marked only when all kinds were filed; artifacts
// written before a failure stay on disk and are overwritten on the next run.
func (p *Pipeline) ProcessItem(ctx context.Context, item core.CandidateItem, kinds []core.OutputKind) (*ItemResult, error) {
	result := &ItemResult{Title: item.Title, Source: item.SourceName, Link: item.Link}
	fail := func(err error) (*ItemResult, error) {
		result.Error = err.Error()
		result.Category = categorize(err)
		return result, err
	}

	if p.gen == nil {
		return fail(&core.ConfigurationError{Problems: []string{"no generation backend configured"}})
	}
	if len(kinds) == 0 {
		kinds = p.config.DefaultOutputs
	}
	kinds = uniqueKinds(kinds)

	for _, kind := range kinds {
		ref, gates, err := p.fileKind(ctx, kind, item)
		if err != nil {
			return fail(fmt.Errorf("%s for %q: %w", kind, item.Title, err))
		}
		result.Artifacts = append(result.Artifacts, *ref)
		result.Gates = append(result.Gates, gates...)
	}

	if err := p.ledger.MarkProcessed(item.Title, item.SourceName, kindSet(kinds)); err != nil {
		return fail(fmt.Errorf("mark processed %q: %w", item.Title, err))
	}
	logger.Info("Item processed", "title", item.Title, "source", item.SourceName, "artifacts", len(result.Artifacts))
	return result, nil
}

func (p *Pipeline) fileKind(ctx context.Context, kind core.OutputKind, item core.CandidateItem) (*core.ArtifactRef, []GateResult, error) {
	req, style, err := p.prompts.Build(kind, item)
	if err != nil {
		return nil, nil, fmt.Errorf("build prompt: %w", err)
	}

	text, err := p.gen.Generate(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	text = quality.Clean(text)

	a := p.assemble(kind, style, item, text)
	path, err := p.store.Save(a)
	if err != nil {
		return nil, nil, err
	}

	// Validate what is on disk, not what we meant to write
	doc, err := p.store.Load(a.Slug)
	if err != nil {
		return nil, nil, &core.PersistenceError{Path: path, Err: err}
	}
	verdict := p.validator.Validate(doc.Raw)
	ref := &core.ArtifactRef{
		Slug:   a.Slug,
		Kind:   kind,
		Path:   path,
		Status: a.Status,
		Errors: verdict.Errors,
	}
	if !verdict.IsValid {
		logger.Warn("Artifact filed with validation errors", "slug", a.Slug, "errors", strings.Join(verdict.Errors, "; "))
	}

	var gates []GateResult
	for _, g := range p.gates {
		gr := g.Check(ctx, kind, doc.Raw)
		gr.Slug = a.Slug
		if !gr.Passed {
			logger.Warn("Quality gate flagged artifact", "gate", gr.Gate, "slug", a.Slug, "score", gr.Score)
		}
		gates = append(gates, gr)
	}

	logger.Debug("Artifact filed", "slug", a.Slug, "kind", string(kind), "style", string(style), "path", path)
	return ref, gates, nil
}

// assemble builds the artifact for one generated text. Long-form output may
// carry its own header; its fields win over the candidate's except status,
// which always starts as draft.
func (p *Pipeline) assemble(kind core.OutputKind, style prompts.StyleVariant, item core.CandidateItem, text string) artifact.ContentArtifact {
	a := artifact.ContentArtifact{Body: text}

	switch kind {
	case core.KindLongForm:
		decoded, err := artifact.Decode(text)
		switch {
		case err == nil:
			a = decoded
		case errors.Is(err, artifact.ErrNoFrontMatter):
			a.Body = text
		default:
			logger.Warn("Generated header unreadable, using candidate metadata", "title", item.Title, "error", err.Error())
			a.Body = decoded.Body
		}
		a.Slug = slugFor("curated-", item, p.config.LongFormSlugMax)
	case core.KindProfessionalPost:
		a.Slug = artifact.ProfessionalPrefix + slugFor("", item, p.config.SocialSlugMax)
	case core.KindMicroPost:
		a.Body = strings.ReplaceAll(text, prompts.LinkPlaceholder, item.Link)
		a.Slug = artifact.MicroPrefix + slugFor("", item, p.config.SocialSlugMax)
	}
	a.Body = strings.TrimSpace(a.Body) + "\n"

	if strings.TrimSpace(a.Title) == "" {
		a.Title = item.Title
	}
	if a.Date == "" {
		a.Date = p.now().Format("2006-01-02")
	}
	if a.Description == "" {
		a.Description = truncate(firstNonEmpty(item.Summary, item.Title), maxDescriptionRunes)
	}
	if a.Category == "" {
		a.Category = p.config.DefaultCategory
	}
	if len(a.Tags) == 0 {
		a.Tags = append([]string(nil), item.Topics...)
	}
	if a.ReadTime == "" {
		a.ReadTime = artifact.ReadTime(a.Body)
	}
	a.Status = core.StatusDraft
	a.Kind = kind
	a.Style = string(style)
	a.SourceName = item.SourceName
	a.SourceURL = item.Link
	return a
}

// slugFor derives the slug from the candidate title so a re-run overwrites the
// same file. Titles with no usable characters fall back to the fingerprint.
func slugFor(prefix string, item core.CandidateItem, max int) string {
	slug := artifact.Slugify(prefix+item.Title, max)
	if slug == "" || slug == strings.Trim(prefix, "-") {
		slug = artifact.Slugify(prefix+ledger.Fingerprint(item.Title, item.SourceName)[:12], max)
	}
	return slug
}

func truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	cut := strings.TrimSpace(string(r[:max-3]))
	return cut + "..."
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
