package pipeline

import (
	"context"
	"fmt"

	"curator/internal/artifact"
	"curator/internal/core"
	"curator/internal/quality"
)

// QualityGate inspects a filed artifact. Gates never block filing; their
// results are reported with the item.
type QualityGate interface {
	// Name returns the gate name for logging
	Name() string

	// Check scores the persisted artifact text
	Check(ctx context.Context, kind core.OutputKind, text string) GateResult
}

// GateResult is one gate's verdict on one artifact
type GateResult struct {
	Gate   string   `json:"gate"`
	Slug   string   `json:"slug"`
	Passed bool     `json:"passed"`
	Score  int      `json:"score"`
	Notes  []string `json:"notes,omitempty"`
}

// ============================================================================
// Specificity Gate
// ============================================================================

// SpecificityGate flags generic long-form drafts: few numbers or named
// examples and many vague phrases.
type SpecificityGate struct {
	MinScore int
}

// NewSpecificityGate creates a specificity gate
func NewSpecificityGate(minScore int) *SpecificityGate {
	return &SpecificityGate{MinScore: minScore}
}

// Name returns the gate name
func (g *SpecificityGate) Name() string { return "specificity" }

// Check measures the body. Social posts are too short to score and always pass.
func (g *SpecificityGate) Check(_ context.Context, kind core.OutputKind, text string) GateResult {
	res := GateResult{Gate: g.Name(), Passed: true}
	if kind != core.KindLongForm {
		return res
	}
	body := text
	if a, err := artifact.Decode(text); err == nil {
		body = a.Body
	}

	spec := quality.MeasureSpecificity(body)
	res.Score = spec.Score
	res.Passed = spec.Score >= g.MinScore
	if n := len(spec.VaguePhrases); n > 2 {
		res.Notes = append(res.Notes, fmt.Sprintf("%d vague phrases", n))
	}
	if spec.Numbers == 0 {
		res.Notes = append(res.Notes, "no concrete numbers")
	}
	return res
}

// ============================================================================
// Voice Gate
// ============================================================================

// VoiceGate runs the brand-voice audit on long-form drafts. It costs one
// generation call per artifact.
type VoiceGate struct {
	auditor *quality.VoiceAuditor
}

// NewVoiceGate creates a voice gate
func NewVoiceGate(auditor *quality.VoiceAuditor) *VoiceGate {
	return &VoiceGate{auditor: auditor}
}

// Name returns the gate name
func (g *VoiceGate) Name() string { return "voice" }

// Check audits the artifact. An audit that cannot run is reported as a
// failed check rather than an item failure.
func (g *VoiceGate) Check(ctx context.Context, kind core.OutputKind, text string) GateResult {
	res := GateResult{Gate: g.Name(), Passed: true}
	if kind != core.KindLongForm {
		return res
	}

	report, err := g.auditor.Audit(ctx, text)
	if err != nil {
		res.Passed = false
		res.Notes = []string{fmt.Sprintf("audit failed: %v", err)}
		return res
	}
	res.Score = report.Score
	res.Passed = report.Passed
	for _, issue := range report.Issues {
		res.Notes = append(res.Notes, issue.Type+": "+issue.Description)
	}
	return res
}
