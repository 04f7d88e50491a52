package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"curator/internal/artifact"
	"curator/internal/llm"
	"curator/internal/prompts"
)

// AuditPassScore is the lowest brand-alignment score that passes.
const AuditPassScore = 70

// AuditIssue is one problem the reviewer model found.
type AuditIssue struct {
	Type        string `json:"type"` // error, warning or suggestion
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`
}

// AuditReport is the brand-voice review of one artifact.
type AuditReport struct {
	Score       int          `json:"score"`
	Passed      bool         `json:"passed"`
	Issues      []AuditIssue `json:"issues"`
	Suggestions []string     `json:"suggestions"`
	Specificity Specificity  `json:"-"`
}

// VoiceAuditor asks a TextGenerator to score brand-voice alignment.
type VoiceAuditor struct {
	gen   llm.TextGenerator
	voice prompts.Voice
}

// NewVoiceAuditor creates an auditor.
func NewVoiceAuditor(gen llm.TextGenerator, voice prompts.Voice) *VoiceAuditor {
	return &VoiceAuditor{gen: gen, voice: voice}
}

// Audit reviews text. Generation failures are returned as errors; a reply
// without a JSON object is reported as a failed audit.
func (a *VoiceAuditor) Audit(ctx context.Context, text string) (*AuditReport, error) {
	body := text
	if art, err := artifact.Decode(text); err == nil {
		body = art.Body
	}

	reply, err := a.gen.Generate(ctx, llm.Request{
		Prompt:      a.prompt(text),
		Temperature: 0.2,
		MaxTokens:   2048,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}

	report, err := parseAuditReply(reply)
	if err != nil {
		report = &AuditReport{
			Issues: []AuditIssue{{Type: "error", Description: fmt.Sprintf("review reply unreadable: %v", err)}},
		}
	}

	report.Specificity = MeasureSpecificity(body)
	if report.Specificity.Score < 30 {
		report.Suggestions = append(report.Suggestions,
			"Add concrete numbers or named examples; the draft reads as generic")
	}
	report.Passed = report.Score >= AuditPassScore
	return report, nil
}

func (a *VoiceAuditor) prompt(text string) string {
	var b strings.Builder
	b.WriteString("You are a brand-voice editor. ")
	b.WriteString(a.voice.Persona())
	b.WriteString("\n\nCheck this content against the voice:\n")
	b.WriteString("- plain dashes and straight quotes, no emoji\n")
	if a.voice.FirstPerson {
		b.WriteString("- first person, conversational and professional\n")
	}
	if len(a.voice.BannedPhrases) > 0 {
		b.WriteString("- none of: " + strings.Join(a.voice.BannedPhrases, ", ") + "\n")
	}
	if a.voice.BrandNotes != "" {
		b.WriteString("\nBRAND NOTES:\n" + a.voice.BrandNotes + "\n")
	}
	b.WriteString("\nCONTENT:\n")
	b.WriteString(text)
	b.WriteString("\n\nReturn ONLY a JSON object: ")
	b.WriteString(`{"score": <0-100>, "passed": <true if score >= 70>, "issues": [{"type": "error|warning|suggestion", "description": "...", "location": "..."}], "suggestions": ["..."]}`)
	return b.String()
}

// parseAuditReply decodes the first JSON object in reply.
func parseAuditReply(reply string) (*AuditReport, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var report AuditReport
	if err := json.Unmarshal([]byte(reply[start:end+1]), &report); err != nil {
		return nil, fmt.Errorf("decode audit JSON: %w", err)
	}
	report.Score = max(0, min(report.Score, 100))
	return &report, nil
}
