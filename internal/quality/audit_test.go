package quality

import (
	"context"
	"errors"
	"testing"

	"curator/internal/llm"
	"curator/internal/prompts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const auditDoc = "---\ntitle: \"Speed\"\nstatus: draft\n---\n\nShopify stores on Dawn cut LCP by 40% in 3 weeks.\n"

func TestVoiceAuditor_ParsesReply(t *testing.T) {
	gen := llm.NewMockGenerator("Sure, here it is:\n```json\n" +
		`{"score": 82, "passed": false, "issues": [{"type": "warning", "description": "long intro"}], "suggestions": ["trim the intro"]}` +
		"\n```")
	a := NewVoiceAuditor(gen, prompts.Voice{Author: "Sam", FirstPerson: true, BannedPhrases: []string{"synergy"}})

	report, err := a.Audit(context.Background(), auditDoc)
	require.NoError(t, err)

	assert.Equal(t, 82, report.Score)
	assert.True(t, report.Passed, "passed is derived from the score")
	require.Len(t, report.Issues, 1)
	assert.Equal(t, "warning", report.Issues[0].Type)
	assert.Contains(t, report.Suggestions, "trim the intro")
	assert.Greater(t, report.Specificity.Numbers, 0)

	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "synergy")
	assert.Contains(t, calls[0].Prompt, "Dawn cut LCP")
	assert.True(t, calls[0].JSON)
}

func TestVoiceAuditor_UnreadableReply(t *testing.T) {
	a := NewVoiceAuditor(llm.NewMockGenerator("I cannot review this."), prompts.Voice{})

	report, err := a.Audit(context.Background(), auditDoc)
	require.NoError(t, err)
	assert.False(t, report.Passed)
	assert.Equal(t, 0, report.Score)
	require.NotEmpty(t, report.Issues)
	assert.Equal(t, "error", report.Issues[0].Type)
}

func TestVoiceAuditor_GenerationError(t *testing.T) {
	gen := llm.NewMockGenerator()
	gen.SetError(errors.New("backend down"))

	_, err := NewVoiceAuditor(gen, prompts.Voice{}).Audit(context.Background(), auditDoc)
	assert.Error(t, err)
}

func TestParseAuditReply_ClampsScore(t *testing.T) {
	r, err := parseAuditReply(`{"score": 140}`)
	require.NoError(t, err)
	assert.Equal(t, 100, r.Score)
}

func TestMeasureSpecificity(t *testing.T) {
	concrete := MeasureSpecificity("Shopify merchants on Hydrogen saw a 35% lift and $1.2M in revenue.")
	vague := MeasureSpecificity("Several experts say various things about a number of topics.")

	assert.Greater(t, concrete.Score, vague.Score)
	assert.Equal(t, 0, vague.Score)
	assert.Contains(t, vague.VaguePhrases, "several")
	assert.GreaterOrEqual(t, concrete.ProperNouns, 2)
}
