// Package cost estimates what a run would spend on the generation backend.
package cost

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"curator/internal/core"
	"curator/internal/llm"
	"curator/internal/prompts"
)

// Pricing is the published price of one model
type Pricing struct {
	Model                 string
	InputCostPer1MTokens  float64 // USD per 1M input tokens
	OutputCostPer1MTokens float64 // USD per 1M output tokens
}

// PricingTable holds list prices for the default model of each backend
var PricingTable = map[string]Pricing{
	"gemini-2.5-flash": {Model: "gemini-2.5-flash", InputCostPer1MTokens: 0.30, OutputCostPer1MTokens: 2.50},
	"gemini-2.5-pro":   {Model: "gemini-2.5-pro", InputCostPer1MTokens: 1.25, OutputCostPer1MTokens: 10.00},
	"gpt-4o-mini":      {Model: "gpt-4o-mini", InputCostPer1MTokens: 0.15, OutputCostPer1MTokens: 0.60},
	"gpt-4o":           {Model: "gpt-4o", InputCostPer1MTokens: 2.50, OutputCostPer1MTokens: 10.00},
	"grok-3-latest":    {Model: "grok-3-latest", InputCostPer1MTokens: 3.00, OutputCostPer1MTokens: 15.00},
	"MiniMax-M2":       {Model: "MiniMax-M2", InputCostPer1MTokens: 0.30, OutputCostPer1MTokens: 1.20},
}

// expectedOutputTokens is the typical reply length per kind
var expectedOutputTokens = map[core.OutputKind]int{
	core.KindLongForm:         1600,
	core.KindProfessionalPost: 350,
	core.KindMicroPost:        70,
}

// EstimateTokenCount provides a rough estimation of token count for text
// This is a simplified approximation: typically 1 token ≈ 0.75 words ≈ 4 characters
func EstimateTokenCount(text string) int {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\n", " ")

	// Rough estimation: 1 token ≈ 4 characters for English text, with some
	// buffer for special tokens and formatting
	return int(math.Ceil(float64(utf8.RuneCountInString(text)) / 3.5))
}

// PromptBuilder renders the request for one item and kind
type PromptBuilder interface {
	Build(kind core.OutputKind, item core.CandidateItem) (llm.Request, prompts.StyleVariant, error)
}

// ItemEstimate is the projected spend for one candidate
type ItemEstimate struct {
	Title        string  `json:"title"`
	Requests     int     `json:"requests"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost_usd"`
}

// RunEstimate is the projected spend for a whole run
type RunEstimate struct {
	Model        string         `json:"model"`
	KnownPricing bool           `json:"known_pricing"`
	Items        []ItemEstimate `json:"items"`
	Requests     int            `json:"requests"`
	InputTokens  int            `json:"input_tokens"`
	OutputTokens int            `json:"output_tokens"`
	TotalCost    float64        `json:"total_cost_usd"`
}

// EstimateRun renders every prompt the run would send and prices it. Costs
// stay zero for a model missing from PricingTable.
func EstimateRun(builder PromptBuilder, candidates []core.CandidateItem, kinds []core.OutputKind, model string) (*RunEstimate, error) {
	if len(kinds) == 0 {
		kinds = core.AllOutputKinds
	}
	pricing, known := PricingTable[model]
	estimate := &RunEstimate{Model: model, KnownPricing: known, Items: make([]ItemEstimate, 0, len(candidates))}

	for _, item := range candidates {
		ie := ItemEstimate{Title: item.Title}
		for _, kind := range kinds {
			req, _, err := builder.Build(kind, item)
			if err != nil {
				return nil, fmt.Errorf("estimate %s for %q: %w", kind, item.Title, err)
			}
			ie.Requests++
			ie.InputTokens += EstimateTokenCount(req.System + " " + req.Prompt)
			ie.OutputTokens += expectedOutputTokens[kind]
		}
		ie.Cost = price(pricing, ie.InputTokens, ie.OutputTokens)

		estimate.Items = append(estimate.Items, ie)
		estimate.Requests += ie.Requests
		estimate.InputTokens += ie.InputTokens
		estimate.OutputTokens += ie.OutputTokens
		estimate.TotalCost += ie.Cost
	}
	return estimate, nil
}

func price(p Pricing, in, out int) float64 {
	return float64(in)*p.InputCostPer1MTokens/1_000_000 + float64(out)*p.OutputCostPer1MTokens/1_000_000
}

// FormatEstimate formats the cost estimate for display
func (e *RunEstimate) FormatEstimate() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "💰 Estimated generation cost (%s)\n", e.Model)
	fmt.Fprintf(&sb, "   Requests: %d\n", e.Requests)
	fmt.Fprintf(&sb, "   Input tokens: ~%d\n", e.InputTokens)
	fmt.Fprintf(&sb, "   Output tokens: ~%d\n", e.OutputTokens)
	if e.KnownPricing {
		fmt.Fprintf(&sb, "   Total: ~$%.4f\n", e.TotalCost)
	} else {
		sb.WriteString("   Total: unknown (no pricing for this model)\n")
	}
	return sb.String()
}
