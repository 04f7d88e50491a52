package llm

import (
	"context"
	"fmt"
	"strings"

	"curator/internal/core"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini generates text with the Google Gemini API.
type Gemini struct {
	opts    Options
	gClient *genai.Client
}

// NewGemini creates a Gemini backend. The API key is required.
func NewGemini(ctx context.Context, opts Options) (*Gemini, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY environment variable or generation.gemini.api_key in config file")
	}
	if opts.Model == "" {
		opts.Model = DefaultGeminiModel
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{opts: opts, gClient: gClient}, nil
}

// Name returns the backend name.
func (g *Gemini) Name() string { return "gemini" }

// Generate sends the prompt as a single user turn.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", &core.GenerationError{Backend: g.Name(), Reason: "prompt cannot be empty"}
	}
	req = g.opts.defaults(req)

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: req.Prompt}},
		Role:  "user",
	}}

	config := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		config.Temperature = &temp
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := g.gClient.Models.GenerateContent(ctx, g.opts.Model, contents, config)
	if err != nil {
		return "", &core.GenerationError{Backend: g.Name(), Reason: "request failed", Err: err}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &core.GenerationError{Backend: g.Name(), Reason: "empty response from model"}
	}
	return text, nil
}
