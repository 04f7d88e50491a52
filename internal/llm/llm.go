// Package llm wraps the generative text backends behind one interface.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"curator/internal/config"
)

// Request is one generation call.
type Request struct {
	Prompt      string
	System      string  // Optional system instruction
	Temperature float32 // 0 uses the backend default
	MaxTokens   int32   // 0 uses the backend default
	JSON        bool    // Ask the backend for a JSON response when it supports it
}

// TextGenerator is implemented by every backend. Implementations return a
// *core.GenerationError for transport failures, error statuses and empty output.
type TextGenerator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// Options are shared backend settings.
type Options struct {
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	Temperature float32
	MaxTokens   int32
}

// NewFromConfig builds the backend named by generation.backend, wrapped in a
// circuit breaker when enabled.
func NewFromConfig(ctx context.Context, cfg *config.Config) (TextGenerator, error) {
	settings := cfg.BackendSettings()
	opts := Options{
		APIKey:      settings.APIKey,
		Model:       settings.Model,
		BaseURL:     settings.BaseURL,
		Timeout:     config.Duration(cfg.Generation.Timeout, 90*time.Second),
		MaxRetries:  cfg.Generation.MaxRetries,
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
	}

	gen, err := New(ctx, cfg.Generation.Backend, opts)
	if err != nil {
		return nil, err
	}

	if cfg.Generation.Breaker.Enabled {
		gen = NewBreaker(gen, BreakerSettings{
			ConsecutiveFailures: cfg.Generation.Breaker.ConsecutiveFailures,
			OpenTimeout:         config.Duration(cfg.Generation.Breaker.OpenTimeout, time.Minute),
		})
	}
	return gen, nil
}

// New builds a backend by name.
func New(ctx context.Context, backend string, opts Options) (TextGenerator, error) {
	switch strings.ToLower(backend) {
	case "gemini":
		return NewGemini(ctx, opts)
	case "openai", "grok", "minimax":
		return NewChat(strings.ToLower(backend), opts)
	default:
		return nil, fmt.Errorf("unsupported generation backend: %s", backend)
	}
}

// defaults fills zero request fields from the backend options.
func (o Options) defaults(req Request) Request {
	if req.Temperature == 0 {
		req.Temperature = o.Temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = o.MaxTokens
	}
	return req
}
