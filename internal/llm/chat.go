package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"curator/internal/core"
	"curator/internal/httputil"
)

// chatPresets are the OpenAI-compatible endpoints this package knows about.
var chatPresets = map[string]Options{
	"openai":  {BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini"},
	"grok":    {BaseURL: "https://api.x.ai/v1", Model: "grok-3-latest"},
	"minimax": {BaseURL: "https://api.minimax.io/v1", Model: "MiniMax-M2"},
}

// Chat talks to an OpenAI-compatible chat completions endpoint.
type Chat struct {
	name       string
	opts       Options
	httpClient *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float32           `json:"temperature,omitempty"`
	MaxTokens      int32             `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewChat creates a chat backend. name selects endpoint and model presets
// that opts may override.
func NewChat(name string, opts Options) (*Chat, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", name)
	}
	preset := chatPresets[name]
	if opts.BaseURL == "" {
		opts.BaseURL = preset.BaseURL
	}
	if opts.Model == "" {
		opts.Model = preset.Model
	}
	if opts.BaseURL == "" || opts.Model == "" {
		return nil, fmt.Errorf("%s backend needs base_url and model", name)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}

	return &Chat{
		name:       name,
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}, nil
}

// Name returns the backend name.
func (c *Chat) Name() string { return c.name }

// Generate posts one chat completion and returns the first choice.
func (c *Chat) Generate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", &core.GenerationError{Backend: c.name, Reason: "prompt cannot be empty"}
	}
	req = c.opts.defaults(req)

	payload := chatRequest{
		Model:       c.opts.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.System != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: req.System})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: req.Prompt})
	if req.JSON && c.name == "openai" {
		payload.ResponseFormat = map[string]string{"type": "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", &core.GenerationError{Backend: c.name, Reason: "encode request", Err: err}
	}

	endpoint := strings.TrimSuffix(c.opts.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &core.GenerationError{Backend: c.name, Reason: "build request", Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, httpReq, c.opts.MaxRetries)
	if err != nil {
		return "", &core.GenerationError{Backend: c.name, Reason: "request failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &core.GenerationError{
			Backend: c.name,
			Reason:  fmt.Sprintf("status %s: %s", resp.Status, strings.TrimSpace(string(snippet))),
		}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", &core.GenerationError{Backend: c.name, Reason: "decode response", Err: err}
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", &core.GenerationError{Backend: c.name, Reason: decoded.Error.Message}
	}
	if len(decoded.Choices) == 0 {
		return "", &core.GenerationError{Backend: c.name, Reason: "no choices in response"}
	}

	text := strings.TrimSpace(stripThinking(decoded.Choices[0].Message.Content))
	if text == "" {
		return "", &core.GenerationError{Backend: c.name, Reason: "empty response from model"}
	}
	return text, nil
}

// stripThinking removes <think>...</think> blocks some reasoning models prepend.
func stripThinking(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start < 0 {
			return s
		}
		end := strings.Index(s[start:], "</think>")
		if end < 0 {
			return s[:start]
		}
		s = s[:start] + s[start+end+len("</think>"):]
	}
}
