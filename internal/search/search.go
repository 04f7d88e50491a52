// Package search finds recent articles through web search providers.
package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"curator/internal/config"
	"curator/internal/llm"
)

// Provider defines the unified interface for search providers
type Provider interface {
	// Search performs a search with configuration
	Search(ctx context.Context, query string, config Config) ([]Result, error)

	// GetName returns the name of the search provider
	GetName() string
}

// Config holds configuration for search requests
type Config struct {
	MaxResults int           // Maximum number of results to return
	SinceTime  time.Duration // Only return results newer than this duration
}

// Result represents a unified search result
type Result struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Snippet     string    `json:"snippet"`
	Domain      string    `json:"domain"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	Source      string    `json:"source"` // Provider-specific source identifier
	Rank        int       `json:"rank"`   // Position in search results
}

// ProviderType represents the type of search provider
type ProviderType string

const (
	ProviderTypeLLM        ProviderType = "llm"
	ProviderTypeGoogle     ProviderType = "google"
	ProviderTypeDuckDuckGo ProviderType = "duckduckgo"
	ProviderTypeMock       ProviderType = "mock"
)

// NewFromConfig creates the provider named by search.provider. gen is only
// used by the llm provider.
func NewFromConfig(ctx context.Context, cfg *config.Config, gen llm.TextGenerator) (Provider, error) {
	switch ProviderType(cfg.Search.Provider) {
	case ProviderTypeLLM:
		if gen == nil {
			return nil, fmt.Errorf("llm search provider needs a text generator")
		}
		return NewLLMProvider(gen), nil
	case ProviderTypeGoogle:
		if cfg.Search.Google.APIKey == "" {
			return nil, ErrMissingAPIKey
		}
		if cfg.Search.Google.SearchID == "" {
			return nil, ErrMissingSearchID
		}
		return NewGoogleProvider(ctx, cfg.Search.Google.APIKey, cfg.Search.Google.SearchID)
	case ProviderTypeDuckDuckGo:
		return NewDuckDuckGoProvider(), nil
	case ProviderTypeMock:
		return NewMockProvider(), nil
	default:
		return nil, ErrUnsupportedProvider
	}
}

// extractDomain extracts the domain name from a URL
func extractDomain(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Hostname(), "www.")
}
