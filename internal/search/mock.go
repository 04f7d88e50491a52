package search

import (
	"context"
	"time"
)

// MockProvider implements Provider for tests and offline runs
type MockProvider struct {
	name    string
	results []Result
	err     error
	last    Config
}

// NewMockProvider creates a mock provider with three dated results.
func NewMockProvider() *MockProvider {
	now := time.Now().UTC()
	return &MockProvider{
		name: "Mock",
		results: []Result{
			{
				URL:         "https://example.com/ai-search-shopping",
				Title:       "AI search is changing how shoppers find products",
				Snippet:     "Generative answers now cite product pages directly.",
				Domain:      "example.com",
				PublishedAt: now.Add(-6 * time.Hour),
				Source:      "Mock",
				Rank:        1,
			},
			{
				URL:         "https://test.org/checkout-conversion",
				Title:       "Checkout conversion benchmarks for 2025",
				Snippet:     "One-page checkouts convert better on mobile.",
				Domain:      "test.org",
				PublishedAt: now.Add(-24 * time.Hour),
				Source:      "Mock",
				Rank:        2,
			},
			{
				URL:         "https://demo.net/lcp-shopify",
				Title:       "Cutting LCP on Shopify themes",
				Snippet:     "Hero images are the usual largest contentful paint.",
				Domain:      "demo.net",
				PublishedAt: now.Add(-48 * time.Hour),
				Source:      "Mock",
				Rank:        3,
			},
		},
	}
}

// GetName returns the name of this provider
func (m *MockProvider) GetName() string {
	return m.name
}

// Search returns the configured results, capped to config.MaxResults.
func (m *MockProvider) Search(ctx context.Context, _ string, config Config) ([]Result, error) {
	m.last = config
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	n := config.MaxResults
	if n <= 0 || n > len(m.results) {
		n = len(m.results)
	}
	out := make([]Result, n)
	copy(out, m.results[:n])
	return out, nil
}

// LastConfig returns the config of the most recent Search call
func (m *MockProvider) LastConfig() Config {
	return m.last
}

// SetResults replaces the canned results
func (m *MockProvider) SetResults(results []Result) {
	m.results = results
}

// SetError makes Search fail with err
func (m *MockProvider) SetError(err error) {
	m.err = err
}

// SetName allows customization of provider name for testing
func (m *MockProvider) SetName(name string) {
	m.name = name
}
