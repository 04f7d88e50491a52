package search

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"curator/internal/logger"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// GoogleProvider implements Provider using the Google Custom Search JSON API
type GoogleProvider struct {
	svc      *customsearch.Service
	searchID string
}

// NewGoogleProvider creates a Custom Search provider. Extra client options
// are passed to the service, which tests use to point it at a local server.
func NewGoogleProvider(ctx context.Context, apiKey, searchID string, opts ...option.ClientOption) (*GoogleProvider, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Custom Search service: %w", err)
	}
	return &GoogleProvider{svc: svc, searchID: searchID}, nil
}

// GetName returns the name of this provider
func (g *GoogleProvider) GetName() string {
	return "Google Custom Search"
}

// Search runs one query. Google returns at most 10 results per request.
func (g *GoogleProvider) Search(ctx context.Context, query string, config Config) ([]Result, error) {
	call := g.svc.Cse.List().Cx(g.searchID).Q(query).Num(int64(clampResults(config.MaxResults))).Context(ctx)
	if days := int(config.SinceTime.Hours() / 24); days > 0 {
		call = call.DateRestrict(fmt.Sprintf("d%d", days)).Sort("date")
	}

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("google CSE request failed: %w", err)
	}

	var results []Result
	for i, item := range resp.Items {
		results = append(results, Result{
			URL:         item.Link,
			Title:       item.Title,
			Snippet:     item.Snippet,
			Domain:      extractDomain(item.Link),
			PublishedAt: publishedFromPagemap(item.Pagemap),
			Source:      "Google",
			Rank:        i + 1,
		})
	}

	logger.Info("Google Custom Search completed", "query", query, "results_found", len(results))
	return results, nil
}

func clampResults(n int) int {
	if n <= 0 || n > 10 {
		return 10
	}
	return n
}

// publishedFromPagemap reads article:published_time from the metatags block
// Google attaches to many results.
func publishedFromPagemap(pagemap []byte) time.Time {
	if len(pagemap) == 0 {
		return time.Time{}
	}
	var pm struct {
		Metatags []map[string]string `json:"metatags"`
	}
	if err := json.Unmarshal(pagemap, &pm); err != nil {
		return time.Time{}
	}
	for _, tags := range pm.Metatags {
		if ts := tags["article:published_time"]; ts != "" {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}
