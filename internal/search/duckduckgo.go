package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"curator/internal/logger"

	"github.com/PuerkitoBio/goquery"
)

// DuckDuckGoProvider implements Provider by scraping the DuckDuckGo HTML endpoint.
// It needs no API key.
type DuckDuckGoProvider struct {
	client    *http.Client
	baseURL   string
	userAgent string
	rateLimit time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// NewDuckDuckGoProvider creates a new DuckDuckGo search provider
func NewDuckDuckGoProvider() *DuckDuckGoProvider {
	return &DuckDuckGoProvider{
		client:    &http.Client{Timeout: 30 * time.Second},
		baseURL:   "https://html.duckduckgo.com/html/",
		userAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		rateLimit: 2 * time.Second,
	}
}

// GetName returns the name of this provider
func (d *DuckDuckGoProvider) GetName() string {
	return "DuckDuckGo"
}

// Search performs a search using DuckDuckGo and returns results
func (d *DuckDuckGoProvider) Search(ctx context.Context, query string, config Config) ([]Result, error) {
	if err := d.wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.buildSearchURL(query, config), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request failed with status: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse search page: %w", err)
	}
	if doc.Find("form#challenge-form, .anomaly-modal").Length() > 0 {
		return nil, ErrBlocked
	}

	results := parseDuckDuckGoResults(doc, config.MaxResults)
	logger.Info("DuckDuckGo search completed", "query", query, "results_found", len(results))
	return results, nil
}

func (d *DuckDuckGoProvider) wait(ctx context.Context) error {
	d.mu.Lock()
	delay := d.rateLimit - time.Since(d.lastCall)
	d.lastCall = time.Now().Add(max(delay, 0))
	d.mu.Unlock()

	if delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// buildSearchURL constructs the DuckDuckGo search URL with parameters
func (d *DuckDuckGoProvider) buildSearchURL(query string, config Config) string {
	params := url.Values{}
	if config.SinceTime > 0 {
		days := int(config.SinceTime.Hours() / 24)
		switch {
		case days <= 1:
			params.Set("df", "d")
		case days <= 7:
			params.Set("df", "w")
		case days <= 30:
			params.Set("df", "m")
		default:
			params.Set("df", "y")
		}
	}
	params.Set("q", query)
	params.Set("kl", "us-en")
	return d.baseURL + "?" + params.Encode()
}

func parseDuckDuckGoResults(doc *goquery.Document, maxResults int) []Result {
	var results []Result
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if maxResults > 0 && len(results) >= maxResults {
			return false
		}
		a := s.Find("a.result__a").First()
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		finalURL := extractFinalURL(href)
		if finalURL == "" {
			return true
		}
		results = append(results, Result{
			URL:     finalURL,
			Title:   strings.Join(strings.Fields(a.Text()), " "),
			Snippet: strings.Join(strings.Fields(s.Find(".result__snippet").First().Text()), " "),
			Domain:  extractDomain(finalURL),
			Source:  "DuckDuckGo",
			Rank:    len(results) + 1,
		})
		return true
	})
	return results
}

// extractFinalURL extracts the actual URL from DuckDuckGo's redirect URL
func extractFinalURL(redirectURL string) string {
	// Redirects look like //duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com&rut=...
	if strings.Contains(redirectURL, "/l/?") {
		parsed, err := url.Parse(redirectURL)
		if err != nil {
			return ""
		}
		return parsed.Query().Get("uddg")
	}
	if strings.HasPrefix(redirectURL, "http") {
		return redirectURL
	}
	return ""
}
