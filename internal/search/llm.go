package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"curator/internal/llm"
	"curator/internal/logger"
)

// LLMProvider asks a text generator with web access for recent articles and
// reads them from a JSON array in the reply.
type LLMProvider struct {
	gen llm.TextGenerator
	now func() time.Time
}

// NewLLMProvider creates a provider backed by gen.
func NewLLMProvider(gen llm.TextGenerator) *LLMProvider {
	return &LLMProvider{gen: gen, now: time.Now}
}

// GetName returns the name of this provider
func (p *LLMProvider) GetName() string {
	return "llm:" + p.gen.Name()
}

type llmArticle struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Summary     string `json:"summary"`
	Source      string `json:"source"`
	PublishedAt string `json:"publishedAt"`
}

// Search asks for up to config.MaxResults articles about query.
func (p *LLMProvider) Search(ctx context.Context, query string, config Config) ([]Result, error) {
	limit := config.MaxResults
	if limit <= 0 {
		limit = 10
	}
	days := int(config.SinceTime.Hours() / 24)
	if days <= 0 {
		days = 7
	}

	prompt := fmt.Sprintf(`Search the web for the %d most relevant articles published in the last %d days about: %s.
Today is %s.
Return ONLY a JSON array, no other text. Each element:
{"title": "...", "url": "https://...", "summary": "two sentences", "source": "publication name", "publishedAt": "YYYY-MM-DD"}`,
		limit, days, query, p.now().Format("2006-01-02"))

	reply, err := p.gen.Generate(ctx, llm.Request{Prompt: prompt, Temperature: 0.3, MaxTokens: 4096, JSON: true})
	if err != nil {
		return nil, err
	}

	articles, err := parseArticleArray(reply)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, a := range articles {
		if a.Title == "" || !strings.HasPrefix(a.URL, "http") {
			continue
		}
		domain := extractDomain(a.URL)
		source := a.Source
		if source == "" {
			source = domain
		}
		results = append(results, Result{
			URL:         a.URL,
			Title:       a.Title,
			Snippet:     a.Summary,
			Domain:      domain,
			PublishedAt: parsePublished(a.PublishedAt),
			Source:      source,
			Rank:        len(results) + 1,
		})
		if len(results) == limit {
			break
		}
	}

	logger.Info("LLM search completed", "query", query, "results_found", len(results))
	return results, nil
}

// parseArticleArray decodes the first JSON array in reply.
func parseArticleArray(reply string) ([]llmArticle, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in search reply")
	}
	var articles []llmArticle
	if err := json.Unmarshal([]byte(reply[start:end+1]), &articles); err != nil {
		return nil, fmt.Errorf("decode search reply: %w", err)
	}
	return articles, nil
}

func parsePublished(s string) time.Time {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
