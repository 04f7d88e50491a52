// Package topics maps free text to topic tags by keyword matching.
package topics

import (
	"strings"

	"curator/internal/core"
)

// Topic is one tag with its ordered keyword list.
type Topic struct {
	Name     string   `yaml:"name" json:"name"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Filter is a requested topic selection. An empty filter means "all".
type Filter []string

// All reports whether the filter selects every topic.
func (f Filter) All() bool {
	if len(f) == 0 {
		return true
	}
	for _, t := range f {
		if t == "all" {
			return true
		}
	}
	return false
}

// String renders the filter the way it is accepted on the command line.
func (f Filter) String() string {
	if f.All() {
		return "all"
	}
	return strings.Join(f, ",")
}

// ParseFilter turns "seo, CRO" into a normalized filter. Empty input means all.
func ParseFilter(s string) Filter {
	var f Filter
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		f = append(f, part)
	}
	return f
}

// Classifier tags text with topics in configured order.
type Classifier struct {
	topics []Topic
	index  map[string][]string
}

// NewClassifier builds a classifier. Keywords are lowercased once here.
func NewClassifier(topics []Topic) *Classifier {
	c := &Classifier{index: make(map[string][]string, len(topics))}
	for _, t := range topics {
		name := strings.ToLower(strings.TrimSpace(t.Name))
		if name == "" {
			continue
		}
		kws := make([]string, 0, len(t.Keywords))
		for _, kw := range t.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		if _, dup := c.index[name]; dup {
			c.index[name] = append(c.index[name], kws...)
			continue
		}
		c.topics = append(c.topics, Topic{Name: name, Keywords: kws})
		c.index[name] = kws
	}
	// Merged duplicates share the index slice.
	for i := range c.topics {
		c.topics[i].Keywords = c.index[c.topics[i].Name]
	}
	return c
}

// Topics returns the configured topics in order.
func (c *Classifier) Topics() []Topic {
	out := make([]Topic, len(c.topics))
	copy(out, c.topics)
	return out
}

// Classify returns every topic with at least one keyword in text, in configured
// order, or ["general"] when none match.
func (c *Classifier) Classify(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, t := range c.topics {
		for _, kw := range t.Keywords {
			if strings.Contains(lower, kw) {
				out = append(out, t.Name)
				break
			}
		}
	}
	if len(out) == 0 {
		return []string{core.TopicGeneral}
	}
	return out
}

// Matches reports whether text mentions any requested topic. A topic with no
// configured keywords matches on its own name.
func (c *Classifier) Matches(text string, filter Filter) bool {
	if filter.All() {
		return true
	}
	lower := strings.ToLower(text)
	for _, name := range filter {
		kws, ok := c.index[name]
		if !ok || len(kws) == 0 {
			kws = []string{name}
		}
		for _, kw := range kws {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// DefaultTopics is the built-in keyword table.
func DefaultTopics() []Topic {
	return []Topic{
		{Name: "seo", Keywords: []string{"seo", "search engine", "ranking", "google", "indexing", "keywords", "backlinks", "serp", "organic traffic"}},
		{Name: "cro", Keywords: []string{"conversion", "cro", "a/b test", "optimization", "checkout", "cart abandonment", "user experience", "bounce rate", "funnel"}},
		{Name: "speed", Keywords: []string{"speed", "performance", "pagespeed", "core web vitals", "lcp", "fid", "cls", "lighthouse", "load time", "ttfb", "tti"}},
		{Name: "ai", Keywords: []string{"ai", "artificial intelligence", "machine learning", "llm", "gpt", "claude", "automation", "chatbot", "langchain", "rag", "embeddings", "vector"}},
		{Name: "shopify", Keywords: []string{"shopify", "liquid", "theme", "storefront", "checkout", "ecommerce", "e-commerce", "store", "merchant", "headless"}},
		{Name: "development", Keywords: []string{"javascript", "typescript", "react", "next.js", "api", "code", "developer", "frontend", "backend", "node"}},
	}
}
