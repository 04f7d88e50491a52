// Package fetch downloads a single web page and extracts its readable text.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"curator/internal/core"
	"curator/internal/httputil"
	"curator/internal/logger"

	"github.com/PuerkitoBio/goquery"
)

const maxPageBytes = 5 << 20

// Page is the readable content of one URL.
type Page struct {
	URL         string
	Host        string
	Title       string
	Description string
	Text        string
	Published   time.Time
}

// Candidate turns the page into a CandidateItem whose source is the host name.
func (p Page) Candidate() core.CandidateItem {
	published := p.Published
	if published.IsZero() {
		published = time.Now().UTC()
	}
	summary := p.Description
	if summary == "" {
		summary = truncateWords(p.Text, 60)
	}
	return core.CandidateItem{
		Title:       p.Title,
		Link:        p.URL,
		PublishedAt: published,
		RawBody:     p.Text,
		Summary:     summary,
		SourceName:  p.Host,
	}
}

// Fetcher retrieves pages over HTTP.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher creates a Fetcher. A zero timeout means 30s.
func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; CuratorBot/1.0)"
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}, userAgent: userAgent}
}

// Fetch downloads rawURL and extracts title, description and main text.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Page{}, fmt.Errorf("invalid URL %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := httputil.DoWithRetry(ctx, f.client, req, 2)
	if err != nil {
		return Page{}, fmt.Errorf("failed to fetch URL %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("failed to fetch URL %s: status code %d", rawURL, resp.StatusCode)
	}

	page, err := Extract(io.LimitReader(resp.Body, maxPageBytes), u)
	if err != nil {
		return Page{}, err
	}
	if page.Text == "" {
		logger.Warn("No text extracted from page", "url", rawURL)
	}
	return page, nil
}

var blankLines = regexp.MustCompile(`\n{3,}`)

// Extract parses HTML read from r. u is the page address.
func Extract(r io.Reader, u *url.URL) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Page{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := Page{
		URL:         u.String(),
		Host:        strings.TrimPrefix(u.Hostname(), "www."),
		Title:       extractTitle(doc),
		Description: metaContent(doc, "meta[name='description']", "meta[property='og:description']"),
	}
	if ts := metaContent(doc, "meta[property='article:published_time']"); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			page.Published = t.UTC()
		}
	}

	doc.Find("script, style, nav, footer, header, aside, form, iframe, noscript, .sidebar, #sidebar, .ad, .advertisement, .cookie-banner").Remove()

	var root *goquery.Selection
	for _, selector := range []string{"article", "main", "[role='main']", ".entry-content", ".post-content", ".article-body", "#content", ".content"} {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			root = sel
			break
		}
	}
	if root == nil {
		root = doc.Find("body")
	}

	var b strings.Builder
	root.Find("p, h1, h2, h3, h4, li, blockquote, pre").Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" {
			return
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	})
	page.Text = strings.TrimSpace(blankLines.ReplaceAllString(b.String(), "\n\n"))

	if page.Title == "" {
		page.Title = truncateWords(page.Text, 10)
	}
	return page, nil
}

func extractTitle(doc *goquery.Document) string {
	if og := metaContent(doc, "meta[property='og:title']"); og != "" {
		return og
	}
	if title := strings.TrimSpace(doc.Find("head title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + "..."
}
