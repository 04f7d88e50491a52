// Package feeds fetches and parses RSS and Atom feeds.
package feeds

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"curator/internal/core"
	"curator/internal/httputil"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultUserAgent is sent when none is configured.
const DefaultUserAgent = "Curator Feed Reader/1.0"

const maxFeedBytes = 10 << 20

// RSS represents an RSS 2.0 feed
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Channel Channel  `xml:"channel"`
}

// RDF represents an RSS 1.0 feed, whose items sit next to the channel
type RDF struct {
	XMLName xml.Name  `xml:"RDF"`
	Channel Channel   `xml:"channel"`
	Items   []RSSItem `xml:"item"`
}

// Atom represents an Atom feed
type Atom struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Link    []AtomLink  `xml:"link"`
	Entries []AtomEntry `xml:"entry"`
}

// Channel represents an RSS channel
type Channel struct {
	Title       string    `xml:"title"`
	Description string    `xml:"description"`
	Link        string    `xml:"link"`
	Items       []RSSItem `xml:"item"`
}

// RSSItem represents an RSS item
type RSSItem struct {
	Title          string `xml:"title"`
	Link           string `xml:"link"`
	Description    string `xml:"description"`
	ContentEncoded string `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
	PubDate        string `xml:"pubDate"`
	DCDate         string `xml:"http://purl.org/dc/elements/1.1/ date"`
	GUID           string `xml:"guid"`
}

// AtomLink represents an Atom link element
type AtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

// AtomEntry represents an Atom entry
type AtomEntry struct {
	Title     string     `xml:"title"`
	Link      []AtomLink `xml:"link"`
	Summary   AtomText   `xml:"summary"`
	Content   AtomText   `xml:"content"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
	ID        string     `xml:"id"`
}

// AtomText is an Atom text construct. XHTML content arrives as child
// elements, so it is read as inner XML; other types are character data.
type AtomText struct {
	Type  string `xml:"type,attr"`
	Text  string `xml:",chardata"`
	Inner string `xml:",innerxml"`
}

// Value returns the markup or text of the construct.
func (t AtomText) Value() string {
	if t.Type == "xhtml" {
		return t.Inner
	}
	return t.Text
}

// Item is one feed entry with HTML reduced to text.
type Item struct {
	ID        string
	Title     string
	Link      string
	Summary   string
	Content   string
	Published time.Time // Zero when the feed carries no usable date
}

// Client fetches feeds over HTTP.
type Client struct {
	client    *http.Client
	userAgent string
	maxItems  int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(fc *Client) { fc.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(fc *Client) {
		if ua != "" {
			fc.userAgent = ua
		}
	}
}

// WithMaxItems caps the entries kept per feed; 0 keeps all.
func WithMaxItems(n int) Option {
	return func(fc *Client) { fc.maxItems = n }
}

// NewClient creates a feed client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch downloads and parses the feed of one source.
func (c *Client) Fetch(ctx context.Context, src core.SourceDescriptor) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := httputil.DoWithRetry(ctx, c.client, req, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}

	items, err := Parse(data, src.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	if c.maxItems > 0 && len(items) > c.maxItems {
		items = items[:c.maxItems]
	}
	return items, nil
}

// Parse decodes RSS 2.0, RSS 1.0 or Atom from data. feedURL seeds item IDs.
func Parse(data []byte, feedURL string) ([]Item, error) {
	root, err := rootElement(data)
	if err != nil {
		return nil, err
	}

	switch root {
	case "rss":
		var rss RSS
		if err := unmarshal(data, &rss); err != nil {
			return nil, err
		}
		return parseRSSItems(rss.Channel.Items, feedURL), nil
	case "RDF":
		var rdf RDF
		if err := unmarshal(data, &rdf); err != nil {
			return nil, err
		}
		items := rdf.Items
		if len(items) == 0 {
			items = rdf.Channel.Items
		}
		return parseRSSItems(items, feedURL), nil
	case "feed":
		var atom Atom
		if err := unmarshal(data, &atom); err != nil {
			return nil, err
		}
		return parseAtomEntries(atom.Entries, feedURL), nil
	default:
		return nil, fmt.Errorf("unable to parse as RSS or Atom feed: root element %q", root)
	}
}

func newDecoder(data []byte) *xml.Decoder {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = false
	d.Entity = xml.HTMLEntity
	d.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(label)
		if err != nil {
			return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
		}
		return enc.NewDecoder().Reader(input), nil
	}
	return d
}

func rootElement(data []byte) (string, error) {
	d := newDecoder(data)
	for {
		tok, err := d.Token()
		if err != nil {
			return "", fmt.Errorf("no XML root element: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}

func unmarshal(data []byte, v any) error {
	if err := newDecoder(data).Decode(v); err != nil {
		return fmt.Errorf("decode feed XML: %w", err)
	}
	return nil
}

func parseRSSItems(in []RSSItem, feedURL string) []Item {
	feedID := generateFeedID(feedURL)
	items := make([]Item, 0, len(in))
	for _, it := range in {
		link := strings.TrimSpace(it.Link)
		if link == "" && strings.HasPrefix(it.GUID, "http") {
			link = strings.TrimSpace(it.GUID)
		}
		date := it.PubDate
		if date == "" {
			date = it.DCDate
		}
		items = append(items, Item{
			ID:        generateItemID(feedID, link+it.GUID),
			Title:     htmlToText(it.Title),
			Link:      link,
			Summary:   htmlToText(it.Description),
			Content:   htmlToText(it.ContentEncoded),
			Published: parseDate(date),
		})
	}
	return items
}

func parseAtomEntries(in []AtomEntry, feedURL string) []Item {
	feedID := generateFeedID(feedURL)
	items := make([]Item, 0, len(in))
	for _, entry := range in {
		var link string
		for _, l := range entry.Link {
			if l.Rel == "" || l.Rel == "alternate" {
				link = l.Href
				break
			}
		}
		date := entry.Published
		if date == "" {
			date = entry.Updated
		}
		items = append(items, Item{
			ID:        generateItemID(feedID, link+entry.ID),
			Title:     htmlToText(entry.Title),
			Link:      link,
			Summary:   htmlToText(entry.Summary.Value()),
			Content:   htmlToText(entry.Content.Value()),
			Published: parseDate(date),
		})
	}
	return items
}

// htmlToText strips markup and collapses whitespace.
func htmlToText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			doc.Find("script, style").Remove()
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// generateFeedID creates a deterministic ID for a feed based on its URL
func generateFeedID(feedURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(feedURL)).String()
}

// generateItemID creates a deterministic ID for a feed item
func generateItemID(feedID, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(feedID+key)).String()
}

var dateFormats = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04 -0700",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDate tries the common RSS and Atom formats. Unparseable input gives
// the zero time.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
