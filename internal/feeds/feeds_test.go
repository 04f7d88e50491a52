package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"curator/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
  <title>Speed Blog</title>
  <item>
    <title>INP is here</title>
    <link>https://example.com/inp</link>
    <description><![CDATA[<p>Interaction to <b>Next</b> Paint&nbsp;ships.</p>]]></description>
    <content:encoded><![CDATA[<div><script>x()</script><p>Full body text.</p></div>]]></content:encoded>
    <pubDate>Tue, 04 Mar 2025 10:00:00 +0000</pubDate>
    <guid>inp-1</guid>
  </item>
  <item>
    <title>Undated post</title>
    <guid>https://example.com/undated</guid>
  </item>
</channel>
</rss>`

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>AI Notes</title>
  <entry>
    <title>Agents in checkout</title>
    <link rel="self" href="https://example.com/self"/>
    <link rel="alternate" href="https://example.com/agents"/>
    <summary>Short summary</summary>
    <content type="html">&lt;p&gt;Long content&lt;/p&gt;</content>
    <updated>2025-03-02T08:30:00Z</updated>
    <id>tag:example.com,2025:agents</id>
  </entry>
</feed>`

func TestParse_RSS(t *testing.T) {
	items, err := Parse([]byte(rssFeed), "https://example.com/feed")
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "INP is here", first.Title)
	assert.Equal(t, "https://example.com/inp", first.Link)
	assert.Equal(t, "Interaction to Next Paint ships.", first.Summary)
	assert.Equal(t, "Full body text.", first.Content)
	assert.Equal(t, time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC), first.Published)
	assert.NotEmpty(t, first.ID)

	assert.Equal(t, "https://example.com/undated", items[1].Link)
	assert.True(t, items[1].Published.IsZero())
}

func TestParse_Atom(t *testing.T) {
	items, err := Parse([]byte(atomFeed), "https://example.com/atom")
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "https://example.com/agents", items[0].Link)
	assert.Equal(t, "Short summary", items[0].Summary)
	assert.Equal(t, "Long content", items[0].Content)
	assert.Equal(t, time.Date(2025, 3, 2, 8, 30, 0, 0, time.UTC), items[0].Published)
}

const atomXHTMLFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Perf Notes</title>
  <entry>
    <title>Hydration costs</title>
    <link href="https://example.com/hydration"/>
    <summary type="xhtml"><div xmlns="http://www.w3.org/1999/xhtml">Less <em>JavaScript</em> wins</div></summary>
    <content type="xhtml">
      <div xmlns="http://www.w3.org/1999/xhtml">
        <p>Islands ship <strong>less</strong> code.</p>
        <ul>
          <li>Measure INP</li>
          <li>Defer widgets</li>
        </ul>
      </div>
    </content>
    <published>2025-03-03T10:00:00Z</published>
    <id>tag:example.com,2025:hydration</id>
  </entry>
</feed>`

func TestParse_AtomXHTMLContent(t *testing.T) {
	items, err := Parse([]byte(atomXHTMLFeed), "https://example.com/atom")
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "https://example.com/hydration", items[0].Link)
	assert.Equal(t, "Less JavaScript wins", items[0].Summary)
	assert.Equal(t, "Islands ship less code. Measure INP Defer widgets", items[0].Content)
}

func TestParse_IDsAreDeterministic(t *testing.T) {
	a, err := Parse([]byte(rssFeed), "https://example.com/feed")
	require.NoError(t, err)
	b, err := Parse([]byte(rssFeed), "https://example.com/feed")
	require.NoError(t, err)
	assert.Equal(t, a[0].ID, b[0].ID)
	assert.NotEqual(t, a[0].ID, a[1].ID)
}

func TestParse_Rejects(t *testing.T) {
	_, err := Parse([]byte(`<html><body>nope</body></html>`), "u")
	assert.Error(t, err)

	_, err = Parse([]byte(`not xml at all`), "u")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-03-04T10:00:00+02:00", time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)},
		{"Tue, 4 Mar 2025 10:00:00 +0000", time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)},
		{"2025-03-04", time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)},
		{"yesterday", time.Time{}},
		{"", time.Time{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseDate(tt.in), tt.in)
	}
}

func TestClient_Fetch(t *testing.T) {
	var gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssFeed))
	}))
	defer ts.Close()

	c := NewClient(WithUserAgent("curator-test"), WithMaxItems(1))
	items, err := c.Fetch(context.Background(), core.SourceDescriptor{Name: "speed", Endpoint: ts.URL})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "curator-test", gotUA)
}

func TestClient_FetchErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := NewClient().Fetch(context.Background(), core.SourceDescriptor{Name: "gone", Endpoint: ts.URL})
	assert.ErrorContains(t, err, "404")
}
