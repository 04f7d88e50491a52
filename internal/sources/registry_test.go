package sources

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"curator/internal/core"
	"curator/internal/topics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(ds []core.SourceDescriptor) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Name)
	}
	return out
}

func TestSelect(t *testing.T) {
	r, err := New([]core.SourceDescriptor{
		{Name: "A", Endpoint: "https://a.example/feed", Topics: []string{"SEO"}},
		{Name: "B", Endpoint: "https://b.example/feed", Topics: []string{"ai", "development"}},
		{Name: "C", Endpoint: "https://c.example/feed", Topics: []string{"cro", "seo"}},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, names(r.Select(topics.ParseFilter("all"))))
	assert.Equal(t, []string{"A", "C"}, names(r.Select(topics.ParseFilter("seo"))))
	assert.Equal(t, []string{"B", "C"}, names(r.Select(topics.ParseFilter("cro,ai"))))
	assert.Empty(t, r.Select(topics.ParseFilter("shopify")))
	assert.NotEmpty(t, r.Topics(), "missing topic table falls back to the defaults")
}

func TestNewRejectsInvalidDescriptors(t *testing.T) {
	tests := []struct {
		name string
		in   []core.SourceDescriptor
	}{
		{"empty list", nil},
		{"missing name", []core.SourceDescriptor{{Endpoint: "https://a.example", Topics: []string{"seo"}}}},
		{"bad url", []core.SourceDescriptor{{Name: "A", Endpoint: "not a url", Topics: []string{"seo"}}}},
		{"no topics", []core.SourceDescriptor{{Name: "A", Endpoint: "https://a.example"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.in, nil)
			var cfgErr *core.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "got %v", err)
		})
	}

	_, err := New([]core.SourceDescriptor{
		{Name: "A", Endpoint: "https://a.example", Topics: []string{"seo"}},
		{Name: "a", Endpoint: "https://b.example", Topics: []string{"seo"}},
	}, nil)
	assert.ErrorContains(t, err, "duplicate source name")
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sources:
  - name: Example Feed
    endpoint: https://example.com/rss
    topics: [seo, ai]
topics:
  - name: seo
    keywords: [ranking]
`), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Example Feed"}, names(r.All()))
	assert.Equal(t, []string{"seo"}, r.Classifier().Classify("new ranking factors"))
}

func TestDefault(t *testing.T) {
	r := Default()
	assert.Len(t, r.All(), 20)
	assert.Contains(t, names(r.Select(topics.ParseFilter("seo"))), "Moz Blog")

	r2, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, r.All(), r2.All())
}
