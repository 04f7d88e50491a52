// Package artifact encodes content artifacts as front-matter plus body text files.
package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"curator/internal/core"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

var (
	// ErrNoFrontMatter is returned when the text does not start with a header block.
	ErrNoFrontMatter = errors.New("missing front-matter header")

	// ErrMalformedFrontMatter is returned when the header block cannot be parsed.
	ErrMalformedFrontMatter = errors.New("malformed front-matter header")
)

// ContentArtifact is one generated piece of content with its lifecycle metadata.
type ContentArtifact struct {
	Slug        string              `yaml:"-" json:"slug"`
	Title       string              `yaml:"title" json:"title"`
	Date        string              `yaml:"date" json:"date"`
	Description string              `yaml:"description" json:"description"`
	Category    string              `yaml:"category" json:"category"`
	Tags        []string            `yaml:"tags" json:"tags"`
	ReadTime    string              `yaml:"readTime" json:"read_time"`
	Status      core.LifecycleState `yaml:"status,omitempty" json:"status"`
	Kind        core.OutputKind     `yaml:"kind,omitempty" json:"kind,omitempty"`
	Style       string              `yaml:"style,omitempty" json:"style,omitempty"`
	SourceName  string              `yaml:"source,omitempty" json:"source,omitempty"`
	SourceURL   string              `yaml:"sourceUrl,omitempty" json:"source_url,omitempty"`
	Body        string              `yaml:"-" json:"body"`
}

// Encode renders the artifact as a header block followed by the body.
func Encode(a ContentArtifact) (string, error) {
	if a.Tags == nil {
		a.Tags = []string{}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(a); err != nil {
		return "", fmt.Errorf("failed to encode front-matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode front-matter: %w", err)
	}

	var b strings.Builder
	b.WriteString(delimiter + "\n")
	b.Write(buf.Bytes())
	b.WriteString(delimiter + "\n\n")
	b.WriteString(strings.TrimLeft(a.Body, "\n"))
	if !strings.HasSuffix(a.Body, "\n") {
		b.WriteString("\n")
	}
	return b.String(), nil
}

// Split separates the raw header from the body. ok is false when the text has
// no complete header block, in which case body is the whole text.
func Split(text string) (header, body string, ok bool) {
	trimmed := strings.TrimLeft(strings.TrimPrefix(text, "\ufeff"), " \t\r\n")
	if !strings.HasPrefix(trimmed, delimiter) {
		return "", text, false
	}
	rest := trimmed[len(delimiter):]
	nl := strings.IndexByte(rest, '\n')
	if nl < 0 || strings.TrimSpace(rest[:nl]) != "" {
		return "", text, false
	}
	rest = rest[nl+1:]

	// Closing delimiter must sit on its own line.
	offset := 0
	for {
		idx := strings.Index(rest[offset:], delimiter)
		if idx < 0 {
			return "", text, false
		}
		pos := offset + idx
		lineStart := pos == 0 || rest[pos-1] == '\n'
		end := pos + len(delimiter)
		lineEnd := end == len(rest) || rest[end] == '\n' || rest[end] == '\r'
		if lineStart && lineEnd {
			header = rest[:pos]
			body = rest[end:]
			body = strings.TrimPrefix(body, "\r")
			body = strings.TrimPrefix(body, "\n")
			return header, strings.TrimLeft(body, "\r\n"), true
		}
		offset = end
	}
}

// Decode parses text produced by Encode or written by hand. On ErrNoFrontMatter
// the returned artifact carries the whole text as its body.
func Decode(text string) (ContentArtifact, error) {
	header, body, ok := Split(text)
	if !ok {
		return ContentArtifact{Body: text}, ErrNoFrontMatter
	}

	var a ContentArtifact
	if err := yaml.Unmarshal([]byte(header), &a); err != nil {
		return ContentArtifact{Body: body}, fmt.Errorf("%w: %v", ErrMalformedFrontMatter, err)
	}
	a.Body = body
	if strings.TrimSpace(a.Title) == "" {
		return a, fmt.Errorf("%w: title is required", ErrMalformedFrontMatter)
	}
	if a.Status != "" && !a.Status.Valid() {
		return a, fmt.Errorf("%w: unknown status %q", ErrMalformedFrontMatter, a.Status)
	}
	return a, nil
}

// SetStatus rewrites only the status line of text, keeping every other byte.
// It falls back to a full re-encode when the header has no status line.
func SetStatus(text string, status core.LifecycleState) (string, error) {
	header, body, ok := Split(text)
	if !ok {
		return "", ErrNoFrontMatter
	}
	lines := strings.Split(header, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "status:") && !strings.HasPrefix(line, " ") {
			lines[i] = "status: " + string(status)
			return delimiter + "\n" + strings.Join(lines, "\n") + delimiter + "\n\n" + body, nil
		}
	}

	a, err := Decode(text)
	if err != nil {
		return "", err
	}
	a.Status = status
	return Encode(a)
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// ReadTime estimates reading time at 200 words per minute.
func ReadTime(body string) string {
	minutes := (WordCount(body) + 199) / 200
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%d min read", minutes)
}
