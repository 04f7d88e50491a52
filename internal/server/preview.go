package server

import (
	"bytes"
	"html/template"

	"curator/internal/artifact"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// renderMarkdown converts markdown text to HTML with external links opening
// in a new tab. Raw HTML in the source is dropped.
func renderMarkdown(text string) template.HTML {
	if text == "" {
		return template.HTML("")
	}

	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)

	htmlFlags := html.CommonFlags | html.HrefTargetBlank | html.SkipHTML
	renderer := html.NewRenderer(html.RendererOptions{Flags: htmlFlags})

	return template.HTML(markdown.ToHTML([]byte(text), mdParser, renderer))
}

var previewTmpl = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 46rem; margin: 2rem auto; padding: 0 1rem; line-height: 1.6; }
.meta { color: #666; font-size: 0.9rem; }
.status { text-transform: uppercase; font-weight: 600; }
</style>
</head>
<body>
<p class="meta"><span class="status">{{.Status}}</span> · {{.Date}} · {{.Category}} · {{.ReadTime}}</p>
<h1>{{.Title}}</h1>
{{if .Description}}<p class="meta">{{.Description}}</p>{{end}}
<article>{{.HTML}}</article>
</body>
</html>
`))

// renderPreview renders the artifact as a standalone HTML page
func renderPreview(a artifact.ContentArtifact) ([]byte, error) {
	var buf bytes.Buffer
	err := previewTmpl.Execute(&buf, struct {
		artifact.ContentArtifact
		HTML template.HTML
	}{a, renderMarkdown(a.Body)})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
