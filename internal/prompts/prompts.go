// Package prompts renders generation requests for each output kind.
package prompts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"text/template"
	"time"

	"curator/internal/core"
	"curator/internal/llm"
)

// StyleVariant is the writing approach chosen for one artifact.
type StyleVariant string

const (
	StyleAnalysis   StyleVariant = "analysis"
	StyleContrarian StyleVariant = "contrarian"
	StyleHowTo      StyleVariant = "how-to"
	StyleCaseStudy  StyleVariant = "case-study"
	StyleOpinion    StyleVariant = "opinion"

	StyleHotTake   StyleVariant = "hot-take"
	StyleStory     StyleVariant = "story"
	StyleQuickTip  StyleVariant = "quick-tip"
	StyleChallenge StyleVariant = "challenge"
	StyleDataDrop  StyleVariant = "data-drop"
	StyleBreakdown StyleVariant = "breakdown"

	StyleTake StyleVariant = "take"
)

// LinkPlaceholder marks where the item URL goes in a micro-post.
const LinkPlaceholder = "[LINK]"

// Categories allowed in long-form front-matter.
var Categories = []string{"Speed Optimization", "CRO", "AI SEO", "Shopify Development", "Industry Insights"}

const maxContentChars = 3000

var styleGuides = map[StyleVariant]string{
	StyleAnalysis:   "Deep dive into what this means. Introduction -> key finding -> why it matters -> my take -> action step.",
	StyleContrarian: "Challenge the common assumption. \"Most people think X, but...\" -> evidence -> my perspective -> what to do differently.",
	StyleHowTo:      "Make it practical. Problem statement -> numbered steps -> one pro tip -> results to expect.",
	StyleCaseStudy:  "Tell it as a story from client work. The problem -> what we tried -> what worked -> lesson learned.",
	StyleOpinion:    "Bold claim backed by experience. Claim -> reasoning -> evidence from the article -> call to action.",

	StyleHotTake:   "Open with \"Unpopular opinion:\" or \"Hot take:\" and challenge conventional wisdom. End with \"Agree or disagree?\"",
	StyleStory:     "Open with \"Last week...\" or \"I just saw...\" and share a short story. End with the lesson learned.",
	StyleQuickTip:  "One actionable tip, three or four lines, no filler.",
	StyleChallenge: "Open with \"Try this:\" and give the reader one specific, time-bound thing to do.",
	StyleDataDrop:  "Lead with a surprising number, explain why it matters, keep it punchy.",
	StyleBreakdown: "\"Here's what I learned from the source:\" then three short dash bullets and my take.",

	StyleTake: "One sharp take on the article plus the link.",
}

// Styles lists the variants available for kind in selection order.
func Styles(kind core.OutputKind) []StyleVariant {
	switch kind {
	case core.KindLongForm:
		return []StyleVariant{StyleAnalysis, StyleContrarian, StyleHowTo, StyleCaseStudy, StyleOpinion}
	case core.KindProfessionalPost:
		return []StyleVariant{StyleHotTake, StyleStory, StyleQuickTip, StyleChallenge, StyleDataDrop, StyleBreakdown}
	case core.KindMicroPost:
		return []StyleVariant{StyleTake}
	default:
		return nil
	}
}

// RandSource picks style variants. *rand.Rand satisfies it.
type RandSource interface {
	Intn(n int) int
}

// Builder renders llm requests from candidate items.
type Builder struct {
	voice     Voice
	rnd       RandSource
	now       func() time.Time
	templates map[core.OutputKind]*template.Template
}

// Option configures a Builder.
type Option func(*Builder)

// WithRand sets the variant source.
func WithRand(r RandSource) Option {
	return func(b *Builder) { b.rnd = r }
}

// WithClock sets the clock used for the front-matter date.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// NewBuilder parses the templates for every output kind.
func NewBuilder(voice Voice, opts ...Option) *Builder {
	b := &Builder{
		voice: voice,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		now:   time.Now,
		templates: map[core.OutputKind]*template.Template{
			core.KindLongForm:         template.Must(template.New("long-form").Parse(voiceRulesTmpl + longFormTmpl)),
			core.KindProfessionalPost: template.Must(template.New("professional-post").Parse(voiceRulesTmpl + professionalPostTmpl)),
			core.KindMicroPost:        template.Must(template.New("micro-post").Parse(voiceRulesTmpl + microPostTmpl)),
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type templateData struct {
	Persona     string
	Voice       Voice
	Item        core.CandidateItem
	Topics      string
	Tags        string
	Summary     string
	Content     string
	Date        string
	Style       StyleVariant
	StyleGuide  string
	Categories  string
	Placeholder string
}

// Build renders the request for kind and reports the chosen style.
func (b *Builder) Build(kind core.OutputKind, item core.CandidateItem) (llm.Request, StyleVariant, error) {
	tmpl, ok := b.templates[kind]
	if !ok {
		return llm.Request{}, "", fmt.Errorf("no prompt template for output kind %q", kind)
	}
	styles := Styles(kind)
	style := styles[b.rnd.Intn(len(styles))]

	topics := item.Topics
	if len(topics) == 0 {
		topics = []string{core.TopicGeneral}
	}
	tags := topics
	if len(tags) > 3 {
		tags = tags[:3]
	}
	tagJSON, err := json.Marshal(tags)
	if err != nil {
		return llm.Request{}, "", fmt.Errorf("encode tags: %w", err)
	}

	data := templateData{
		Persona:     b.voice.Persona(),
		Voice:       b.voice,
		Item:        item,
		Topics:      strings.Join(topics, ", "),
		Tags:        string(tagJSON),
		Summary:     firstNonEmpty(item.Summary, item.Title),
		Content:     truncateRunes(item.RawBody, maxContentChars),
		Date:        b.now().Format("2006-01-02"),
		Style:       style,
		StyleGuide:  styleGuides[style],
		Categories:  strings.Join(Categories, " | "),
		Placeholder: LinkPlaceholder,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return llm.Request{}, "", fmt.Errorf("render %s prompt: %w", kind, err)
	}

	req := llm.Request{Prompt: strings.TrimSpace(buf.String())}
	switch kind {
	case core.KindLongForm:
		req.Temperature, req.MaxTokens = 0.7, 4096
	case core.KindProfessionalPost:
		req.Temperature, req.MaxTokens = 0.8, 1024
	case core.KindMicroPost:
		req.Temperature, req.MaxTokens = 0.8, 256
	}
	return req, style, nil
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
