package prompts

const voiceRulesTmpl = `{{define "voice"}}VOICE RULES (MUST FOLLOW):
- Use plain dashes (-) and straight quotes (" and ') only
- No emoji or decorative Unicode symbols
{{- if .Voice.FirstPerson}}
- Write in the first person ("I"), conversational and professional
{{- end}}
- Short sentences, short paragraphs, active voice
- Be specific with numbers and examples
{{- if .Voice.BannedPhrases}}
- Never use these words or phrases: {{range $i, $p := .Voice.BannedPhrases}}{{if $i}}, {{end}}"{{$p}}"{{end}}
{{- end}}
{{- if .Voice.BrandNotes}}

BRAND NOTES:
{{.Voice.BrandNotes}}
{{- end}}
{{end}}`

const longFormTmpl = `{{.Persona}} Write an original curated insight for the blog.

{{template "voice" .}}
ORIGINAL ARTICLE:
Title: {{.Item.Title}}
Source: {{.Item.SourceName}}
Topics: {{.Topics}}
Summary: {{.Summary}}

Full content (truncated):
{{.Content}}

STYLE: {{.Style}}
{{.StyleGuide}}

Include my perspective on why this matters and one practical action the reader can take.
Write 400-600 words with H2/H3 headers, a "Key Takeaways" list and a "What You Can Do Today" section.

OUTPUT FORMAT (front-matter then body, nothing else):
---
title: "<angle on the topic, under 60 characters>"
date: "{{.Date}}"
description: "<summary with the main keyword, under 155 characters>"
category: "<one of: {{.Categories}}>"
tags: {{.Tags}}
readTime: "3 min read"
status: "draft"
---

Do not summarize or rewrite the article, and do not add visible source links.
`

const professionalPostTmpl = `{{.Persona}} Write a professional network post about this article.

{{template "voice" .}}
ARTICLE:
Title: {{.Item.Title}}
Source: {{.Item.SourceName}}
Summary: {{.Summary}}
Topics: {{.Topics}}

STYLE: {{.Style}}
{{.StyleGuide}}

RULES:
- 150-200 words
- Line breaks for mobile reading
- Sound like a real person, not a marketer

OUTPUT: only the post text, ready to paste.
`

const microPostTmpl = `{{.Persona}} Write a single short post (not a thread) sharing this article.

{{template "voice" .}}
ARTICLE:
Title: {{.Item.Title}}
Source: {{.Item.SourceName}}
Summary: {{.Summary}}

RULES:
- Under 280 characters in total
- {{.StyleGuide}}
- Put {{.Placeholder}} where the URL goes
- At most one hashtag

OUTPUT: only the post text.
`
