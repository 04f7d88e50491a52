package prompts

import (
	"os"
	"strings"

	"curator/internal/config"
	"curator/internal/logger"
)

// Voice is the brand voice every prompt carries. Its wording is configuration.
type Voice struct {
	Author        string
	Audience      string
	FirstPerson   bool
	BannedPhrases []string
	BrandNotes    string // Contents of the optional brand identity file
}

// VoiceFromConfig builds a Voice and reads the brand file when one is set.
// A missing brand file is logged and ignored.
func VoiceFromConfig(c config.Voice) Voice {
	v := Voice{
		Author:        c.Author,
		Audience:      c.Audience,
		FirstPerson:   c.FirstPerson,
		BannedPhrases: c.BannedPhrases,
	}
	if c.BrandFile != "" {
		data, err := os.ReadFile(c.BrandFile)
		if err != nil {
			logger.Warn("Brand identity file not readable, using built-in voice rules", "path", c.BrandFile, "error", err)
		} else {
			v.BrandNotes = strings.TrimSpace(string(data))
		}
	}
	return v
}

// Persona is the one-line identity used at the top of each prompt.
func (v Voice) Persona() string {
	author := v.Author
	if author == "" {
		author = "an independent practitioner"
	}
	if v.Audience == "" {
		return "You are " + author + "."
	}
	return "You are " + author + ", writing for " + v.Audience + "."
}
