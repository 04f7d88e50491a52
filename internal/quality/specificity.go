package quality

import (
	"regexp"
	"strings"
)

// Specificity counts the concrete details in a body of text.
type Specificity struct {
	Numbers      int
	ProperNouns  int
	VaguePhrases []string
	Score        int // 0-100
}

// vaguePhrases read as filler when they stand in for a concrete figure.
var vaguePhrases = []string{
	"several", "various", "a number of", "numerous",
	"a few", "a couple of", "many experts", "some people",
}

var (
	numberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d+(?:\.\d+)?%`),
		regexp.MustCompile(`\b\d+x\b`),
		regexp.MustCompile(`\$[\d,]+(?:\.\d+)?[BMK]?`),
		regexp.MustCompile(`\b\d[\d,]*(?:\.\d+)?(?:ms|s|kb|mb)?\b`),
	}
	properNounPattern = regexp.MustCompile(`\b[A-Z][a-zA-Z]{2,}\b`)
)

var sentenceStarters = map[string]bool{
	"The": true, "This": true, "That": true, "These": true, "Those": true,
	"When": true, "What": true, "Why": true, "How": true, "Here": true,
	"However": true, "Most": true, "Try": true, "Key": true, "Takeaways": true,
}

// MeasureSpecificity scores text by numbers and names, minus vague filler.
func MeasureSpecificity(text string) Specificity {
	var s Specificity

	seen := make(map[string]bool)
	for _, p := range numberPatterns {
		for _, m := range p.FindAllString(text, -1) {
			if !seen[m] {
				seen[m] = true
				s.Numbers++
			}
		}
	}

	names := make(map[string]bool)
	for _, m := range properNounPattern.FindAllString(text, -1) {
		if !sentenceStarters[m] {
			names[m] = true
		}
	}
	s.ProperNouns = len(names)

	lower := strings.ToLower(text)
	for _, phrase := range vaguePhrases {
		if strings.Contains(lower, phrase) {
			s.VaguePhrases = append(s.VaguePhrases, phrase)
		}
	}

	score := min(s.Numbers*10, 50) + min(s.ProperNouns*8, 50) - len(s.VaguePhrases)*10
	s.Score = max(0, min(score, 100))
	return s
}
