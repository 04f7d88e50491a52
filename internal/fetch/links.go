package fetch

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"curator/internal/logger"
)

// urlRegex finds http(s) URLs inside free text or markdown.
var urlRegex = regexp.MustCompile(`https?://[^\s)\]>"]+`)

// ReadLinksFromFile returns the unique http(s) URLs of a text or markdown
// file in the order they first appear.
func ReadLinksFromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open link file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	var links []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		for _, raw := range urlRegex.FindAllString(scanner.Text(), -1) {
			raw = strings.TrimRight(raw, ".,;")
			if _, err := url.ParseRequestURI(raw); err != nil {
				logger.Warn("Skipping invalid URL", "line", lineNumber, "url", raw)
				continue
			}
			if seen[raw] {
				continue
			}
			seen[raw] = true
			links = append(links, raw)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading link file %s: %w", path, err)
	}
	return links, nil
}
