package ingest

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	blankRuns  = regexp.MustCompile(`\n{3,}`)
	spaceRuns  = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// Normalize cleans extracted text while keeping its paragraph and line structure:
// unified line endings, no control characters, single spaces within lines and at
// most one blank line between paragraphs.
func Normalize(text string) string {
	text = lineBreaks.Replace(text)
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == '\uFFFD' {
			return -1
		}
		return r
	}, text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRuns.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	return strings.TrimSpace(blankRuns.ReplaceAllString(text, "\n\n"))
}
