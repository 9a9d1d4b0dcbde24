package extract

import (
	"regexp"
	"strings"

	"github.com/glinthq/onboardrag/internal/model"
)

var (
	numberedHeading  = regexp.MustCompile(`^\d+(\.|\))\s+[A-Z]`)
	titleCaseHeading = regexp.MustCompile(`^[A-Z][^.!?]*$`)

	levelThree = regexp.MustCompile(`^\d+\.\d+\.\d+\s`)
	levelTwo   = regexp.MustCompile(`^\d+\.\d+\s`)
	levelOne   = regexp.MustCompile(`^\d+\.\s`)
)

// ExtractSections splits normalized text into heading-delimited sections.
func ExtractSections(text string) []model.Section {
	var sections []model.Section
	var current model.Section
	var content strings.Builder

	flush := func() {
		body := strings.TrimSpace(content.String())
		if current.Title != "" || body != "" {
			current.Content = body
			sections = append(sections, current)
		}
		content.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if isHeading(line) {
			if strings.TrimSpace(content.String()) != "" {
				flush()
				current = model.Section{}
			}
			current.Title = line
			current.Level = headingLevel(line)
			continue
		}
		if line != "" {
			content.WriteString(line)
			content.WriteString("\n")
		}
	}
	flush()

	return sections
}

// isHeading applies three heuristics: short all-caps lines, numbered
// headings, and short title-case lines without sentence punctuation.
func isHeading(line string) bool {
	if line == "" {
		return false
	}
	if len(line) < 100 &&
		line == strings.ToUpper(line) &&
		strings.ToLower(line) != line && // needs at least one letter
		len(strings.Fields(line)) <= 10 {
		return true
	}
	if numberedHeading.MatchString(line) {
		return true
	}
	if len(line) < 80 && titleCaseHeading.MatchString(line) {
		return true
	}
	return false
}

// headingLevel maps numbering depth to a level; all-caps headings are
// top-level, everything else is level 2.
func headingLevel(line string) int {
	switch {
	case levelThree.MatchString(line):
		return 3
	case levelTwo.MatchString(line):
		return 2
	case levelOne.MatchString(line):
		return 1
	case line == strings.ToUpper(line):
		return 1
	default:
		return 2
	}
}
