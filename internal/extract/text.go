package extract

import (
	"regexp"
	"strings"
)

var (
	excessNewlines = regexp.MustCompile(`\n{3,}`)
	spaceRuns      = regexp.MustCompile(`[ \t]+`)
)

// NormalizeText canonicalizes extracted text: CRLF to LF, runs of three or
// more newlines collapsed to two, runs of spaces and tabs collapsed to one,
// NUL bytes stripped, surrounding whitespace trimmed. Idempotent.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\x00", "")
	text = excessNewlines.ReplaceAllString(text, "\n\n")
	text = spaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// CountWords counts maximal runs of non-whitespace.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// ExtractTags splits the Keywords field on comma, semicolon, and pipe,
// appends the Subject, and discards empties.
func ExtractTags(keywords, subject string) []string {
	var tags []string
	if keywords != "" {
		parts := strings.FieldsFunc(keywords, func(r rune) bool {
			return r == ',' || r == ';' || r == '|'
		})
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				tags = append(tags, part)
			}
		}
	}
	if subject = strings.TrimSpace(subject); subject != "" {
		tags = append(tags, subject)
	}
	return tags
}

// englishStopwords is the fixed probe set for language detection.
var englishStopwords = []string{"the", "and", "is", "in", "to", "of", "a", "for"}

// DetectLanguage labels text "en" when at least four of the eight probe
// stopwords occur as whole words in the first 1000 characters, else
// "unknown".
func DetectLanguage(text string) string {
	sample := strings.ToLower(text)
	if len(sample) > 1000 {
		sample = sample[:1000]
	}
	// Pad so boundary words match the surrounded-by-spaces test.
	sample = " " + strings.ReplaceAll(sample, "\n", " ") + " "

	hits := 0
	for _, word := range englishStopwords {
		if strings.Contains(sample, " "+word+" ") {
			hits++
		}
	}
	if hits >= 4 {
		return "en"
	}
	return "unknown"
}

// documentTypeRules map content substrings to a type label, in priority
// order; the first match wins.
var documentTypeRules = []struct {
	substrings []string
	docType    string
}{
	{[]string{"onboarding"}, "onboarding"},
	{[]string{"policy", "policies"}, "policy"},
	{[]string{"training", "tutorial"}, "training"},
	{[]string{"handbook", "manual"}, "handbook"},
	{[]string{"guide"}, "guide"},
	{[]string{"procedure", "process"}, "procedure"},
}

// DetectDocumentType classifies a document from the first 2000 characters
// of its text and its title.
func DetectDocumentType(text, title string) string {
	sample := strings.ToLower(text)
	if len(sample) > 2000 {
		sample = sample[:2000]
	}
	sample += " " + strings.ToLower(title)

	for _, rule := range documentTypeRules {
		for _, sub := range rule.substrings {
			if strings.Contains(sample, sub) {
				return rule.docType
			}
		}
	}
	return "general"
}
