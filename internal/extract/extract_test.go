package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glinthq/onboardrag/internal/errors"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "crlf to lf",
			input: "line one\r\nline two",
			want:  "line one\nline two",
		},
		{
			name:  "collapse newline runs",
			input: "para one\n\n\n\n\npara two",
			want:  "para one\n\npara two",
		},
		{
			name:  "collapse space and tab runs",
			input: "too   many\t\tspaces",
			want:  "too many spaces",
		},
		{
			name:  "strip nul bytes",
			input: "bro\x00ken",
			want:  "broken",
		},
		{
			name:  "trim surrounding whitespace",
			input: "  \n padded \n ",
			want:  "padded",
		},
		{
			name:  "empty stays empty",
			input: "\n\n\n",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeText(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeText(got), "normalization must be idempotent")
		})
	}
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, CountWords(""))
	assert.Equal(t, 5, CountWords("one two\tthree\nfour five"))
}

func TestExtractTags(t *testing.T) {
	tests := []struct {
		name     string
		keywords string
		subject  string
		want     []string
	}{
		{
			name:     "mixed separators",
			keywords: "hr, benefits; onboarding | pto",
			want:     []string{"hr", "benefits", "onboarding", "pto"},
		},
		{
			name:     "subject appended",
			keywords: "hr",
			subject:  "Employee Onboarding",
			want:     []string{"hr", "Employee Onboarding"},
		},
		{
			name:     "empties discarded",
			keywords: ",, ;",
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTags(tt.keywords, tt.subject))
		})
	}
}

func TestDetectLanguage(t *testing.T) {
	english := "Welcome to the company. This guide is for new employees and " +
		"covers all of the policies in effect. The first week is a busy one."
	assert.Equal(t, "en", DetectLanguage(english))

	assert.Equal(t, "unknown", DetectLanguage("bonjour et bienvenue dans notre entreprise"))
	assert.Equal(t, "unknown", DetectLanguage(""))
}

func TestDetectDocumentType(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		title string
		want  string
	}{
		{
			name: "onboarding wins over policy",
			text: "This onboarding document describes the vacation policy.",
			want: "onboarding",
		},
		{
			name: "policy from text",
			text: "Our remote work policies are described below.",
			want: "policy",
		},
		{
			name:  "handbook from title",
			text:  "Contents follow.",
			title: "Employee Handbook",
			want:  "handbook",
		},
		{
			name: "training",
			text: "A tutorial for the expense system.",
			want: "training",
		},
		{
			name: "procedure",
			text: "The escalation process has three steps.",
			want: "procedure",
		},
		{
			name: "general fallback",
			text: "Quarterly numbers and commentary.",
			want: "general",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDocumentType(tt.text, tt.title))
		})
	}
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"employee-handbook.pdf", "Employee Handbook"},
		{"new_hire_guide_v2.pdf", "New Hire Guide V2"},
		{"/tmp/uploads/pto-policy.PDF", "Pto Policy"},
		{"README", "README"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TitleFromFilename(tt.filename), tt.filename)
	}
}

func TestExtractSections(t *testing.T) {
	text := "COMPANY OVERVIEW\n" +
		"We build onboarding software.\n" +
		"\n" +
		"1. First Week\n" +
		"Meet your team and set up your laptop.\n" +
		"\n" +
		"1.1 Equipment\n" +
		"Laptops are issued on day one."

	sections := ExtractSections(text)
	require.Len(t, sections, 3)

	assert.Equal(t, "COMPANY OVERVIEW", sections[0].Title)
	assert.Equal(t, 1, sections[0].Level)
	assert.Equal(t, "We build onboarding software.", sections[0].Content)

	assert.Equal(t, "1. First Week", sections[1].Title)
	assert.Equal(t, 1, sections[1].Level)

	assert.Equal(t, "1.1 Equipment", sections[2].Title)
	assert.Equal(t, 2, sections[2].Level)
	assert.Equal(t, "Laptops are issued on day one.", sections[2].Content)
}

func TestIsHeading(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"BENEFITS AND PERKS", true},
		{"2) Security Basics", true},
		{"Getting Started", true},
		{"This is a normal sentence that ends with a period.", false},
		{"", false},
		{"12345", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isHeading(tt.line), tt.line)
	}
}

func TestExtractRejectsUnparseablePDF(t *testing.T) {
	e := New(nil)

	_, err := e.Extract([]byte("this is not a pdf"), "broken.pdf")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindExtractFailed), "got %v", err)
}
