// Package extract turns PDF bytes into normalized text with derived
// metadata: word count, tags, language, document type, and sections.
package extract

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dslipak/pdf"

	"github.com/glinthq/onboardrag/internal/errors"
	"github.com/glinthq/onboardrag/internal/model"
)

// Result is the output of one extraction.
type Result struct {
	Text      string
	PageCount int
	WordCount int
	Sections  []model.Section
	Metadata  model.DocumentMetadata
}

// Extractor parses PDFs. Stateless and safe for concurrent use.
type Extractor struct {
	logger *slog.Logger
}

// New creates an extractor. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract parses the PDF and derives metadata. Image-only PDFs yield no
// text and fail with the extraction error kind; no partial result is
// returned on failure.
func (e *Extractor) Extract(data []byte, filename string) (*Result, error) {
	reader, pageCount, text, err := parsePDF(data, e.logger)
	if err != nil {
		return nil, errors.New(errors.KindExtractFailed, "failed to parse PDF", err)
	}

	text = NormalizeText(text)
	if text == "" {
		return nil, errors.Newf(errors.KindExtractFailed,
			"PDF contains no extractable text (image-only PDFs are not supported)")
	}

	meta := readInfo(reader)
	if meta.Title == "" && filename != "" {
		meta.Title = TitleFromFilename(filename)
	}
	meta.Tags = ExtractTags(meta.Keywords, meta.Subject)
	meta.Language = DetectLanguage(text)
	meta.DocumentType = DetectDocumentType(text, meta.Title)

	sections := ExtractSections(text)
	meta.SectionCount = len(sections)

	return &Result{
		Text:      text,
		PageCount: pageCount,
		WordCount: CountWords(text),
		Sections:  sections,
		Metadata:  meta,
	}, nil
}

// parsePDF reads every page's plain text. The parser panics on some
// malformed files, so the whole parse runs under recover.
func parsePDF(data []byte, logger *slog.Logger) (reader *pdf.Reader, pageCount int, text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF parser panic: %v", r)
		}
	}()

	reader, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, 0, "", err
	}

	pageCount = reader.NumPage()
	var sb strings.Builder
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			logger.Warn("failed to extract page text",
				slog.Int("page", i),
				slog.String("error", pageErr.Error()))
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}
	return reader, pageCount, sb.String(), nil
}

// readInfo pulls the document information dictionary. Missing or broken
// Info entries leave fields empty rather than failing extraction.
func readInfo(reader *pdf.Reader) (meta model.DocumentMetadata) {
	defer func() {
		if r := recover(); r != nil {
			meta = model.DocumentMetadata{}
		}
	}()

	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return meta
	}

	meta.Title = strings.TrimSpace(info.Key("Title").Text())
	meta.Author = strings.TrimSpace(info.Key("Author").Text())
	meta.Subject = strings.TrimSpace(info.Key("Subject").Text())
	meta.Keywords = strings.TrimSpace(info.Key("Keywords").Text())
	meta.Creator = strings.TrimSpace(info.Key("Creator").Text())
	meta.Producer = strings.TrimSpace(info.Key("Producer").Text())
	meta.CreationDate = strings.TrimSpace(info.Key("CreationDate").Text())
	meta.ModDate = strings.TrimSpace(info.Key("ModDate").Text())
	return meta
}

// TitleFromFilename derives a display title: extension stripped, dashes
// and underscores replaced with spaces, each word capitalized.
func TitleFromFilename(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)

	words := strings.Fields(base)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
