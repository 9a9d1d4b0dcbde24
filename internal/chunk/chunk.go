// Package chunk splits extracted text into overlapping token-budgeted
// pieces that respect paragraph boundaries.
package chunk

import (
	"regexp"
	"strings"
)

// Defaults for the chunking parameters.
const (
	DefaultChunkTokens   = 512
	DefaultOverlapTokens = 50
)

// charsPerToken is the fixed token approximation: one token per four
// characters, rounded up. No real tokenizer is involved anywhere.
const charsPerToken = 4

// Chunk is one token-budgeted piece of a document's text. StartChar and
// EndChar are offsets in the concatenated chunk stream; consecutive chunks
// overlap by construction, so EndChar(i) > StartChar(i+1) when an overlap
// prefix was applied.
type Chunk struct {
	Text       string
	Index      int
	TokenCount int
	StartChar  int
	EndChar    int
}

// TokenCount approximates the token count of text as ceil(len/4).
func TokenCount(text string) int {
	return (len(text) + charsPerToken - 1) / charsPerToken
}

var (
	paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)
	// sentenceBreak matches terminal punctuation followed by whitespace
	// and a capital letter, the anchor for the overlap prefix.
	sentenceBreak = regexp.MustCompile(`[.!?][ \t\n]+[A-Z]`)
)

// Chunker splits text with a target chunk size and overlap, both in tokens.
type Chunker struct {
	chunkTokens   int
	overlapTokens int
}

// New creates a chunker. Non-positive parameters fall back to the defaults.
func New(chunkTokens, overlapTokens int) *Chunker {
	if chunkTokens <= 0 {
		chunkTokens = DefaultChunkTokens
	}
	if overlapTokens <= 0 {
		overlapTokens = DefaultOverlapTokens
	}
	return &Chunker{chunkTokens: chunkTokens, overlapTokens: overlapTokens}
}

// Split chunks text greedily by paragraph. A chunk is emitted when the next
// paragraph would push it past the character budget; the next chunk is then
// seeded with an overlap prefix drawn from the emitted chunk's tail. A
// single paragraph larger than the budget is emitted whole; the splitter
// never breaks inside a paragraph.
func (c *Chunker) Split(text string) []Chunk {
	maxChars := c.chunkTokens * charsPerToken
	overlapChars := c.overlapTokens * charsPerToken

	var paragraphs []string
	for _, p := range paragraphBreak.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var chunks []Chunk
	var current strings.Builder
	startChar := 0

	emit := func() Chunk {
		text := strings.TrimSpace(current.String())
		ck := Chunk{
			Text:       text,
			Index:      len(chunks),
			TokenCount: TokenCount(text),
			StartChar:  startChar,
			EndChar:    startChar + len(text),
		}
		chunks = append(chunks, ck)
		current.Reset()
		return ck
	}

	for _, para := range paragraphs {
		if current.Len() > 0 && current.Len()+2+len(para) > maxChars {
			emitted := emit()
			overlap := overlapPrefix(emitted.Text, overlapChars)
			startChar = emitted.EndChar - len(overlap)
			current.WriteString(overlap)
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}

	if strings.TrimSpace(current.String()) != "" {
		emit()
	}
	return chunks
}

// overlapPrefix selects the seed for the next chunk from the tail of an
// emitted chunk: the text after the last sentence break within the final
// overlapChars characters, or that whole tail when no break is found.
func overlapPrefix(text string, overlapChars int) string {
	if overlapChars <= 0 || text == "" {
		return ""
	}
	tail := text
	if len(tail) > overlapChars {
		tail = tail[len(tail)-overlapChars:]
	}

	breaks := sentenceBreak.FindAllStringIndex(tail, -1)
	if len(breaks) > 0 {
		last := breaks[len(breaks)-1]
		return strings.TrimLeft(tail[last[0]+1:], " \t\n")
	}
	return tail
}
