// Package model defines the persistent and transient entities shared by the
// ingestion and query pipelines.
package model

import "time"

// DocumentMetadata is the typed metadata blob stored alongside a document.
// It is serialized as JSON at the store boundary.
type DocumentMetadata struct {
	Title        string    `json:"title,omitempty"`
	Author       string    `json:"author,omitempty"`
	Subject      string    `json:"subject,omitempty"`
	Keywords     string    `json:"keywords,omitempty"`
	Creator      string    `json:"creator,omitempty"`
	Producer     string    `json:"producer,omitempty"`
	CreationDate string    `json:"creationDate,omitempty"`
	ModDate      string    `json:"modDate,omitempty"`
	Tags         []string  `json:"extractedTags,omitempty"`
	Language     string    `json:"language,omitempty"`
	DocumentType string    `json:"documentType,omitempty"`
	SectionCount int       `json:"sectionCount,omitempty"`
	UploadedAt   time.Time `json:"uploadedAt,omitempty"`

	// Extra carries fields the fixed schema does not model.
	Extra map[string]string `json:"extra,omitempty"`
}

// Document is an ingested PDF with its extracted text.
type Document struct {
	ID         string
	Title      string
	Author     string
	TagID      string
	Content    string
	PageCount  int
	WordCount  int
	Metadata   DocumentMetadata
	UploadedAt time.Time

	// ChunkCount and TagName are populated by list queries only.
	ChunkCount int
	TagName    string
}

// ChunkMetadata is a denormalization cache, not an open extension point.
// It carries what retrieval needs without a second round-trip.
type ChunkMetadata struct {
	StartChar     int    `json:"startChar"`
	EndChar       int    `json:"endChar"`
	SectionTitle  string `json:"sectionTitle,omitempty"`
	DocumentTitle string `json:"documentTitle,omitempty"`
	DocumentType  string `json:"documentType,omitempty"`
	Author        string `json:"author,omitempty"`
}

// Chunk is a contiguous token-budgeted slice of a document's text,
// the unit of embedding and retrieval.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Text       string
	TokenCount int
	// Embedding is nil until the chunk has been embedded.
	Embedding []float32
	Metadata  ChunkMetadata
	CreatedAt time.Time
}

// Embedded reports whether the chunk carries an embedding vector.
func (c *Chunk) Embedded() bool {
	return len(c.Embedding) > 0
}

// Tag is an admin-managed label. Read-only to the core.
type Tag struct {
	ID   string
	Name string
}

// Section is a heading-delimited region of extracted text.
type Section struct {
	Title   string `json:"title"`
	Level   int    `json:"level"`
	Content string `json:"content"`
}

// RetrievalSource describes one chunk surfaced for a query.
// Produced per query, never persisted.
type RetrievalSource struct {
	ChunkID        string        `json:"chunkId"`
	DocumentID     string        `json:"documentId"`
	DocumentTitle  string        `json:"documentTitle"`
	ChunkIndex     int           `json:"chunkIndex"`
	Text           string        `json:"-"`
	RelevanceScore float64       `json:"relevanceScore"`
	Metadata       ChunkMetadata `json:"metadata"`
}

// Excerpt returns the first 200 characters of the chunk text with a
// trailing ellipsis, for caller-facing source listings.
func (s *RetrievalSource) Excerpt() string {
	const max = 200
	runes := []rune(s.Text)
	if len(runes) <= max {
		return string(runes) + "…"
	}
	return string(runes[:max]) + "…"
}

// Answer is the result of the query path. Owned by the caller.
type Answer struct {
	Text       string
	Sources    []RetrievalSource
	Confidence float64
	// ResponseTime is how long the query path took end to end.
	ResponseTime time.Duration
}

// IngestResult summarizes one document ingestion.
type IngestResult struct {
	DocumentID    string
	Title         string
	PageCount     int
	WordCount     int
	ChunkCount    int
	EmbeddedCount int
	Metadata      DocumentMetadata
	Elapsed       time.Duration
	// Warning is set when embedding partially failed.
	Warning string
}
