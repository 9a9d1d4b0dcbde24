// Package store persists documents, chunks, and embedding vectors in SQLite
// and serves the aggregate queries behind the stats surface. It is the only
// package that talks to the database.
package store

import (
	"context"
	"time"

	"github.com/glinthq/onboardrag/internal/model"
)

// Store is the persistence contract for the ingestion and retrieval paths.
type Store interface {
	// InsertDocument creates a document row. The document's chunks are
	// inserted separately via BulkInsertChunks.
	InsertDocument(ctx context.Context, doc *model.Document) error

	// GetDocument loads one document by id, including its stored content.
	GetDocument(ctx context.Context, id string) (*model.Document, error)

	// DeleteDocument removes a document and all of its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocumentsWithStats returns all documents with chunk counts and
	// tag names resolved, newest first. Document content is not loaded.
	ListDocumentsWithStats(ctx context.Context) ([]*model.Document, error)

	// BulkInsertChunks inserts all chunks in one transaction. Either every
	// chunk becomes visible or none.
	BulkInsertChunks(ctx context.Context, documentID string, chunks []*model.Chunk) error

	// ReplaceChunks atomically swaps a document's chunk set. Concurrent
	// replaces for the same document serialize.
	ReplaceChunks(ctx context.Context, documentID string, chunks []*model.Chunk) error

	// ScanEmbeddedChunks streams every chunk that has an embedding vector
	// to fn in (documentid, chunk_index) order. Iteration stops on the
	// first error fn returns.
	ScanEmbeddedChunks(ctx context.Context, fn func(chunk *model.Chunk) error) error

	// CountEmbeddedChunks reports how many of a document's chunks carry an
	// embedding vector.
	CountEmbeddedChunks(ctx context.Context, documentID string) (int, error)

	// CreateTag inserts a tag, returning the existing one on a name clash.
	CreateTag(ctx context.Context, name string) (*model.Tag, error)

	// ListTags returns all tags ordered by name.
	ListTags(ctx context.Context) ([]*model.Tag, error)

	// CorpusStats computes the aggregates behind the stats surface.
	CorpusStats(ctx context.Context) (*CorpusStats, error)

	// Close releases the database and the data-directory lock.
	Close() error
}

// CorpusStats aggregates the stored corpus for the stats surface.
type CorpusStats struct {
	TotalDocuments          int            `json:"totalDocuments"`
	TotalChunks             int            `json:"totalChunks"`
	TotalWords              int            `json:"totalWords"`
	DocumentsWithEmbeddings int            `json:"documentsWithEmbeddings"`
	AvgChunksPerDocument    float64        `json:"avgChunksPerDocument"`
	TypeDistribution        map[string]int `json:"typeDistribution"`
	RecentUploads           []RecentUpload `json:"recentUploads"`
}

// RecentUpload is one entry in the recent-uploads listing.
type RecentUpload struct {
	DocumentID string    `json:"documentId"`
	Title      string    `json:"title"`
	UploadedAt time.Time `json:"uploadedAt"`
	ChunkCount int       `json:"chunkCount"`
}
