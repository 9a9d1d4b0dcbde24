// Package ingest orchestrates the document pipeline: extract, chunk,
// embed, store. It owns every corpus mutation, so retrieval index
// invalidation funnels through here.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/glinthq/onboardrag/internal/chunk"
	"github.com/glinthq/onboardrag/internal/embed"
	"github.com/glinthq/onboardrag/internal/errors"
	"github.com/glinthq/onboardrag/internal/extract"
	"github.com/glinthq/onboardrag/internal/model"
	"github.com/glinthq/onboardrag/internal/store"
)

// UntitledDocument is the title of last resort.
const UntitledDocument = "Untitled Document"

// Extractor is the slice of the extract package the ingestor needs.
type Extractor interface {
	Extract(data []byte, filename string) (*extract.Result, error)
}

// Embedder batches chunk texts into vectors with per-item outcomes.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([]embed.Result, string)
}

// Invalidator is notified after every corpus mutation.
type Invalidator interface {
	Invalidate()
}

// ReprocessReport summarizes a reprocess-all run.
type ReprocessReport struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}

// Ingestor runs the ingestion pipeline against explicit collaborators.
type Ingestor struct {
	store       store.Store
	extractor   Extractor
	chunker     *chunk.Chunker
	embedder    Embedder
	invalidator Invalidator
	logger      *slog.Logger
}

// New creates an ingestor. invalidator may be nil; a nil logger falls back
// to slog.Default.
func New(st store.Store, extractor Extractor, chunker *chunk.Chunker, embedder Embedder, invalidator Invalidator, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		store:       st,
		extractor:   extractor,
		chunker:     chunker,
		embedder:    embedder,
		invalidator: invalidator,
		logger:      logger,
	}
}

// ProcessDocument ingests one PDF. Extraction failure writes no rows.
// Partial embedding failure persists the chunks that embedded, renumbered
// contiguously, and reports a warning; reprocess is the remediation.
func (g *Ingestor) ProcessDocument(ctx context.Context, data []byte, title, tagID, filename string) (*model.IngestResult, error) {
	started := time.Now()

	if len(data) == 0 {
		return nil, errors.Validation("document data must not be empty")
	}

	extracted, err := g.extractor.Extract(data, filename)
	if err != nil {
		return nil, err
	}

	meta := extracted.Metadata
	doc := &model.Document{
		ID:         model.NewID(),
		Title:      mergeTitle(title, meta.Title),
		Author:     meta.Author,
		TagID:      tagID,
		Content:    extracted.Text,
		PageCount:  extracted.PageCount,
		WordCount:  extracted.WordCount,
		UploadedAt: started.UTC(),
	}
	meta.Title = doc.Title
	meta.UploadedAt = doc.UploadedAt
	doc.Metadata = meta

	if err := g.store.InsertDocument(ctx, doc); err != nil {
		return nil, err
	}

	pieces := g.chunker.Split(extracted.Text)
	chunks, embedded, warning := g.embedChunks(ctx, doc, pieces)

	if len(chunks) > 0 {
		if err := g.store.BulkInsertChunks(ctx, doc.ID, chunks); err != nil {
			// The document row stays; it reads as "not ready" until a
			// reprocess completes it.
			return nil, err
		}
	}
	g.invalidate()

	g.logger.Info("document ingested",
		slog.String("documentId", doc.ID),
		slog.String("title", doc.Title),
		slog.Int("pages", doc.PageCount),
		slog.Int("chunks", len(pieces)),
		slog.Int("embedded", embedded),
		slog.Duration("elapsed", time.Since(started)))

	return &model.IngestResult{
		DocumentID:    doc.ID,
		Title:         doc.Title,
		PageCount:     doc.PageCount,
		WordCount:     doc.WordCount,
		ChunkCount:    len(pieces),
		EmbeddedCount: embedded,
		Metadata:      doc.Metadata,
		Elapsed:       time.Since(started),
		Warning:       warning,
	}, nil
}

// ReprocessDocument rebuilds a document's chunks from its stored text.
// Safe to invoke repeatedly; each run yields a consistent chunk set.
func (g *Ingestor) ReprocessDocument(ctx context.Context, documentID string) (*model.IngestResult, error) {
	started := time.Now()

	doc, err := g.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	pieces := g.chunker.Split(doc.Content)
	chunks, embedded, warning := g.embedChunks(ctx, doc, pieces)

	if err := g.store.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return nil, err
	}
	g.invalidate()

	g.logger.Info("document reprocessed",
		slog.String("documentId", doc.ID),
		slog.Int("chunks", len(pieces)),
		slog.Int("embedded", embedded))

	return &model.IngestResult{
		DocumentID:    doc.ID,
		Title:         doc.Title,
		PageCount:     doc.PageCount,
		WordCount:     doc.WordCount,
		ChunkCount:    len(pieces),
		EmbeddedCount: embedded,
		Metadata:      doc.Metadata,
		Elapsed:       time.Since(started),
		Warning:       warning,
	}, nil
}

// ReprocessAll rebuilds every document's chunks. One document's failure
// never aborts the batch.
func (g *Ingestor) ReprocessAll(ctx context.Context) (*ReprocessReport, error) {
	docs, err := g.store.ListDocumentsWithStats(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReprocessReport{}
	for _, doc := range docs {
		if _, err := g.ReprocessDocument(ctx, doc.ID); err != nil {
			report.Errors++
			g.logger.Error("reprocess failed",
				slog.String("documentId", doc.ID),
				slog.String("error", err.Error()))
			continue
		}
		report.Processed++
	}
	return report, nil
}

// DeleteDocument removes a document and its chunks.
func (g *Ingestor) DeleteDocument(ctx context.Context, documentID string) error {
	if err := g.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	g.invalidate()
	return nil
}

// embedChunks embeds the pieces and converts the successes into persistable
// chunks. Indices are renumbered to stay contiguous when items fail, so a
// stored document always has indices 0..n-1.
func (g *Ingestor) embedChunks(ctx context.Context, doc *model.Document, pieces []chunk.Chunk) ([]*model.Chunk, int, string) {
	if len(pieces) == 0 {
		return nil, 0, ""
	}

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}
	results, warning := g.embedder.EmbedTexts(ctx, texts)

	now := time.Now().UTC()
	chunks := make([]*model.Chunk, 0, len(pieces))
	for i, p := range pieces {
		if results[i].Err != nil {
			continue
		}
		chunks = append(chunks, &model.Chunk{
			ID:         model.NewID(),
			DocumentID: doc.ID,
			Index:      len(chunks),
			Text:       p.Text,
			TokenCount: p.TokenCount,
			Embedding:  results[i].Vector,
			Metadata: model.ChunkMetadata{
				StartChar:     p.StartChar,
				EndChar:       p.EndChar,
				DocumentTitle: doc.Title,
				DocumentType:  doc.Metadata.DocumentType,
				Author:        doc.Author,
			},
			CreatedAt: now,
		})
	}
	return chunks, len(chunks), warning
}

func (g *Ingestor) invalidate() {
	if g.invalidator != nil {
		g.invalidator.Invalidate()
	}
}

func mergeTitle(callerTitle, extractedTitle string) string {
	if callerTitle != "" {
		return callerTitle
	}
	if extractedTitle != "" {
		return extractedTitle
	}
	return UntitledDocument
}
