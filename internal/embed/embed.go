// Package embed batches chunk texts through the model client and caches
// single-query embeddings.
package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Defaults for the batching parameters.
const (
	DefaultBatchSize  = 5
	DefaultBatchDelay = 500 * time.Millisecond
)

// Client is the slice of the model client the embedder needs.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Result is the per-item outcome of a batch embed.
// Exactly one of Vector and Err is set.
type Result struct {
	Vector []float32
	Err    error
}

// Embedder turns chunk texts into vectors in small concurrent batches with
// a pause between batches, so one document ingestion cannot monopolize the
// model client queue.
type Embedder struct {
	client     Client
	batchSize  int
	batchDelay time.Duration
	logger     *slog.Logger
}

// New creates an embedder. Non-positive batch parameters fall back to the
// defaults; a nil logger falls back to slog.Default.
func New(client Client, batchSize int, batchDelay time.Duration, logger *slog.Logger) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchDelay <= 0 {
		batchDelay = DefaultBatchDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		client:     client,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		logger:     logger,
	}
}

// Dimensions returns the provider's embedding dimensionality.
func (e *Embedder) Dimensions() int {
	return e.client.Dimensions()
}

// EmbedTexts embeds every text, returning one Result per input aligned by
// index. Items within a batch run concurrently; a failed item yields its
// error sentinel and processing continues. The second return value is a
// human-readable warning when fewer vectors than inputs succeeded, empty
// otherwise.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([]Result, string) {
	results := make([]Result, len(texts))

	for start := 0; start < len(texts); start += e.batchSize {
		if start > 0 {
			select {
			case <-time.After(e.batchDelay):
			case <-ctx.Done():
				for i := start; i < len(texts); i++ {
					results[i] = Result{Err: ctx.Err()}
				}
				return results, warningFor(results)
			}
		}

		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				vec, err := e.client.Embed(gctx, texts[i])
				if err != nil {
					e.logger.Warn("chunk embedding failed",
						slog.Int("index", i),
						slog.String("error", err.Error()))
					results[i] = Result{Err: err}
					return nil
				}
				results[i] = Result{Vector: vec}
				return nil
			})
		}
		_ = g.Wait()
	}

	return results, warningFor(results)
}

func warningFor(results []Result) string {
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed == 0 {
		return ""
	}
	return fmt.Sprintf("%d of %d chunks could not be embedded; reprocess the document to retry",
		failed, len(results))
}
