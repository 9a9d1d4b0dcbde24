// Package retrieve answers "which chunks are relevant to this query" by
// cosine similarity over stored embeddings, with a floor, top-K cap, and
// deterministic ordering.
package retrieve

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/glinthq/onboardrag/internal/embed"
	"github.com/glinthq/onboardrag/internal/errors"
	"github.com/glinthq/onboardrag/internal/model"
	"github.com/glinthq/onboardrag/internal/store"
)

// Defaults for the retrieval parameters.
const (
	DefaultTopK         = 5
	DefaultMinScore     = 0.3
	DefaultANNThreshold = 10000
)

// annOversample asks the approximate index for this many times TopK
// candidates, which are then exact-scored and re-ranked.
const annOversample = 4

// Config tunes retrieval.
type Config struct {
	// TopK caps the number of sources per query.
	TopK int
	// MinScore is the cosine similarity floor; chunks below it never
	// surface regardless of TopK.
	MinScore float64
	// ANNThreshold is the embedded-chunk count above which queries go
	// through the approximate index instead of a full scan.
	ANNThreshold int
}

// DefaultConfig returns the documented retrieval defaults.
func DefaultConfig() Config {
	return Config{
		TopK:         DefaultTopK,
		MinScore:     DefaultMinScore,
		ANNThreshold: DefaultANNThreshold,
	}
}

// Retriever embeds a query and ranks stored chunks against it. Small
// corpora are scanned exactly; past the ANN threshold an in-memory index
// is built once and reused until Invalidate is called.
type Retriever struct {
	store    store.Store
	embedder embed.Client
	cfg      Config
	logger   *slog.Logger

	mu    sync.Mutex
	index *vectorIndex
}

// New creates a retriever. Zero-value config fields fall back to defaults;
// a nil logger falls back to slog.Default.
func New(st store.Store, embedder embed.Client, cfg Config, logger *slog.Logger) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = DefaultMinScore
	}
	if cfg.ANNThreshold <= 0 {
		cfg.ANNThreshold = DefaultANNThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: st, embedder: embedder, cfg: cfg, logger: logger}
}

// Invalidate drops the approximate index. The ingestor calls this after
// any corpus mutation; the next query rebuilds if still warranted.
func (r *Retriever) Invalidate() {
	r.mu.Lock()
	r.index = nil
	r.mu.Unlock()
}

// Retrieve returns the top-K chunks above the relevance floor, ordered by
// descending similarity with ties broken by (document id, chunk index).
// An empty corpus yields an empty slice, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]model.RetrievalSource, error) {
	if query == "" {
		return nil, errors.Validation("query must not be empty")
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	index := r.index
	r.mu.Unlock()

	if index != nil {
		return r.rank(queryVec, index.Search(queryVec, r.cfg.TopK*annOversample)), nil
	}

	var candidates []*model.Chunk
	scanned := 0
	err = r.store.ScanEmbeddedChunks(ctx, func(chunk *model.Chunk) error {
		scanned++
		candidates = append(candidates, chunk)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if scanned > r.cfg.ANNThreshold {
		r.buildIndex(candidates)
	}

	return r.rank(queryVec, candidates), nil
}

// rank exact-scores candidates against the query vector, applies the floor,
// sorts, and truncates to TopK.
func (r *Retriever) rank(queryVec []float32, candidates []*model.Chunk) []model.RetrievalSource {
	sources := make([]model.RetrievalSource, 0, len(candidates))
	for _, chunk := range candidates {
		score := Cosine(queryVec, chunk.Embedding)
		if score < r.cfg.MinScore {
			continue
		}
		sources = append(sources, model.RetrievalSource{
			ChunkID:        chunk.ID,
			DocumentID:     chunk.DocumentID,
			DocumentTitle:  chunk.Metadata.DocumentTitle,
			ChunkIndex:     chunk.Index,
			Text:           chunk.Text,
			RelevanceScore: score,
			Metadata:       chunk.Metadata,
		})
	}

	sort.Slice(sources, func(i, j int) bool {
		if sources[i].RelevanceScore != sources[j].RelevanceScore {
			return sources[i].RelevanceScore > sources[j].RelevanceScore
		}
		if sources[i].DocumentID != sources[j].DocumentID {
			return sources[i].DocumentID < sources[j].DocumentID
		}
		return sources[i].ChunkIndex < sources[j].ChunkIndex
	})

	if len(sources) > r.cfg.TopK {
		sources = sources[:r.cfg.TopK]
	}
	return sources
}

func (r *Retriever) buildIndex(chunks []*model.Chunk) {
	index := newVectorIndex()
	for _, chunk := range chunks {
		index.Add(chunk)
	}

	r.mu.Lock()
	r.index = index
	r.mu.Unlock()

	r.logger.Info("built approximate retrieval index",
		slog.Int("chunks", len(chunks)),
		slog.Int("threshold", r.cfg.ANNThreshold))
}

// Cosine computes cosine similarity in [−1,1], returning 0 when either
// vector has zero magnitude or the dimensions disagree.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
