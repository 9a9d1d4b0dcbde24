package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glinthq/onboardrag/internal/chunk"
	"github.com/glinthq/onboardrag/internal/embed"
	"github.com/glinthq/onboardrag/internal/errors"
	"github.com/glinthq/onboardrag/internal/extract"
	"github.com/glinthq/onboardrag/internal/model"
	"github.com/glinthq/onboardrag/internal/modelclient"
	"github.com/glinthq/onboardrag/internal/store"
)

type fakeExtractor struct {
	result *extract.Result
	err    error
}

func (f *fakeExtractor) Extract(data []byte, filename string) (*extract.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeEmbedder hashes texts into deterministic vectors and can fail chosen
// indices on the first call only.
type fakeEmbedder struct {
	failFirstCall map[int]bool
	calls         int
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([]embed.Result, string) {
	firstCall := f.calls == 0
	f.calls++

	results := make([]embed.Result, len(texts))
	failed := 0
	for i, text := range texts {
		if firstCall && f.failFirstCall[i] {
			results[i] = embed.Result{Err: errors.Newf(errors.KindModelTransient, "embed failed")}
			failed++
			continue
		}
		results[i] = embed.Result{Vector: modelclient.HashEmbedding(text)}
	}

	warning := ""
	if failed > 0 {
		warning = "some chunks could not be embedded"
	}
	return results, warning
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate() { c.n++ }

const holidayText = "Company holidays include New Year's Day, Memorial Day, and Independence Day.\n\nAll full-time employees are entitled to these paid holidays."

func holidayExtract() *extract.Result {
	return &extract.Result{
		Text:      holidayText,
		PageCount: 1,
		WordCount: 20,
		Metadata: model.DocumentMetadata{
			Title:        "Holiday Policy",
			Author:       "People Ops",
			Language:     "en",
			DocumentType: "general",
		},
	}
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func storedChunks(t *testing.T, st store.Store) []*model.Chunk {
	t.Helper()
	var chunks []*model.Chunk
	err := st.ScanEmbeddedChunks(context.Background(), func(c *model.Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	require.NoError(t, err)
	return chunks
}

func TestProcessDocumentHappyPath(t *testing.T) {
	st := newTestStore(t)
	inv := &countingInvalidator{}
	ing := New(st, &fakeExtractor{result: holidayExtract()}, chunk.New(512, 50), &fakeEmbedder{}, inv, nil)

	res, err := ing.ProcessDocument(context.Background(), []byte("%PDF"), "", "", "holidays.pdf")
	require.NoError(t, err)

	assert.Equal(t, "Holiday Policy", res.Title)
	assert.Equal(t, 1, res.ChunkCount)
	assert.Equal(t, 1, res.EmbeddedCount)
	assert.Empty(t, res.Warning)
	assert.Equal(t, 20, res.WordCount)
	assert.Equal(t, 1, inv.n)

	doc, err := st.GetDocument(context.Background(), res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, holidayText, doc.Content)
	assert.Equal(t, "People Ops", doc.Author)

	chunks := storedChunks(t, st)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "Holiday Policy", chunks[0].Metadata.DocumentTitle)
	assert.Len(t, chunks[0].Embedding, modelclient.FakeDimensions)

	stats, err := st.CorpusStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentsWithEmbeddings)
}

func TestProcessDocumentTitlePrecedence(t *testing.T) {
	tests := []struct {
		name        string
		callerTitle string
		extracted   string
		want        string
	}{
		{"caller wins", "Caller Title", "Extracted Title", "Caller Title"},
		{"extractor next", "", "Extracted Title", "Extracted Title"},
		{"untitled fallback", "", "", UntitledDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStore(t)
			ex := holidayExtract()
			ex.Metadata.Title = tt.extracted
			ing := New(st, &fakeExtractor{result: ex}, chunk.New(512, 50), &fakeEmbedder{}, nil, nil)

			res, err := ing.ProcessDocument(context.Background(), []byte("%PDF"), tt.callerTitle, "", "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Title)
		})
	}
}

func TestProcessDocumentExtractFailureWritesNothing(t *testing.T) {
	st := newTestStore(t)
	ing := New(st, &fakeExtractor{
		err: errors.Newf(errors.KindExtractFailed, "no text"),
	}, chunk.New(512, 50), &fakeEmbedder{}, nil, nil)

	_, err := ing.ProcessDocument(context.Background(), []byte("%PDF"), "T", "", "")
	assert.True(t, errors.IsKind(err, errors.KindExtractFailed))

	docs, err := st.ListDocumentsWithStats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestProcessDocumentRejectsEmptyData(t *testing.T) {
	st := newTestStore(t)
	ing := New(st, &fakeExtractor{result: holidayExtract()}, chunk.New(512, 50), &fakeEmbedder{}, nil, nil)

	_, err := ing.ProcessDocument(context.Background(), nil, "T", "", "")
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

// fourParagraphExtract yields text the small-budget chunker splits into
// exactly four chunks.
func fourParagraphExtract() *extract.Result {
	paragraphs := []string{
		strings.TrimSpace(strings.Repeat("Orientation starts at nine on your first Monday. ", 2)),
		strings.TrimSpace(strings.Repeat("Benefits enrollment closes after thirty days here. ", 2)),
		strings.TrimSpace(strings.Repeat("Expense reports are due by the fifth of month. ", 2)),
		strings.TrimSpace(strings.Repeat("Badge access requires a signed security agreement. ", 2)),
	}
	text := strings.Join(paragraphs, "\n\n")
	return &extract.Result{
		Text:      text,
		PageCount: 2,
		WordCount: len(strings.Fields(text)),
		Metadata:  model.DocumentMetadata{Title: "Onboarding Guide", DocumentType: "guide"},
	}
}

func TestPartialEmbeddingFailureRenumbersContiguously(t *testing.T) {
	st := newTestStore(t)
	embedder := &fakeEmbedder{failFirstCall: map[int]bool{2: true}}
	ing := New(st, &fakeExtractor{result: fourParagraphExtract()}, chunk.New(16, 4), embedder, nil, nil)

	res, err := ing.ProcessDocument(context.Background(), []byte("%PDF"), "", "", "")
	require.NoError(t, err)
	assert.Equal(t, 4, res.ChunkCount)
	assert.Equal(t, 3, res.EmbeddedCount)
	assert.NotEmpty(t, res.Warning)

	chunks := storedChunks(t, st)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index, "stored indices must be contiguous")
	}

	// Reprocess with the now-healthy embedder completes the document.
	rres, err := ing.ReprocessDocument(context.Background(), res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, 4, rres.ChunkCount)
	assert.Equal(t, 4, rres.EmbeddedCount)
	assert.Empty(t, rres.Warning)

	chunks = storedChunks(t, st)
	require.Len(t, chunks, 4)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestReprocessIsStable(t *testing.T) {
	st := newTestStore(t)
	ing := New(st, &fakeExtractor{result: fourParagraphExtract()}, chunk.New(16, 4), &fakeEmbedder{}, nil, nil)

	res, err := ing.ProcessDocument(context.Background(), []byte("%PDF"), "", "", "")
	require.NoError(t, err)

	_, err = ing.ReprocessDocument(context.Background(), res.DocumentID)
	require.NoError(t, err)
	first := storedChunks(t, st)

	_, err = ing.ReprocessDocument(context.Background(), res.DocumentID)
	require.NoError(t, err)
	second := storedChunks(t, st)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Text, second[i].Text)
		assert.Equal(t, first[i].Index, second[i].Index)
	}
}

func TestReprocessUnknownDocument(t *testing.T) {
	st := newTestStore(t)
	ing := New(st, &fakeExtractor{result: holidayExtract()}, chunk.New(512, 50), &fakeEmbedder{}, nil, nil)

	_, err := ing.ReprocessDocument(context.Background(), "missing")
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

// failingReplaceStore wraps a real store and fails ReplaceChunks for one
// document, for batch-isolation tests.
type failingReplaceStore struct {
	store.Store
	failDocID string
}

func (f *failingReplaceStore) ReplaceChunks(ctx context.Context, documentID string, chunks []*model.Chunk) error {
	if documentID == f.failDocID {
		return errors.StoreError("replace chunks", nil)
	}
	return f.Store.ReplaceChunks(ctx, documentID, chunks)
}

func TestReprocessAllIsolatesFailures(t *testing.T) {
	st := newTestStore(t)
	ing := New(st, &fakeExtractor{result: holidayExtract()}, chunk.New(512, 50), &fakeEmbedder{}, nil, nil)

	resA, err := ing.ProcessDocument(context.Background(), []byte("%PDF"), "Doc A", "", "")
	require.NoError(t, err)
	_, err = ing.ProcessDocument(context.Background(), []byte("%PDF"), "Doc B", "", "")
	require.NoError(t, err)

	wrapped := &failingReplaceStore{Store: st, failDocID: resA.DocumentID}
	ing2 := New(wrapped, &fakeExtractor{result: holidayExtract()}, chunk.New(512, 50), &fakeEmbedder{}, nil, nil)

	report, err := ing2.ReprocessAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Errors)
}

func TestDeleteDocumentInvalidates(t *testing.T) {
	st := newTestStore(t)
	inv := &countingInvalidator{}
	ing := New(st, &fakeExtractor{result: holidayExtract()}, chunk.New(512, 50), &fakeEmbedder{}, inv, nil)

	res, err := ing.ProcessDocument(context.Background(), []byte("%PDF"), "", "", "")
	require.NoError(t, err)
	require.Equal(t, 1, inv.n)

	require.NoError(t, ing.DeleteDocument(context.Background(), res.DocumentID))
	assert.Equal(t, 2, inv.n)
	assert.Empty(t, storedChunks(t, st))

	err = ing.DeleteDocument(context.Background(), res.DocumentID)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}
