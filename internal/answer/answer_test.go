package answer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glinthq/onboardrag/internal/errors"
	"github.com/glinthq/onboardrag/internal/model"
	"github.com/glinthq/onboardrag/internal/modelclient"
	"github.com/glinthq/onboardrag/internal/retrieve"
	"github.com/glinthq/onboardrag/internal/store"
)

type generatorFunc func(ctx context.Context, system, user string, cfg modelclient.GenConfig) (string, error)

func (f generatorFunc) Generate(ctx context.Context, system, user string, cfg modelclient.GenConfig) (string, error) {
	return f(ctx, system, user, cfg)
}

type hashEmbedder struct{}

func (hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return modelclient.HashEmbedding(text), nil
}

func (hashEmbedder) Dimensions() int { return modelclient.FakeDimensions }

const holidayText = "Company holidays include New Year's Day, Memorial Day, and Independence Day. All full-time employees are entitled to these paid holidays."

func newAnswerer(t *testing.T, gen Generator) *Answerer {
	t.Helper()

	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	doc := &model.Document{
		ID:         "doc-1",
		Title:      "Holiday Policy",
		Content:    holidayText,
		WordCount:  20,
		UploadedAt: time.Now().UTC(),
	}
	require.NoError(t, st.InsertDocument(context.Background(), doc))
	require.NoError(t, st.BulkInsertChunks(context.Background(), "doc-1", []*model.Chunk{{
		ID:         model.NewID(),
		DocumentID: "doc-1",
		Index:      0,
		Text:       holidayText,
		TokenCount: len(holidayText) / 4,
		Embedding:  modelclient.HashEmbedding(holidayText),
		Metadata: model.ChunkMetadata{
			DocumentTitle: "Holiday Policy",
			DocumentType:  "policy",
			Author:        "People Ops",
		},
		CreatedAt: time.Now().UTC(),
	}}))

	retriever := retrieve.New(st, hashEmbedder{}, retrieve.DefaultConfig(), nil)
	return New(retriever, gen, modelclient.GenConfig{Temperature: 0.2, MaxOutputTokens: 1024}, nil)
}

func TestAnswerGroundedWithCitation(t *testing.T) {
	var capturedSystem, capturedUser string
	gen := generatorFunc(func(ctx context.Context, system, user string, cfg modelclient.GenConfig) (string, error) {
		capturedSystem = system
		capturedUser = user
		return "Company holidays include New Year's Day, Memorial Day, and Independence Day [SOURCE 1].", nil
	})

	a := newAnswerer(t, gen)
	ans, err := a.Answer(context.Background(), "What are the company holidays?", "user-1")
	require.NoError(t, err)

	assert.Contains(t, ans.Text, "[SOURCE 1]")
	assert.NotContains(t, ans.Text, UncitedNote)
	require.Len(t, ans.Sources, 1)
	assert.True(t, strings.HasSuffix(ans.Sources[0].Excerpt(), "…"))

	top := ans.Sources[0].RelevanceScore
	want := (0.5*top + 0.5*top) * 1.1
	if want > 1 {
		want = 1
	}
	assert.InDelta(t, want, ans.Confidence, 1e-9)
	assert.Greater(t, ans.Confidence, 0.0)

	// The prompt carries the grounding rules, the source block, and the question.
	assert.Contains(t, capturedSystem, "Never use external knowledge")
	assert.Contains(t, capturedSystem, RefusalText)
	assert.Contains(t, capturedUser, "[SOURCE 1:")
	assert.Contains(t, capturedUser, "Question: What are the company holidays?")
}

func TestAnswerAppendsNoteWhenUncited(t *testing.T) {
	gen := generatorFunc(func(ctx context.Context, system, user string, cfg modelclient.GenConfig) (string, error) {
		return "The company observes three paid holidays.", nil
	})

	a := newAnswerer(t, gen)
	ans, err := a.Answer(context.Background(), "What are the company holidays?", "")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(ans.Text, UncitedNote))
	require.NotEmpty(t, ans.Sources)

	// Without citations the 1.1 boost must not apply.
	top := ans.Sources[0].RelevanceScore
	var sum float64
	for _, s := range ans.Sources {
		sum += s.RelevanceScore
	}
	avg := sum / float64(len(ans.Sources))
	assert.InDelta(t, 0.5*avg+0.5*top, ans.Confidence, 1e-9)
}

func TestAnswerFallbackOnEmptyRetrieval(t *testing.T) {
	gen := generatorFunc(func(ctx context.Context, system, user string, cfg modelclient.GenConfig) (string, error) {
		t.Fatal("generator must not be called when retrieval is empty")
		return "", nil
	})

	a := newAnswerer(t, gen)
	// Vocabulary disjoint from the corpus scores below the floor.
	ans, err := a.Answer(context.Background(), "xylophone quantum zebra latitude", "")
	require.NoError(t, err)

	assert.Equal(t, FallbackNoResults, ans.Text)
	assert.Empty(t, ans.Sources)
	assert.Zero(t, ans.Confidence)
}

func TestAnswerRejectsEmptyQuestion(t *testing.T) {
	a := newAnswerer(t, generatorFunc(func(ctx context.Context, system, user string, cfg modelclient.GenConfig) (string, error) {
		return "", nil
	}))

	_, err := a.Answer(context.Background(), "   ", "")
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestAnswerPropagatesGeneratorFailure(t *testing.T) {
	gen := generatorFunc(func(ctx context.Context, system, user string, cfg modelclient.GenConfig) (string, error) {
		return "", errors.Newf(errors.KindModelTimeout, "deadline exceeded")
	})

	a := newAnswerer(t, gen)
	_, err := a.Answer(context.Background(), "What are the company holidays?", "")
	assert.True(t, errors.IsKind(err, errors.KindModelTimeout))
}

func TestBuildContextHeaderFormat(t *testing.T) {
	sources := []model.RetrievalSource{
		{
			DocumentTitle:  "Employee Handbook",
			ChunkIndex:     2,
			Text:           "first block",
			RelevanceScore: 0.874,
			Metadata: model.ChunkMetadata{
				Author:       "HR",
				DocumentType: "handbook",
			},
		},
		{
			DocumentTitle:  "PTO Policy",
			ChunkIndex:     0,
			Text:           "second block",
			RelevanceScore: 0.5,
		},
	}

	ctx := BuildContext(sources)
	blocks := strings.Split(ctx, "\n\n---\n\n")
	require.Len(t, blocks, 2)

	assert.Equal(t,
		`[SOURCE 1: "Employee Handbook" by HR [handbook] - Section 3 (Relevance: 87.4%)]`+"\nfirst block",
		blocks[0])
	// Author and type suffixes are omitted when unknown.
	assert.Equal(t,
		`[SOURCE 2: "PTO Policy" - Section 1 (Relevance: 50.0%)]`+"\nsecond block",
		blocks[1])
}

func TestConfidenceBounds(t *testing.T) {
	assert.Zero(t, Confidence(nil, true))

	sources := []model.RetrievalSource{
		{RelevanceScore: 0.4},
		{RelevanceScore: 0.8},
	}
	// avg=0.6, top=0.8 → base 0.7.
	assert.InDelta(t, 0.7, Confidence(sources, false), 1e-9)
	assert.InDelta(t, 0.77, Confidence(sources, true), 1e-9)

	// The boost clamps at 1.
	high := []model.RetrievalSource{{RelevanceScore: 1.0}}
	assert.InDelta(t, 1.0, Confidence(high, true), 1e-9)
}
