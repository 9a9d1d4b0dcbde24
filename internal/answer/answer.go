// Package answer synthesizes grounded, cited answers from retrieved
// chunks, with post-hoc citation validation and confidence scoring.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/glinthq/onboardrag/internal/errors"
	"github.com/glinthq/onboardrag/internal/model"
	"github.com/glinthq/onboardrag/internal/modelclient"
	"github.com/glinthq/onboardrag/internal/retrieve"
)

// Caller-visible fixed strings. Callers and tests rely on these verbatim.
const (
	// FallbackNoResults is returned when retrieval surfaces nothing.
	FallbackNoResults = "I couldn't find any relevant information in the uploaded onboarding documents to answer your question. Please ensure the relevant materials have been uploaded in the Admin section, or try rephrasing your question."

	// RefusalText is what the generator is instructed to emit when the
	// sources do not contain the requested information.
	RefusalText = "This information is not available in the current onboarding materials. Please contact HR or your manager for clarification."

	// UncitedNote is appended when a non-empty answer cites no sources.
	UncitedNote = "(Note: This answer is based on the uploaded onboarding documents.)"
)

const systemInstructions = `You are an onboarding assistant. Answer questions using ONLY the provided sources.

Rules:
1. Use only information from the sources below. Never use external knowledge.
2. Cite every claim with its source marker, e.g. [SOURCE 1].
3. If the sources do not contain the information needed to answer, reply exactly: "` + RefusalText + `"`

// citationPattern detects [SOURCE n] markers in generated text.
var citationPattern = regexp.MustCompile(`\[SOURCE \d+\]`)

// citedBoost rewards answers that actually cite their sources.
const citedBoost = 1.1

// Generator is the slice of the model client the answerer needs.
type Generator interface {
	Generate(ctx context.Context, system, user string, cfg modelclient.GenConfig) (string, error)
}

// Answerer runs the query path: retrieve, prompt, generate, validate.
type Answerer struct {
	retriever *retrieve.Retriever
	generator Generator
	genConfig modelclient.GenConfig
	logger    *slog.Logger
}

// New creates an answerer. A nil logger falls back to slog.Default.
func New(retriever *retrieve.Retriever, generator Generator, genConfig modelclient.GenConfig, logger *slog.Logger) *Answerer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{
		retriever: retriever,
		generator: generator,
		genConfig: genConfig,
		logger:    logger,
	}
}

// Answer answers a question from the ingested corpus. An empty retrieval
// is a successful response with the fixed fallback text and confidence 0,
// not an error.
func (a *Answerer) Answer(ctx context.Context, question, userID string) (*model.Answer, error) {
	started := time.Now()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.Validation("question must not be empty")
	}

	sources, err := a.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return &model.Answer{
			Text:         FallbackNoResults,
			Sources:      []model.RetrievalSource{},
			Confidence:   0,
			ResponseTime: time.Since(started),
		}, nil
	}

	prompt := BuildContext(sources) + "\n\nQuestion: " + question

	text, err := a.generator.Generate(ctx, systemInstructions, prompt, a.genConfig)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)

	cited := citationPattern.MatchString(text)
	if !cited {
		a.logger.Debug("answer carries no citations",
			slog.String("userId", userID),
			slog.Int("sources", len(sources)))
		text = text + "\n\n" + UncitedNote
	}

	return &model.Answer{
		Text:         text,
		Sources:      sources,
		Confidence:   Confidence(sources, cited),
		ResponseTime: time.Since(started),
	}, nil
}

// BuildContext renders retrieved sources as numbered blocks separated by
// "---" dividers, each introduced by a source header the generator can
// cite back.
func BuildContext(sources []model.RetrievalSource) string {
	blocks := make([]string, len(sources))
	for i, src := range sources {
		blocks[i] = sourceHeader(i+1, src) + "\n" + src.Text
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

// sourceHeader formats one source header, e.g.
// [SOURCE 2: "Employee Handbook" by HR [handbook] - Section 3 (Relevance: 87.4%)]
func sourceHeader(n int, src model.RetrievalSource) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[SOURCE %d: %q", n, src.DocumentTitle)
	if src.Metadata.Author != "" {
		fmt.Fprintf(&sb, " by %s", src.Metadata.Author)
	}
	if src.Metadata.DocumentType != "" {
		fmt.Fprintf(&sb, " [%s]", src.Metadata.DocumentType)
	}
	fmt.Fprintf(&sb, " - Section %d (Relevance: %.1f%%)]", src.ChunkIndex+1, src.RelevanceScore*100)
	return sb.String()
}

// Confidence scores an answer from its source relevances: the mean and the
// maximum weighted equally, boosted when the answer cites sources, clamped
// to [0,1].
func Confidence(sources []model.RetrievalSource, cited bool) float64 {
	if len(sources) == 0 {
		return 0
	}

	var sum, top float64
	for _, src := range sources {
		sum += src.RelevanceScore
		if src.RelevanceScore > top {
			top = src.RelevanceScore
		}
	}
	avg := sum / float64(len(sources))

	confidence := 0.5*avg + 0.5*top
	if cited {
		confidence *= citedBoost
	}
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}
