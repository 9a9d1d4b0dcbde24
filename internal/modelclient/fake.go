package modelclient

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"time"
)

// FakeDimensions is the embedding dimensionality of the fake provider.
const FakeDimensions = 64

// FakeProvider is a deterministic in-process provider for tests and local
// development. Embeddings are hashed bag-of-words vectors, so identical
// texts embed identically and texts sharing vocabulary score high cosine
// similarity.
type FakeProvider struct {
	mu sync.Mutex

	// GenerateFunc overrides the canned generation when set.
	GenerateFunc func(system, user string, cfg GenConfig) (string, error)
	// EmbedErr fails every embed call when set.
	EmbedErr error
	// FailTexts fails embeds of exactly these texts.
	FailTexts map[string]error

	embedCalls    []string
	generateCalls []FakeGenerateCall
}

// FakeGenerateCall records one generation request for assertions.
type FakeGenerateCall struct {
	System string
	User   string
	Config GenConfig
	At     time.Time
}

// NewFakeProvider creates a deterministic fake provider.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{}
}

// Embed returns a deterministic unit vector derived from the text's words.
func (p *FakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.embedCalls = append(p.embedCalls, text)
	embedErr := p.EmbedErr
	var textErr error
	if p.FailTexts != nil {
		textErr = p.FailTexts[text]
	}
	p.mu.Unlock()

	if embedErr != nil {
		return nil, embedErr
	}
	if textErr != nil {
		return nil, textErr
	}

	return HashEmbedding(text), nil
}

// Generate returns the override result or a canned cited answer.
func (p *FakeProvider) Generate(ctx context.Context, system, user string, cfg GenConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	p.generateCalls = append(p.generateCalls, FakeGenerateCall{
		System: system,
		User:   user,
		Config: cfg,
		At:     time.Now(),
	})
	fn := p.GenerateFunc
	p.mu.Unlock()

	if fn != nil {
		return fn(system, user, cfg)
	}
	return "According to the onboarding materials [SOURCE 1], the requested information is covered there.", nil
}

// Dimensions returns the fake embedding dimensionality.
func (p *FakeProvider) Dimensions() int {
	return FakeDimensions
}

// Close releases resources.
func (p *FakeProvider) Close() error {
	return nil
}

// EmbedCalls returns the texts embedded so far.
func (p *FakeProvider) EmbedCalls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.embedCalls))
	copy(out, p.embedCalls)
	return out
}

// GenerateCalls returns the recorded generation requests.
func (p *FakeProvider) GenerateCalls() []FakeGenerateCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]FakeGenerateCall, len(p.generateCalls))
	copy(out, p.generateCalls)
	return out
}

var _ Provider = (*FakeProvider)(nil)

// HashEmbedding maps text onto a deterministic unit vector by hashing each
// lowercased word into a fixed number of buckets. Shared vocabulary between
// two texts yields proportionally higher cosine similarity.
func HashEmbedding(text string) []float32 {
	vec := make([]float32, FakeDimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()[]")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%FakeDimensions]++
	}

	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(sumSquares))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
