package modelclient

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	ragerrors "github.com/glinthq/onboardrag/internal/errors"
)

// Embedding dimensionality per OpenAI embedding model.
var openAIDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIProvider implements Provider against the OpenAI API.
type OpenAIProvider struct {
	client     *openai.Client
	embedModel string
	genModel   string
	dimensions int
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	EmbedModel string
	GenModel   string
}

// NewOpenAIProvider creates an OpenAI-backed provider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, ragerrors.Newf(ragerrors.KindValidation, "OpenAI API key is required")
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "text-embedding-3-small"
	}
	if cfg.GenModel == "" {
		cfg.GenModel = "gpt-4o-mini"
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	dims, ok := openAIDimensions[cfg.EmbedModel]
	if !ok {
		dims = 1536
	}

	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(clientConfig),
		embedModel: cfg.EmbedModel,
		genModel:   cfg.GenModel,
		dimensions: dims,
	}, nil
}

// Embed generates one embedding vector.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(p.embedModel),
	})
	if err != nil {
		return nil, translateOpenAIError("embedding", err)
	}
	if len(resp.Data) == 0 {
		return nil, ragerrors.Newf(ragerrors.KindModelTransient, "provider returned no embedding data")
	}
	return resp.Data[0].Embedding, nil
}

// Generate produces a chat completion.
func (p *OpenAIProvider) Generate(ctx context.Context, system, user string, cfg GenConfig) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.genModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxOutputTokens,
	})
	if err != nil {
		return "", translateOpenAIError("generation", err)
	}
	if len(resp.Choices) == 0 {
		return "", ragerrors.Newf(ragerrors.KindModelTransient, "provider returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Dimensions returns the embedding dimensionality for the configured model.
func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

// Close releases resources.
func (p *OpenAIProvider) Close() error {
	return nil
}

var _ Provider = (*OpenAIProvider)(nil)

// translateOpenAIError maps provider error shapes onto the shared taxonomy.
// This is the only place that inspects OpenAI-specific errors.
func translateOpenAIError(op string, err error) error {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			re := ragerrors.New(ragerrors.KindModelRateLimited, "provider rate limited "+op, err)
			if d := retryAfterHint(apiErr); d > 0 {
				re = re.WithRetryAfter(d)
			}
			return re
		case apiErr.HTTPStatusCode >= 500:
			return ragerrors.New(ragerrors.KindModelTransient, "provider "+op+" failed", err)
		default:
			return ragerrors.New(ragerrors.KindInternal, "provider "+op+" rejected request", err)
		}
	}

	var reqErr *openai.RequestError
	if stderrors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode >= 500 || reqErr.HTTPStatusCode == 0 {
			return ragerrors.New(ragerrors.KindModelTransient, "provider "+op+" request failed", err)
		}
		return ragerrors.New(ragerrors.KindInternal, "provider "+op+" request rejected", err)
	}

	// Connection resets and other transport failures surface as plain errors.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "eof") {
		return ragerrors.New(ragerrors.KindModelTransient, "provider connection failed during "+op, err)
	}

	return ragerrors.New(ragerrors.KindInternal, "provider "+op+" failed", err)
}

// retryAfterHint extracts a retry-after duration from the error message when
// the provider includes one (e.g. "Please try again in 20s").
func retryAfterHint(apiErr *openai.APIError) time.Duration {
	msg := apiErr.Message
	idx := strings.Index(msg, "try again in ")
	if idx < 0 {
		return 0
	}
	rest := msg[idx+len("try again in "):]
	end := strings.IndexAny(rest, ". ")
	if end > 0 {
		rest = rest[:end]
	}
	d, err := time.ParseDuration(strings.TrimSpace(rest))
	if err != nil {
		return 0
	}
	return d
}
