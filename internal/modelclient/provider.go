// Package modelclient is the single outbound interface to the embedding and
// generation models. All provider traffic passes through one FIFO queue with
// minimum inter-request spacing, so the client is the only choke point that
// bounds fan-out to the external provider.
package modelclient

import (
	"context"
	"time"
)

// Safety ceilings for generation. Callers cannot raise past these.
const (
	// MaxTemperature keeps generation deterministic enough for grounding.
	MaxTemperature float32 = 0.2
	// MaxOutputTokenCeiling caps generated output length.
	MaxOutputTokenCeiling = 2048
)

// Backoff bounds for transient-failure retries.
const (
	baseBackoff = 1 * time.Second
	maxBackoff  = 30 * time.Second
)

// GenConfig carries per-call generation settings. The client clamps both
// fields to the safety ceilings above.
type GenConfig struct {
	Temperature     float32
	MaxOutputTokens int
}

// Provider is a model backend. Implementations are the only place that
// knows provider-specific error shapes; they translate every failure into
// the shared error taxonomy before returning.
type Provider interface {
	// Embed returns one fixed-dimension vector for the text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Generate produces text from system instructions and a user prompt.
	Generate(ctx context.Context, system, user string, cfg GenConfig) (string, error)

	// Dimensions returns the embedding dimensionality D, fixed per corpus.
	Dimensions() int

	// Close releases resources.
	Close() error
}

// Config configures the client queue and retry policy.
type Config struct {
	// QueueCapacity bounds the FIFO request queue.
	QueueCapacity int
	// MinInterval is the minimum spacing between provider dispatches.
	MinInterval time.Duration
	// RequestTimeout is the per-request deadline including queue wait.
	RequestTimeout time.Duration
	// MaxRetries caps retry attempts for transient failures.
	MaxRetries int
}

// DefaultConfig returns the documented defaults: a 50-slot queue with 6.5s
// spacing (just under a 9 requests/minute quota) and a 5 minute deadline.
func DefaultConfig() Config {
	return Config{
		QueueCapacity:  50,
		MinInterval:    6500 * time.Millisecond,
		RequestTimeout: 5 * time.Minute,
		MaxRetries:     3,
	}
}
