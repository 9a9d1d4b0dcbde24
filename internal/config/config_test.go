package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.3, cfg.Retrieval.MinScore, 1e-9)
	assert.Equal(t, 512, cfg.Chunking.ChunkTokens)
	assert.Equal(t, 50, cfg.Chunking.OverlapTokens)
	assert.Equal(t, 5, cfg.Embedding.BatchSize)
	assert.Equal(t, Duration(500*time.Millisecond), cfg.Embedding.BatchDelay)
	assert.Equal(t, 50, cfg.ModelClient.QueueCapacity)
	assert.Equal(t, Duration(6500*time.Millisecond), cfg.ModelClient.MinInterval)
	assert.Equal(t, Duration(5*time.Minute), cfg.ModelClient.RequestTimeout)
	assert.Equal(t, float32(0.2), cfg.Generation.Temperature)
	assert.Equal(t, 1024, cfg.Generation.MaxOutputTokens)
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "onboardrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
retrieval:
  top_k: 8
chunking:
  chunk_tokens: 256
model_client:
  provider: fake
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.Equal(t, 256, cfg.Chunking.ChunkTokens)
	assert.Equal(t, "fake", cfg.ModelClient.Provider)
	// Untouched fields keep defaults.
	assert.Equal(t, 5, cfg.Embedding.BatchSize)
}

func TestEnvOverridesBeatFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "onboardrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval:\n  top_k: 8\n"), 0o644))

	t.Setenv("RAG_TOP_K", "3")
	t.Setenv("MIN_RELEVANCE_SCORE", "0.5")
	t.Setenv("MODEL_CLIENT_MIN_INTERVAL_MS", "100")
	t.Setenv("EMBED_BATCH_DELAY_MS", "10")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.5, cfg.Retrieval.MinScore, 1e-9)
	assert.Equal(t, Duration(100*time.Millisecond), cfg.ModelClient.MinInterval)
	assert.Equal(t, Duration(10*time.Millisecond), cfg.Embedding.BatchDelay)
}

func TestLoadParsesDurationStrings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "onboardrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
embedding:
  batch_delay: 250ms
model_client:
  min_interval: 2s
  request_timeout: 1m
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, Duration(250*time.Millisecond), cfg.Embedding.BatchDelay)
	assert.Equal(t, Duration(2*time.Second), cfg.ModelClient.MinInterval)
	assert.Equal(t, Duration(time.Minute), cfg.ModelClient.RequestTimeout)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "onboardrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedding:\n  batch_delay: soon\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero top_k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"min_score above one", func(c *Config) { c.Retrieval.MinScore = 1.5 }},
		{"overlap >= chunk", func(c *Config) { c.Chunking.OverlapTokens = c.Chunking.ChunkTokens }},
		{"zero batch size", func(c *Config) { c.Embedding.BatchSize = 0 }},
		{"zero queue capacity", func(c *Config) { c.ModelClient.QueueCapacity = 0 }},
		{"unknown provider", func(c *Config) { c.ModelClient.Provider = "mystery" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
