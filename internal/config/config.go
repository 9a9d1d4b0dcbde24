// Package config loads service configuration from defaults, an optional YAML
// file, and environment variable overrides, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that YAML-encodes as a string like "500ms".
type Duration time.Duration

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler. Accepts duration strings
// ("500ms", "5m") and bare integers, which are taken as nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	*d = Duration(n)
	return nil
}

// Config is the complete service configuration.
type Config struct {
	DataDir     string            `yaml:"data_dir" json:"data_dir"`
	Retrieval   RetrievalConfig   `yaml:"retrieval" json:"retrieval"`
	Chunking    ChunkingConfig    `yaml:"chunking" json:"chunking"`
	Embedding   EmbeddingConfig   `yaml:"embedding" json:"embedding"`
	ModelClient ModelClientConfig `yaml:"model_client" json:"model_client"`
	Generation  GenerationConfig  `yaml:"generation" json:"generation"`
	Server      ServerConfig      `yaml:"server" json:"server"`
}

// RetrievalConfig configures the query path.
type RetrievalConfig struct {
	// TopK is the maximum number of sources per answer.
	TopK int `yaml:"top_k" json:"top_k"`
	// MinScore is the cosine similarity floor for candidates.
	MinScore float64 `yaml:"min_score" json:"min_score"`
	// ANNThreshold is the corpus size (embedded chunks) above which the
	// retriever consults the HNSW index instead of a full scan.
	// Zero disables the ANN path.
	ANNThreshold int `yaml:"ann_threshold" json:"ann_threshold"`
}

// ChunkingConfig configures the chunker.
type ChunkingConfig struct {
	// ChunkTokens is the target chunk size in approximate tokens.
	ChunkTokens int `yaml:"chunk_tokens" json:"chunk_tokens"`
	// OverlapTokens is the overlap budget in approximate tokens.
	OverlapTokens int `yaml:"overlap_tokens" json:"overlap_tokens"`
}

// EmbeddingConfig configures the embedding stage.
type EmbeddingConfig struct {
	// BatchSize is the number of chunk texts embedded per batch.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// BatchDelay is the pause between batches, independent of the model
	// client's own spacing, so one ingestion cannot exhaust the queue.
	BatchDelay Duration `yaml:"batch_delay" json:"batch_delay"`
	// CacheSize is the LRU size for query-embedding caching.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// ModelClientConfig configures the outbound model client.
type ModelClientConfig struct {
	// Provider selects the model backend ("openai" or "fake").
	Provider string `yaml:"provider" json:"provider"`
	// APIKey authenticates against the provider. Usually set via env.
	APIKey string `yaml:"api_key" json:"api_key"`
	// BaseURL overrides the provider endpoint (for proxies and tests).
	BaseURL string `yaml:"base_url" json:"base_url"`
	// EmbedModel is the embedding model identifier.
	EmbedModel string `yaml:"embed_model" json:"embed_model"`
	// GenModel is the generation model identifier.
	GenModel string `yaml:"gen_model" json:"gen_model"`
	// QueueCapacity bounds the FIFO request queue.
	QueueCapacity int `yaml:"queue_capacity" json:"queue_capacity"`
	// MinInterval is the minimum spacing between provider requests.
	// The 6.5s default keeps a small-tier quota of ~9 requests/minute.
	MinInterval Duration `yaml:"min_interval" json:"min_interval"`
	// RequestTimeout is the per-request deadline including queue wait.
	RequestTimeout Duration `yaml:"request_timeout" json:"request_timeout"`
	// MaxRetries caps retry attempts for transient failures.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
}

// GenerationConfig configures answer generation.
type GenerationConfig struct {
	// Temperature for generation; clamped to 0.2 by the model client.
	Temperature float32 `yaml:"temperature" json:"temperature"`
	// MaxOutputTokens caps generated answer length.
	MaxOutputTokens int `yaml:"max_output_tokens" json:"max_output_tokens"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
	// MaxUploadBytes bounds PDF upload size (default 50 MiB).
	MaxUploadBytes int64  `yaml:"max_upload_bytes" json:"max_upload_bytes"`
	LogLevel       string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Retrieval: RetrievalConfig{
			TopK:         5,
			MinScore:     0.3,
			ANNThreshold: 10000,
		},
		Chunking: ChunkingConfig{
			ChunkTokens:   512,
			OverlapTokens: 50,
		},
		Embedding: EmbeddingConfig{
			BatchSize:  5,
			BatchDelay: Duration(500 * time.Millisecond),
			CacheSize:  1000,
		},
		ModelClient: ModelClientConfig{
			Provider:       "openai",
			EmbedModel:     "text-embedding-3-small",
			GenModel:       "gpt-4o-mini",
			QueueCapacity:  50,
			MinInterval:    Duration(6500 * time.Millisecond),
			RequestTimeout: Duration(5 * time.Minute),
			MaxRetries:     3,
		},
		Generation: GenerationConfig{
			Temperature:     0.2,
			MaxOutputTokens: 1024,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 50 << 20,
			LogLevel:       "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".onboardrag")
	}
	return filepath.Join(home, ".onboardrag")
}

// Load builds configuration from defaults, an optional YAML file at path,
// and environment variable overrides, then validates the result.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("onboardrag.yaml"); err == nil {
		if err := cfg.loadYAML("onboardrag.yaml"); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
// The names mirror the documented configuration surface.
func (c *Config) applyEnvOverrides() {
	intVar(&c.Retrieval.TopK, "RAG_TOP_K")
	floatVar(&c.Retrieval.MinScore, "MIN_RELEVANCE_SCORE")
	intVar(&c.Chunking.ChunkTokens, "CHUNK_TOKENS")
	intVar(&c.Chunking.OverlapTokens, "CHUNK_OVERLAP_TOKENS")
	intVar(&c.Embedding.BatchSize, "EMBED_BATCH_SIZE")
	msVar(&c.Embedding.BatchDelay, "EMBED_BATCH_DELAY_MS")
	intVar(&c.ModelClient.QueueCapacity, "MODEL_CLIENT_QUEUE_CAPACITY")
	msVar(&c.ModelClient.MinInterval, "MODEL_CLIENT_MIN_INTERVAL_MS")
	msVar(&c.ModelClient.RequestTimeout, "MODEL_CLIENT_REQUEST_TIMEOUT_MS")
	float32Var(&c.Generation.Temperature, "GEN_TEMPERATURE")
	intVar(&c.Generation.MaxOutputTokens, "GEN_MAX_OUTPUT_TOKENS")

	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.ModelClient.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.ModelClient.BaseURL = v
	}
	if v := os.Getenv("RAG_MODEL_PROVIDER"); v != "" {
		c.ModelClient.Provider = v
	}
	if v := os.Getenv("RAG_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("RAG_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("RAG_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.MinScore < 0 || c.Retrieval.MinScore > 1 {
		return fmt.Errorf("retrieval.min_score must be in [0,1], got %f", c.Retrieval.MinScore)
	}
	if c.Chunking.ChunkTokens <= 0 {
		return fmt.Errorf("chunking.chunk_tokens must be positive, got %d", c.Chunking.ChunkTokens)
	}
	if c.Chunking.OverlapTokens < 0 || c.Chunking.OverlapTokens >= c.Chunking.ChunkTokens {
		return fmt.Errorf("chunking.overlap_tokens must be in [0, chunk_tokens), got %d", c.Chunking.OverlapTokens)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding.batch_size must be positive, got %d", c.Embedding.BatchSize)
	}
	if c.ModelClient.QueueCapacity <= 0 {
		return fmt.Errorf("model_client.queue_capacity must be positive, got %d", c.ModelClient.QueueCapacity)
	}
	if c.ModelClient.MinInterval < 0 {
		return fmt.Errorf("model_client.min_interval must be non-negative, got %s", time.Duration(c.ModelClient.MinInterval))
	}
	if c.ModelClient.RequestTimeout <= 0 {
		return fmt.Errorf("model_client.request_timeout must be positive, got %s", time.Duration(c.ModelClient.RequestTimeout))
	}
	if c.Generation.Temperature < 0 {
		return fmt.Errorf("generation.temperature must be non-negative, got %f", c.Generation.Temperature)
	}
	if c.Generation.MaxOutputTokens <= 0 {
		return fmt.Errorf("generation.max_output_tokens must be positive, got %d", c.Generation.MaxOutputTokens)
	}
	switch c.ModelClient.Provider {
	case "openai", "fake":
	default:
		return fmt.Errorf("model_client.provider must be 'openai' or 'fake', got %s", c.ModelClient.Provider)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func intVar(dst *int, name string) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func floatVar(dst *float64, name string) {
	if v := os.Getenv(name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func float32Var(dst *float32, name string) {
	if v := os.Getenv(name); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			*dst = float32(f)
		}
	}
}

func msVar(dst *Duration, name string) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			*dst = Duration(time.Duration(n) * time.Millisecond)
		}
	}
}
