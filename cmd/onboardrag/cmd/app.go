package cmd

import (
	"log/slog"
	"time"

	"github.com/glinthq/onboardrag/internal/answer"
	"github.com/glinthq/onboardrag/internal/chunk"
	"github.com/glinthq/onboardrag/internal/config"
	"github.com/glinthq/onboardrag/internal/embed"
	"github.com/glinthq/onboardrag/internal/extract"
	"github.com/glinthq/onboardrag/internal/ingest"
	"github.com/glinthq/onboardrag/internal/logging"
	"github.com/glinthq/onboardrag/internal/modelclient"
	"github.com/glinthq/onboardrag/internal/retrieve"
	"github.com/glinthq/onboardrag/internal/stats"
	"github.com/glinthq/onboardrag/internal/store"
)

// app holds the assembled service stack shared by the CLI commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    store.Store
	client   *modelclient.Client
	ingestor *ingest.Ingestor
	answerer *answer.Answerer
	stats    *stats.Service
}

// openApp loads configuration and wires the full pipeline. The caller
// must call close when done.
func openApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	// The --log-level flag wins; otherwise the configured level applies.
	if logLevel == "" && cfg.Server.LogLevel != "" {
		logging.SetLevel(cfg.Server.LogLevel)
	}

	logger := slog.Default()

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	provider, err := newProvider(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	client := modelclient.New(provider, modelclient.Config{
		QueueCapacity:  cfg.ModelClient.QueueCapacity,
		MinInterval:    time.Duration(cfg.ModelClient.MinInterval),
		RequestTimeout: time.Duration(cfg.ModelClient.RequestTimeout),
		MaxRetries:     cfg.ModelClient.MaxRetries,
	})

	embedder := embed.New(client, cfg.Embedding.BatchSize, time.Duration(cfg.Embedding.BatchDelay), logger)
	queryCache, err := embed.NewQueryCache(client, cfg.Embedding.CacheSize)
	if err != nil {
		_ = client.Close()
		_ = st.Close()
		return nil, err
	}

	retriever := retrieve.New(st, queryCache, retrieve.Config{
		TopK:         cfg.Retrieval.TopK,
		MinScore:     cfg.Retrieval.MinScore,
		ANNThreshold: cfg.Retrieval.ANNThreshold,
	}, logger)

	answerer := answer.New(retriever, client, modelclient.GenConfig{
		Temperature:     cfg.Generation.Temperature,
		MaxOutputTokens: cfg.Generation.MaxOutputTokens,
	}, logger)

	chunker := chunk.New(cfg.Chunking.ChunkTokens, cfg.Chunking.OverlapTokens)
	ingestor := ingest.New(st, extract.New(logger), chunker, embedder, retriever, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		client:   client,
		ingestor: ingestor,
		answerer: answerer,
		stats:    stats.New(st),
	}, nil
}

func newProvider(cfg *config.Config) (modelclient.Provider, error) {
	if cfg.ModelClient.Provider == "fake" {
		return modelclient.NewFakeProvider(), nil
	}
	return modelclient.NewOpenAIProvider(modelclient.OpenAIConfig{
		APIKey:     cfg.ModelClient.APIKey,
		BaseURL:    cfg.ModelClient.BaseURL,
		EmbedModel: cfg.ModelClient.EmbedModel,
		GenModel:   cfg.ModelClient.GenModel,
	})
}

func (a *app) close() {
	_ = a.client.Close()
	_ = a.store.Close()
}
