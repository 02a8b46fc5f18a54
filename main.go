// qa-youtube-chatbot — grounded question answering over YouTube transcripts.
//
// Exposes MCP tools to ingest a batch of videos, ask questions answered only
// from their transcripts, read the conversation log, and clear the
// transcript cache or vector indexes. Runs as HTTP MCP server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/CorvoHisui/qa-youtube-chatbot/internal/engine"
	"github.com/CorvoHisui/qa-youtube-chatbot/internal/engine/sources"
	"github.com/CorvoHisui/qa-youtube-chatbot/internal/engine/store"
	"github.com/CorvoHisui/qa-youtube-chatbot/internal/engine/vectordb"
	"github.com/CorvoHisui/qa-youtube-chatbot/internal/vidserver"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8895")
)

func main() {
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx := context.Background()
	backend, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("transcript store init failed", slog.String("store", cfg.TranscriptStore), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	yt := sources.NewYouTube(cfg.HTTPClient, cfg.TranscriptLangs, cfg.TranscriptRPS)
	cache := engine.NewTranscriptCache(backend)
	index, err := vectordb.Open(cfg.IndexRoot, engine.NewOpenAIEmbedder(cfg), cfg.EmbedBatchSize)
	if err != nil {
		slog.Error("index root init failed", slog.String("root", cfg.IndexRoot), slog.Any("error", err))
		os.Exit(1)
	}

	// One completer serves both the agent and the QA chain.
	llm := engine.NewKitCompleter(cfg)
	pipeline := engine.NewPipeline(cfg, engine.NewFetcher(cache, yt), index, llm, llm)
	vs := vidserver.New(pipeline, engine.NewMaintenance(cache, index), yt)
	if err := vs.Resume(ctx); err != nil {
		slog.Info("no previous collection to resume", slog.String("collection", cfg.CollectionName), slog.Any("reason", err))
	}

	slog.Info("starting qa-youtube-chatbot",
		slog.String("port", mcpPort),
		slog.String("model", cfg.LLMModel),
		slog.String("store", cfg.TranscriptStore),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "qa-youtube-chatbot",
		Version: version,
	}, nil)

	vidserver.RegisterTools(server, vs)
	slog.Info("tools registered", slog.Int("count", vidserver.ToolCount))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "qa-youtube-chatbot",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 600 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func loadConfig() engine.Config {
	d := engine.DefaultConfig()
	return engine.Config{
		LLMAPIKey:          env.Str("LLM_API_KEY", ""),
		LLMAPIKeyFallbacks: env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:         env.Str("LLM_API_BASE", d.LLMAPIBase),
		LLMModel:           env.Str("LLM_MODEL", d.LLMModel),
		LLMTemperature:     env.Float("LLM_TEMPERATURE", d.LLMTemperature),
		LLMMaxTokens:       env.Int("LLM_MAX_TOKENS", d.LLMMaxTokens),
		LLMTimeout:         env.Duration("LLM_TIMEOUT", d.LLMTimeout),

		EmbedAPIBase:   env.Str("EMBED_API_BASE", d.EmbedAPIBase),
		EmbedAPIKey:    env.Str("EMBED_API_KEY", ""),
		EmbedModel:     env.Str("EMBED_MODEL", d.EmbedModel),
		EmbedBatchSize: env.Int("EMBED_BATCH_SIZE", d.EmbedBatchSize),

		TranscriptStore:     env.Str("TRANSCRIPT_STORE", d.TranscriptStore),
		TranscriptCachePath: env.Str("TRANSCRIPT_CACHE_PATH", d.TranscriptCachePath),
		RedisURL:            env.Str("REDIS_URL", ""),
		DatabaseURL:         env.Str("DATABASE_URL", ""),
		TranscriptLangs:     env.List("TRANSCRIPT_LANGS", "en"),
		TranscriptRPS:       env.Float("TRANSCRIPT_RPS", d.TranscriptRPS),

		IndexRoot:      env.Str("INDEX_ROOT", d.IndexRoot),
		CollectionName: env.Str("COLLECTION_NAME", d.CollectionName),
		ChunkWindow:    env.Int("CHUNK_WINDOW", d.ChunkWindow),
		RetrievalK:     env.Int("RETRIEVAL_K", d.RetrievalK),
		MaxIterations:  env.Int("MAX_ITERATIONS", d.MaxIterations),
		HistoryTurns:   env.Int("HISTORY_TURNS", d.HistoryTurns),

		HTTPClient: &http.Client{
			Timeout: env.Duration("FETCH_TIMEOUT", 15*time.Second),
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
}

// openStore connects the configured transcript cache backend.
func openStore(ctx context.Context, cfg engine.Config) (engine.TranscriptStore, func(), error) {
	switch cfg.TranscriptStore {
	case engine.StoreRedis:
		r, err := store.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("transcript cache: redis")
		return r, func() { _ = r.Close() }, nil
	case engine.StorePostgres:
		p, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("transcript cache: postgres")
		return p, p.Close, nil
	default:
		f, err := store.OpenJSONFile(cfg.TranscriptCachePath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("transcript cache: json file", slog.String("path", f.Path()))
		return f, func() {}, nil
	}
}
