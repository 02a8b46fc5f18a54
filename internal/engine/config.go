package engine

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Transcript cache backends.
const (
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds all engine configuration, injected from main and validated once.
type Config struct {
	LLMAPIKey          string
	LLMAPIKeyFallbacks []string
	LLMAPIBase         string
	LLMModel           string
	LLMTemperature     float64
	LLMMaxTokens       int
	LLMTimeout         time.Duration

	EmbedAPIBase   string
	EmbedAPIKey    string // falls back to LLMAPIKey
	EmbedModel     string
	EmbedBatchSize int

	TranscriptStore     string // file | redis | postgres
	TranscriptCachePath string // JSON file for StoreFile
	RedisURL            string
	DatabaseURL         string
	TranscriptLangs     []string
	TranscriptRPS       float64 // external source pacing; <=0 disables

	IndexRoot      string // one subdirectory per collection
	CollectionName string
	ChunkWindow    int
	RetrievalK     int
	MaxIterations  int
	HistoryTurns   int // prior turns rendered into the agent prompt

	HTTPClient *http.Client
}

// DefaultConfig returns the defaults used when the environment is silent.
func DefaultConfig() Config {
	return Config{
		LLMAPIBase:          "https://api.openai.com/v1",
		LLMModel:            "gpt-4-turbo-preview",
		LLMTemperature:      0,
		LLMMaxTokens:        1024,
		LLMTimeout:          60 * time.Second,
		EmbedAPIBase:        "https://api.openai.com/v1",
		EmbedModel:          "text-embedding-3-small",
		EmbedBatchSize:      64,
		TranscriptStore:     StoreFile,
		TranscriptCachePath: "transcript_cache.json",
		TranscriptLangs:     []string{"en"},
		TranscriptRPS:       2,
		IndexRoot:           "./db",
		CollectionName:      "multiple_videos_collection",
		ChunkWindow:         DefaultChunkWindow,
		RetrievalK:          DefaultRetrievalK,
		MaxIterations:       DefaultMaxIterations,
		HistoryTurns:        10,
	}
}

// Validate checks the configuration once at startup.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.LLMAPIKey) == "" {
		errs = append(errs, errors.New("LLM_API_KEY is required"))
	}
	if c.EmbedAPIKey == "" {
		c.EmbedAPIKey = c.LLMAPIKey
	}
	if c.LLMModel == "" {
		errs = append(errs, errors.New("LLM_MODEL is required"))
	}
	if c.EmbedModel == "" {
		errs = append(errs, errors.New("EMBED_MODEL is required"))
	}
	if c.LLMTemperature < 0 {
		errs = append(errs, fmt.Errorf("LLM_TEMPERATURE must be >= 0, got %v", c.LLMTemperature))
	}
	switch c.TranscriptStore {
	case StoreFile:
		if c.TranscriptCachePath == "" {
			errs = append(errs, errors.New("TRANSCRIPT_CACHE_PATH is required for file store"))
		}
	case StoreRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for redis store"))
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TRANSCRIPT_STORE %q (valid: file, redis, postgres)", c.TranscriptStore))
	}
	if c.IndexRoot == "" {
		errs = append(errs, errors.New("INDEX_ROOT is required"))
	}
	if c.CollectionName == "" {
		errs = append(errs, errors.New("COLLECTION_NAME is required"))
	}
	if c.ChunkWindow <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_WINDOW must be > 0, got %d", c.ChunkWindow))
	}
	if c.RetrievalK <= 0 {
		errs = append(errs, fmt.Errorf("RETRIEVAL_K must be > 0, got %d", c.RetrievalK))
	}
	if c.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("MAX_ITERATIONS must be > 0, got %d", c.MaxIterations))
	}
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = 64
	}
	if c.HistoryTurns < 0 {
		c.HistoryTurns = 0
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return errors.Join(errs...)
}
