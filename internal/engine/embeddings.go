package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	base   string
	key    string
	model  string
	client *http.Client
	retry  RetryConfig
}

// NewOpenAIEmbedder builds an embedder from cfg.EmbedAPIBase/EmbedAPIKey/EmbedModel.
func NewOpenAIEmbedder(cfg Config) *OpenAIEmbedder {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.LLMTimeout}
	}
	return &OpenAIEmbedder{
		base:   strings.TrimRight(cfg.EmbedAPIBase, "/"),
		key:    cfg.EmbedAPIKey,
		model:  cfg.EmbedModel,
		client: client,
		retry:  DefaultRetryConfig,
	}
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed returns one vector per input, in input order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	clean := make([]string, len(texts))
	for i, t := range texts {
		// The API rejects empty strings.
		if t = strings.TrimSpace(t); t == "" {
			t = " "
		}
		clean[i] = t
	}
	body, err := json.Marshal(embeddingsRequest{Model: e.model, Input: clean})
	if err != nil {
		return nil, err
	}

	metrics.EmbedRequests.Add(1)
	resp, err := RetryHTTP(ctx, e.retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.base+"/embeddings", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", UserAgentBot)
		if e.key != "" {
			req.Header.Set("Authorization", "Bearer "+e.key)
		}
		return e.client.Do(req)
	})
	if err != nil {
		metrics.EmbedErrors.Add(1)
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	defer resp.Body.Close()

	var out embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.EmbedErrors.Add(1)
		return nil, fmt.Errorf("embeddings: decode: %w", err)
	}

	vecs := make([][]float32, len(clean))
	for i, d := range out.Data {
		idx := d.Index
		if idx < 0 || idx >= len(vecs) || vecs[idx] != nil {
			idx = i
		}
		if idx < len(vecs) {
			vecs[idx] = d.Embedding
		}
	}
	for i, v := range vecs {
		if v == nil {
			metrics.EmbedErrors.Add(1)
			return nil, fmt.Errorf("embeddings: missing vector %d of %d (model %s)", i, len(clean), e.model)
		}
	}
	return vecs, nil
}
