package engine

import (
	"context"
	"net/http"
	"strings"

	"github.com/anatolykoptev/go-kit/llm"
)

// Completer is the chat model seam: one system prompt, one user prompt, text out.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// CompleteFunc adapts a plain function to Completer.
type CompleteFunc func(ctx context.Context, system, prompt string) (string, error)

// Complete calls f.
func (f CompleteFunc) Complete(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}

// NewKitCompleter builds the go-kit OpenAI-compatible client from cfg.
// Temperature and max tokens are fixed per client; fallback keys rotate on quota errors.
func NewKitCompleter(cfg Config) Completer {
	client := llm.NewClient(cfg.LLMAPIBase, cfg.LLMAPIKey, cfg.LLMModel,
		llm.WithFallbackKeys(cfg.LLMAPIKeyFallbacks),
		llm.WithMaxTokens(cfg.LLMMaxTokens),
		llm.WithTemperature(cfg.LLMTemperature),
		llm.WithHTTPClient(&http.Client{Timeout: cfg.LLMTimeout}),
	)
	return CompleteFunc(func(ctx context.Context, system, prompt string) (string, error) {
		return client.Complete(ctx, system, prompt,
			llm.WithChatTemperature(cfg.LLMTemperature),
			llm.WithChatMaxTokens(cfg.LLMMaxTokens),
		)
	})
}

// callLLM counts the call and strips markdown fences from the reply.
func callLLM(ctx context.Context, c Completer, system, prompt string) (string, error) {
	metrics.LLMCalls.Add(1)
	resp, err := c.Complete(ctx, system, prompt)
	if err != nil {
		metrics.LLMErrors.Add(1)
		return "", err
	}
	return stripFences(resp), nil
}

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractJSONField extracts a string field from malformed JSON
// where the value may contain unescaped newlines or special characters.
func ExtractJSONField(raw, field string) (string, bool) {
	prefix := `"` + field + `"`
	idx := strings.Index(raw, prefix)
	if idx < 0 {
		return "", false
	}
	rest := strings.TrimSpace(raw[idx+len(prefix):])
	if len(rest) == 0 || rest[0] != ':' {
		return "", false
	}
	rest = strings.TrimSpace(rest[1:])
	if len(rest) == 0 || rest[0] != '"' {
		return "", false
	}
	rest = rest[1:]

	var sb strings.Builder
	for i := 0; i < len(rest); i++ {
		if rest[i] == '\\' && i+1 < len(rest) {
			switch rest[i+1] {
			case '"':
				sb.WriteByte('"')
				i++
				continue
			case 'n':
				sb.WriteByte('\n')
				i++
				continue
			case '\\':
				sb.WriteByte('\\')
				i++
				continue
			}
			sb.WriteByte(rest[i])
			continue
		}
		if rest[i] == '"' {
			return sb.String(), true
		}
		sb.WriteByte(rest[i])
	}
	return sb.String(), sb.Len() > 0
}
