package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"testing"
)

// memoryStore is an in-process TranscriptStore.
type memoryStore struct {
	mu     sync.Mutex
	data   map[string][]string
	putErr error
	getErr error
	puts   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]string)}
}

func (m *memoryStore) Get(_ context.Context, id string) ([]string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[id]
	return slices.Clone(v), ok, nil
}

func (m *memoryStore) Put(_ context.Context, id string, segs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.data[id] = slices.Clone(segs)
	return nil
}

func (m *memoryStore) Clear(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	had := len(m.data) > 0
	clear(m.data)
	return had, nil
}

func (m *memoryStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.data))
}

// fakeSource serves canned transcripts and counts calls per id.
type fakeSource struct {
	mu     sync.Mutex
	byID   map[string][]string
	failID map[string]error
	calls  map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{byID: map[string][]string{}, failID: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeSource) Transcript(_ context.Context, id string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++
	if err, ok := f.failID[id]; ok {
		return nil, err
	}
	segs, ok := f.byID[id]
	if !ok {
		return nil, errors.New("captions disabled")
	}
	return slices.Clone(segs), nil
}

func (f *fakeSource) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

// scriptedCompleter replays replies in order; the last reply repeats.
type scriptedCompleter struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []string
	systems []string
}

func (s *scriptedCompleter) Complete(_ context.Context, system, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systems = append(s.systems, system)
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	i := min(len(s.prompts), len(s.replies)) - 1
	return s.replies[i], nil
}

func (s *scriptedCompleter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// staticRetriever returns the same result for every query.
type staticRetriever struct {
	res     RetrievalResult
	err     error
	queries []string
}

func (r *staticRetriever) Retrieve(_ context.Context, q string, k int) (RetrievalResult, error) {
	r.queries = append(r.queries, q)
	if r.err != nil {
		return nil, r.err
	}
	return r.res[:min(k, len(r.res))], nil
}

// wordEmbedder embeds text as counts over a tiny vocabulary.
type wordEmbedder struct{ vocab []string }

func (e wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(e.vocab)+1)
		v[len(e.vocab)] = 0.01 // keep vectors non-zero
		lower := strings.ToLower(t)
		for j, w := range e.vocab {
			v[j] = float32(strings.Count(lower, w))
		}
		out[i] = v
	}
	return out, nil
}

func toolCall(input string) string {
	return fmt.Sprintf(`{"action": %q, "input": %q}`, ToolVideoTranscriptQA, input)
}

func finalAnswer(output string) string {
	return fmt.Sprintf(`{"action": "final_answer", "output": %q}`, output)
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.LLMAPIKey = "test"
	cfg.IndexRoot = t.TempDir()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return cfg
}
