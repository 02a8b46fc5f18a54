package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evidence(texts ...string) RetrievalResult {
	out := make(RetrievalResult, len(texts))
	for i, t := range texts {
		out[i] = ScoredChunk{Chunk: Chunk{Text: t, SourceURL: "https://youtu.be/aaaaaaaaaaa"}, Score: 1 - float64(i)*0.1}
	}
	return out
}

func newTestPolicy(t *testing.T, agent, qa Completer, r Retriever) *Policy {
	t.Helper()
	return NewPolicy(testConfig(t), agent, qa, r)
}

func TestPolicy_EmptyRetrievalRefusesExactly(t *testing.T) {
	agent := &scriptedCompleter{replies: []string{toolCall("what is a goroutine?")}}
	qa := &scriptedCompleter{replies: []string{"should not be called"}}
	p := newTestPolicy(t, agent, qa, &staticRetriever{})

	ans := p.Answer(context.Background(), "what is a goroutine?", nil)
	assert.Equal(t, Refused, ans.Kind)
	assert.Equal(t, ReasonNoEvidence, ans.Reason)
	assert.Equal(t, "I don't have information about this in the video content.", ans.Text)
	assert.Equal(t, 0, qa.calls())
	assert.Equal(t, 1, ans.ToolCalls)
}

func TestPolicy_AnswerWithholdsRawChunks(t *testing.T) {
	chunk := "RAW-CHUNK goroutines are lightweight threads managed by the runtime"
	agent := &scriptedCompleter{replies: []string{
		toolCall("what are goroutines"),
		finalAnswer("Goroutines are lightweight threads."),
	}}
	qa := &scriptedCompleter{replies: []string{"Goroutines are lightweight threads."}}
	r := &staticRetriever{res: evidence(chunk)}
	p := newTestPolicy(t, agent, qa, r)

	ans := p.Answer(context.Background(), "what are goroutines", nil)
	assert.Equal(t, Answered, ans.Kind)
	assert.Equal(t, "Goroutines are lightweight threads.", ans.Text)
	assert.NotContains(t, ans.Text, "RAW-CHUNK")
	assert.Equal(t, 2, ans.Steps)
	assert.Equal(t, 1, ans.ToolCalls)

	require.Len(t, qa.prompts, 1)
	assert.Contains(t, qa.prompts[0], chunk, "chunks are stuffed into the QA prompt")
	for _, pr := range agent.prompts {
		assert.NotContains(t, pr, "RAW-CHUNK", "agent sees tool output only")
	}
	assert.Contains(t, agent.systems[0], "video_transcript_qa")
	assert.Contains(t, agent.systems[0], RefusalOffTopic)
}

func TestPolicy_RetrievesEightByDefault(t *testing.T) {
	texts := make([]string, 12)
	for i := range texts {
		texts[i] = strings.Repeat("x", i+1)
	}
	agent := &scriptedCompleter{replies: []string{toolCall("q"), finalAnswer("done")}}
	qa := &scriptedCompleter{replies: []string{"answer"}}
	p := newTestPolicy(t, agent, qa, &staticRetriever{res: evidence(texts...)})

	p.Answer(context.Background(), "q", nil)
	require.Len(t, qa.prompts, 1)
	assert.Contains(t, qa.prompts[0], strings.Repeat("x", 8))
	assert.NotContains(t, qa.prompts[0], strings.Repeat("x", 9))
}

func TestPolicy_FinalAnswerBeforeToolIsForcedThroughTool(t *testing.T) {
	agent := &scriptedCompleter{replies: []string{
		finalAnswer("Paris is the capital of France."), // world knowledge, no tool
		finalAnswer("The video says channels synchronize goroutines."),
	}}
	qa := &scriptedCompleter{replies: []string{"Channels synchronize goroutines."}}
	r := &staticRetriever{res: evidence("channels synchronize goroutines")}
	p := newTestPolicy(t, agent, qa, r)

	ans := p.Answer(context.Background(), "how do goroutines sync?", nil)
	assert.Equal(t, Answered, ans.Kind)
	assert.Equal(t, 1, ans.ToolCalls)
	assert.Equal(t, []string{"how do goroutines sync?"}, r.queries, "forced call uses the user's question")
	assert.NotContains(t, ans.Text, "Paris")
}

func TestPolicy_IterationCapReturnsLastObservation(t *testing.T) {
	for _, maxIter := range []int{1, 2, 3, 5} {
		agent := &scriptedCompleter{replies: []string{toolCall("again")}}
		qa := &scriptedCompleter{replies: []string{"partial grounded answer"}}
		cfg := testConfig(t)
		cfg.MaxIterations = maxIter
		p := NewPolicy(cfg, agent, qa, &staticRetriever{res: evidence("fact")})

		ans := p.Answer(context.Background(), "q", nil)
		assert.Equal(t, Answered, ans.Kind)
		assert.True(t, ans.LimitReached)
		assert.Equal(t, "partial grounded answer", ans.Text)
		assert.Equal(t, maxIter, ans.Steps)
		assert.Equal(t, maxIter, agent.calls(), "agent completions never exceed the cap")
		assert.Equal(t, maxIter, ans.ToolCalls)
	}
}

func TestPolicy_FailuresBecomeRefusals(t *testing.T) {
	boom := errors.New("upstream 500")
	tests := []struct {
		name       string
		agent      *scriptedCompleter
		qa         *scriptedCompleter
		retriever  *staticRetriever
		wantReason RefusalReason
	}{
		{
			name:       "agent model error",
			agent:      &scriptedCompleter{err: boom},
			qa:         &scriptedCompleter{replies: []string{"x"}},
			retriever:  &staticRetriever{res: evidence("x")},
			wantReason: ReasonModelFailed,
		},
		{
			name:       "qa model error",
			agent:      &scriptedCompleter{replies: []string{toolCall("q")}},
			qa:         &scriptedCompleter{err: boom},
			retriever:  &staticRetriever{res: evidence("x")},
			wantReason: ReasonModelFailed,
		},
		{
			name:       "retrieval error",
			agent:      &scriptedCompleter{replies: []string{toolCall("q")}},
			qa:         &scriptedCompleter{replies: []string{"x"}},
			retriever:  &staticRetriever{err: boom},
			wantReason: ReasonRetrievalFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPolicy(t, tt.agent, tt.qa, tt.retriever)
			ans := p.Answer(context.Background(), "q", nil)
			assert.Equal(t, Refused, ans.Kind)
			assert.Equal(t, tt.wantReason, ans.Reason)
			assert.Equal(t, RefusalNoInformation, ans.Text)
		})
	}
}

func TestPolicy_OffTopic(t *testing.T) {
	t.Run("before any tool call", func(t *testing.T) {
		agent := &scriptedCompleter{replies: []string{finalAnswer(RefusalOffTopic)}}
		r := &staticRetriever{res: evidence("x")}
		p := newTestPolicy(t, agent, &scriptedCompleter{replies: []string{"x"}}, r)

		ans := p.Answer(context.Background(), "what's the weather?", nil)
		assert.Equal(t, Refused, ans.Kind)
		assert.Equal(t, ReasonOffTopic, ans.Reason)
		assert.Equal(t, RefusalOffTopic, ans.Text)
		assert.Empty(t, r.queries)
	})

	t.Run("after a tool call", func(t *testing.T) {
		agent := &scriptedCompleter{replies: []string{toolCall("weather"), finalAnswer(RefusalOffTopic)}}
		p := newTestPolicy(t, agent, &scriptedCompleter{replies: []string{"unrelated"}}, &staticRetriever{res: evidence("x")})

		ans := p.Answer(context.Background(), "what's the weather?", nil)
		assert.Equal(t, ReasonOffTopic, ans.Reason)
		assert.Equal(t, 1, ans.ToolCalls)
	})
}

func TestPolicy_MalformedAgentOutput(t *testing.T) {
	t.Run("free text before tool forces tool", func(t *testing.T) {
		agent := &scriptedCompleter{replies: []string{"I think the answer is 42", "The answer is 42 per the video."}}
		qa := &scriptedCompleter{replies: []string{"42"}}
		r := &staticRetriever{res: evidence("the answer is 42")}
		p := newTestPolicy(t, agent, qa, r)

		ans := p.Answer(context.Background(), "what is the answer?", nil)
		assert.Equal(t, Answered, ans.Kind)
		assert.Equal(t, "The answer is 42 per the video.", ans.Text)
		assert.Equal(t, 1, ans.ToolCalls)
	})

	t.Run("fenced json with unknown tool", func(t *testing.T) {
		agent := &scriptedCompleter{replies: []string{
			"```json\n{\"action\": \"web_search\", \"input\": \"x\"}\n```",
			finalAnswer(""),
		}}
		qa := &scriptedCompleter{replies: []string{"grounded"}}
		r := &staticRetriever{res: evidence("x")}
		p := newTestPolicy(t, agent, qa, r)

		ans := p.Answer(context.Background(), "user question", nil)
		assert.Equal(t, []string{"user question"}, r.queries)
		assert.Equal(t, "grounded", ans.Text, "empty final answer falls back to the last observation")
	})
}

func TestPolicy_HistoryReachesAgentOnly(t *testing.T) {
	cfg := testConfig(t)
	cfg.HistoryTurns = 2
	agent := &scriptedCompleter{replies: []string{toolCall("follow up"), finalAnswer("ok")}}
	qa := &scriptedCompleter{replies: []string{"ok"}}
	p := NewPolicy(cfg, agent, qa, &staticRetriever{res: evidence("x")})

	history := []Turn{
		{Role: RoleUser, Content: "OLDEST-TURN"},
		{Role: RoleAssistant, Content: "old answer"},
		{Role: RoleUser, Content: "RECENT-QUESTION"},
		{Role: RoleAssistant, Content: "RECENT-ANSWER"},
	}
	p.Answer(context.Background(), "and then?", history)

	require.NotEmpty(t, agent.prompts)
	assert.Contains(t, agent.prompts[0], "User: RECENT-QUESTION")
	assert.Contains(t, agent.prompts[0], "Assistant: RECENT-ANSWER")
	assert.NotContains(t, agent.prompts[0], "OLDEST-TURN")
	assert.NotContains(t, qa.prompts[0], "RECENT-QUESTION")
}

func TestParseStep(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		ok     bool
		action string
		input  string
		output string
	}{
		{"tool call", `{"action":"video_transcript_qa","input":"q"}`, true, "video_transcript_qa", "q", ""},
		{"final", `{"action":"final_answer","output":"done"}`, true, "final_answer", "", "done"},
		{"unescaped newline", "{\"action\": \"final_answer\", \"output\": \"line1\nline2\"}", true, "final_answer", "", "line1\nline2"},
		{"plain text", "just words", false, "", "", ""},
		{"json without action", `{"answer":"x"}`, false, "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step, ok := parseStep(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.action, step.Action)
			assert.Equal(t, tt.input, step.Input)
			assert.Equal(t, tt.output, step.Output)
		})
	}
}
