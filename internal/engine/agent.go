package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

const (
	actionFinalAnswer = "final_answer"
	historyTurnChars  = 2000
)

// agentStep is one JSON reply of the agent model.
type agentStep struct {
	Action string `json:"action"`
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
}

func (s agentStep) isFinal() bool { return s.Action == actionFinalAnswer }

// observation is a completed tool call kept on the scratchpad.
type observation struct {
	tool   ToolKind
	input  string
	output string
}

// Answer runs the bounded agent loop for one question.
// It never returns an error: model and retrieval failures become refusals.
func (p *Policy) Answer(ctx context.Context, query string, history []Turn) Answer {
	metrics.Queries.Add(1)
	var (
		ans Answer
		obs []observation
	)

	for ans.Steps < p.maxIter {
		if ctx.Err() != nil {
			break
		}
		ans.Steps++
		raw, err := callLLM(ctx, p.agent, p.system, p.renderStep(query, history, obs))
		if err != nil {
			slog.Warn("agent: completion failed", slog.Int("step", ans.Steps), slog.Any("error", err))
			return p.refuse(ans, ReasonModelFailed, RefusalNoInformation)
		}

		step, ok := parseStep(raw)
		switch {
		case !ok && len(obs) > 0:
			// Free text after grounding is taken as the final answer.
			return p.finish(ans, raw, obs)
		case ok && step.isFinal() && len(obs) > 0:
			return p.finish(ans, step.Output, obs)
		case ok && step.isFinal() && strings.TrimSpace(step.Output) == RefusalOffTopic:
			return p.refuse(ans, ReasonOffTopic, RefusalOffTopic)
		}

		kind, input := p.resolveTool(step, ok, query)
		out := p.tools[kind](ctx, input)
		ans.ToolCalls++
		if out.Refused {
			return p.refuse(ans, out.Reason, out.Text)
		}
		obs = append(obs, observation{tool: kind, input: input, output: out.Text})
	}

	if len(obs) == 0 {
		return p.refuse(ans, ReasonModelFailed, RefusalNoInformation)
	}
	metrics.IterationCapHits.Add(1)
	slog.Info("agent: iteration cap reached", slog.Int("steps", ans.Steps), slog.Int("tool_calls", ans.ToolCalls))
	ans.Kind = Answered
	ans.Text = obs[len(obs)-1].output
	ans.LimitReached = true
	return ans
}

// resolveTool maps a step to a registered tool. Anything that is not a valid
// tool call (a premature final answer, an unknown tool, unparseable output)
// is replaced by the transcript tool on the user's question.
func (p *Policy) resolveTool(step agentStep, ok bool, query string) (ToolKind, string) {
	if !ok || step.isFinal() {
		slog.Debug("agent: forcing tool call", slog.String("action", step.Action))
		return ToolVideoTranscriptQA, query
	}
	kind := ToolKind(step.Action)
	if _, known := p.tools[kind]; !known {
		slog.Debug("agent: unknown tool", slog.String("action", step.Action))
		return ToolVideoTranscriptQA, query
	}
	input := strings.TrimSpace(step.Input)
	if input == "" {
		input = query
	}
	return kind, input
}

// finish turns the agent's final text into a terminal Answer.
func (p *Policy) finish(ans Answer, text string, obs []observation) Answer {
	text = strings.TrimSpace(text)
	switch text {
	case "":
		text = obs[len(obs)-1].output
	case RefusalOffTopic:
		return p.refuse(ans, ReasonOffTopic, text)
	case RefusalNoInformation:
		return p.refuse(ans, ReasonNoEvidence, text)
	}
	ans.Kind = Answered
	ans.Text = text
	return ans
}

func (p *Policy) refuse(ans Answer, reason RefusalReason, text string) Answer {
	metrics.Refusals.Add(1)
	ans.Kind = Refused
	ans.Reason = reason
	ans.Text = text
	return ans
}

// parseStep decodes an agent reply. Malformed JSON is salvaged field by field.
func parseStep(raw string) (agentStep, bool) {
	var step agentStep
	if err := json.Unmarshal([]byte(raw), &step); err == nil && step.Action != "" {
		return step, true
	}
	action, ok := ExtractJSONField(raw, "action")
	if !ok || action == "" {
		return agentStep{}, false
	}
	step = agentStep{Action: action}
	step.Input, _ = ExtractJSONField(raw, "input")
	step.Output, _ = ExtractJSONField(raw, "output")
	return step, true
}

// renderStep builds the user prompt for the next agent completion.
// History is bounded to the last historyTurns turns and never reaches the QA tool.
func (p *Policy) renderStep(query string, history []Turn, obs []observation) string {
	if n := p.historyTurns; len(history) > n {
		history = history[len(history)-n:]
	}
	var hist strings.Builder
	for _, t := range history {
		role := "User"
		if t.Role == RoleAssistant {
			role = "Assistant"
		}
		fmt.Fprintf(&hist, "%s: %s\n", role, TruncateRunes(t.Content, historyTurnChars, "..."))
	}
	if hist.Len() == 0 {
		hist.WriteString("(none)\n")
	}

	var pad strings.Builder
	for i, o := range obs {
		fmt.Fprintf(&pad, "%d. %s(%q) returned:\n%s\n", i+1, o.tool, o.input, o.output)
	}
	if pad.Len() == 0 {
		pad.WriteString("(none)\n")
	}
	return fmt.Sprintf(agentStepPrompt, strings.TrimRight(hist.String(), "\n"), query, strings.TrimRight(pad.String(), "\n"))
}
