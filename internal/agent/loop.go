package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sitewatch/sitewatch/internal/findings"
	"github.com/sitewatch/sitewatch/internal/llmclient"
	"github.com/sitewatch/sitewatch/internal/store"
)

// Budgets, per §4.9.
const (
	MaxToolCalls   = 6
	MaxDurationMs  = 40_000
	maxIterations  = MaxToolCalls + 2 // a little slack for pure-text turns before a tool call
	systemPrompt   = "You are a marketing site health investigator. Use the provided tools to gather evidence about one underperforming page, then conclude by calling either submit_finding or skip_finding. Never fabricate data; rely only on tool output."
	converseTokens = 1024
)

// ToolCall is an append-only record of one non-terminal tool
// invocation, kept for the finding's tools_used/iterations audit trail.
type ToolCall struct {
	ToolName   string
	Input      map[string]any
	Output     any
	DurationMs int64
}

// Outcome is what one investigation produced.
type Outcome struct {
	Skipped     bool
	FindingID   int64
	QueueItemID int64
	Reason      string
	Iterations  int
	ToolCalls   []ToolCall
}

// Loop runs one bounded investigation over a single flagged page.
type Loop struct {
	llm      *llmclient.Client
	deps     *Deps
	store    *store.Store
	findings *findings.Writer
}

// New builds a Loop.
func New(llm *llmclient.Client, deps *Deps, s *store.Store, w *findings.Writer) *Loop {
	return &Loop{llm: llm, deps: deps, store: s, findings: w}
}

// Run executes the dedup pre-check then the iteration loop for a single
// flagged page, per §4.9's execution protocol.
func (l *Loop) Run(ctx context.Context, page FlaggedPage) (*Outcome, error) {
	dup, err := l.checkDedup(ctx, page.URL)
	if err != nil {
		return nil, fmt.Errorf("dedup check %q: %w", page.URL, err)
	}
	if dup {
		id, skipErr := l.findings.SkipFinding(ctx, page.URL, "duplicate: an open finding already exists for this page", "", 0, nil)
		if skipErr != nil {
			return nil, fmt.Errorf("record dedup skip: %w", skipErr)
		}
		return &Outcome{Skipped: true, FindingID: id, Reason: "duplicate open finding"}, nil
	}

	deadline := time.Now().Add(MaxDurationMs * time.Millisecond)
	messages := []llmclient.Message{{Role: "user", Content: buildInitialPrompt(page)}}
	tools := toolDefinitions()

	var toolCalls []ToolCall
	iterations := 0

	for iterations < maxIterations {
		iterations++

		if time.Now().After(deadline) {
			return l.forceSkip(ctx, page, iterations, toolCalls, "Forced termination: time budget exhausted")
		}
		if len(toolCalls) >= MaxToolCalls {
			return l.forceSkip(ctx, page, iterations, toolCalls, "Forced termination: tool-call budget exhausted")
		}

		iterCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		resp, err := l.llm.Converse(iterCtx, systemPrompt, messages, tools, converseTokens)
		cancel()
		if err != nil {
			return l.forceSkip(ctx, page, iterations, toolCalls, "Forced termination: model call failed: "+err.Error())
		}

		messages = append(messages, llmclient.Message{Role: "assistant", Content: resp.Text})

		if len(resp.ToolUses) == 0 {
			return l.forceSkip(ctx, page, iterations, toolCalls, "Forced termination: model returned no tool use")
		}

		for _, use := range resp.ToolUses {
			if isTerminalTool(use.Name) {
				return l.handleTerminal(ctx, page, use, iterations, toolCalls)
			}

			if len(toolCalls) >= MaxToolCalls {
				return l.forceSkip(ctx, page, iterations, toolCalls, "Forced termination: tool-call budget exhausted")
			}

			start := time.Now()
			var output any
			var callErr error
			if use.Name == ToolEvaluateRecommendation {
				output, callErr = l.evaluate(ctx, use.Input)
			} else {
				output, callErr = dispatchTool(ctx, use.Name, use.Input, page, l.deps)
			}
			duration := time.Since(start).Milliseconds()

			observation := formatObservation(use.Name, output, callErr)
			toolCalls = append(toolCalls, ToolCall{ToolName: use.Name, Input: use.Input, Output: output, DurationMs: duration})
			messages = append(messages, llmclient.Message{Role: "user", Content: observation})
		}
	}

	return l.forceSkip(ctx, page, iterations, toolCalls, "Forced termination: iteration budget exhausted")
}

func (l *Loop) checkDedup(ctx context.Context, pageURL string) (bool, error) {
	return l.store.HasOpenFinding(ctx, pageURL)
}

func (l *Loop) evaluate(ctx context.Context, input map[string]any) (EvaluationResult, error) {
	guardrails, err := l.store.ActiveGuardrails(ctx)
	if err != nil {
		return EvaluationResult{}, err
	}
	actionType := stringArg(input, "action_type", "")
	confidence := floatArg(input, "confidence", 0)
	return evaluateRecommendation(actionType, confidence, guardrails), nil
}

func (l *Loop) handleTerminal(ctx context.Context, page FlaggedPage, use llmclient.ToolUse, iterations int, toolCalls []ToolCall) (*Outcome, error) {
	toolsUsed := toolNames(toolCalls)

	switch use.Name {
	case ToolSubmitFinding:
		in := submitInputFromToolArgs(page, use.Input, iterations, toolsUsed)
		findingID, queueItemID, err := l.findings.SubmitFinding(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("submit finding: %w", err)
		}
		return &Outcome{FindingID: findingID, QueueItemID: queueItemID, Iterations: iterations, ToolCalls: toolCalls}, nil

	case ToolSkipFinding:
		reason := stringArg(use.Input, "reason", "")
		summary := stringArg(use.Input, "investigation_summary", "")
		id, err := l.findings.SkipFinding(ctx, page.URL, reason, summary, iterations, toolsUsed)
		if err != nil {
			return nil, fmt.Errorf("skip finding: %w", err)
		}
		return &Outcome{Skipped: true, FindingID: id, Reason: reason, Iterations: iterations, ToolCalls: toolCalls}, nil

	default:
		return nil, fmt.Errorf("unrecognized terminal tool %q", use.Name)
	}
}

func (l *Loop) forceSkip(ctx context.Context, page FlaggedPage, iterations int, toolCalls []ToolCall, reason string) (*Outcome, error) {
	id, err := l.findings.SkipFinding(ctx, page.URL, reason, "", iterations, toolNames(toolCalls))
	if err != nil {
		return nil, fmt.Errorf("force skip: %w", err)
	}
	return &Outcome{Skipped: true, FindingID: id, Reason: reason, Iterations: iterations, ToolCalls: toolCalls}, nil
}

func toolNames(calls []ToolCall) []string {
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.ToolName
	}
	return names
}

func formatObservation(toolName string, output any, err error) string {
	if err != nil {
		return fmt.Sprintf("Tool %s failed: %s", toolName, err.Error())
	}
	b, marshalErr := json.Marshal(output)
	if marshalErr != nil {
		return fmt.Sprintf("Tool %s result: <unserializable: %s>", toolName, marshalErr.Error())
	}
	return fmt.Sprintf("Tool %s result: %s", toolName, string(b))
}

func submitInputFromToolArgs(page FlaggedPage, input map[string]any, iterations int, toolsUsed []string) findings.SubmitInput {
	confidence := floatArg(input, "confidence", 0.7)
	score := page.Score
	return findings.SubmitInput{
		PageURL:              page.URL,
		FindingType:          stringArg(input, "finding_type", "other"),
		Severity:             store.Severity(stringArg(input, "severity", string(store.SeverityMedium))),
		Title:                stringArg(input, "title", "Recommendation for "+page.URL),
		Description:          stringArg(input, "description", ""),
		BusinessImpact:       stringArg(input, "business_impact", ""),
		AgentLoopIterations:  iterations,
		ToolsUsed:            toolsUsed,
		InvestigationSummary: stringArg(input, "investigation_summary", ""),
		ActionType:           stringArg(input, "action_type", ""),
		ActionSummary:        stringArg(input, "action_summary", ""),
		ActionDetail:         mapArg(input, "action_detail"),
		Confidence:           &confidence,
		RiskLevel:            store.RiskLevel(stringArg(input, "risk_level", string(store.RiskLow))),
		HealthScoreAtDetect:  &score,
	}
}

func mapArg(input map[string]any, key string) map[string]any {
	if v, ok := input[key].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}
