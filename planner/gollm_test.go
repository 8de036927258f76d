package planner

import (
	"errors"
	"strings"
	"testing"

	"github.com/martinemde/orchestra"
	"github.com/martinemde/orchestra/fault"
)

func TestParseOutcomeFinalAnswer(t *testing.T) {
	outcome, err := parseOutcome("  The build failed because of a missing import.  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Final() {
		t.Fatal("plain text should be a final answer")
	}
	if outcome.Text != "The build failed because of a missing import." {
		t.Errorf("unexpected text: %q", outcome.Text)
	}
}

func TestParseOutcomeBareArray(t *testing.T) {
	outcome, err := parseOutcome(`[{"name": "echo", "arguments": {"x": "a"}}]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Final() {
		t.Fatal("expected tool requests")
	}
	if len(outcome.ToolCalls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(outcome.ToolCalls))
	}
	call := outcome.ToolCalls[0]
	if call.Name != "echo" {
		t.Errorf("name = %q", call.Name)
	}
	if call.Arguments["x"] != "a" {
		t.Errorf("arguments = %v", call.Arguments)
	}
	if !strings.HasPrefix(call.ID, "call_") {
		t.Errorf("expected synthesized call id, got %q", call.ID)
	}
	if call.Status != orchestra.CallPending {
		t.Errorf("status = %q", call.Status)
	}
}

func TestParseOutcomeWrappedObject(t *testing.T) {
	text := `Let me check the logs.
{"tool_calls": [{"id": "call_7", "name": "grep", "arguments": {"pattern": "ERROR"}}, {"name": "ls"}]}`

	outcome, err := parseOutcome(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.ToolCalls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(outcome.ToolCalls))
	}
	if outcome.Text != "Let me check the logs." {
		t.Errorf("leading text lost: %q", outcome.Text)
	}
	if outcome.ToolCalls[0].ID != "call_7" {
		t.Errorf("provided id should be kept, got %q", outcome.ToolCalls[0].ID)
	}
	if outcome.ToolCalls[1].ID == "" || outcome.ToolCalls[1].ID == "call_7" {
		t.Errorf("missing id should be synthesized uniquely, got %q", outcome.ToolCalls[1].ID)
	}
}

func TestParseOutcomeMalformedPayload(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"truncated json", `{"tool_calls": [{"name": "grep"`},
		{"missing tool name", `[{"name": "", "arguments": {}}]`},
		{"bad arguments", `[{"name": "grep", "arguments": "not-an-object"}]`},
		{"empty wrapper", `{"tool_calls": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseOutcome(tt.text)
			if err == nil {
				t.Fatal("expected parse error")
			}
			if kind := fault.KindOf(err); kind != fault.KindResponseParse {
				t.Errorf("kind = %q, want %q", kind, fault.KindResponseParse)
			}
		})
	}
}

func TestPlannerIdentity(t *testing.T) {
	p := &GollmPlanner{provider: "anthropic", model: "claude-sonnet-4-5-20250514"}
	if p.Provider() != "anthropic" {
		t.Errorf("provider = %q", p.Provider())
	}
	if p.Model() != "claude-sonnet-4-5-20250514" {
		t.Errorf("model = %q", p.Model())
	}

	wrapped := NewGollmPlannerFromLLM("openai", nil)
	if wrapped.Model() != "" {
		t.Errorf("wrapped LLM should carry no model, got %q", wrapped.Model())
	}
}

func TestClassifyError(t *testing.T) {
	p := &GollmPlanner{provider: "openai"}

	tests := []struct {
		msg  string
		want fault.Kind
	}{
		{"401 Unauthorized", fault.KindModelRejected},
		{"invalid api key", fault.KindModelRejected},
		{"403 Forbidden", fault.KindModelRejected},
		{"context length exceeded", fault.KindModelRejected},
		{"content filter triggered", fault.KindModelRejected},
		{"429 rate limit exceeded", fault.KindModelUnavailable},
		{"500 internal server error", fault.KindModelUnavailable},
		{"upstream connection reset", fault.KindModelUnavailable},
		{"timeout waiting for response", fault.KindModelUnavailable},
		{"something unknown", fault.KindModelUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := p.classifyError(errors.New(tt.msg))
			if kind := fault.KindOf(err); kind != tt.want {
				t.Errorf("kind = %q, want %q", kind, tt.want)
			}
		})
	}
}

func TestBuildPromptFlattensHistory(t *testing.T) {
	conv := orchestra.Conversation{
		orchestra.NewUserTaskTurn("count the config files"),
		orchestra.NewModelTurn("", []orchestra.ToolCall{
			{ID: "call_1", Name: "glob", Arguments: map[string]any{"pattern": "*.yaml"}},
		}),
		orchestra.NewToolResultTurn(orchestra.ToolResult{
			CallID: "call_1", Name: "glob", Content: []any{"a.yaml", "b.yaml"},
		}),
		orchestra.NewToolResultTurn(orchestra.ToolResult{
			CallID: "call_2", Name: "glob", IsError: true, Error: "permission denied",
		}),
	}

	text := flattenConversation(conv)
	for _, want := range []string{
		"count the config files",
		"[Tool Call call_1]",
		"[Tool Result call_1]",
		"permission denied",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	if len(promptOptions(nil)) != 0 {
		t.Error("no tools should attach no options")
	}
	if len(promptOptions([]orchestra.ToolDefinition{{Name: "glob"}})) == 0 {
		t.Error("tools should attach prompt options")
	}
}

func TestFlattenConversationEmpty(t *testing.T) {
	if got := flattenConversation(nil); got != "Hello" {
		t.Errorf("empty conversation = %q", got)
	}
}
