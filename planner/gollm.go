package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"

	"github.com/martinemde/orchestra"
	"github.com/martinemde/orchestra/fault"
)

// GollmPlanner is a gollm-backed model gateway. It serializes the
// conversation into a provider prompt, attaches the tool schemas so the
// model knows its available actions, and parses the reply into an Outcome.
type GollmPlanner struct {
	provider string
	model    string
	llm      gollm.LLM
}

var _ orchestra.Planner = (*GollmPlanner)(nil)

// Option configures a GollmPlanner.
type Option func(*plannerConfig)

type plannerConfig struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	extraOpts   []gollm.ConfigOption
}

// WithAPIKey sets the provider API key. When empty, gollm reads it from the
// environment.
func WithAPIKey(key string) Option {
	return func(c *plannerConfig) { c.apiKey = key }
}

// WithModel overrides the provider's default model.
func WithModel(model string) Option {
	return func(c *plannerConfig) { c.model = model }
}

// WithMaxTokens sets the response token budget.
func WithMaxTokens(n int) Option {
	return func(c *plannerConfig) { c.maxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *plannerConfig) { c.temperature = t }
}

// WithGollmOptions appends raw gollm configuration options.
func WithGollmOptions(opts ...gollm.ConfigOption) Option {
	return func(c *plannerConfig) { c.extraOpts = append(c.extraOpts, opts...) }
}

// NewGollmPlanner creates a planner for the given provider ("openai",
// "anthropic", ...).
func NewGollmPlanner(provider string, opts ...Option) (*GollmPlanner, error) {
	cfg := &plannerConfig{
		maxTokens:   4096,
		temperature: 0.2,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	model := cfg.model
	if model == "" {
		switch provider {
		case "anthropic":
			model = "claude-sonnet-4-5-20250514"
		default:
			model = "gpt-4o-mini"
		}
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // the retry governor owns retries
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if cfg.apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(cfg.apiKey))
	}
	gollmOpts = append(gollmOpts, cfg.extraOpts...)

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gollm LLM for provider %s: %w", provider, err)
	}

	return &GollmPlanner{provider: provider, model: model, llm: llm}, nil
}

// NewGollmPlannerFromLLM wraps an existing gollm.LLM instance.
func NewGollmPlannerFromLLM(provider string, llm gollm.LLM) *GollmPlanner {
	return &GollmPlanner{provider: provider, llm: llm}
}

// Provider returns the provider identifier.
func (p *GollmPlanner) Provider() string { return p.provider }

// Model returns the configured model identifier. Empty when the planner
// wraps an externally constructed LLM.
func (p *GollmPlanner) Model() string { return p.model }

// Plan implements orchestra.Planner.
func (p *GollmPlanner) Plan(ctx context.Context, conversation orchestra.Conversation, tools []orchestra.ToolDefinition) (orchestra.Outcome, error) {
	prompt := buildPrompt(conversation, tools)

	text, err := p.llm.Generate(ctx, prompt)
	if err != nil {
		return orchestra.Outcome{}, p.classifyError(err)
	}

	return parseOutcome(text)
}

// buildPrompt flattens the turn history into a provider prompt and attaches
// tool schemas.
func buildPrompt(conversation orchestra.Conversation, tools []orchestra.ToolDefinition) *gollm.Prompt {
	return gollm.NewPrompt(flattenConversation(conversation), promptOptions(tools)...)
}

// flattenConversation renders the turn history as provider prompt text.
func flattenConversation(conversation orchestra.Conversation) string {
	var parts []string
	for _, turn := range conversation {
		switch turn.Kind {
		case orchestra.TurnUserTask:
			if turn.User != nil {
				parts = append(parts, turn.User.Task)
			}
		case orchestra.TurnModel:
			if turn.Model == nil {
				continue
			}
			if turn.Model.Text != "" {
				parts = append(parts, "[Assistant]: "+turn.Model.Text)
			}
			for _, call := range turn.Model.ToolCalls {
				args, _ := json.Marshal(call.Arguments)
				parts = append(parts, fmt.Sprintf("[Tool Call %s]: %s(%s)", call.ID, call.Name, args))
			}
		case orchestra.TurnToolResult:
			if turn.ToolResult == nil {
				continue
			}
			result := turn.ToolResult.Result
			prefix := fmt.Sprintf("[Tool Result %s]", result.CallID)
			if result.IsError {
				parts = append(parts, prefix+" error: "+result.Error)
				continue
			}
			content, _ := json.Marshal(result.Content)
			parts = append(parts, prefix+": "+string(content))
		}
	}

	promptText := strings.Join(parts, "\n")
	if promptText == "" {
		promptText = "Hello"
	}
	return promptText
}

func promptOptions(tools []orchestra.ToolDefinition) []gollm.PromptOption {
	promptOpts := []gollm.PromptOption{}
	if len(tools) > 0 {
		gollmTools := make([]gollm.Tool, 0, len(tools))
		for _, t := range tools {
			gollmTools = append(gollmTools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.InputSchema,
				},
			})
		}
		promptOpts = append(promptOpts,
			gollm.WithTools(gollmTools),
			gollm.WithToolChoice("auto"),
		)
	}
	return promptOpts
}

// toolCallMarkers are the prefixes providers use when returning tool calls
// embedded in response text.
var toolCallMarkers = []string{`{"tool_calls"`, `[{"name"`}

// parseOutcome interprets response text as either requested tool calls or a
// final answer. Text containing a tool-call marker that fails to parse is a
// permanent response-parse failure.
func parseOutcome(text string) (orchestra.Outcome, error) {
	start := -1
	for _, marker := range toolCallMarkers {
		if idx := strings.Index(text, marker); idx != -1 && (start == -1 || idx < start) {
			start = idx
		}
	}
	if start == -1 {
		return orchestra.Outcome{Text: strings.TrimSpace(text)}, nil
	}

	rawCalls, err := decodeToolCalls(text[start:])
	if err != nil {
		return orchestra.Outcome{}, fault.Wrap(fault.KindResponseParse, "unparseable tool call payload", err)
	}

	calls := make([]orchestra.ToolCall, 0, len(rawCalls))
	seen := map[string]bool{}
	for _, rc := range rawCalls {
		if rc.Name == "" {
			return orchestra.Outcome{}, fault.New(fault.KindResponseParse, "tool call without a tool name")
		}

		var args map[string]any
		if len(rc.Arguments) > 0 {
			if err := json.Unmarshal(rc.Arguments, &args); err != nil {
				return orchestra.Outcome{}, fault.Wrap(fault.KindResponseParse,
					fmt.Sprintf("tool call %q has unparseable arguments", rc.Name), err)
			}
		}

		id := rc.ID
		if id == "" || seen[id] {
			id = "call_" + uuid.New().String()[:8]
		}
		seen[id] = true

		calls = append(calls, orchestra.ToolCall{
			ID:        id,
			Name:      rc.Name,
			Arguments: args,
			Status:    orchestra.CallPending,
		})
	}

	return orchestra.Outcome{
		Text:      strings.TrimSpace(text[:start]),
		ToolCalls: calls,
	}, nil
}

type rawToolCall struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// decodeToolCalls accepts both wire shapes seen in the field: a bare array
// of calls and an object wrapping one under "tool_calls".
func decodeToolCalls(payload string) ([]rawToolCall, error) {
	trimmed := strings.TrimSpace(payload)

	if strings.HasPrefix(trimmed, "[") {
		var calls []rawToolCall
		if err := json.Unmarshal([]byte(trimmed), &calls); err != nil {
			return nil, err
		}
		return calls, nil
	}

	var wrapper struct {
		ToolCalls []rawToolCall `json:"tool_calls"`
	}
	if err := json.Unmarshal([]byte(trimmed), &wrapper); err != nil {
		return nil, err
	}
	if len(wrapper.ToolCalls) == 0 {
		return nil, fmt.Errorf("no tool calls in payload")
	}
	return wrapper.ToolCalls, nil
}

// classifyError maps a gollm failure onto the fault taxonomy.
func (p *GollmPlanner) classifyError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401"),
		strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "invalid api key"),
		strings.Contains(msg, "403"),
		strings.Contains(msg, "forbidden"),
		strings.Contains(msg, "400"),
		strings.Contains(msg, "invalid request"),
		strings.Contains(msg, "404"),
		strings.Contains(msg, "not found"),
		strings.Contains(msg, "context length"),
		strings.Contains(msg, "too many tokens"),
		strings.Contains(msg, "content filter"),
		strings.Contains(msg, "safety"):
		return fault.Wrap(fault.KindModelRejected, p.provider+" rejected request", err)
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "500"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "504"),
		strings.Contains(msg, "internal server"),
		strings.Contains(msg, "overloaded"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection"):
		return fault.Wrap(fault.KindModelUnavailable, p.provider+" unavailable", err)
	default:
		// Unknown model failures are treated as transient, matching the
		// endpoint's own bias toward retryable errors.
		return fault.Wrap(fault.KindModelUnavailable, p.provider+" call failed", err)
	}
}
