package orchestra

import (
	"fmt"
	"maps"
	"time"
)

// TurnKind discriminates between turn variants.
type TurnKind string

const (
	TurnUserTask   TurnKind = "user_task"
	TurnModel      TurnKind = "model_response"
	TurnToolResult TurnKind = "tool_result"
)

// CallStatus tracks the lifecycle of one requested tool call.
type CallStatus string

const (
	CallPending   CallStatus = "pending"
	CallRunning   CallStatus = "running"
	CallSucceeded CallStatus = "succeeded"
	CallFailed    CallStatus = "failed"
)

// ToolCall is one action requested by a model response. Created by the
// planner's parse step; its status is mutated only by the engine.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Status    CallStatus     `json:"status"`
}

// CloneToolCall returns a deep copy of a tool call.
func CloneToolCall(in ToolCall) ToolCall {
	out := in
	if in.Arguments != nil {
		out.Arguments = make(map[string]any, len(in.Arguments))
		maps.Copy(out.Arguments, in.Arguments)
	}
	return out
}

// ToolResult is the outcome of one tool call, paired to it by call id.
// Failures are represented as data: IsError with the message in Error,
// so the model can reason about them on the next planning step.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content any    `json:"content,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Turn is one atomic entry in the conversation history.
type Turn struct {
	Kind       TurnKind        `json:"kind"`
	Timestamp  time.Time       `json:"timestamp"`
	User       *UserTaskTurn   `json:"user,omitempty"`
	Model      *ModelTurn      `json:"model,omitempty"`
	ToolResult *ToolResultTurn `json:"tool_result,omitempty"`
}

// UserTaskTurn holds the submitted task.
type UserTaskTurn struct {
	Task string `json:"task"`
}

// ModelTurn holds a planner response: free text, requested tool calls,
// or both.
type ModelTurn struct {
	Text      string     `json:"text,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolResultTurn holds the result of exactly one tool call.
type ToolResultTurn struct {
	Result ToolResult `json:"result"`
}

// NewUserTaskTurn creates the opening turn of an execution.
func NewUserTaskTurn(task string) Turn {
	return Turn{
		Kind:      TurnUserTask,
		Timestamp: time.Now().UTC(),
		User:      &UserTaskTurn{Task: task},
	}
}

// NewModelTurn creates a turn wrapping a planner response.
func NewModelTurn(text string, calls []ToolCall) Turn {
	return Turn{
		Kind:      TurnModel,
		Timestamp: time.Now().UTC(),
		Model:     &ModelTurn{Text: text, ToolCalls: calls},
	}
}

// NewToolResultTurn creates a turn wrapping one tool result.
func NewToolResultTurn(result ToolResult) Turn {
	return Turn{
		Kind:       TurnToolResult,
		Timestamp:  time.Now().UTC(),
		ToolResult: &ToolResultTurn{Result: result},
	}
}

// CloneTurn returns a deep copy safe to hand across component boundaries.
func CloneTurn(in Turn) Turn {
	out := in
	if in.User != nil {
		userCopy := *in.User
		out.User = &userCopy
	}
	if in.Model != nil {
		modelCopy := ModelTurn{Text: in.Model.Text}
		if len(in.Model.ToolCalls) > 0 {
			modelCopy.ToolCalls = make([]ToolCall, len(in.Model.ToolCalls))
			for i := range in.Model.ToolCalls {
				modelCopy.ToolCalls[i] = CloneToolCall(in.Model.ToolCalls[i])
			}
		}
		out.Model = &modelCopy
	}
	if in.ToolResult != nil {
		resultCopy := *in.ToolResult
		out.ToolResult = &resultCopy
	}
	return out
}

// Conversation is the ordered, append-only turn history of one execution.
// It is the full replayable context sent to the planner on every iteration.
type Conversation []Turn

// Clone returns a deep copy of the conversation.
func (c Conversation) Clone() Conversation {
	out := make(Conversation, len(c))
	for i := range c {
		out[i] = CloneTurn(c[i])
	}
	return out
}

// Validate checks the pairing invariant: every tool result turn references
// exactly one prior tool call, and no call receives two results.
func (c Conversation) Validate() error {
	calls := map[string]bool{}
	resolved := map[string]bool{}
	for i, turn := range c {
		switch turn.Kind {
		case TurnModel:
			if turn.Model == nil {
				return fmt.Errorf("turn %d: model turn without payload", i)
			}
			for _, call := range turn.Model.ToolCalls {
				if call.ID == "" {
					return fmt.Errorf("turn %d: tool call without id", i)
				}
				if calls[call.ID] {
					return fmt.Errorf("turn %d: duplicate tool call id %q", i, call.ID)
				}
				calls[call.ID] = true
			}
		case TurnToolResult:
			if turn.ToolResult == nil {
				return fmt.Errorf("turn %d: tool result turn without payload", i)
			}
			id := turn.ToolResult.Result.CallID
			if !calls[id] {
				return fmt.Errorf("turn %d: result references unknown call %q", i, id)
			}
			if resolved[id] {
				return fmt.Errorf("turn %d: duplicate result for call %q", i, id)
			}
			resolved[id] = true
		case TurnUserTask:
			if turn.User == nil {
				return fmt.Errorf("turn %d: user turn without payload", i)
			}
		default:
			return fmt.Errorf("turn %d: unknown kind %q", i, turn.Kind)
		}
	}
	return nil
}
