package orchestra

import (
	"context"
	"maps"
)

// ToolDefinition declares a callable capability exposed to the model.
// Immutable after registration.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// CloneToolDefinition returns a copy with its own schema map.
func CloneToolDefinition(in ToolDefinition) ToolDefinition {
	out := in
	if in.InputSchema != nil {
		out.InputSchema = make(map[string]any, len(in.InputSchema))
		maps.Copy(out.InputSchema, in.InputSchema)
	}
	return out
}

// Outcome is the planner's tagged result: a final answer when no tool calls
// are requested, otherwise the set of requested calls.
type Outcome struct {
	Text      string
	ToolCalls []ToolCall
}

// Final reports whether the outcome is a final answer.
func (o Outcome) Final() bool {
	return len(o.ToolCalls) == 0
}

// Planner is the model gateway boundary. Plan sends the full conversation
// plus the available tool definitions to the reasoning endpoint and parses
// the reply. It must not mutate the conversation. Failures carry fault kinds
// for the retry governor: transient unavailability, permanent rejection, or
// a permanent parse failure.
type Planner interface {
	Plan(ctx context.Context, conversation Conversation, tools []ToolDefinition) (Outcome, error)
}

// ToolInvoker is the registry boundary the engine dispatches through.
// Invoke attempts one call at most once; retries are the caller's explicit
// responsibility, so handlers must tolerate repeated invocation across
// governor-driven attempts.
type ToolInvoker interface {
	Invoke(ctx context.Context, name string, arguments map[string]any) (any, error)
	Definitions() []ToolDefinition
}

// Store is the durable state boundary, keyed by execution id with optimistic
// versioning. CompareAndSwap must atomically verify expectedVersion against
// the stored version and write exec (with Version = expectedVersion + 1)
// plus the full turn history, or fail with ErrVersionConflict. Only the
// execution engine calls CompareAndSwap.
type Store interface {
	Create(ctx context.Context, exec Execution, turns Conversation) error
	Load(ctx context.Context, id ExecutionID) (Execution, Conversation, error)
	CompareAndSwap(ctx context.Context, id ExecutionID, expectedVersion int64, exec Execution, turns Conversation) error
}
