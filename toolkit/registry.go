// Package toolkit implements the tool registry: registration of tool
// definitions and dispatch of validated invocations to their handlers.
//
// The registry attempts each invocation at most once. Retries live in the
// backoff governor at the call site, which means handlers must tolerate
// being invoked again for the same logical call; idempotency is part of the
// handler author's contract.
package toolkit

import (
	"context"
	"fmt"
	"sync"

	"github.com/martinemde/orchestra"
	"github.com/martinemde/orchestra/fault"
)

// Handler executes one tool call with schema-validated arguments. The
// returned payload is included verbatim in the tool result turn. Handlers
// signal retryable failures by returning a *fault.Error with a transient
// kind (fault.KindToolTransient for backpressure and timeouts); any other
// failure is treated as permanent.
type Handler func(ctx context.Context, arguments map[string]any) (any, error)

type registeredTool struct {
	definition orchestra.ToolDefinition
	handler    Handler
}

// Registry maps tool names to handlers. Definitions are immutable after
// registration.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registeredTool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]registeredTool{}}
}

var _ orchestra.ToolInvoker = (*Registry)(nil)

// Register adds a tool. Registering a name twice fails with
// ErrDuplicateTool.
func (r *Registry) Register(definition orchestra.ToolDefinition, handler Handler) error {
	if definition.Name == "" {
		return ErrEmptyName
	}
	if handler == nil {
		return fmt.Errorf("%w: %q", ErrNilHandler, definition.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[definition.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, definition.Name)
	}
	r.tools[definition.Name] = registeredTool{
		definition: orchestra.CloneToolDefinition(definition),
		handler:    handler,
	}
	return nil
}

// Definitions returns all registered tool definitions, for inclusion in
// planner requests.
func (r *Registry) Definitions() []orchestra.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]orchestra.ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, orchestra.CloneToolDefinition(tool.definition))
	}
	return defs
}

// Invoke validates arguments against the tool's input schema and delegates
// to the handler. Unknown tools and validation failures carry permanent
// fault kinds; handler failures keep their own kind when classified and are
// tagged permanent otherwise.
func (r *Registry) Invoke(ctx context.Context, name string, arguments map[string]any) (any, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &fault.Error{
			Kind:    fault.KindUnknownTool,
			Message: "tool " + name,
			Cause:   ErrUnknownTool,
		}
	}

	if err := validateArguments(tool.definition.InputSchema, arguments); err != nil {
		return nil, &fault.Error{
			Kind:    fault.KindInvalidArguments,
			Message: "tool " + name,
			Cause:   fmt.Errorf("%w: %w", ErrValidation, err),
		}
	}

	payload, err := tool.handler(ctx, arguments)
	if err != nil {
		if fault.KindOf(err) != fault.KindUnclassified {
			return nil, err
		}
		return nil, fault.Wrap(fault.KindToolPermanent, "tool "+name, err)
	}
	return payload, nil
}
