package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/martinemde/orchestra"
	"github.com/martinemde/orchestra/backoff"
)

// dispatchBatch runs one iteration's tool calls concurrently, bounded by
// concurrency (0 means unbounded). It always returns one result per call,
// sorted by call id ascending so the recorded history is deterministic
// regardless of completion order.
func (e *Engine) dispatchBatch(ctx context.Context, id orchestra.ExecutionID, calls []orchestra.ToolCall, concurrency int) []orchestra.ToolResult {
	if len(calls) == 0 {
		return nil
	}
	if concurrency <= 0 || concurrency > len(calls) {
		concurrency = len(calls)
	}

	sem := make(chan struct{}, concurrency)
	results := make([]orchestra.ToolResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, call orchestra.ToolCall) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[idx] = e.invokeTool(ctx, id, call)
		}(i, call)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].CallID < results[j].CallID
	})
	return results
}

// invokeTool executes one tool call under the tool retry policy. A failure
// after retries becomes an error-flagged result, not an execution failure:
// the model sees the error text on the next planning step and can react.
func (e *Engine) invokeTool(ctx context.Context, id orchestra.ExecutionID, call orchestra.ToolCall) orchestra.ToolResult {
	e.emitter.Emit(EventToolCallStart, id, map[string]any{
		"call_id": call.ID,
		"tool":    call.Name,
	})

	content, err := backoff.Execute(ctx, e.toolPolicy, func(ctx context.Context) (any, error) {
		return e.tools.Invoke(ctx, call.Name, call.Arguments)
	})
	if err != nil {
		e.logger.Warn("tool call failed",
			"execution_id", id,
			"call_id", call.ID,
			"tool", call.Name,
			"error", err)
		e.emitter.Emit(EventToolCallEnd, id, map[string]any{
			"call_id": call.ID,
			"tool":    call.Name,
			"error":   err.Error(),
		})
		return orchestra.ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			IsError: true,
			Error:   err.Error(),
		}
	}

	e.emitter.Emit(EventToolCallEnd, id, map[string]any{
		"call_id": call.ID,
		"tool":    call.Name,
	})
	return orchestra.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: content,
	}
}
