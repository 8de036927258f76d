package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/martinemde/orchestra"
	"github.com/martinemde/orchestra/backoff"
)

// Engine drives executions through the bounded reasoning loop: plan with the
// model, dispatch the requested tool calls, feed the results back, repeat
// until a final answer or a budget runs out. Every state transition is
// persisted through the store with optimistic concurrency.
type Engine struct {
	planner orchestra.Planner
	tools   orchestra.ToolInvoker
	store   orchestra.Store

	modelPolicy backoff.Policy
	toolPolicy  backoff.Policy

	logger  *slog.Logger
	emitter *EventEmitter

	now   func() time.Time
	newID func() orchestra.ExecutionID
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithModelPolicy overrides the retry policy applied to planning steps.
func WithModelPolicy(p backoff.Policy) Option {
	return func(e *Engine) { e.modelPolicy = p }
}

// WithToolPolicy overrides the retry policy applied to tool invocations.
func WithToolPolicy(p backoff.Policy) Option {
	return func(e *Engine) { e.toolPolicy = p }
}

// WithEventBuffer sets the event channel buffer size.
func WithEventBuffer(size int) Option {
	return func(e *Engine) { e.emitter = NewEventEmitter(size) }
}

// New creates an Engine. The planner, tool invoker, and store are required.
func New(planner orchestra.Planner, tools orchestra.ToolInvoker, store orchestra.Store, opts ...Option) (*Engine, error) {
	if planner == nil {
		return nil, errors.New("engine: planner is required")
	}
	if tools == nil {
		return nil, errors.New("engine: tool invoker is required")
	}
	if store == nil {
		return nil, errors.New("engine: store is required")
	}
	e := &Engine{
		planner:     planner,
		tools:       tools,
		store:       store,
		modelPolicy: backoff.DefaultModelPolicy(),
		toolPolicy:  backoff.DefaultToolPolicy(),
		logger:      slog.Default(),
		emitter:     NewEventEmitter(256),
		now:         time.Now,
		newID: func() orchestra.ExecutionID {
			return orchestra.ExecutionID(uuid.NewString())
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Events returns the engine's event channel for host observability.
func (e *Engine) Events() <-chan Event {
	return e.emitter.Events()
}

// Close releases the event channel. The engine must not be used afterwards.
func (e *Engine) Close() {
	e.emitter.Close()
}

// Run executes a task to a terminal state and returns the outcome. Budget
// terminations (TIMED_OUT, ITERATIONS_EXHAUSTED) are reported in the Result
// with a nil error; FAILED executions return the causing error as well.
func (e *Engine) Run(ctx context.Context, task string, cfg orchestra.Config) (orchestra.Result, error) {
	if strings.TrimSpace(task) == "" {
		return orchestra.Result{}, errors.New("engine: task must not be empty")
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return orchestra.Result{}, err
	}

	now := e.now()
	exec := orchestra.Execution{
		ID:            e.newID(),
		Task:          task,
		Status:        orchestra.StatusCreated,
		MaxIterations: cfg.MaxIterations,
		Deadline:      now.Add(time.Duration(cfg.TimeoutSeconds) * time.Second),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	turns := orchestra.Conversation{orchestra.NewUserTaskTurn(task)}

	if err := e.store.Create(ctx, exec, turns); err != nil {
		return orchestra.Result{}, fmt.Errorf("engine: create execution: %w", err)
	}
	exec.Version = 1

	e.logger.Info("execution created",
		"execution_id", exec.ID,
		"max_iterations", exec.MaxIterations,
		"deadline", exec.Deadline)
	e.emitter.Emit(EventExecutionCreated, exec.ID, map[string]any{"task": task})

	r := &run{engine: e, exec: exec, turns: turns, cfg: cfg}
	return r.loop(ctx)
}

// run carries the mutable state of a single execution through the loop.
type run struct {
	engine *Engine
	exec   orchestra.Execution
	turns  orchestra.Conversation
	cfg    orchestra.Config
}

func (r *run) loop(ctx context.Context) (orchestra.Result, error) {
	if err := r.transitionAndPersist(ctx, orchestra.StatusPlanning); err != nil {
		return r.fail(ctx, err)
	}

	tools := r.engine.tools.Definitions()

	for {
		// Budgets are checked only here, at the top of each iteration.
		// An in-flight batch always runs to completion.
		if err := ctx.Err(); err != nil {
			return r.fail(ctx, err)
		}
		if !r.engine.now().Before(r.exec.Deadline) {
			return r.finishBudget(ctx, orchestra.StatusTimedOut, "execution deadline exceeded")
		}
		if r.exec.IterationCount >= r.exec.MaxIterations {
			reason := fmt.Sprintf("iteration budget of %d exhausted", r.exec.MaxIterations)
			return r.finishBudget(ctx, orchestra.StatusIterationsExhausted, reason)
		}

		r.exec.IterationCount++

		r.engine.emitter.Emit(EventPlanningStart, r.exec.ID, map[string]any{
			"iteration": r.exec.IterationCount,
		})
		outcome, err := backoff.Execute(ctx, r.engine.modelPolicy, func(ctx context.Context) (orchestra.Outcome, error) {
			return r.engine.planner.Plan(ctx, r.turns.Clone(), tools)
		})
		if err != nil {
			return r.fail(ctx, fmt.Errorf("planning step %d: %w", r.exec.IterationCount, err))
		}
		r.engine.emitter.Emit(EventPlanningEnd, r.exec.ID, map[string]any{
			"iteration":  r.exec.IterationCount,
			"tool_calls": len(outcome.ToolCalls),
			"final":      outcome.Final(),
		})

		if outcome.Final() {
			r.turns = append(r.turns, orchestra.NewModelTurn(outcome.Text, nil))
			r.exec.Output = outcome.Text
			if err := r.transitionAndPersist(ctx, orchestra.StatusCompleted); err != nil {
				return r.fail(ctx, err)
			}
			return r.finish(orchestra.Result{
				ExecutionID: r.exec.ID,
				Status:      orchestra.StatusCompleted,
				Answer:      outcome.Text,
			}), nil
		}

		calls := r.acceptToolCalls(outcome.ToolCalls)
		r.turns = append(r.turns, orchestra.NewModelTurn(outcome.Text, calls))
		for i := range calls {
			calls[i].Status = orchestra.CallRunning
		}
		if err := r.transitionAndPersist(ctx, orchestra.StatusAwaitingTools); err != nil {
			return r.fail(ctx, err)
		}

		results := r.engine.dispatchBatch(ctx, r.exec.ID, calls, r.cfg.ToolConcurrency)

		modelIdx := len(r.turns) - 1
		for _, result := range results {
			status := orchestra.CallSucceeded
			if result.IsError {
				status = orchestra.CallFailed
			}
			markCallStatus(r.turns[modelIdx].Model, result.CallID, status)
		}
		for _, result := range results {
			r.turns = append(r.turns, orchestra.NewToolResultTurn(result))
		}

		if err := r.transitionAndPersist(ctx, orchestra.StatusPlanning); err != nil {
			return r.fail(ctx, err)
		}
	}
}

// acceptToolCalls admits a planner's requested calls into the history,
// re-issuing any id that is empty or already used earlier in the
// conversation. Providers reuse their own ids across responses; history ids
// must stay unique so every result pairs with exactly one call.
func (r *run) acceptToolCalls(requested []orchestra.ToolCall) []orchestra.ToolCall {
	seen := map[string]bool{}
	for _, turn := range r.turns {
		if turn.Kind != orchestra.TurnModel || turn.Model == nil {
			continue
		}
		for _, call := range turn.Model.ToolCalls {
			seen[call.ID] = true
		}
	}

	calls := make([]orchestra.ToolCall, len(requested))
	for i, call := range requested {
		for call.ID == "" || seen[call.ID] {
			call.ID = "call_" + uuid.NewString()[:8]
		}
		seen[call.ID] = true
		call.Status = orchestra.CallPending
		calls[i] = call
	}
	return calls
}

// transitionAndPersist applies a status transition, writes the new state
// through compare-and-swap, and bumps the local version on success.
func (r *run) transitionAndPersist(ctx context.Context, to orchestra.Status) error {
	from := r.exec.Status
	if err := r.exec.Transition(to); err != nil {
		return err
	}
	r.exec.UpdatedAt = r.engine.now()
	if err := r.engine.store.CompareAndSwap(ctx, r.exec.ID, r.exec.Version, r.exec, r.turns); err != nil {
		return fmt.Errorf("persist %s: %w", to, err)
	}
	r.exec.Version++
	r.engine.emitter.Emit(EventStateTransition, r.exec.ID, map[string]any{
		"from":    string(from),
		"to":      string(to),
		"version": r.exec.Version,
	})
	return nil
}

// finishBudget terminates the execution on an exhausted budget. The Result
// carries the reason; the returned error is nil because the execution itself
// did not fail.
func (r *run) finishBudget(ctx context.Context, status orchestra.Status, reason string) (orchestra.Result, error) {
	r.exec.Error = reason
	if err := r.transitionAndPersist(ctx, status); err != nil {
		return r.fail(ctx, err)
	}
	return r.finish(orchestra.Result{
		ExecutionID: r.exec.ID,
		Status:      status,
		Err:         reason,
	}), nil
}

// fail drives the execution to FAILED and returns the cause. Persistence is
// best effort: a version conflict at this point cannot be resolved, the
// winning writer's record stands.
func (r *run) fail(ctx context.Context, cause error) (orchestra.Result, error) {
	r.exec.Error = cause.Error()
	if terr := r.exec.Transition(orchestra.StatusFailed); terr == nil {
		r.exec.UpdatedAt = r.engine.now()
		if perr := r.engine.store.CompareAndSwap(ctx, r.exec.ID, r.exec.Version, r.exec, r.turns); perr != nil {
			r.engine.logger.Warn("failed to persist terminal state",
				"execution_id", r.exec.ID, "error", perr)
		} else {
			r.exec.Version++
		}
	}
	result := r.finish(orchestra.Result{
		ExecutionID: r.exec.ID,
		Status:      orchestra.StatusFailed,
		Err:         cause.Error(),
	})
	return result, cause
}

func (r *run) finish(result orchestra.Result) orchestra.Result {
	r.engine.logger.Info("execution ended",
		"execution_id", r.exec.ID,
		"status", result.Status,
		"iterations", r.exec.IterationCount,
		"version", r.exec.Version)
	r.engine.emitter.Emit(EventExecutionEnded, r.exec.ID, map[string]any{
		"status":     string(result.Status),
		"iterations": r.exec.IterationCount,
	})
	return result
}

func markCallStatus(turn *orchestra.ModelTurn, callID string, status orchestra.CallStatus) {
	if turn == nil {
		return
	}
	for i := range turn.ToolCalls {
		if turn.ToolCalls[i].ID == callID {
			turn.ToolCalls[i].Status = status
			return
		}
	}
}
