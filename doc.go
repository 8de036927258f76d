// Package orchestra defines the shared data model and collaborator
// interfaces for the agent orchestration core.
//
// An Execution is one bounded run of a task through the reasoning loop:
// the engine repeatedly asks a Planner for the next action, dispatches any
// requested tool calls through a ToolInvoker, merges the results back into
// the conversation, and persists every state transition through a Store
// with optimistic versioning.
//
// This package holds only types and contracts. The moving parts live in
// the subpackages:
//
//   - engine: the execution state machine that drives iterations.
//   - planner: model gateway adapters producing Outcome values.
//   - toolkit: the tool registry with schema validation.
//   - backoff: the retry governor applied to planner and tool calls.
//   - fault: the error kind taxonomy consumed by the governor.
//   - store/inmem, store/sqlite: Store implementations.
//
// # Quick Start
//
//	registry := toolkit.NewRegistry()
//	_ = registry.Register(orchestra.ToolDefinition{Name: "echo"}, echoHandler)
//
//	eng, _ := engine.New(plannerAdapter, registry, inmem.New())
//	result, err := eng.Run(ctx, "summarize the build failure", orchestra.DefaultConfig())
package orchestra
