// Package engine implements the execution loop that drives a task to a
// terminal state. Each iteration asks the planner for the next step, runs
// any requested tool calls concurrently, appends the results to the
// conversation, and persists the new state with optimistic concurrency
// before planning again. Iteration and wall-clock budgets bound the loop;
// exhausting either is an ordinary terminal outcome, not an error.
package engine
