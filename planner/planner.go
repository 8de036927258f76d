// Package planner provides model gateway adapters. A planner sends the full
// conversation plus the available tool definitions to a reasoning endpoint
// and parses the reply into an Outcome: either a final answer or a set of
// requested tool calls.
//
// Failures are classified for the retry governor: endpoint unavailability is
// transient (fault.KindModelUnavailable), rejected requests and unparseable
// responses are permanent (fault.KindModelRejected, fault.KindResponseParse).
package planner

import (
	"context"

	"github.com/martinemde/orchestra"
)

// Func adapts a function to the Planner interface. Useful for deterministic
// planners and test stubs.
type Func func(ctx context.Context, conversation orchestra.Conversation, tools []orchestra.ToolDefinition) (orchestra.Outcome, error)

// Plan calls f.
func (f Func) Plan(ctx context.Context, conversation orchestra.Conversation, tools []orchestra.ToolDefinition) (orchestra.Outcome, error) {
	return f(ctx, conversation, tools)
}

var _ orchestra.Planner = (Func)(nil)
