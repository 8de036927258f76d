// Package fault defines the error taxonomy shared by the planner, tool
// registry, retry governor, and execution engine. Every failure that crosses
// a component boundary carries a Kind so the governor can decide whether a
// retry is worthwhile without inspecting error strings.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for retry decisions.
type Kind string

const (
	// KindModelUnavailable marks a transient model endpoint failure
	// (connection refused, 5xx, rate limit without hard quota).
	KindModelUnavailable Kind = "model_unavailable"

	// KindModelRejected marks a permanent model failure: the request itself
	// was malformed or refused and will never succeed as-is.
	KindModelRejected Kind = "model_rejected"

	// KindResponseParse marks a permanent failure to interpret the model
	// response as either a final answer or tool requests.
	KindResponseParse Kind = "response_parse"

	// KindUnknownTool marks a request for a tool that is not registered.
	KindUnknownTool Kind = "unknown_tool"

	// KindInvalidArguments marks tool arguments that fail schema validation.
	KindInvalidArguments Kind = "invalid_arguments"

	// KindToolTransient marks a tool failure worth retrying, including
	// backpressure signaled by rate-limited handlers.
	KindToolTransient Kind = "tool_transient"

	// KindToolPermanent marks a tool failure that retries cannot fix.
	KindToolPermanent Kind = "tool_permanent"

	// KindStorageContention marks transient storage trouble other than a
	// version conflict.
	KindStorageContention Kind = "storage_contention"

	// KindVersionConflict marks an optimistic concurrency violation. Always
	// fatal to the execution attempt; never retried.
	KindVersionConflict Kind = "version_conflict"

	// KindUnclassified is reported for errors that carry no Kind.
	KindUnclassified Kind = "unclassified"
)

// Error is a classified failure. It wraps an optional cause and satisfies
// errors.Is/As chains.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a classified error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a classified error around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, unwrapping as needed.
// Unclassified errors report KindUnclassified.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnclassified
}
