package toolkit

import "errors"

var (
	// ErrDuplicateTool is returned by Register when the name is taken.
	ErrDuplicateTool = errors.New("tool is already registered")
	// ErrUnknownTool is returned by Invoke for an unregistered name.
	ErrUnknownTool = errors.New("tool is not registered")
	// ErrValidation is returned by Invoke when arguments fail the schema.
	ErrValidation = errors.New("tool arguments are invalid")
	// ErrNilHandler is returned by Register for a nil handler.
	ErrNilHandler = errors.New("tool handler is nil")
	// ErrEmptyName is returned by Register for an empty tool name.
	ErrEmptyName = errors.New("tool name is empty")
)
