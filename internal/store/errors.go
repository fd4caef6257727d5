package store

import "errors"

// Sentinel errors returned by Store operations. Callers should check with
// errors.Is; tool handlers return them to the client through
// mcp.ErrorResult, an error result (IsError set) whose only content is the
// wrapped error's text, with no separate success or details fields.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrDependenciesNotDone = errors.New("dependencies not done")
	ErrCycle              = errors.New("dependency cycle")
	ErrMissingDep         = errors.New("missing dependency")
	ErrHasDependents      = errors.New("has dependents")
	ErrHasCompletedWork   = errors.New("has completed work")
	ErrExternalDependents = errors.New("external dependents")
	ErrNotAnalyzed        = errors.New("not analyzed")
	ErrValidation         = errors.New("validation error")
	ErrHasRemainingEdges  = errors.New("resource node has remaining edges")
)
