package sandbox

import (
	"time"

	"sql-sandbox/internal/normalize"
)

type OutcomeKind int

const (
	OutcomeRows OutcomeKind = iota
	OutcomeEngineError
	OutcomeTimeout
	OutcomeRowLimitExceeded
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRows:
		return "rows"
	case OutcomeEngineError:
		return "engine_error"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeRowLimitExceeded:
		return "row_limit_exceeded"
	default:
		return "unknown"
	}
}

// EngineError is a sanitized engine failure. Message is safe to show to the
// learner.
type EngineError struct {
	Code    string
	Message string
}

func (e *EngineError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Message + " (" + e.Code + ")"
}

// Outcome is the single result of one sandbox execution. Rows is set for
// OutcomeRows and OutcomeRowLimitExceeded, Err for OutcomeEngineError.
type Outcome struct {
	Kind     OutcomeKind
	Rows     normalize.NativeRows
	Err      *EngineError
	Duration time.Duration

	// TotalRows counts rows the engine produced when the cap was hit.
	// TotalExact is false when counting stopped at the count limit or
	// the time budget before the result was exhausted.
	TotalRows  int
	TotalExact bool
}

// Codes used for failures that do not come from the engine itself.
const (
	CodeCancelled   = "cancelled"
	CodeUnavailable = "unavailable"
	CodeEngine      = "engine"
)
