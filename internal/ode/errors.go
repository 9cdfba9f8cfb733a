package ode

import (
	"errors"
	"fmt"
)

// Domain errors for solver operations.
var (
	// ErrInvalidProblem indicates a malformed problem or options.
	ErrInvalidProblem = errors.New("ode: invalid problem")

	// ErrStepBudget indicates the attempted step count exceeded MaxSteps.
	ErrStepBudget = errors.New("ode: step budget exhausted")

	// ErrStepTooSmall indicates the tolerances could not be met above the
	// floating point resolution of r.
	ErrStepTooSmall = errors.New("ode: step size below resolution")

	// ErrNonFinite indicates the solution diverged (NaN or Inf detected).
	ErrNonFinite = errors.New("ode: non-finite state")

	// ErrCanceled indicates the integration was interrupted by its context.
	ErrCanceled = errors.New("ode: integration canceled by context")
)

// SolveError wraps a failure with the last accepted point.
type SolveError struct {
	Step    int
	R       float64
	State   State
	Partial *Solution
	Wrapped error
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("step %d (r=%g): %v", e.Step, e.R, e.Wrapped)
}

func (e *SolveError) Unwrap() error {
	return e.Wrapped
}

// Fail builds a SolveError from the last sample of partial.
func Fail(partial *Solution, step int, err error) *SolveError {
	last := partial.Last()
	return &SolveError{
		Step:    step,
		R:       last.R,
		State:   last.Y.Clone(),
		Partial: partial,
		Wrapped: err,
	}
}
