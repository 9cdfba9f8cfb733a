package structure

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/wdstar/internal/ode"
)

// Domain errors for structure integration.
var (
	// ErrInvalidInput indicates a caller error: non-positive central
	// pressure, an empty radius domain or an empty sweep.
	ErrInvalidInput = errors.New("structure: invalid input")

	// ErrIntegrationFailure indicates the solver could not finish a run.
	ErrIntegrationFailure = errors.New("structure: integration failure")

	// ErrDegenerateState is recorded when the trajectory reached P <= 0
	// before the surface event fired. It is a diagnostic, never returned.
	ErrDegenerateState = errors.New("structure: degenerate state before surface")
)

// IntegrationError reports a failed run with the last valid sample and the
// partial profile computed so far. It matches both ErrIntegrationFailure
// and the solver cause under errors.Is.
type IntegrationError struct {
	PCentral float64
	Last     Sample
	Partial  *Profile
	Wrapped  error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("structure: integration failed for p_central=%g at r=%g (P=%g, M=%g): %v",
		e.PCentral, e.Last.R, e.Last.P, e.Last.M, e.Wrapped)
}

func (e *IntegrationError) Unwrap() []error {
	return []error{ErrIntegrationFailure, e.Wrapped}
}

// Failure kinds reported per sweep entry.
const (
	FailureInvalidInput = "invalid_input"
	FailureStepBudget   = "step_budget"
	FailureStepTooSmall = "step_too_small"
	FailureNonFinite    = "non_finite"
	FailureTimeout      = "timeout"
	FailureCanceled     = "canceled"
	FailureUnknown      = "integration_failure"
)

// FailureKind classifies err for reports. It returns "" for nil.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return FailureInvalidInput
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, ode.ErrCanceled), errors.Is(err, context.Canceled):
		return FailureCanceled
	case errors.Is(err, ode.ErrStepBudget):
		return FailureStepBudget
	case errors.Is(err, ode.ErrStepTooSmall):
		return FailureStepTooSmall
	case errors.Is(err, ode.ErrNonFinite):
		return FailureNonFinite
	default:
		return FailureUnknown
	}
}
