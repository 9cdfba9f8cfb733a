package structure

import (
	"fmt"
	"math"
	"time"

	"github.com/san-kum/wdstar/internal/ode"
)

// Params controls a single structure integration. Lengths are in cm and
// pressures in dyn/cm².
type Params struct {
	// RMin is the starting radius, kept off the origin to avoid the 1/r²
	// singularity.
	RMin float64 `json:"r_min"`
	RMax float64 `json:"r_max"`
	// Threshold is the surface pressure. Near the surface P falls as
	// (R-r)^2.5, so above P0 of about 1e27 the default 1e-10 lies below
	// the float resolution of r and the run fails with a step-size error
	// just short of the surface. Raise it for such central pressures.
	Threshold   float64       `json:"threshold"`
	MaxStep     float64       `json:"max_step"`
	InitialStep float64       `json:"initial_step,omitempty"`
	RelTol      float64       `json:"rel_tol"`
	AbsTol      float64       `json:"abs_tol"`
	MaxSteps    int           `json:"max_steps"`
	Timeout     time.Duration `json:"timeout"`
}

func DefaultParams() Params {
	return Params{
		RMin:      1e-6,
		RMax:      1e11,
		Threshold: 1e-10,
		MaxStep:   1e7,
		RelTol:    1e-8,
		AbsTol:    1e-10,
		MaxSteps:  100000,
		Timeout:   30 * time.Second,
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (p Params) Validate() error {
	if !finite(p.RMin) || p.RMin <= 0 {
		return fmt.Errorf("%w: r_min must be positive, got %g", ErrInvalidInput, p.RMin)
	}
	if !finite(p.RMax) || p.RMin >= p.RMax {
		return fmt.Errorf("%w: r_min %g must be below r_max %g", ErrInvalidInput, p.RMin, p.RMax)
	}
	if !finite(p.Threshold) || p.Threshold < 0 {
		return fmt.Errorf("%w: threshold must be non-negative, got %g", ErrInvalidInput, p.Threshold)
	}
	if !finite(p.MaxStep) || p.MaxStep < 0 {
		return fmt.Errorf("%w: max step must be non-negative, got %g", ErrInvalidInput, p.MaxStep)
	}
	if !finite(p.InitialStep) || p.InitialStep < 0 {
		return fmt.Errorf("%w: initial step must be non-negative, got %g", ErrInvalidInput, p.InitialStep)
	}
	if !finite(p.RelTol) || p.RelTol <= 0 {
		return fmt.Errorf("%w: rel tol must be positive, got %g", ErrInvalidInput, p.RelTol)
	}
	if !finite(p.AbsTol) || p.AbsTol < 0 {
		return fmt.Errorf("%w: abs tol must be non-negative, got %g", ErrInvalidInput, p.AbsTol)
	}
	if p.MaxSteps <= 0 {
		return fmt.Errorf("%w: max steps must be positive, got %d", ErrInvalidInput, p.MaxSteps)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("%w: timeout must be non-negative, got %v", ErrInvalidInput, p.Timeout)
	}
	return nil
}

func (p Params) options() ode.Options {
	return ode.Options{
		RelTol:      p.RelTol,
		AbsTol:      p.AbsTol,
		MaxStep:     p.MaxStep,
		InitialStep: p.InitialStep,
		MaxSteps:    p.MaxSteps,
		DenseOutput: true,
	}
}
