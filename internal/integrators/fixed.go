package integrators

import (
	"context"
	"fmt"

	"github.com/san-kum/wdstar/internal/ode"
)

// Stepper advances x by one step of size dt.
type Stepper interface {
	Step(f ode.Func, t float64, x ode.State, dt float64) ode.State
	Order() int
}

// defaultFixedSteps is the step count used when Options.MaxStep is zero.
const defaultFixedSteps = 1000

// FixedStep turns a Stepper into an ode.Solver taking uniform steps of
// Options.MaxStep. Tolerances are ignored; events and dense output use cubic
// Hermite interpolation between steps.
type FixedStep struct {
	name    string
	stepper func() Stepper
}

func NewFixedStep(name string, stepper func() Stepper) *FixedStep {
	return &FixedStep{name: name, stepper: stepper}
}

func (s *FixedStep) Name() string { return s.name }

func (s *FixedStep) Solve(ctx context.Context, prob ode.Problem, opts ode.Options) (*ode.Solution, error) {
	if err := prob.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxSteps <= 0 {
		return nil, fmt.Errorf("%w: step budget must be positive, got %d", ode.ErrInvalidProblem, opts.MaxSteps)
	}

	span := prob.R1 - prob.R0
	dt := opts.MaxStep
	if dt <= 0 || dt > span {
		dt = span / defaultFixedSteps
	}

	stepper := s.stepper()
	n := len(prob.Y0)
	sol := ode.NewSolution(prob.R0, prob.Y0)

	f := func(t float64, y, dy ode.State) {
		sol.Stats.Evaluations++
		prob.RHS(t, y, dy)
	}

	x := prob.Y0.Clone()
	t := prob.R0
	fx := make(ode.State, n)
	f(t, x, fx)
	gPrev := evalEvents(prob.Events, t, x)

	for step := 0; t < prob.R1; step++ {
		select {
		case <-ctx.Done():
			return sol, ode.Fail(sol, step, joinCanceled(ctx.Err()))
		default:
		}
		if step >= opts.MaxSteps {
			return sol, ode.Fail(sol, step, ode.ErrStepBudget)
		}

		h := dt
		tNew := t + h
		if tNew >= prob.R1 || prob.R1-tNew < 1e-9*h {
			tNew = prob.R1
			h = tNew - t
		}

		xNew := stepper.Step(f, t, x, h)
		if !xNew.IsValid() {
			return sol, ode.Fail(sol, step, ode.ErrNonFinite)
		}
		sol.Stats.Accepted++

		fNew := make(ode.State, n)
		f(tNew, xNew, fNew)
		seg := &hermiteSegment{start: t, end: tNew, h: h, y0: x, f0: fx, y1: xNew, f1: fNew}

		gNew := evalEvents(prob.Events, tNew, xNew)
		if hit, ok := firstCrossing(prob.Events, gPrev, gNew, t, tNew, seg, xNew); ok {
			sol.Hits = append(sol.Hits, hit)
			if prob.Events[hit.Index].Terminal {
				seg.end = hit.R
				if opts.DenseOutput {
					sol.AppendDense(seg)
				}
				sol.Append(hit.R, hit.Y)
				sol.Status = ode.EventTriggered
				sol.Terminal = &sol.Hits[len(sol.Hits)-1]
				return sol, nil
			}
		}

		if opts.DenseOutput {
			sol.AppendDense(seg)
		}
		sol.Append(tNew, xNew)

		x, fx, t, gPrev = xNew, fNew, tNew, gNew
	}

	sol.Status = ode.ReachedEnd
	return sol, nil
}

type hermiteSegment struct {
	start, end, h  float64
	y0, f0, y1, f1 ode.State
}

func (s *hermiteSegment) Span() (float64, float64) { return s.start, s.end }

func (s *hermiteSegment) Eval(t float64) ode.State {
	u := (t - s.start) / s.h
	u2 := u * u
	u3 := u2 * u
	h00 := 2*u3 - 3*u2 + 1
	h10 := u3 - 2*u2 + u
	h01 := -2*u3 + 3*u2
	h11 := u3 - u2
	y := make(ode.State, len(s.y0))
	for i := range y {
		y[i] = h00*s.y0[i] + h10*s.h*s.f0[i] + h01*s.y1[i] + h11*s.h*s.f1[i]
	}
	return y
}

var _ ode.Solver = (*FixedStep)(nil)
var _ ode.Solver = (*RK45)(nil)
