package structure

import (
	"context"
	"fmt"

	"github.com/san-kum/wdstar/internal/ode"
)

// stallingSolver delegates to inner except for one central pressure, where
// it blocks until the context ends.
type stallingSolver struct {
	inner ode.Solver
	stall float64
}

func (s *stallingSolver) Name() string { return "stalling" }

func (s *stallingSolver) Solve(ctx context.Context, prob ode.Problem, opts ode.Options) (*ode.Solution, error) {
	if prob.Y0[0] != s.stall {
		return s.inner.Solve(ctx, prob, opts)
	}
	<-ctx.Done()
	sol := ode.NewSolution(prob.R0, prob.Y0)
	return sol, ode.Fail(sol, 0, fmt.Errorf("%w: %w", ode.ErrCanceled, ctx.Err()))
}

// scriptedSolver returns a fixed trajectory.
type scriptedSolver struct {
	samples  []ode.Sample
	terminal bool
}

func (s *scriptedSolver) Name() string { return "scripted" }

func (s *scriptedSolver) Solve(_ context.Context, prob ode.Problem, _ ode.Options) (*ode.Solution, error) {
	sol := ode.NewSolution(s.samples[0].R, s.samples[0].Y)
	for _, smp := range s.samples[1:] {
		sol.Append(smp.R, smp.Y)
	}
	if s.terminal {
		last := sol.Last()
		sol.Status = ode.EventTriggered
		sol.Terminal = &ode.EventHit{Name: prob.Events[0].Name, R: last.R, Y: last.Y}
	}
	return sol, nil
}
