package structure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/san-kum/wdstar/internal/eos"
	"github.com/san-kum/wdstar/internal/integrators"
	"github.com/san-kum/wdstar/internal/logging"
	"github.com/san-kum/wdstar/internal/ode"
)

// Integrator runs structure integrations against an ode.Solver. It holds
// no per-run state and is safe for concurrent use when its solver is.
type Integrator struct {
	eos    *eos.EOS
	consts eos.Constants
	solver ode.Solver
	logger *slog.Logger
}

type Option func(*Integrator)

// WithSolver replaces the default Dormand-Prince solver.
func WithSolver(s ode.Solver) Option {
	return func(i *Integrator) { i.solver = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(i *Integrator) { i.logger = l }
}

func NewIntegrator(e *eos.EOS, opts ...Option) *Integrator {
	i := &Integrator{
		eos:    e,
		consts: e.Constants(),
		solver: integrators.NewRK45(),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Integrator) EOS() *eos.EOS            { return i.eos }
func (i *Integrator) Solver() ode.Solver       { return i.solver }
func (i *Integrator) Logger() *slog.Logger     { return i.logger }
func (i *Integrator) Constants() eos.Constants { return i.consts }

// Integrate evolves (P, M) outward from params.RMin with P = pCentral and
// M = 0 until the surface event or params.RMax. Failures after the solver
// started are returned as *IntegrationError carrying the partial profile.
func (i *Integrator) Integrate(ctx context.Context, pCentral float64, params Params) (*Profile, error) {
	if !finite(pCentral) || pCentral <= 0 {
		return nil, fmt.Errorf("%w: central pressure must be positive and finite, got %g", ErrInvalidInput, pCentral)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if params.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, params.Timeout)
		defer cancel()
	}

	log := i.logger.With("p_central", pCentral, "solver", i.solver.Name())
	star := NewStar(i.eos)
	y0 := ode.State{pCentral, 0}

	if pCentral <= params.Threshold {
		// Already at the surface: the trajectory is the initial point.
		prof := newProfile(i.eos, pCentral, ode.NewSolution(params.RMin, y0))
		prof.Termination = TerminatedByThreshold
		log.Debug("central pressure at or below surface threshold", "threshold", params.Threshold)
		return prof, nil
	}

	prob := ode.Problem{
		RHS:    star.Derive,
		R0:     params.RMin,
		R1:     params.RMax,
		Y0:     y0,
		Events: []ode.Event{star.Surface(params.Threshold)},
	}

	log.Debug("integrating structure", "r_min", params.RMin, "r_max", params.RMax, "max_step", params.MaxStep)
	start := time.Now()

	sol, err := i.solver.Solve(ctx, prob, params.options())
	if err != nil {
		return nil, i.fail(log, pCentral, star, err)
	}

	prof := newProfile(i.eos, pCentral, sol)
	prof.GuardHits = star.GuardHits()
	if sol.Status == ode.EventTriggered && sol.Terminal != nil && sol.Terminal.Name == SurfaceEvent {
		prof.Termination = TerminatedByThreshold
		last := &prof.Samples[len(prof.Samples)-1]
		last.P = math.Min(math.Max(last.P, 0), params.Threshold)
		last.Rho = i.eos.DensityFromPressure(last.P)
	} else {
		prof.Termination = TerminatedByDomain
	}

	if d := checkDegenerate(prof); d != nil {
		prof.Diagnostics = append(prof.Diagnostics, d)
		log.Warn("degenerate state before surface", "err", d, "guard_hits", prof.GuardHits)
	}

	log.Debug("integration finished",
		"termination", prof.Termination,
		"radius", prof.Radius(),
		"mass", prof.Mass(),
		"accepted", sol.Stats.Accepted,
		"rejected", sol.Stats.Rejected,
		"elapsed", time.Since(start),
	)
	return prof, nil
}

func (i *Integrator) fail(log *slog.Logger, pCentral float64, star *Star, err error) error {
	if errors.Is(err, ode.ErrInvalidProblem) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	ierr := &IntegrationError{PCentral: pCentral, Wrapped: err}
	var serr *ode.SolveError
	if errors.As(err, &serr) {
		ierr.Last = Sample{R: serr.R}
		if len(serr.State) >= 2 {
			ierr.Last.P, ierr.Last.M = serr.State[0], serr.State[1]
			ierr.Last.Rho = i.eos.DensityFromPressure(serr.State[0])
		}
		if serr.Partial != nil && len(serr.Partial.Samples) > 0 {
			ierr.Partial = newProfile(i.eos, pCentral, serr.Partial)
			ierr.Partial.GuardHits = star.GuardHits()
		}
	}

	log.Warn("integration failed", "err", err, "kind", FailureKind(ierr), "r", ierr.Last.R)
	return ierr
}

// checkDegenerate flags a trajectory that reached P <= 0 before its
// terminal sample, or that hit the guard without ever crossing the surface.
func checkDegenerate(p *Profile) error {
	n := len(p.Samples)
	for k := 0; k < n-1; k++ {
		if p.Samples[k].P <= 0 {
			return fmt.Errorf("%w: P=%g at r=%g", ErrDegenerateState, p.Samples[k].P, p.Samples[k].R)
		}
	}
	if p.Termination == TerminatedByDomain && p.GuardHits > 0 {
		return fmt.Errorf("%w: %d guard hits without reaching the surface", ErrDegenerateState, p.GuardHits)
	}
	return nil
}
