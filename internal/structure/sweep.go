package structure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// SweepOptions configures a central-pressure sweep.
type SweepOptions struct {
	Params Params
	// Workers bounds concurrent integrations; values <= 1 run sequentially.
	Workers int
	// Timeout bounds each entry and overrides Params.Timeout when positive.
	Timeout time.Duration
	// OnResult is called once per finished entry. With Workers > 1 it may be
	// called concurrently and out of input order.
	OnResult func(SweepEntry)
}

// SweepEntry is the outcome of one central pressure. Failed entries carry
// the error, its kind and the partial profile when one exists.
type SweepEntry struct {
	Index       int
	PCentral    float64
	RadiusSolar float64
	MassSolar   float64
	Profile     *Profile
	Partial     *Profile
	Failure     string
	Err         error
	Elapsed     time.Duration
}

func (e SweepEntry) OK() bool { return e.Err == nil }

// SweepResult holds entries in input order.
type SweepResult struct {
	Entries []SweepEntry
}

// Failed returns the number of failed entries.
func (r *SweepResult) Failed() int {
	n := 0
	for _, e := range r.Entries {
		if !e.OK() {
			n++
		}
	}
	return n
}

// Pairs returns (radius, mass) in solar units for the successful entries,
// in input order.
func (r *SweepResult) Pairs() (radii, masses []float64) {
	for _, e := range r.Entries {
		if e.OK() {
			radii = append(radii, e.RadiusSolar)
			masses = append(masses, e.MassSolar)
		}
	}
	return radii, masses
}

// Sweep integrates one structure per central pressure. Only invalid sweep
// input is fatal; per-entry failures are recorded and the sweep continues.
func (i *Integrator) Sweep(ctx context.Context, pressures []float64, opts SweepOptions) (*SweepResult, error) {
	if len(pressures) == 0 {
		return nil, fmt.Errorf("%w: empty central pressure sequence", ErrInvalidInput)
	}
	for k, p := range pressures {
		if !finite(p) || p <= 0 {
			return nil, fmt.Errorf("%w: central pressure %d must be positive and finite, got %g", ErrInvalidInput, k, p)
		}
	}
	params := opts.Params
	if opts.Timeout > 0 {
		params.Timeout = opts.Timeout
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	i.logger.Info("starting sweep", "entries", len(pressures), "workers", opts.Workers, "timeout", params.Timeout)
	res := &SweepResult{Entries: make([]SweepEntry, len(pressures))}

	run := func(k int) {
		entry := i.runEntry(ctx, k, pressures[k], params)
		res.Entries[k] = entry
		if opts.OnResult != nil {
			opts.OnResult(entry)
		}
	}

	if opts.Workers <= 1 {
		for k := range pressures {
			run(k)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(opts.Workers)
		for k := range pressures {
			g.Go(func() error {
				run(k)
				return nil
			})
		}
		_ = g.Wait()
	}

	if failed := res.Failed(); failed > 0 {
		i.logger.Warn("sweep finished with failures", "failed", failed, "entries", len(pressures))
	} else {
		i.logger.Info("sweep finished", "entries", len(pressures))
	}
	return res, nil
}

func (i *Integrator) runEntry(ctx context.Context, k int, p float64, params Params) SweepEntry {
	entry := SweepEntry{Index: k, PCentral: p}
	start := time.Now()

	prof, err := i.Integrate(ctx, p, params)
	entry.Elapsed = time.Since(start)
	if err != nil {
		entry.Err = err
		entry.Failure = FailureKind(err)
		var ierr *IntegrationError
		if errors.As(err, &ierr) {
			entry.Partial = ierr.Partial
		}
		i.logger.Warn("sweep entry failed", "index", k, "p_central", p, "kind", entry.Failure, "err", err)
		return entry
	}

	entry.Profile = prof
	entry.RadiusSolar = prof.SurfaceRadiusSolar()
	entry.MassSolar = prof.TotalMassSolar()
	return entry
}

// LogSpace returns n central pressures log-spaced over [lo, hi].
func LogSpace(lo, hi float64, n int) ([]float64, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: need at least one point, got %d", ErrInvalidInput, n)
	}
	if !finite(lo) || !finite(hi) || lo <= 0 || hi <= 0 {
		return nil, fmt.Errorf("%w: log-spaced bounds must be positive, got [%g, %g]", ErrInvalidInput, lo, hi)
	}
	if n == 1 {
		return []float64{lo}, nil
	}
	return floats.LogSpan(make([]float64, n), lo, hi), nil
}
