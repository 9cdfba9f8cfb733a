package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/wdstar/internal/ode"
)

const maxRootIter = 200

func evalEvents(events []ode.Event, t float64, y ode.State) []float64 {
	if len(events) == 0 {
		return nil
	}
	g := make([]float64, len(events))
	for i, ev := range events {
		g[i] = ev.Func(t, y)
	}
	return g
}

// firstCrossing returns the earliest located crossing within the step
// [t0, t1], if any event crossed.
func firstCrossing(events []ode.Event, g0, g1 []float64, t0, t1 float64, seg ode.Interpolant, y1 ode.State) (ode.EventHit, bool) {
	var best ode.EventHit
	found := false
	for i, ev := range events {
		if !ev.Crossed(g0[i], g1[i]) {
			continue
		}
		r, y := locate(ev, seg, t0, t1, g0[i], g1[i], y1)
		if !found || r < best.R {
			best = ode.EventHit{Name: ev.Name, Index: i, R: r, Y: y}
			found = true
		}
	}
	return best, found
}

// locate brackets the root of ev on the interpolant with the Illinois
// variant of regula falsi. The returned point is always on the post-crossing
// side of the bracket, so ev.Crossed(g(a), g(r)) holds for it.
func locate(ev ode.Event, seg ode.Interpolant, a, b, ga, gb float64, yb ode.State) (float64, ode.State) {
	yb = yb.Clone()
	if gb == 0 || seg == nil {
		return b, yb
	}

	side := 0
	for i := 0; i < maxRootIter; i++ {
		tol := 4 * uround * math.Max(math.Abs(a), math.Abs(b))
		if b-a <= tol {
			break
		}

		m := b - gb*(b-a)/(gb-ga)
		if i >= maxRootIter/2 || !(m > a && m < b) {
			m = a + 0.5*(b-a)
		}
		ym := seg.Eval(m)
		gm := ev.Func(m, ym)

		if ev.Crossed(ga, gm) {
			b, gb, yb = m, gm, ym
			if gm == 0 {
				break
			}
			if side == -1 {
				ga /= 2
			}
			side = -1
		} else {
			a, ga = m, gm
			if side == 1 {
				gb /= 2
			}
			side = 1
		}
	}
	return b, yb
}

func joinCanceled(cause error) error {
	if cause == nil {
		return ode.ErrCanceled
	}
	return fmt.Errorf("%w: %w", ode.ErrCanceled, cause)
}
