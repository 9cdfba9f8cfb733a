package integrators

import (
	"context"
	"math"

	"github.com/san-kum/wdstar/internal/ode"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0

	// continuous extension
	d1 = -12715105075.0 / 11282082432.0
	d3 = 87487479700.0 / 32700410799.0
	d4 = -10690763975.0 / 1880347072.0
	d5 = 701980252875.0 / 199316789632.0
	d6 = -1453857185.0 / 822651844.0
	d7 = 69997945.0 / 29380423.0
)

const uround = 2.220446049250313e-16

// RK45 is the adaptive Dormand-Prince 5(4) solver with FSAL, 4th order dense
// output and event location.
type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64
}

func NewRK45() *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

func (r *RK45) Name() string { return "dopri5" }

type rk45Work struct {
	k1, k2, k3, k4, k5, k6, k7 ode.State
	tmp, yNew, errEst          ode.State
}

func newRK45Work(n int) *rk45Work {
	mk := func() ode.State { return make(ode.State, n) }
	return &rk45Work{
		k1: mk(), k2: mk(), k3: mk(), k4: mk(), k5: mk(), k6: mk(), k7: mk(),
		tmp: mk(), yNew: mk(), errEst: mk(),
	}
}

// attempt takes one trial step of size h from (t, x), with w.k1 = f(t, x)
// already evaluated. The 5th order result lands in w.yNew, f at the new point
// in w.k7, and the scaled RMS error is returned.
func (r *RK45) attempt(f ode.Func, w *rk45Work, x ode.State, t, h float64, opts ode.Options) float64 {
	n := len(x)

	for i := 0; i < n; i++ {
		w.tmp[i] = x[i] + h*b21*w.k1[i]
	}
	f(t+a2*h, w.tmp, w.k2)

	for i := 0; i < n; i++ {
		w.tmp[i] = x[i] + h*(b31*w.k1[i]+b32*w.k2[i])
	}
	f(t+a3*h, w.tmp, w.k3)

	for i := 0; i < n; i++ {
		w.tmp[i] = x[i] + h*(b41*w.k1[i]+b42*w.k2[i]+b43*w.k3[i])
	}
	f(t+a4*h, w.tmp, w.k4)

	for i := 0; i < n; i++ {
		w.tmp[i] = x[i] + h*(b51*w.k1[i]+b52*w.k2[i]+b53*w.k3[i]+b54*w.k4[i])
	}
	f(t+a5*h, w.tmp, w.k5)

	for i := 0; i < n; i++ {
		w.tmp[i] = x[i] + h*(b61*w.k1[i]+b62*w.k2[i]+b63*w.k3[i]+b64*w.k4[i]+b65*w.k5[i])
	}
	f(t+h, w.tmp, w.k6)

	for i := 0; i < n; i++ {
		w.yNew[i] = x[i] + h*(c1*w.k1[i]+c3*w.k3[i]+c4*w.k4[i]+c5*w.k5[i]+c6*w.k6[i])
	}
	f(t+h, w.yNew, w.k7)

	sum := 0.0
	for i := 0; i < n; i++ {
		w.errEst[i] = h * (dc1*w.k1[i] + dc3*w.k3[i] + dc4*w.k4[i] + dc5*w.k5[i] + dc6*w.k6[i] + dc7*w.k7[i])
		sc := opts.AbsTol + opts.RelTol*math.Max(math.Abs(x[i]), math.Abs(w.yNew[i]))
		e := w.errEst[i] / sc
		sum += e * e
	}
	return math.Sqrt(sum / float64(n))
}

// dense builds the continuous extension over [t, t+h] from a completed
// attempt.
func (r *RK45) dense(w *rk45Work, x ode.State, t, h float64) *dopriSegment {
	n := len(x)
	seg := &dopriSegment{
		start: t,
		end:   t + h,
		h:     h,
		r1:    x.Clone(),
		r2:    make(ode.State, n),
		r3:    make(ode.State, n),
		r4:    make(ode.State, n),
		r5:    make(ode.State, n),
	}
	for i := 0; i < n; i++ {
		ydiff := w.yNew[i] - x[i]
		bspl := h*w.k1[i] - ydiff
		seg.r2[i] = ydiff
		seg.r3[i] = bspl
		seg.r4[i] = ydiff - h*w.k7[i] - bspl
		seg.r5[i] = h * (d1*w.k1[i] + d3*w.k3[i] + d4*w.k4[i] + d5*w.k5[i] + d6*w.k6[i] + d7*w.k7[i])
	}
	return seg
}

// initialStep follows Hairer's starting step heuristic.
func (r *RK45) initialStep(f ode.Func, x ode.State, t, hmax float64, f0 ode.State, opts ode.Options) float64 {
	n := len(x)
	d0, d1n := 0.0, 0.0
	for i := 0; i < n; i++ {
		sc := opts.AbsTol + opts.RelTol*math.Abs(x[i])
		d0 += (x[i] / sc) * (x[i] / sc)
		d1n += (f0[i] / sc) * (f0[i] / sc)
	}
	d0 = math.Sqrt(d0 / float64(n))
	d1n = math.Sqrt(d1n / float64(n))

	h0 := 1e-6
	if d0 >= 1e-5 && d1n >= 1e-5 {
		h0 = 0.01 * d0 / d1n
	}
	h0 = math.Min(h0, hmax)

	x1 := make(ode.State, n)
	for i := 0; i < n; i++ {
		x1[i] = x[i] + h0*f0[i]
	}
	f1 := make(ode.State, n)
	f(t+h0, x1, f1)

	d2 := 0.0
	for i := 0; i < n; i++ {
		sc := opts.AbsTol + opts.RelTol*math.Abs(x[i])
		e := (f1[i] - f0[i]) / sc
		d2 += e * e
	}
	d2 = math.Sqrt(d2/float64(n)) / h0

	var h1 float64
	if m := math.Max(d1n, d2); m <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/m, 0.2)
	}
	return math.Min(math.Min(100*h0, h1), hmax)
}

func (r *RK45) Solve(ctx context.Context, prob ode.Problem, opts ode.Options) (*ode.Solution, error) {
	if err := prob.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	n := len(prob.Y0)
	span := prob.R1 - prob.R0
	hmax := opts.MaxStep
	if hmax <= 0 || hmax > span {
		hmax = span
	}

	sol := ode.NewSolution(prob.R0, prob.Y0)
	w := newRK45Work(n)
	x := prob.Y0.Clone()
	t := prob.R0

	f := func(t float64, y, dy ode.State) {
		sol.Stats.Evaluations++
		prob.RHS(t, y, dy)
	}
	f(t, x, w.k1)

	h := opts.InitialStep
	if h <= 0 {
		h = r.initialStep(f, x, t, hmax, w.k1, opts)
	}
	h = math.Min(h, hmax)

	gPrev := evalEvents(prob.Events, t, x)
	rejectedLast := false
	nonFinite := false
	attempts := 0

	for t < prob.R1 {
		select {
		case <-ctx.Done():
			return sol, ode.Fail(sol, attempts, joinCanceled(ctx.Err()))
		default:
		}

		if attempts >= opts.MaxSteps {
			return sol, ode.Fail(sol, attempts, ode.ErrStepBudget)
		}
		if h < 16*uround*math.Max(math.Abs(t), 1e-300) {
			if nonFinite {
				return sol, ode.Fail(sol, attempts, ode.ErrNonFinite)
			}
			return sol, ode.Fail(sol, attempts, ode.ErrStepTooSmall)
		}

		last := false
		if t+1.01*h >= prob.R1 {
			h = prob.R1 - t
			last = true
		}

		attempts++
		errNorm := r.attempt(f, w, x, t, h, opts)

		if math.IsNaN(errNorm) || math.IsInf(errNorm, 0) || !w.yNew.IsValid() {
			nonFinite = true
			sol.Stats.Rejected++
			rejectedLast = true
			h *= r.minScale
			continue
		}

		if errNorm > 1 {
			sol.Stats.Rejected++
			rejectedLast = true
			h *= math.Max(r.minScale, r.safety*math.Pow(errNorm, -0.2))
			continue
		}

		nonFinite = false
		sol.Stats.Accepted++
		tNew := t + h
		if last {
			tNew = prob.R1
		}

		var seg *dopriSegment
		if opts.DenseOutput || len(prob.Events) > 0 {
			seg = r.dense(w, x, t, h)
		}

		gNew := evalEvents(prob.Events, tNew, w.yNew)
		if hit, ok := firstCrossing(prob.Events, gPrev, gNew, t, tNew, seg, w.yNew); ok {
			ev := prob.Events[hit.Index]
			sol.Hits = append(sol.Hits, hit)
			if ev.Terminal {
				if seg != nil && opts.DenseOutput {
					seg.end = hit.R
					sol.AppendDense(seg)
				}
				sol.Append(hit.R, hit.Y)
				sol.Status = ode.EventTriggered
				sol.Terminal = &sol.Hits[len(sol.Hits)-1]
				return sol, nil
			}
		}

		if seg != nil && opts.DenseOutput {
			sol.AppendDense(seg)
		}
		sol.Append(tNew, w.yNew)

		copy(x, w.yNew)
		copy(w.k1, w.k7)
		t = tNew
		gPrev = gNew

		var scale float64
		if errNorm == 0 {
			scale = r.maxScale
		} else {
			scale = math.Min(r.maxScale, math.Max(r.minScale, r.safety*math.Pow(errNorm, -0.2)))
		}
		if rejectedLast {
			scale = math.Min(scale, 1)
		}
		rejectedLast = false
		h = math.Min(h*scale, hmax)
	}

	sol.Status = ode.ReachedEnd
	return sol, nil
}

type dopriSegment struct {
	start, end, h      float64
	r1, r2, r3, r4, r5 ode.State
}

func (s *dopriSegment) Span() (float64, float64) { return s.start, s.end }

func (s *dopriSegment) Eval(t float64) ode.State {
	theta := (t - s.start) / s.h
	theta1 := 1 - theta
	y := make(ode.State, len(s.r1))
	for i := range y {
		y[i] = s.r1[i] + theta*(s.r2[i]+theta1*(s.r3[i]+theta*(s.r4[i]+theta1*s.r5[i])))
	}
	return y
}
