package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/wdstar/internal/eos"
	"github.com/san-kum/wdstar/internal/ode"
	"github.com/san-kum/wdstar/internal/structure"
)

var ErrNoSurface = errors.New("analysis: Lane-Emden solution has no finite zero")

// Polytrope holds the Lane-Emden constants for index N: the first zero Xi1
// of theta and Omega = -xi1² theta'(xi1).
type Polytrope struct {
	N     float64
	Xi1   float64
	Omega float64
}

// NonRelativistic is the n = 3/2 polytrope of a non-relativistic degenerate
// electron gas.
var NonRelativistic = Polytrope{N: 1.5, Xi1: 3.65375, Omega: 2.71406}

// Prediction is the structure implied by a polytrope in CGS units.
type Prediction struct {
	CentralDensity float64
	// Alpha is the Lane-Emden length scale.
	Alpha  float64
	Radius float64
	Mass   float64
}

// Predict returns radius and mass for P = k rho^(1+1/N) at central density
// rhoC under gravitational constant g.
func (p Polytrope) Predict(k, g, rhoC float64) Prediction {
	alpha := math.Sqrt((p.N + 1) * k * math.Pow(rhoC, 1/p.N-1) / (4 * math.Pi * g))
	return Prediction{
		CentralDensity: rhoC,
		Alpha:          alpha,
		Radius:         alpha * p.Xi1,
		Mass:           4 * math.Pi * alpha * alpha * alpha * rhoC * p.Omega,
	}
}

// PredictNR is the n = 3/2 prediction for central pressure pCentral.
func PredictNR(e *eos.EOS, pCentral float64) (Prediction, error) {
	if math.IsNaN(pCentral) || pCentral <= 0 || math.IsInf(pCentral, 0) {
		return Prediction{}, fmt.Errorf("%w: central pressure must be positive, got %g", structure.ErrInvalidInput, pCentral)
	}
	return NonRelativistic.Predict(e.K(), e.Constants().G, e.DensityFromPressure(pCentral)), nil
}

// Deviation is the relative error of a profile against a prediction.
type Deviation struct {
	Radius float64
	Mass   float64
}

// Within reports whether both deviations are at most tol in magnitude.
func (d Deviation) Within(tol float64) bool {
	return math.Abs(d.Radius) <= tol && math.Abs(d.Mass) <= tol
}

func Compare(p *structure.Profile, pred Prediction) Deviation {
	return Deviation{
		Radius: p.Radius()/pred.Radius - 1,
		Mass:   p.Mass()/pred.Mass - 1,
	}
}

const laneEmdenStart = 1e-4

// SolveLaneEmden integrates d²θ/dξ² = -θ^n - (2/ξ) dθ/dξ from the
// series expansion at small xi to the first zero of theta. Indices n >= 5
// have no finite zero.
func SolveLaneEmden(ctx context.Context, solver ode.Solver, n float64) (Polytrope, error) {
	if math.IsNaN(n) || n < 0 {
		return Polytrope{}, fmt.Errorf("%w: polytropic index must be non-negative, got %g", structure.ErrInvalidInput, n)
	}
	if n >= 5 {
		return Polytrope{}, ErrNoSurface
	}

	xi := laneEmdenStart
	theta := 1 - xi*xi/6 + n*math.Pow(xi, 4)/120
	dtheta := -xi/3 + n*math.Pow(xi, 3)/30

	prob := ode.Problem{
		RHS: func(xi float64, y, dy ode.State) {
			dy[0] = y[1]
			dy[1] = -math.Pow(math.Max(y[0], 0), n) - 2*y[1]/xi
		},
		R0: xi,
		R1: 50,
		Y0: ode.State{theta, dtheta},
		Events: []ode.Event{{
			Name:      "zero",
			Func:      func(_ float64, y ode.State) float64 { return y[0] },
			Direction: ode.Falling,
			Terminal:  true,
		}},
	}
	opts := ode.DefaultOptions()
	opts.RelTol = 1e-10
	opts.AbsTol = 1e-12
	opts.MaxStep = 0.05

	sol, err := solver.Solve(ctx, prob, opts)
	if err != nil {
		return Polytrope{}, fmt.Errorf("lane-emden n=%g: %w", n, err)
	}
	if sol.Terminal == nil {
		return Polytrope{}, ErrNoSurface
	}

	xi1 := sol.Terminal.R
	return Polytrope{N: n, Xi1: xi1, Omega: -xi1 * xi1 * sol.Terminal.Y[1]}, nil
}
