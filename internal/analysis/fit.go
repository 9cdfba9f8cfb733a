package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/wdstar/internal/structure"
)

var ErrInsufficientData = errors.New("analysis: need at least two positive points")

// PowerLaw is y = Prefactor * x^Exponent with the log-log fit quality.
type PowerLaw struct {
	Exponent  float64
	Prefactor float64
	R2        float64
	N         int
}

func (p PowerLaw) Eval(x float64) float64 {
	return p.Prefactor * math.Pow(x, p.Exponent)
}

// FitPowerLaw fits log y = log a + k log x by least squares. Non-positive
// pairs are skipped.
func FitPowerLaw(x, y []float64) (PowerLaw, error) {
	if len(x) != len(y) {
		return PowerLaw{}, fmt.Errorf("analysis: length mismatch %d != %d", len(x), len(y))
	}
	lx := make([]float64, 0, len(x))
	ly := make([]float64, 0, len(y))
	for i := range x {
		if x[i] > 0 && y[i] > 0 {
			lx = append(lx, math.Log(x[i]))
			ly = append(ly, math.Log(y[i]))
		}
	}
	if len(lx) < 2 {
		return PowerLaw{}, ErrInsufficientData
	}

	intercept, slope := stat.LinearRegression(lx, ly, nil, false)
	return PowerLaw{
		Exponent:  slope,
		Prefactor: math.Exp(intercept),
		R2:        stat.RSquared(lx, ly, nil, intercept, slope),
		N:         len(lx),
	}, nil
}

// MassRadius fits R ∝ M^k over the successful entries of a sweep, radius
// and mass in solar units.
func MassRadius(res *structure.SweepResult) (PowerLaw, error) {
	radii, masses := res.Pairs()
	return FitPowerLaw(masses, radii)
}
