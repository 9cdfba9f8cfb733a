package structure

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/wdstar/internal/eos"
	"github.com/san-kum/wdstar/internal/ode"
)

// Termination records why an integration stopped.
type Termination int

const (
	// TerminatedNone marks a partial profile from a failed run.
	TerminatedNone Termination = iota
	TerminatedByThreshold
	TerminatedByDomain
)

func (t Termination) String() string {
	switch t {
	case TerminatedByThreshold:
		return "threshold"
	case TerminatedByDomain:
		return "domain"
	default:
		return "none"
	}
}

func (t Termination) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Termination) UnmarshalText(b []byte) error {
	switch string(b) {
	case "threshold":
		*t = TerminatedByThreshold
	case "domain":
		*t = TerminatedByDomain
	case "none", "":
		*t = TerminatedNone
	default:
		return fmt.Errorf("unknown termination %q", string(b))
	}
	return nil
}

// Sample is one point of a profile in CGS units.
type Sample struct {
	R   float64
	P   float64
	M   float64
	Rho float64
}

// Profile is the trajectory of one structure integration.
type Profile struct {
	PCentral    float64
	Samples     []Sample
	Termination Termination
	Constants   eos.Constants
	Stats       ode.Stats
	// GuardHits counts right-hand side evaluations at P <= 0, including
	// those expected while stepping across the surface.
	GuardHits   int
	Diagnostics []error

	eos      *eos.EOS
	solution *ode.Solution
}

// NewProfile builds a profile from stored samples. It has no dense
// solution, so At falls back to linear interpolation.
func NewProfile(pCentral float64, samples []Sample, term Termination, consts eos.Constants) *Profile {
	p := &Profile{
		PCentral:    pCentral,
		Samples:     samples,
		Termination: term,
		Constants:   consts,
	}
	if e, err := eos.New(consts); err == nil {
		p.eos = e
	}
	return p
}

func newProfile(e *eos.EOS, pCentral float64, sol *ode.Solution) *Profile {
	p := &Profile{
		PCentral:  pCentral,
		Samples:   make([]Sample, len(sol.Samples)),
		Constants: e.Constants(),
		Stats:     sol.Stats,
		eos:       e,
		solution:  sol,
	}
	for i, s := range sol.Samples {
		p.Samples[i] = Sample{R: s.R, P: s.Y[0], M: s.Y[1], Rho: e.DensityFromPressure(s.Y[0])}
	}
	return p
}

// Terminal is the last sample: the surface for threshold-terminated runs.
func (p *Profile) Terminal() Sample {
	if len(p.Samples) == 0 {
		return Sample{}
	}
	return p.Samples[len(p.Samples)-1]
}

// Radius is the terminal radius in cm.
func (p *Profile) Radius() float64 { return p.Terminal().R }

// Mass is the terminal enclosed mass in g.
func (p *Profile) Mass() float64 { return p.Terminal().M }

func (p *Profile) SurfaceRadiusSolar() float64 {
	return p.Radius() / p.Constants.SolarRadius
}

func (p *Profile) TotalMassSolar() float64 {
	return p.Mass() / p.Constants.SolarMass
}

// CentralDensity is the density at the innermost sample.
func (p *Profile) CentralDensity() float64 {
	if len(p.Samples) == 0 {
		return 0
	}
	return p.Samples[0].Rho
}

func (p *Profile) Radii() []float64     { return p.column(func(s Sample) float64 { return s.R }) }
func (p *Profile) Pressures() []float64 { return p.column(func(s Sample) float64 { return s.P }) }
func (p *Profile) Masses() []float64    { return p.column(func(s Sample) float64 { return s.M }) }
func (p *Profile) Densities() []float64 { return p.column(func(s Sample) float64 { return s.Rho }) }

func (p *Profile) column(get func(Sample) float64) []float64 {
	out := make([]float64, len(p.Samples))
	for i, s := range p.Samples {
		out[i] = get(s)
	}
	return out
}

// Degenerate reports whether a degenerate-state diagnostic was recorded.
func (p *Profile) Degenerate() bool {
	for _, d := range p.Diagnostics {
		if errors.Is(d, ErrDegenerateState) {
			return true
		}
	}
	return false
}

// At evaluates P(r) and M(r) inside the integrated span, from the dense
// solution when available and by linear interpolation otherwise.
func (p *Profile) At(r float64) (Sample, bool) {
	if len(p.Samples) == 0 || r < p.Samples[0].R || r > p.Terminal().R {
		return Sample{}, false
	}
	if p.solution != nil && p.solution.HasDense() {
		if y, ok := p.solution.At(r); ok {
			return p.sample(r, y[0], y[1]), true
		}
	}

	lo, hi := 0, len(p.Samples)-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if p.Samples[mid].R <= r {
			lo = mid
		} else {
			hi = mid
		}
	}
	a, b := p.Samples[lo], p.Samples[hi]
	if b.R == a.R {
		return a, true
	}
	w := (r - a.R) / (b.R - a.R)
	return p.sample(r, a.P+w*(b.P-a.P), a.M+w*(b.M-a.M)), true
}

func (p *Profile) sample(r, pr, m float64) Sample {
	pr = math.Max(pr, 0)
	s := Sample{R: r, P: pr, M: m}
	if p.eos != nil {
		s.Rho = p.eos.DensityFromPressure(pr)
	}
	return s
}
