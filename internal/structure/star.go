package structure

import (
	"math"

	"github.com/san-kum/wdstar/internal/eos"
	"github.com/san-kum/wdstar/internal/ode"
)

// SurfaceEvent is the name of the terminal pressure-threshold event.
const SurfaceEvent = "surface"

// Star is the (P, M) structure system. A Star counts guard hits and must
// not be shared between concurrent integrations.
type Star struct {
	eos *eos.EOS
	g   float64

	guardHits int
}

func NewStar(e *eos.EOS) *Star {
	return &Star{eos: e, g: e.Constants().G}
}

// Derive writes (dP/dr, dM/dr) into dy. Where the density vanishes the
// state is frozen with a zero derivative.
func (s *Star) Derive(r float64, y, dy ode.State) {
	p, m := y[0], y[1]
	rho := s.eos.DensityFromPressure(p)
	if rho == 0 || p <= 0 {
		s.guardHits++
		dy[0], dy[1] = 0, 0
		return
	}
	dy[0] = -s.g * m * rho / (r * r)
	dy[1] = 4 * math.Pi * r * r * rho
}

// GuardHits is the number of right-hand side evaluations at P <= 0.
func (s *Star) GuardHits() int { return s.guardHits }

// Surface returns the terminal event g = P - threshold, falling.
func (s *Star) Surface(threshold float64) ode.Event {
	return ode.Event{
		Name:      SurfaceEvent,
		Func:      func(_ float64, y ode.State) float64 { return y[0] - threshold },
		Direction: ode.Falling,
		Terminal:  true,
	}
}
