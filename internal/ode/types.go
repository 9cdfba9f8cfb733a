package ode

import (
	"context"
	"fmt"
	"math"
	"sort"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Func writes dy/dr at (r, y) into dy. It must not retain y or dy.
type Func func(r float64, y State, dy State)

type Direction int

const (
	// Both triggers on any sign change.
	Both Direction = 0
	// Rising triggers when g goes from negative to non-negative.
	Rising Direction = 1
	// Falling triggers when g goes from positive to non-positive.
	Falling Direction = -1
)

// Event is a root function watched during integration.
type Event struct {
	Name      string
	Func      func(r float64, y State) float64
	Direction Direction
	// Terminal events stop the integration at the located root.
	Terminal bool
}

// Crossed reports whether g moving from g0 to g1 is a crossing this event
// cares about.
func (e Event) Crossed(g0, g1 float64) bool {
	switch e.Direction {
	case Rising:
		return g0 < 0 && g1 >= 0
	case Falling:
		return g0 > 0 && g1 <= 0
	default:
		return (g0 < 0 && g1 >= 0) || (g0 > 0 && g1 <= 0)
	}
}

type Problem struct {
	RHS    Func
	R0, R1 float64
	Y0     State
	Events []Event
}

func (p Problem) Validate() error {
	if p.RHS == nil {
		return fmt.Errorf("%w: nil right-hand side", ErrInvalidProblem)
	}
	if len(p.Y0) == 0 {
		return fmt.Errorf("%w: empty initial state", ErrInvalidProblem)
	}
	if !p.Y0.IsValid() {
		return fmt.Errorf("%w: non-finite initial state %v", ErrInvalidProblem, p.Y0)
	}
	if math.IsNaN(p.R0) || math.IsNaN(p.R1) || math.IsInf(p.R0, 0) || math.IsInf(p.R1, 0) {
		return fmt.Errorf("%w: non-finite domain [%g, %g]", ErrInvalidProblem, p.R0, p.R1)
	}
	if p.R1 <= p.R0 {
		return fmt.Errorf("%w: domain end %g must exceed start %g", ErrInvalidProblem, p.R1, p.R0)
	}
	for i, ev := range p.Events {
		if ev.Func == nil {
			return fmt.Errorf("%w: event %d (%q) has nil function", ErrInvalidProblem, i, ev.Name)
		}
	}
	return nil
}

type Options struct {
	RelTol float64
	AbsTol float64
	// MaxStep bounds every step; zero means the whole domain.
	MaxStep float64
	// InitialStep of zero lets the solver pick one.
	InitialStep float64
	// MaxSteps is the budget of attempted steps, accepted or rejected.
	MaxSteps    int
	DenseOutput bool
}

func DefaultOptions() Options {
	return Options{
		RelTol:      1e-8,
		AbsTol:      1e-10,
		MaxSteps:    100000,
		DenseOutput: true,
	}
}

func (o Options) Validate() error {
	if !(o.RelTol > 0) {
		return fmt.Errorf("%w: rel tol must be positive, got %g", ErrInvalidProblem, o.RelTol)
	}
	if o.AbsTol < 0 || math.IsNaN(o.AbsTol) {
		return fmt.Errorf("%w: abs tol must be non-negative, got %g", ErrInvalidProblem, o.AbsTol)
	}
	if o.MaxStep < 0 || math.IsNaN(o.MaxStep) {
		return fmt.Errorf("%w: max step must be non-negative, got %g", ErrInvalidProblem, o.MaxStep)
	}
	if o.InitialStep < 0 || math.IsNaN(o.InitialStep) {
		return fmt.Errorf("%w: initial step must be non-negative, got %g", ErrInvalidProblem, o.InitialStep)
	}
	if o.MaxSteps <= 0 {
		return fmt.Errorf("%w: step budget must be positive, got %d", ErrInvalidProblem, o.MaxSteps)
	}
	return nil
}

type Sample struct {
	R float64
	Y State
}

// Interpolant is the dense solution over one accepted step.
type Interpolant interface {
	Span() (start, end float64)
	Eval(r float64) State
}

type Status int

const (
	ReachedEnd Status = iota
	EventTriggered
)

func (s Status) String() string {
	switch s {
	case ReachedEnd:
		return "reached_end"
	case EventTriggered:
		return "event"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

type EventHit struct {
	Name  string
	Index int
	R     float64
	Y     State
}

type Stats struct {
	Accepted    int
	Rejected    int
	Evaluations int
}

type Solution struct {
	Samples []Sample
	Status  Status
	// Terminal is the event that stopped the integration, if any.
	Terminal *EventHit
	Hits     []EventHit
	Stats    Stats
	dense    []Interpolant
}

func NewSolution(r0 float64, y0 State) *Solution {
	return &Solution{Samples: []Sample{{R: r0, Y: y0.Clone()}}}
}

func (s *Solution) Append(r float64, y State) {
	s.Samples = append(s.Samples, Sample{R: r, Y: y.Clone()})
}

func (s *Solution) AppendDense(seg Interpolant) {
	s.dense = append(s.dense, seg)
}

func (s *Solution) Last() Sample {
	return s.Samples[len(s.Samples)-1]
}

func (s *Solution) HasDense() bool { return len(s.dense) > 0 }

// At evaluates the dense solution at r. It returns false outside the
// integrated span or when no dense output was recorded.
func (s *Solution) At(r float64) (State, bool) {
	if len(s.dense) == 0 {
		return nil, false
	}
	first, _ := s.dense[0].Span()
	_, last := s.dense[len(s.dense)-1].Span()
	if r < first || r > last {
		return nil, false
	}
	i := sort.Search(len(s.dense), func(i int) bool {
		_, end := s.dense[i].Span()
		return end >= r
	})
	if i == len(s.dense) {
		i--
	}
	return s.dense[i].Eval(r), true
}

// Solver integrates a Problem. Implementations return *SolveError for
// failures after integration started so callers keep the partial solution.
type Solver interface {
	Name() string
	Solve(ctx context.Context, prob Problem, opts Options) (*Solution, error)
}
