package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/wdstar/internal/ode"
)

var solvers = map[string]func() ode.Solver{
	"dopri5": func() ode.Solver { return NewRK45() },
	"rk4":    func() ode.Solver { return NewFixedStep("rk4", func() Stepper { return NewRK4() }) },
	"euler":  func() ode.Solver { return NewFixedStep("euler", func() Stepper { return NewEuler() }) },
}

// New returns the solver registered under name.
func New(name string) (ode.Solver, error) {
	fn, ok := solvers[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s (available: %v)", name, List())
	}
	return fn(), nil
}

func List() []string {
	names := make([]string, 0, len(solvers))
	for name := range solvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
