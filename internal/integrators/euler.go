package integrators

import "github.com/san-kum/wdstar/internal/ode"

type Euler struct {
	dx ode.State
}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Order() int { return 1 }

func (e *Euler) Step(f ode.Func, t float64, x ode.State, dt float64) ode.State {
	if len(e.dx) != len(x) {
		e.dx = make(ode.State, len(x))
	}
	f(t, x, e.dx)
	result := make(ode.State, len(x))
	for i := range x {
		result[i] = x[i] + dt*e.dx[i]
	}
	return result
}
