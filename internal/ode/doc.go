// Package ode defines the solver-facing primitives for initial value
// problems dy/dr = f(r, y):
//
//   - [State]: vector representing the dependent variables
//   - [Func]: right-hand side evaluated into a caller-owned buffer
//   - [Event]: scalar root function with stop-on-crossing semantics
//   - [Problem] and [Options]: what to integrate and how tightly
//   - [Solution]: accepted samples plus piecewise dense output
//   - [Solver]: the capability every integrator implements
//
// # Example
//
//	prob := ode.Problem{RHS: f, R0: 0, R1: 10, Y0: ode.State{1, 0}}
//	sol, err := integrators.NewDormandPrince().Solve(ctx, prob, ode.DefaultOptions())
//	if err != nil {
//	    var serr *ode.SolveError
//	    if errors.As(err, &serr) {
//	        // serr.Partial holds everything accepted before the failure
//	    }
//	}
//
// # Thread Safety
//
// Solutions are immutable once returned. Solvers carry no per-run state and
// may be shared between goroutines.
package ode
