package integrators

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/wdstar/internal/ode"
)

func harmonicOscillator(t float64, x, dx ode.State) {
	dx[0] = x[1]
	dx[1] = -x[0]
}

func energy(x ode.State) float64 {
	return 0.5 * (x[0]*x[0] + x[1]*x[1])
}

func oscillatorProblem(end float64) ode.Problem {
	return ode.Problem{RHS: harmonicOscillator, R0: 0, R1: end, Y0: ode.State{1, 0}}
}

func TestRK45_Accuracy(t *testing.T) {
	sol, err := NewRK45().Solve(context.Background(), oscillatorProblem(10), ode.DefaultOptions())
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if sol.Status != ode.ReachedEnd {
		t.Fatalf("expected ReachedEnd, got %v", sol.Status)
	}

	last := sol.Last()
	if last.R != 10 {
		t.Errorf("final r = %v, want exactly 10", last.R)
	}
	if math.Abs(last.Y[0]-math.Cos(10)) > 1e-6 {
		t.Errorf("position error too large: got %.9f, expected %.9f", last.Y[0], math.Cos(10))
	}
	if math.Abs(last.Y[1]+math.Sin(10)) > 1e-6 {
		t.Errorf("velocity error too large: got %.9f, expected %.9f", last.Y[1], -math.Sin(10))
	}
}

func TestRK45_EnergyConservation(t *testing.T) {
	sol, err := NewRK45().Solve(context.Background(), oscillatorProblem(20), ode.DefaultOptions())
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}

	initialEnergy := energy(ode.State{1, 0})
	drift := math.Abs(energy(sol.Last().Y)-initialEnergy) / initialEnergy
	if drift > 1e-6 {
		t.Errorf("RK45 energy drift too high: %e", drift)
	}
}

func TestRK45_SamplesIncreaseWithinBounds(t *testing.T) {
	opts := ode.DefaultOptions()
	opts.MaxStep = 0.25

	sol, err := NewRK45().Solve(context.Background(), oscillatorProblem(5), opts)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}

	for i := 1; i < len(sol.Samples); i++ {
		prev, cur := sol.Samples[i-1].R, sol.Samples[i].R
		if cur <= prev {
			t.Fatalf("sample %d not increasing: %v <= %v", i, cur, prev)
		}
		if cur-prev > opts.MaxStep*(1+1e-12) {
			t.Errorf("step %d of %v exceeds max step %v", i, cur-prev, opts.MaxStep)
		}
		if cur < 0 || cur > 5 {
			t.Errorf("sample %d at r=%v outside [0, 5]", i, cur)
		}
	}
	if sol.Stats.Accepted != len(sol.Samples)-1 {
		t.Errorf("accepted %d steps but recorded %d samples", sol.Stats.Accepted, len(sol.Samples))
	}
}

func TestRK45_DenseOutput(t *testing.T) {
	sol, err := NewRK45().Solve(context.Background(), oscillatorProblem(6), ode.DefaultOptions())
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if !sol.HasDense() {
		t.Fatal("expected dense output")
	}

	for r := 0.05; r < 6; r += 0.37 {
		y, ok := sol.At(r)
		if !ok {
			t.Fatalf("At(%v) reported out of range", r)
		}
		if math.Abs(y[0]-math.Cos(r)) > 1e-6 {
			t.Errorf("dense y(%v) = %.9f, want %.9f", r, y[0], math.Cos(r))
		}
	}
}

func TestRK45_TerminalEvent(t *testing.T) {
	prob := ode.Problem{
		RHS: func(t float64, x, dx ode.State) { dx[0] = -1 },
		R0:  0,
		R1:  10,
		Y0:  ode.State{1},
		Events: []ode.Event{{
			Name:      "quarter",
			Func:      func(t float64, x ode.State) float64 { return x[0] - 0.25 },
			Direction: ode.Falling,
			Terminal:  true,
		}},
	}

	sol, err := NewRK45().Solve(context.Background(), prob, ode.DefaultOptions())
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if sol.Status != ode.EventTriggered || sol.Terminal == nil {
		t.Fatalf("expected terminal event, got status %v", sol.Status)
	}
	if sol.Terminal.Name != "quarter" {
		t.Errorf("terminal event = %q", sol.Terminal.Name)
	}

	last := sol.Last()
	if math.Abs(last.R-0.75) > 1e-9 {
		t.Errorf("event located at r=%v, want 0.75", last.R)
	}
	if last.Y[0] > 0.25 {
		t.Errorf("terminal value %v is above the threshold", last.Y[0])
	}
	if _, ok := sol.At(1.0); ok {
		t.Error("dense output extends past the event")
	}
}

func TestRK45_NonTerminalEvents(t *testing.T) {
	prob := oscillatorProblem(10)
	prob.Events = []ode.Event{{
		Name: "zero",
		Func: func(t float64, x ode.State) float64 { return x[0] },
	}}

	sol, err := NewRK45().Solve(context.Background(), prob, ode.DefaultOptions())
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if sol.Status != ode.ReachedEnd {
		t.Errorf("non-terminal event stopped integration")
	}

	want := []float64{math.Pi / 2, 3 * math.Pi / 2, 5 * math.Pi / 2}
	if len(sol.Hits) != len(want) {
		t.Fatalf("expected %d crossings, got %d", len(want), len(sol.Hits))
	}
	for i, hit := range sol.Hits {
		if math.Abs(hit.R-want[i]) > 1e-6 {
			t.Errorf("crossing %d at %v, want %v", i, hit.R, want[i])
		}
	}
}

func TestRK45_StepBudget(t *testing.T) {
	opts := ode.DefaultOptions()
	opts.MaxStep = 0.01
	opts.MaxSteps = 5

	sol, err := NewRK45().Solve(context.Background(), oscillatorProblem(10), opts)
	if !errors.Is(err, ode.ErrStepBudget) {
		t.Fatalf("expected ErrStepBudget, got %v", err)
	}

	var serr *ode.SolveError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *ode.SolveError, got %T", err)
	}
	if serr.Partial == nil || len(serr.Partial.Samples) == 0 {
		t.Fatal("missing partial solution")
	}
	if sol != serr.Partial {
		t.Error("returned solution should be the partial solution")
	}
	if serr.R <= 0 || serr.R >= 10 {
		t.Errorf("last valid r = %v", serr.R)
	}
}

func TestRK45_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRK45().Solve(ctx, oscillatorProblem(10), ode.DefaultOptions())
	if !errors.Is(err, ode.ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("context cause lost: %v", err)
	}
}

func TestRK45_Singularity(t *testing.T) {
	// y' = y^2, y(0) = 1 blows up at r = 1.
	prob := ode.Problem{
		RHS: func(t float64, x, dx ode.State) { dx[0] = x[0] * x[0] },
		R0:  0,
		R1:  2,
		Y0:  ode.State{1},
	}

	_, err := NewRK45().Solve(context.Background(), prob, ode.DefaultOptions())
	if !errors.Is(err, ode.ErrStepTooSmall) && !errors.Is(err, ode.ErrNonFinite) && !errors.Is(err, ode.ErrStepBudget) {
		t.Fatalf("expected a solver failure, got %v", err)
	}

	var serr *ode.SolveError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *ode.SolveError, got %T", err)
	}
	// The blow-up at r=1 is only located to within the tolerances.
	if serr.R > 1+1e-6 {
		t.Errorf("integrated past the singularity: r=%v", serr.R)
	}
	if serr.State[0] < 1e6 {
		t.Errorf("stopped before the solution grew: r=%v y=%v", serr.R, serr.State[0])
	}
	if !serr.State.IsValid() {
		t.Errorf("last valid state is not finite: %v", serr.State)
	}
}

func TestRK45_InvalidProblem(t *testing.T) {
	prob := oscillatorProblem(10)
	prob.R1 = -1

	sol, err := NewRK45().Solve(context.Background(), prob, ode.DefaultOptions())
	if !errors.Is(err, ode.ErrInvalidProblem) {
		t.Fatalf("expected ErrInvalidProblem, got %v", err)
	}
	if sol != nil {
		t.Error("expected no solution for invalid problem")
	}
}

func TestRK45_InitialStepRespected(t *testing.T) {
	opts := ode.DefaultOptions()
	opts.InitialStep = 1e-3

	sol, err := NewRK45().Solve(context.Background(), oscillatorProblem(1), opts)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if first := sol.Samples[1].R; first > 1e-3*(1+1e-12) {
		t.Errorf("first step %v ignores initial step", first)
	}
}
