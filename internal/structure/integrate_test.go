package structure

import (
	"context"
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/wdstar/internal/eos"
	"github.com/san-kum/wdstar/internal/integrators"
	"github.com/san-kum/wdstar/internal/ode"
)

var _ = Describe("Star", func() {
	var star *Star

	BeforeEach(func() {
		star = NewStar(eos.MustNew(eos.CGS()))
	})

	It("should follow hydrostatic equilibrium and mass continuity", func() {
		e := eos.MustNew(eos.CGS())
		r, p, m := 1e8, 1e21, 1e31
		rho := e.DensityFromPressure(p)

		dy := make(ode.State, 2)
		star.Derive(r, ode.State{p, m}, dy)

		Expect(dy[0]).To(BeNumerically("~", -eos.GravitationalConstant*m*rho/(r*r), 1e-9*math.Abs(dy[0])))
		Expect(dy[1]).To(BeNumerically("~", 4*math.Pi*r*r*rho, 1e-9*dy[1]))
		Expect(star.GuardHits()).To(BeZero())
	})

	It("should freeze the state at non-positive pressure", func() {
		dy := ode.State{1, 1}
		star.Derive(1e8, ode.State{0, 1e31}, dy)
		Expect(dy).To(Equal(ode.State{0, 0}))

		star.Derive(1e8, ode.State{-5, 1e31}, dy)
		Expect(dy).To(Equal(ode.State{0, 0}))
		Expect(star.GuardHits()).To(Equal(2))
	})

	It("should watch for pressure falling through the threshold", func() {
		ev := star.Surface(1e-10)
		Expect(ev.Name).To(Equal(SurfaceEvent))
		Expect(ev.Terminal).To(BeTrue())
		Expect(ev.Crossed(ev.Func(0, ode.State{1, 0}), ev.Func(0, ode.State{1e-11, 0}))).To(BeTrue())
		Expect(ev.Crossed(ev.Func(0, ode.State{1e-11, 0}), ev.Func(0, ode.State{1, 0}))).To(BeFalse())
	})
})

var _ = Describe("Params", func() {
	It("should carry the documented defaults", func() {
		p := DefaultParams()
		Expect(p.RMin).To(Equal(1e-6))
		Expect(p.RMax).To(Equal(1e11))
		Expect(p.Threshold).To(Equal(1e-10))
		Expect(p.MaxStep).To(Equal(1e7))
		Expect(p.Validate()).To(Succeed())
	})

	DescribeTable("rejecting invalid parameters",
		func(mutate func(*Params)) {
			p := DefaultParams()
			mutate(&p)
			Expect(p.Validate()).To(MatchError(ErrInvalidInput))
		},
		Entry("r_min at zero", func(p *Params) { p.RMin = 0 }),
		Entry("r_min above r_max", func(p *Params) { p.RMin = 2e11 }),
		Entry("r_min equal to r_max", func(p *Params) { p.RMax = p.RMin }),
		Entry("negative threshold", func(p *Params) { p.Threshold = -1 }),
		Entry("NaN max step", func(p *Params) { p.MaxStep = math.NaN() }),
		Entry("zero rel tol", func(p *Params) { p.RelTol = 0 }),
		Entry("zero step budget", func(p *Params) { p.MaxSteps = 0 }),
		Entry("negative timeout", func(p *Params) { p.Timeout = -time.Second }),
	)
})

var _ = Describe("Integrator", func() {
	var (
		integ  *Integrator
		params Params
		ctx    context.Context
	)

	BeforeEach(func() {
		integ = newTestIntegrator()
		params = DefaultParams()
		ctx = context.Background()
	})

	Context("with P0 = 1e21 and default parameters", func() {
		var prof *Profile

		BeforeEach(func() {
			var err error
			prof, err = integ.Integrate(ctx, 1e21, params)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should terminate at the surface before r_max", func() {
			Expect(prof.Termination).To(Equal(TerminatedByThreshold))
			Expect(prof.Radius()).To(BeNumerically("<", params.RMax))
			Expect(prof.Radius()).To(BeNumerically(">", 0))
			Expect(prof.Mass()).To(BeNumerically(">", 0))
			Expect(math.IsInf(prof.Mass(), 0) || math.IsNaN(prof.Mass())).To(BeFalse())
		})

		It("should end with the surface pressure at or below the threshold", func() {
			last := prof.Terminal()
			Expect(last.P).To(BeNumerically("<=", params.Threshold))
			Expect(last.P).To(BeNumerically(">=", 0))
		})

		It("should give a low-mass white dwarf of about 0.0226 solar radii", func() {
			Expect(prof.SurfaceRadiusSolar()).To(BeNumerically("~", 0.022576, 2e-5))
			Expect(prof.TotalMassSolar()).To(BeNumerically("~", 0.172992, 2e-4))
		})

		It("should start at r_min with the central pressure and no mass", func() {
			first := prof.Samples[0]
			Expect(first.R).To(Equal(params.RMin))
			Expect(first.P).To(Equal(1e21))
			Expect(first.M).To(BeZero())
			Expect(prof.CentralDensity()).To(BeNumerically("~", integ.EOS().DensityFromPressure(1e21), 1e-6))
		})

		It("should keep radius strictly increasing within [r_min, r_max]", func() {
			for k := 1; k < len(prof.Samples); k++ {
				Expect(prof.Samples[k].R).To(BeNumerically(">", prof.Samples[k-1].R))
			}
			Expect(prof.Samples[0].R).To(BeNumerically(">=", params.RMin))
			Expect(prof.Radius()).To(BeNumerically("<=", params.RMax))
		})

		It("should keep pressure non-increasing and mass non-decreasing", func() {
			for k := 1; k < len(prof.Samples); k++ {
				Expect(prof.Samples[k].P).To(BeNumerically("<=", prof.Samples[k-1].P))
				Expect(prof.Samples[k].M).To(BeNumerically(">=", prof.Samples[k-1].M))
			}
		})

		It("should not record a degenerate state", func() {
			Expect(prof.Degenerate()).To(BeFalse())
			Expect(prof.Diagnostics).To(BeEmpty())
		})

		It("should evaluate the dense solution between samples", func() {
			mid := prof.Radius() / 2
			s, ok := prof.At(mid)
			Expect(ok).To(BeTrue())
			Expect(s.P).To(BeNumerically(">", 0))
			Expect(s.P).To(BeNumerically("<", 1e21))
			Expect(s.M).To(BeNumerically(">", 0))
			Expect(s.M).To(BeNumerically("<", prof.Mass()))
			Expect(s.Rho).To(BeNumerically("~", integ.EOS().DensityFromPressure(s.P), 1e-9*s.Rho))

			_, ok = prof.At(prof.Radius() * 1.01)
			Expect(ok).To(BeFalse())
		})

		It("should expose aligned columns", func() {
			n := len(prof.Samples)
			Expect(prof.Radii()).To(HaveLen(n))
			Expect(prof.Pressures()).To(HaveLen(n))
			Expect(prof.Masses()).To(HaveLen(n))
			Expect(prof.Densities()).To(HaveLen(n))
			Expect(prof.Stats.Accepted).To(Equal(n - 1))
		})
	})

	It("should reject a non-positive central pressure without a profile", func() {
		for _, p0 := range []float64{0, -1e21, math.NaN(), math.Inf(1)} {
			prof, err := integ.Integrate(ctx, p0, params)
			Expect(err).To(MatchError(ErrInvalidInput))
			Expect(prof).To(BeNil())
		}
	})

	It("should reject an empty radius domain", func() {
		params.RMin = params.RMax
		_, err := integ.Integrate(ctx, 1e21, params)
		Expect(err).To(MatchError(ErrInvalidInput))
	})

	It("should stop at r_max when the surface lies beyond it", func() {
		params.RMax = 1e8
		prof, err := integ.Integrate(ctx, 1e21, params)
		Expect(err).NotTo(HaveOccurred())
		Expect(prof.Termination).To(Equal(TerminatedByDomain))
		Expect(prof.Radius()).To(Equal(1e8))
		Expect(prof.Terminal().P).To(BeNumerically(">", params.Threshold))
	})

	It("should return a single sample when the center is already at the surface", func() {
		params.Threshold = 1e22
		prof, err := integ.Integrate(ctx, 1e21, params)
		Expect(err).NotTo(HaveOccurred())
		Expect(prof.Termination).To(Equal(TerminatedByThreshold))
		Expect(prof.Samples).To(HaveLen(1))
		Expect(prof.Mass()).To(BeZero())
	})

	It("should report budget exhaustion with the last valid state", func() {
		params.MaxSteps = 50
		prof, err := integ.Integrate(ctx, 1e21, params)
		Expect(prof).To(BeNil())
		Expect(err).To(MatchError(ErrIntegrationFailure))
		Expect(errors.Is(err, ode.ErrStepBudget)).To(BeTrue())
		Expect(FailureKind(err)).To(Equal(FailureStepBudget))

		var ierr *IntegrationError
		Expect(errors.As(err, &ierr)).To(BeTrue())
		Expect(ierr.PCentral).To(Equal(1e21))
		Expect(ierr.Last.R).To(BeNumerically(">", params.RMin))
		Expect(ierr.Last.P).To(BeNumerically(">", 0))
		Expect(ierr.Partial).NotTo(BeNil())
		Expect(ierr.Partial.Termination).To(Equal(TerminatedNone))
		Expect(ierr.Partial.Terminal().R).To(Equal(ierr.Last.R))
	})

	Context("with P0 = 1e30", func() {
		It("should fail short of the surface with the default threshold", func() {
			prof, err := integ.Integrate(ctx, 1e30, params)
			Expect(prof).To(BeNil())
			Expect(err).To(MatchError(ErrIntegrationFailure))
			Expect(FailureKind(err)).To(Equal(FailureStepTooSmall))

			var ierr *IntegrationError
			Expect(errors.As(err, &ierr)).To(BeTrue())
			Expect(ierr.Last.P).To(BeNumerically(">", params.Threshold))
			Expect(ierr.Partial).NotTo(BeNil())
			Expect(ierr.Partial.Termination).To(Equal(TerminatedNone))
		})

		It("should reach the surface with a raised threshold", func() {
			params.Threshold = 1e-3
			prof, err := integ.Integrate(ctx, 1e30, params)
			Expect(err).NotTo(HaveOccurred())
			Expect(prof.Termination).To(Equal(TerminatedByThreshold))
			Expect(prof.Terminal().P).To(BeNumerically("<=", params.Threshold))
		})
	})

	It("should turn a wall-clock timeout into an integration failure", func() {
		params.MaxStep = 10
		params.MaxSteps = 1 << 30
		params.Timeout = 20 * time.Millisecond

		start := time.Now()
		_, err := integ.Integrate(ctx, 1e21, params)
		Expect(time.Since(start)).To(BeNumerically("<", 5*time.Second))
		Expect(err).To(MatchError(ErrIntegrationFailure))
		Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
		Expect(FailureKind(err)).To(Equal(FailureTimeout))
	})

	It("should honor parent cancellation", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := integ.Integrate(cctx, 1e21, params)
		Expect(err).To(MatchError(ErrIntegrationFailure))
		Expect(FailureKind(err)).To(Equal(FailureCanceled))
	})

	It("should agree with the fixed-step RK4 cross-check", func() {
		reference, err := integ.Integrate(ctx, 1e21, params)
		Expect(err).NotTo(HaveOccurred())

		rk4, err := integrators.New("rk4")
		Expect(err).NotTo(HaveOccurred())
		prof, err := newTestIntegrator(WithSolver(rk4)).Integrate(ctx, 1e21, params)
		Expect(err).NotTo(HaveOccurred())

		Expect(prof.Termination).To(Equal(TerminatedByThreshold))
		Expect(prof.Terminal().P).To(BeNumerically("<=", params.Threshold))
		Expect(prof.Terminal().P).To(BeNumerically(">=", 0))
		Expect(prof.Radius() / reference.Radius()).To(BeNumerically("~", 1, 0.01))
		Expect(prof.Mass() / reference.Mass()).To(BeNumerically("~", 1, 0.01))
	})

	Context("with a trajectory that reaches zero pressure before the surface", func() {
		It("should record a degenerate diagnostic without failing", func() {
			solver := &scriptedSolver{
				samples: []ode.Sample{
					{R: 1e-6, Y: ode.State{1e21, 0}},
					{R: 1e8, Y: ode.State{0, 1e30}},
					{R: 2e8, Y: ode.State{1e-11, 2e30}},
				},
				terminal: true,
			}
			prof, err := newTestIntegrator(WithSolver(solver)).Integrate(ctx, 1e21, params)
			Expect(err).NotTo(HaveOccurred())
			Expect(prof.Termination).To(Equal(TerminatedByThreshold))
			Expect(prof.Degenerate()).To(BeTrue())
			Expect(prof.Diagnostics).To(ContainElement(MatchError(ErrDegenerateState)))
		})
	})
})

var _ = Describe("Profile", func() {
	It("should interpolate stored samples linearly", func() {
		prof := NewProfile(1e21, []Sample{
			{R: 0, P: 10, M: 0},
			{R: 2, P: 6, M: 4},
			{R: 4, P: 0, M: 8},
		}, TerminatedByThreshold, eos.CGS())

		s, ok := prof.At(1)
		Expect(ok).To(BeTrue())
		Expect(s.P).To(Equal(8.0))
		Expect(s.M).To(Equal(2.0))
		Expect(s.Rho).To(BeNumerically(">", 0))

		s, ok = prof.At(4)
		Expect(ok).To(BeTrue())
		Expect(s.P).To(BeZero())

		_, ok = prof.At(-1)
		Expect(ok).To(BeFalse())
	})

	It("should convert terminal values to solar units", func() {
		c := eos.CGS()
		prof := NewProfile(1e21, []Sample{{R: 0}, {R: c.SolarRadius / 10, M: c.SolarMass / 2}}, TerminatedByThreshold, c)
		Expect(prof.SurfaceRadiusSolar()).To(BeNumerically("~", 0.1, 1e-12))
		Expect(prof.TotalMassSolar()).To(BeNumerically("~", 0.5, 1e-12))
	})

	DescribeTable("termination text",
		func(t Termination, text string) {
			b, err := t.MarshalText()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(b)).To(Equal(text))

			var back Termination
			Expect(back.UnmarshalText(b)).To(Succeed())
			Expect(back).To(Equal(t))
		},
		Entry("threshold", TerminatedByThreshold, "threshold"),
		Entry("domain", TerminatedByDomain, "domain"),
		Entry("none", TerminatedNone, "none"),
	)
})
