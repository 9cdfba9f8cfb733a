package structure

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/wdstar/internal/integrators"
)

var _ = Describe("Sweep", func() {
	var (
		integ     *Integrator
		opts      SweepOptions
		ctx       context.Context
		pressures []float64
	)

	BeforeEach(func() {
		integ = newTestIntegrator()
		opts = SweepOptions{Params: DefaultParams()}
		ctx = context.Background()
		pressures = []float64{1e21, 1e22, 1e23}
	})

	It("should return one ordered pair per central pressure", func() {
		res, err := integ.Sweep(ctx, pressures, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Entries).To(HaveLen(3))
		Expect(res.Failed()).To(BeZero())

		for k, e := range res.Entries {
			Expect(e.Index).To(Equal(k))
			Expect(e.PCentral).To(Equal(pressures[k]))
			Expect(e.OK()).To(BeTrue())
			Expect(e.Failure).To(BeEmpty())
			Expect(e.Profile.Termination).To(Equal(TerminatedByThreshold))
		}

		radii, masses := res.Pairs()
		Expect(radii).To(HaveLen(3))
		Expect(masses).To(HaveLen(3))
		for k := 1; k < 3; k++ {
			Expect(radii[k]).To(BeNumerically("<", radii[k-1]))
			Expect(masses[k]).To(BeNumerically(">", masses[k-1]))
		}
	})

	It("should be deterministic across runs and worker counts", func() {
		first, err := integ.Sweep(ctx, pressures, opts)
		Expect(err).NotTo(HaveOccurred())
		second, err := integ.Sweep(ctx, pressures, opts)
		Expect(err).NotTo(HaveOccurred())

		opts.Workers = 3
		parallel, err := integ.Sweep(ctx, pressures, opts)
		Expect(err).NotTo(HaveOccurred())

		r1, m1 := first.Pairs()
		r2, m2 := second.Pairs()
		r3, m3 := parallel.Pairs()
		Expect(r2).To(Equal(r1))
		Expect(m2).To(Equal(m1))
		Expect(r3).To(Equal(r1))
		Expect(m3).To(Equal(m1))
	})

	It("should notify every finished entry", func() {
		var (
			mu   sync.Mutex
			seen []int
		)
		opts.Workers = 2
		opts.OnResult = func(e SweepEntry) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, e.Index)
		}

		_, err := integ.Sweep(ctx, pressures, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(ConsistOf(0, 1, 2))
	})

	It("should record a budget failure and continue", func() {
		opts.Params.MaxSteps = 50
		res, err := integ.Sweep(ctx, []float64{1e21}, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Failed()).To(Equal(1))

		e := res.Entries[0]
		Expect(e.OK()).To(BeFalse())
		Expect(e.Err).To(MatchError(ErrIntegrationFailure))
		Expect(e.Failure).To(Equal(FailureStepBudget))
		Expect(e.Partial).NotTo(BeNil())
		Expect(e.Profile).To(BeNil())
	})

	It("should time out a stalled entry without blocking the others", func() {
		integ = newTestIntegrator(WithSolver(&stallingSolver{inner: integrators.NewRK45(), stall: 1e22}))
		opts.Timeout = 100 * time.Millisecond
		opts.Workers = 3

		start := time.Now()
		res, err := integ.Sweep(ctx, pressures, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(time.Since(start)).To(BeNumerically("<", 10*time.Second))

		Expect(res.Entries[0].OK()).To(BeTrue())
		Expect(res.Entries[2].OK()).To(BeTrue())

		stalled := res.Entries[1]
		Expect(stalled.OK()).To(BeFalse())
		Expect(stalled.Failure).To(Equal(FailureTimeout))
		Expect(stalled.Partial).NotTo(BeNil())
		Expect(stalled.Partial.Samples).To(HaveLen(1))

		radii, _ := res.Pairs()
		Expect(radii).To(HaveLen(2))
	})

	It("should record pending entries as canceled when the parent is canceled", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		res, err := integ.Sweep(cctx, pressures, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Failed()).To(Equal(3))
		for _, e := range res.Entries {
			Expect(e.Failure).To(Equal(FailureCanceled))
		}
	})

	DescribeTable("rejecting invalid sweep input",
		func(ps []float64) {
			res, err := integ.Sweep(ctx, ps, opts)
			Expect(err).To(MatchError(ErrInvalidInput))
			Expect(res).To(BeNil())
		},
		Entry("empty", []float64{}),
		Entry("nil", nil),
		Entry("zero pressure", []float64{1e21, 0}),
		Entry("negative pressure", []float64{-1e21}),
	)

	It("should reject invalid parameters before running", func() {
		opts.Params.RMax = opts.Params.RMin
		_, err := integ.Sweep(ctx, pressures, opts)
		Expect(err).To(MatchError(ErrInvalidInput))
	})
})

var _ = Describe("LogSpace", func() {
	It("should span decades evenly", func() {
		ps, err := LogSpace(1e21, 1e23, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(ps).To(HaveLen(3))
		Expect(ps[0]).To(BeNumerically("~", 1e21, 1e9))
		Expect(ps[1]).To(BeNumerically("~", 1e22, 1e10))
		Expect(ps[2]).To(BeNumerically("~", 1e23, 1e11))
	})

	It("should return the lower bound for a single point", func() {
		ps, err := LogSpace(1e21, 1e23, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(ps).To(Equal([]float64{1e21}))
	})

	It("should reject bad bounds and counts", func() {
		_, err := LogSpace(1e21, 1e23, 0)
		Expect(err).To(MatchError(ErrInvalidInput))
		_, err = LogSpace(0, 1e23, 4)
		Expect(err).To(MatchError(ErrInvalidInput))
	})
})

var _ = Describe("FailureKind", func() {
	It("should be empty for success", func() {
		Expect(FailureKind(nil)).To(BeEmpty())
	})

	It("should classify invalid input", func() {
		_, err := newTestIntegrator().Integrate(context.Background(), -1, DefaultParams())
		Expect(FailureKind(err)).To(Equal(FailureInvalidInput))
	})
})
