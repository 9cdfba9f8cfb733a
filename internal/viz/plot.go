package viz

import (
	"errors"
	"fmt"
	"sort"

	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/interp"

	"github.com/san-kum/wdstar/internal/structure"
)

var ErrNotEnoughData = errors.New("viz: not enough data to plot")

const (
	DefaultPlotWidth  = 80
	DefaultPlotHeight = 15
)

// PlotProfile plots P/Pc and M/M(R) against radius, resampled to width
// evenly spaced radii.
func PlotProfile(prof *structure.Profile, width, height int) (string, error) {
	width, height = plotSize(width, height)
	if len(prof.Samples) < 2 || prof.Radius() <= prof.Samples[0].R {
		return "", ErrNotEnoughData
	}

	r0, r1 := prof.Samples[0].R, prof.Radius()
	pc, mtot := prof.PCentral, prof.Mass()
	if mtot <= 0 {
		mtot = 1
	}

	pressure := make([]float64, width)
	mass := make([]float64, width)
	for i := range width {
		r := r0 + (r1-r0)*float64(i)/float64(width-1)
		s, ok := prof.At(r)
		if !ok {
			s = prof.Terminal()
		}
		pressure[i] = s.P / pc
		mass[i] = s.M / mtot
	}

	return asciigraph.PlotMany([][]float64{pressure, mass},
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(2),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red),
		asciigraph.Caption(fmt.Sprintf("P/Pc (blue), M/M(R) (red) over r = 0..%.4g cm", r1)),
	), nil
}

// PlotMassRadius plots mass against radius in solar units. Points are
// ordered by radius and linearly interpolated onto width columns.
func PlotMassRadius(radii, masses []float64, width, height int) (string, error) {
	width, height = plotSize(width, height)
	if len(radii) != len(masses) {
		return "", fmt.Errorf("viz: %d radii for %d masses", len(radii), len(masses))
	}

	xs, ys := sortedUnique(radii, masses)
	if len(xs) < 2 {
		return "", ErrNotEnoughData
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return "", err
	}

	lo, hi := xs[0], xs[len(xs)-1]
	series := make([]float64, width)
	for i := range series {
		series[i] = pl.Predict(lo + (hi-lo)*float64(i)/float64(width-1))
	}

	return asciigraph.Plot(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(3),
		asciigraph.SeriesColors(asciigraph.Yellow),
		asciigraph.Caption(fmt.Sprintf("M [Msun] vs R [Rsun] over R = %.4g..%.4g", lo, hi)),
	), nil
}

// sortedUnique orders the pairs by x and keeps the first of equal x values.
func sortedUnique(x, y []float64) ([]float64, []float64) {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })

	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for _, i := range idx {
		if n := len(xs); n > 0 && x[i] == xs[n-1] {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}

func plotSize(width, height int) (int, int) {
	if width < 2 {
		width = DefaultPlotWidth
	}
	if height < 1 {
		height = DefaultPlotHeight
	}
	return width, height
}
