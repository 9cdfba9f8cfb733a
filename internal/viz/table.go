package viz

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/san-kum/wdstar/internal/analysis"
	"github.com/san-kum/wdstar/internal/storage"
	"github.com/san-kum/wdstar/internal/structure"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// RunTable lists stored runs.
func RunTable(w io.Writer, runs []storage.RunMetadata) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "no runs found")
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Kind", "Time", "Solver", "P0 / Entries", "R [Rsun]", "M [Msun]"})
	for _, run := range runs {
		row := table.Row{run.ID, run.Kind, run.Timestamp.Format("2006-01-02 15:04:05"), run.Solver}
		switch run.Kind {
		case storage.KindSweep:
			row = append(row, fmt.Sprintf("%d (%d failed)", run.Entries, run.Failed), "", "")
		default:
			row = append(row, sci(run.PCentral), fixed(run.RadiusSolar), fixed(run.MassSolar))
		}
		t.AppendRow(row)
	}
	t.Render()
}

// SweepTable renders one line per central pressure, failures included.
func SweepTable(w io.Writer, rows []storage.SweepRow) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "P0 [dyn/cm²]", "R [Rsun]", "M [Msun]", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})

	failed := 0
	for i, r := range rows {
		if !r.OK() {
			failed++
			t.AppendRow(table.Row{i, sci(r.PCentral), "-", "-", StatusFail.Render(r.Status) + " " + r.Error})
			continue
		}
		t.AppendRow(table.Row{i, sci(r.PCentral), fixed(r.RadiusSolar), fixed(r.MassSolar), StatusOK.Render(r.Status)})
	}
	t.AppendFooter(table.Row{"", "", "", "failed", strconv.Itoa(failed)})
	t.Render()
}

// SummaryTable reports the surface of a profile, next to the polytrope
// prediction when pred is not nil.
func SummaryTable(w io.Writer, prof *structure.Profile, pred *analysis.Prediction) {
	t := newTable(w)
	header := table.Row{"Quantity", "Integrated"}
	if pred != nil {
		header = append(header, "n=3/2 polytrope", "Deviation")
	}
	t.AppendHeader(header)

	row := func(name string, got, want float64) {
		r := table.Row{name, sci(got)}
		if pred != nil {
			r = append(r, sci(want), fmt.Sprintf("%+.3f%%", 100*(got/want-1)))
		}
		t.AppendRow(r)
	}

	var want analysis.Prediction
	if pred != nil {
		want = *pred
	}
	row("Radius [cm]", prof.Radius(), want.Radius)
	row("Mass [g]", prof.Mass(), want.Mass)
	row("Central density [g/cm³]", prof.CentralDensity(), want.CentralDensity)

	t.AppendSeparator()
	extra := func(name, value string) {
		r := table.Row{name, value}
		if pred != nil {
			r = append(r, "", "")
		}
		t.AppendRow(r)
	}
	extra("R [Rsun]", fixed(prof.SurfaceRadiusSolar()))
	extra("M [Msun]", fixed(prof.TotalMassSolar()))
	extra("Termination", prof.Termination.String())
	extra("Samples", strconv.Itoa(len(prof.Samples)))
	extra("Steps accepted/rejected", fmt.Sprintf("%d/%d", prof.Stats.Accepted, prof.Stats.Rejected))
	extra("Guard hits", strconv.Itoa(prof.GuardHits))
	for _, d := range prof.Diagnostics {
		extra("Diagnostic", StatusWarn.Render(d.Error()))
	}
	t.Render()
}

// SolverRun is one solver's attempt at the same central pressure.
type SolverRun struct {
	Name    string
	Profile *structure.Profile
	Elapsed time.Duration
	Err     error
}

// SolverTable compares solvers on one central pressure.
func SolverTable(w io.Writer, runs []SolverRun, pred *analysis.Prediction) {
	t := newTable(w)
	header := table.Row{"Solver", "R [Rsun]", "M [Msun]", "Steps", "Time"}
	if pred != nil {
		header = append(header, "dR", "dM")
	}
	t.AppendHeader(header)

	for _, run := range runs {
		if run.Err != nil {
			t.AppendRow(table.Row{run.Name, StatusFail.Render(structure.FailureKind(run.Err)), run.Err.Error()})
			continue
		}
		p := run.Profile
		row := table.Row{
			run.Name,
			fixed(p.SurfaceRadiusSolar()),
			fixed(p.TotalMassSolar()),
			p.Stats.Accepted,
			run.Elapsed.Round(time.Microsecond).String(),
		}
		if pred != nil {
			d := analysis.Compare(p, *pred)
			row = append(row, fmt.Sprintf("%+.3f%%", 100*d.Radius), fmt.Sprintf("%+.3f%%", 100*d.Mass))
		}
		t.AppendRow(row)
	}
	t.Render()
}

func sci(v float64) string   { return strconv.FormatFloat(v, 'e', 4, 64) }
func fixed(v float64) string { return strconv.FormatFloat(v, 'f', 5, 64) }
