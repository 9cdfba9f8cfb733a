// Package tui shows a live progress view while a sweep runs.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/wdstar/internal/structure"
	"github.com/san-kum/wdstar/internal/viz"
)

const (
	barWidth   = 40
	recentRows = 6
)

type entryMsg structure.SweepEntry

type doneMsg struct {
	res *structure.SweepResult
	err error
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// SweepModel is the bubbletea model of a running sweep. Entries arrive in
// completion order.
type SweepModel struct {
	total     int
	finished  []structure.SweepEntry
	masses    []float64
	failed    int
	frame     int
	start     time.Time
	canceling bool
	done      bool
	cancel    context.CancelFunc

	result *structure.SweepResult
	err    error
}

func NewSweepModel(total int, cancel context.CancelFunc) SweepModel {
	return SweepModel{total: total, cancel: cancel, start: time.Now()}
}

func (m SweepModel) Init() tea.Cmd { return tick() }

func (m SweepModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if !m.canceling && m.cancel != nil {
				m.cancel()
			}
			m.canceling = true
		}
		return m, nil
	case entryMsg:
		e := structure.SweepEntry(msg)
		m.finished = append(m.finished, e)
		if e.OK() {
			m.masses = append(m.masses, e.MassSolar)
		} else {
			m.failed++
		}
		return m, nil
	case doneMsg:
		m.done = true
		m.result, m.err = msg.res, msg.err
		return m, tea.Quit
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame++
		return m, tick()
	}
	return m, nil
}

func (m SweepModel) View() string {
	var b strings.Builder

	status := viz.AnimatedSpinner(m.frame)
	switch {
	case m.done:
		status = viz.StatusOK.Render("done")
	case m.canceling:
		status = viz.StatusWarn.Render("canceling")
	}
	fmt.Fprintf(&b, "%s %s\n\n", viz.Title.Render("central pressure sweep"), status)

	pct := 0.0
	if m.total > 0 {
		pct = float64(len(m.finished)) / float64(m.total)
	}
	fmt.Fprintf(&b, "%s %d/%d\n", viz.ProgressBar(pct, barWidth), len(m.finished), m.total)
	fmt.Fprintf(&b, "%s   %s\n\n",
		viz.Metric("failed", fmt.Sprint(m.failed)),
		viz.Metric("elapsed", time.Since(m.start).Round(100*time.Millisecond).String()),
	)

	fmt.Fprintf(&b, "%s %s\n", viz.MetricLabel.Render("M [Msun]"), viz.Sparkline(m.masses, barWidth))
	fmt.Fprintln(&b, viz.Separator(barWidth+10))

	recent := m.finished
	if len(recent) > recentRows {
		recent = recent[len(recent)-recentRows:]
	}
	for _, e := range recent {
		if e.OK() {
			fmt.Fprintf(&b, "P0=%.4e  R=%.5f  M=%.5f\n", e.PCentral, e.RadiusSolar, e.MassSolar)
		} else {
			fmt.Fprintf(&b, "P0=%.4e  %s\n", e.PCentral, viz.StatusFail.Render(e.Failure))
		}
	}

	if !m.done {
		fmt.Fprintf(&b, "\n%s\n", viz.KeyHint.Render("q: cancel remaining entries"))
	}
	return b.String()
}

func (m SweepModel) Result() (*structure.SweepResult, error) { return m.result, m.err }

// RunSweep runs integ.Sweep behind the progress view. Quitting the view
// cancels the sweep; entries not yet finished are recorded as canceled.
func RunSweep(ctx context.Context, integ *structure.Integrator, pressures []float64, opts structure.SweepOptions, progOpts ...tea.ProgramOption) (*structure.SweepResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewSweepModel(len(pressures), cancel), progOpts...)

	notify := opts.OnResult
	opts.OnResult = func(e structure.SweepEntry) {
		if notify != nil {
			notify(e)
		}
		p.Send(entryMsg(e))
	}

	go func() {
		res, err := integ.Sweep(ctx, pressures, opts)
		p.Send(doneMsg{res: res, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	return final.(SweepModel).Result()
}
