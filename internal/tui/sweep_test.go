package tui

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/wdstar/internal/eos"
	"github.com/san-kum/wdstar/internal/structure"
)

func update(t *testing.T, m SweepModel, msg tea.Msg) (SweepModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	sm, ok := next.(SweepModel)
	require.True(t, ok)
	return sm, cmd
}

func TestSweepModel_Progress(t *testing.T) {
	m := NewSweepModel(3, nil)
	assert.NotNil(t, m.Init())

	m, _ = update(t, m, entryMsg{Index: 0, PCentral: 1e21, RadiusSolar: 0.0175, MassSolar: 0.21})
	m, _ = update(t, m, entryMsg{Index: 2, PCentral: 1e23, Failure: structure.FailureTimeout, Err: errors.New("deadline")})

	assert.Len(t, m.finished, 2)
	assert.Equal(t, []float64{0.21}, m.masses)
	assert.Equal(t, 1, m.failed)

	view := m.View()
	assert.Contains(t, view, "2/3")
	assert.Contains(t, view, "R=0.01750")
	assert.Contains(t, view, "timeout")
	assert.Contains(t, view, "q: cancel")
}

func TestSweepModel_Done(t *testing.T) {
	m := NewSweepModel(1, nil)
	res := &structure.SweepResult{Entries: []structure.SweepEntry{{PCentral: 1e21}}}

	m, cmd := update(t, m, doneMsg{res: res})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	got, err := m.Result()
	assert.NoError(t, err)
	assert.Same(t, res, got)
	assert.NotContains(t, m.View(), "q: cancel")

	_, cmd = update(t, m, tickMsg(time.Now()))
	assert.Nil(t, cmd)
}

func TestSweepModel_CancelOnce(t *testing.T) {
	var calls atomic.Int32
	m := NewSweepModel(5, func() { calls.Add(1) })

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})

	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, m.canceling)
	assert.Contains(t, m.View(), "canceling")
}

func TestRunSweep(t *testing.T) {
	integ := structure.NewIntegrator(eos.MustNew(eos.CGS()))
	pressures := []float64{1e21, 1e22}

	var seen atomic.Int32
	opts := structure.SweepOptions{
		Params:   structure.DefaultParams(),
		Workers:  2,
		OnResult: func(structure.SweepEntry) { seen.Add(1) },
	}

	res, err := RunSweep(context.Background(), integ, pressures, opts,
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Len(t, res.Entries, 2)
	assert.Zero(t, res.Failed())
	assert.Equal(t, int32(2), seen.Load())
}
