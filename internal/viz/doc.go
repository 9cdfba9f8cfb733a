// Package viz renders structure profiles and sweeps for the terminal.
//
//   - [PlotProfile]: pressure and enclosed mass against radius
//   - [PlotMassRadius]: the mass-radius relation of a sweep
//   - [RunTable], [SweepTable], [SummaryTable]: tabular reports
//
// Colors follow the current [Theme]; lipgloss drops them when the output is
// not a terminal or NO_COLOR is set.
package viz
