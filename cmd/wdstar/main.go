package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/wdstar/internal/analysis"
	"github.com/san-kum/wdstar/internal/config"
	"github.com/san-kum/wdstar/internal/eos"
	"github.com/san-kum/wdstar/internal/integrators"
	"github.com/san-kum/wdstar/internal/logging"
	"github.com/san-kum/wdstar/internal/storage"
	"github.com/san-kum/wdstar/internal/structure"
	"github.com/san-kum/wdstar/internal/tui"
	"github.com/san-kum/wdstar/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string
	verbose    bool
	logLevel   string
	theme      string

	solverName string
	pCentral   float64
	rMin       float64
	rMax       float64
	threshold  float64
	maxStep    float64
	relTol     float64
	absTol     float64
	maxSteps   int
	timeout    time.Duration

	pMin         float64
	pMax         float64
	points       int
	workers      int
	entryTimeout time.Duration

	comparePoly bool
	showPlot    bool
	sweepPlot   bool
	noSave      bool
	useTUI      bool
	plotWidth   int
	plotHeight  int
)

func main() {
	rootCmd := newRootCmd()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "wdstar",
		Short:        "white dwarf structure integrator",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			viz.SetTheme(theme)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&theme, "theme", viz.ThemeCyberpunk.Name, "color theme")

	integrateCmd := &cobra.Command{
		Use:   "integrate [p_central]",
		Short: "integrate one star from its central pressure",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runIntegrate,
	}
	addIntegrationFlags(integrateCmd)
	integrateCmd.Flags().Float64Var(&pCentral, "p-central", config.DefaultPCentral, "central pressure (dyn/cm²)")
	integrateCmd.Flags().BoolVar(&comparePoly, "compare", true, "compare with the n=3/2 polytrope")
	integrateCmd.Flags().BoolVar(&showPlot, "plot", false, "plot the profile")
	integrateCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "integrate a log-spaced range of central pressures",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addIntegrationFlags(sweepCmd)
	sweepCmd.Flags().Float64Var(&pMin, "p-min", config.DefaultSweepMin, "lowest central pressure")
	sweepCmd.Flags().Float64Var(&pMax, "p-max", config.DefaultSweepMax, "highest central pressure")
	sweepCmd.Flags().IntVar(&points, "points", config.DefaultSweepPoints, "number of central pressures")
	sweepCmd.Flags().IntVar(&workers, "workers", config.DefaultWorkers, "concurrent integrations")
	sweepCmd.Flags().DurationVar(&entryTimeout, "entry-timeout", 0, "per-entry wall clock limit (overrides --timeout)")
	sweepCmd.Flags().BoolVar(&useTUI, "tui", false, "show live progress")
	sweepCmd.Flags().BoolVar(&sweepPlot, "plot", true, "plot the mass-radius relation")
	sweepCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	compareCmd := &cobra.Command{
		Use:   "compare [solver1] [solver2] ...",
		Short: "compare solvers on the same central pressure",
		RunE:  runCompare,
	}
	addIntegrationFlags(compareCmd)
	compareCmd.Flags().Float64Var(&pCentral, "p-central", config.DefaultPCentral, "central pressure (dyn/cm²)")

	laneEmdenCmd := &cobra.Command{
		Use:   "lane-emden [n]",
		Short: "solve the Lane-Emden equation for a polytropic index",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLaneEmden,
	}
	laneEmdenCmd.Flags().StringVar(&solverName, "solver", config.DefaultSolver, "solver: "+fmt.Sprint(integrators.List()))

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&plotWidth, "width", viz.DefaultPlotWidth, "plot width")
	plotCmd.Flags().IntVar(&plotHeight, "height", viz.DefaultPlotHeight, "plot height")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id] [file]",
		Short: "export run data to CSV",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			path := outputPath(args, ".csv")
			if err := storage.New(cfg.DataDir).ExportCSV(args[0], path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", path)
			return nil
		},
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id] [file]",
		Short: "export run data to JSON",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			path := outputPath(args, ".json")
			if err := storage.New(cfg.DataDir).ExportJSON(args[0], path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", path)
			return nil
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, name := range config.ListPresets() {
				fmt.Fprintf(out, "  %-20s %s\n", name, config.Presets[name].Description)
			}
			return nil
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "show or write configuration",
	}
	configCmd.PersistentFlags().StringVar(&preset, "preset", "", "start from a preset")
	configCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "print the resolved configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := resolveConfig(cmd)
				if err != nil {
					return err
				}
				return yaml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
			},
		},
		&cobra.Command{
			Use:   "init [file]",
			Short: "write the resolved configuration to a file",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := resolveConfig(cmd)
				if err != nil {
					return err
				}
				path := "wdstar.yaml"
				if len(args) == 1 {
					path = args[0]
				}
				if err := config.Save(path, cfg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
				return nil
			},
		},
	)

	rootCmd.AddCommand(integrateCmd, sweepCmd, compareCmd, laneEmdenCmd, listCmd, plotCmd, exportCSVCmd, exportJSONCmd, presetsCmd, configCmd)
	return rootCmd
}

func addIntegrationFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&solverName, "solver", config.DefaultSolver, "solver: "+fmt.Sprint(integrators.List()))
	cmd.Flags().Float64Var(&rMin, "r-min", config.DefaultRMin, "starting radius (cm)")
	cmd.Flags().Float64Var(&rMax, "r-max", config.DefaultRMax, "radius limit (cm)")
	cmd.Flags().Float64Var(&threshold, "threshold", config.DefaultThreshold, "surface pressure (dyn/cm²)")
	cmd.Flags().Float64Var(&maxStep, "max-step", config.DefaultMaxStep, "largest radial step (cm)")
	cmd.Flags().Float64Var(&relTol, "rtol", config.DefaultRelTol, "relative tolerance")
	cmd.Flags().Float64Var(&absTol, "atol", config.DefaultAbsTol, "absolute tolerance")
	cmd.Flags().IntVar(&maxSteps, "max-steps", config.DefaultMaxSteps, "step budget")
	cmd.Flags().DurationVar(&timeout, "timeout", config.DefaultTimeout, "wall clock limit per integration")
}

// resolveConfig applies, in order, the defaults, a preset, the config file
// and the flags the user set explicitly.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if flags.Changed("solver") {
		cfg.Solver = solverName
	}
	if flags.Changed("p-central") {
		cfg.PCentral = pCentral
	}

	in := &cfg.Integration
	if flags.Changed("r-min") {
		in.RMin = rMin
	}
	if flags.Changed("r-max") {
		in.RMax = rMax
	}
	if flags.Changed("threshold") {
		in.Threshold = threshold
	}
	if flags.Changed("max-step") {
		in.MaxStep = maxStep
	}
	if flags.Changed("rtol") {
		in.RelTol = relTol
	}
	if flags.Changed("atol") {
		in.AbsTol = absTol
	}
	if flags.Changed("max-steps") {
		in.MaxSteps = maxSteps
	}
	if flags.Changed("timeout") {
		in.Timeout = timeout
	}

	sw := &cfg.Sweep
	if flags.Changed("p-min") {
		sw.PMin = pMin
		sw.Pressures = nil
	}
	if flags.Changed("p-max") {
		sw.PMax = pMax
		sw.Pressures = nil
	}
	if flags.Changed("points") {
		sw.Points = points
		sw.Pressures = nil
	}
	if flags.Changed("workers") {
		sw.Workers = workers
	}
	if flags.Changed("entry-timeout") {
		sw.Timeout = entryTimeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return logging.New(w, logging.ParseLevel(cfg.LogLevel))
}

func newIntegrator(cfg *config.Config, solver string, logger *slog.Logger) (*structure.Integrator, error) {
	e, err := eos.New(cfg.Constants)
	if err != nil {
		return nil, err
	}
	s, err := integrators.New(solver)
	if err != nil {
		return nil, err
	}
	return structure.NewIntegrator(e, structure.WithSolver(s), structure.WithLogger(logger)), nil
}

func runIntegrate(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		p, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid central pressure %q: %w", args[0], err)
		}
		cfg.PCentral = p
	}

	out := cmd.OutOrStdout()
	logger := newLogger(cfg, cmd.ErrOrStderr())
	integ, err := newIntegrator(cfg, cfg.Solver, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "integrating P0 = %g dyn/cm² with %s...\n", cfg.PCentral, cfg.Solver)
	start := time.Now()

	prof, err := integ.Integrate(cmd.Context(), cfg.PCentral, cfg.Params())
	if err != nil {
		var ierr *structure.IntegrationError
		if errors.As(err, &ierr) && ierr.Partial != nil {
			fmt.Fprintf(out, "partial profile: %d samples up to r = %g cm\n", len(ierr.Partial.Samples), ierr.Partial.Radius())
		}
		return err
	}
	elapsed := time.Since(start)

	var pred *analysis.Prediction
	metrics := map[string]float64{
		"elapsed_ms": float64(elapsed.Microseconds()) / 1000,
		"guard_hits": float64(prof.GuardHits),
	}
	if comparePoly {
		p, err := analysis.PredictNR(integ.EOS(), cfg.PCentral)
		if err != nil {
			return err
		}
		pred = &p
		d := analysis.Compare(prof, p)
		metrics["polytrope_radius_dev"] = d.Radius
		metrics["polytrope_mass_dev"] = d.Mass
	}

	fmt.Fprintf(out, "completed in %v\n", elapsed)
	viz.SummaryTable(out, prof, pred)

	if showPlot {
		graph, err := viz.PlotProfile(prof, viz.DefaultPlotWidth, viz.DefaultPlotHeight)
		switch {
		case errors.Is(err, viz.ErrNotEnoughData):
			fmt.Fprintln(out, "profile has a single sample, nothing to plot")
		case err != nil:
			return err
		default:
			fmt.Fprintln(out, graph)
		}
	}

	if noSave {
		return nil
	}
	st := storage.New(cfg.DataDir)
	runID, err := st.SaveProfile(prof, storage.RunInfo{Solver: cfg.Solver, Params: cfg.Params(), Metrics: metrics})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "run id: %s\n", runID)
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	pressures, err := cfg.SweepPressures()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	logOut := cmd.ErrOrStderr()
	if useTUI {
		logOut = io.Discard
	}
	integ, err := newIntegrator(cfg, cfg.Solver, newLogger(cfg, logOut))
	if err != nil {
		return err
	}

	opts := cfg.SweepOptions()
	start := time.Now()

	var res *structure.SweepResult
	if useTUI {
		res, err = tui.RunSweep(cmd.Context(), integ, pressures, opts)
	} else {
		fmt.Fprintf(out, "sweeping %d central pressures in [%g, %g] with %d workers...\n",
			len(pressures), pressures[0], pressures[len(pressures)-1], opts.Workers)
		res, err = integ.Sweep(cmd.Context(), pressures, opts)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	rows := storage.SweepRows(res)
	fmt.Fprintf(out, "completed in %v\n", elapsed)
	viz.SweepTable(out, rows)

	metrics := map[string]float64{"elapsed_ms": float64(elapsed.Microseconds()) / 1000}
	if fit, err := analysis.MassRadius(res); err == nil {
		metrics["mass_radius_exponent"] = fit.Exponent
		metrics["mass_radius_r2"] = fit.R2
		fmt.Fprintf(out, "%s\n", viz.Metric("R ∝ M^k, k =", fmt.Sprintf("%.4f (R² = %.5f, n = %d)", fit.Exponent, fit.R2, fit.N)))
	}

	if sweepPlot {
		radii, masses := res.Pairs()
		if graph, err := viz.PlotMassRadius(radii, masses, viz.DefaultPlotWidth, viz.DefaultPlotHeight); err == nil {
			fmt.Fprintln(out, graph)
		}
	}

	if noSave {
		return nil
	}
	st := storage.New(cfg.DataDir)
	runID, err := st.SaveSweep(res, cfg.Constants, storage.RunInfo{Solver: cfg.Solver, Params: cfg.Params(), Metrics: metrics})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "run id: %s\n", runID)
	return nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	names := args
	if len(names) == 0 {
		names = integrators.List()
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())
	runs := make([]viz.SolverRun, 0, len(names))
	var integ *structure.Integrator
	for _, name := range names {
		integ, err = newIntegrator(cfg, name, logger)
		if err != nil {
			return err
		}
		start := time.Now()
		prof, err := integ.Integrate(cmd.Context(), cfg.PCentral, cfg.Params())
		runs = append(runs, viz.SolverRun{Name: name, Profile: prof, Elapsed: time.Since(start), Err: err})
	}

	pred, err := analysis.PredictNR(integ.EOS(), cfg.PCentral)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "P0 = %g dyn/cm², max step %g cm\n", cfg.PCentral, cfg.Integration.MaxStep)
	viz.SolverTable(cmd.OutOrStdout(), runs, &pred)
	return nil
}

func runLaneEmden(cmd *cobra.Command, args []string) error {
	n := analysis.NonRelativistic.N
	if len(args) == 1 {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid polytropic index %q: %w", args[0], err)
		}
		n = v
	}

	solver, err := integrators.New(solverName)
	if err != nil {
		return err
	}
	poly, err := analysis.SolveLaneEmden(cmd.Context(), solver, n)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", viz.Title.Render(fmt.Sprintf("Lane-Emden n = %g", poly.N)))
	fmt.Fprintln(out, viz.Metric("xi1   ", fmt.Sprintf("%.6f", poly.Xi1)))
	fmt.Fprintln(out, viz.Metric("omega ", fmt.Sprintf("%.6f", poly.Omega)))
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	runs, err := storage.New(cfg.DataDir).List()
	if err != nil {
		return err
	}
	viz.RunTable(cmd.OutOrStdout(), runs)
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	st := storage.New(cfg.DataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run: %s\n", meta.ID)
	fmt.Fprintf(out, "kind: %s, solver: %s\n\n", meta.Kind, meta.Solver)

	switch meta.Kind {
	case storage.KindSweep:
		rows, err := st.LoadSweep(runID)
		if err != nil {
			return err
		}
		var radii, masses []float64
		for _, r := range rows {
			if r.OK() {
				radii = append(radii, r.RadiusSolar)
				masses = append(masses, r.MassSolar)
			}
		}
		graph, err := viz.PlotMassRadius(radii, masses, plotWidth, plotHeight)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, graph)
		if fit, err := analysis.FitPowerLaw(masses, radii); err == nil {
			fmt.Fprintln(out, viz.Metric("R ∝ M^k, k =", fmt.Sprintf("%.4f", fit.Exponent)))
		}
	default:
		prof, err := st.LoadProfile(runID)
		if err != nil {
			return err
		}
		graph, err := viz.PlotProfile(prof, plotWidth, plotHeight)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, graph)
	}
	return nil
}

func outputPath(args []string, ext string) string {
	if len(args) == 2 {
		return args[1]
	}
	return args[0] + ext
}
