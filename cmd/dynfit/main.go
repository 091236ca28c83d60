package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/dynfit/internal/analysis"
	"github.com/san-kum/dynfit/internal/config"
	"github.com/san-kum/dynfit/internal/experiment"
	"github.com/san-kum/dynfit/internal/export"
	"github.com/san-kum/dynfit/internal/logging"
	"github.com/san-kum/dynfit/internal/optim"
	"github.com/san-kum/dynfit/internal/storage"
	"github.com/san-kum/dynfit/internal/trainer"
	"github.com/san-kum/dynfit/internal/viz"
)

var (
	dataDir  string
	logLevel string
	logJSON  bool

	configFile string
	preset     string
	runName    string
	resumeRun  string

	mass      float64
	stiffness float64
	damping   float64
	initX     float64
	initV     float64
	tEnd      float64
	samples   int
	noise     float64
	solver    string
	seed      uint64

	modelKind  string
	hidden     int
	layers     int
	zeroOutput bool

	learningRate float64
	epochs       int
	gradClip     float64
	patience     int
	logEvery     int

	outPath string
	asJSON  bool
	logLoss bool

	searchRates  []float64
	searchHidden []int
	workers      int

	svgDir   string
	numSeeds int
)

var log = zap.NewNop()

func main() {
	rootCmd := &cobra.Command{
		Use:           "dynfit",
		Short:         "fit an oscillator's damping with a learned correction",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logging.New(logLevel, logJSON)
			if err != nil {
				return err
			}
			log = l
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".dynfit", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")

	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "generate data, train the hybrid model and save the run",
		Args:  cobra.NoArgs,
		RunE:  trainRun,
	}
	addConfigFlags(trainCmd)
	addModelFlags(trainCmd)
	trainCmd.Flags().StringVar(&runName, "name", "", "run name (default: preset name or \"run\")")
	trainCmd.Flags().IntVar(&logEvery, "log-every", 10, "log progress every n epochs")
	trainCmd.Flags().StringVar(&resumeRun, "resume", "", "continue from a saved run's config and parameters")

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "write a synthetic trajectory to CSV without training",
		Args:  cobra.NoArgs,
		RunE:  generateData,
	}
	addConfigFlags(generateCmd)
	generateCmd.Flags().StringVarP(&outPath, "out", "o", "trajectory.csv", "output CSV path")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a run's summary, loss curve and phase portrait",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
	showCmd.Flags().BoolVar(&asJSON, "json", false, "print the run as JSON")
	showCmd.Flags().BoolVar(&logLoss, "log", true, "plot log10(loss)")
	showCmd.Flags().StringVar(&svgDir, "svg", "", "also write loss.svg and phase.svg to this directory")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMASS\tSTIFFNESS\tDAMPING\tNOISE\tMODEL")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				model := p.Model.Kind
				if p.Model.ZeroOutput {
					model += " (zero output)"
				}
				fmt.Fprintf(w, "%s\t%g\t%g\t%g\t%g\t%s\n", name, p.Mass, p.Stiffness, p.Damping, p.Noise, model)
			}
			return w.Flush()
		},
	}

	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "grid search over learning rate and hidden width",
		Args:  cobra.NoArgs,
		RunE:  searchRun,
	}
	addConfigFlags(searchCmd)
	addModelFlags(searchCmd)
	searchCmd.Flags().Float64SliceVar(&searchRates, "rates", []float64{1e-3, 3e-3, 1e-2, 3e-2}, "learning rates to try")
	searchCmd.Flags().IntSliceVar(&searchHidden, "widths", []int{8, 16, 32}, "hidden widths to try")
	searchCmd.Flags().IntVar(&workers, "workers", 4, "experiments run in parallel")

	seedsCmd := &cobra.Command{
		Use:   "seeds",
		Short: "train one configuration over several seeds and summarize",
		Args:  cobra.NoArgs,
		RunE:  seedsRun,
	}
	addConfigFlags(seedsCmd)
	addModelFlags(seedsCmd)
	seedsCmd.Flags().IntVar(&numSeeds, "n", 10, "number of seeds, starting at --seed")
	seedsCmd.Flags().IntVar(&workers, "workers", 4, "experiments run in parallel")

	rootCmd.AddCommand(trainCmd, generateCmd, listCmd, showCmd, presetsCmd, searchCmd, seedsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	d := config.DefaultConfig()
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.Float64Var(&mass, "mass", d.Mass, "mass m")
	f.Float64Var(&stiffness, "stiffness", d.Stiffness, "spring constant k")
	f.Float64Var(&damping, "damping", d.Damping, "damping c used to generate data")
	f.Float64Var(&initX, "x0", d.Init.X, "initial position")
	f.Float64Var(&initV, "v0", d.Init.V, "initial velocity")
	f.Float64Var(&tEnd, "time", d.Time.End, "end of the observation window")
	f.IntVar(&samples, "samples", d.Time.Samples, "number of observations")
	f.Float64Var(&noise, "noise", d.Noise, "observation noise standard deviation")
	f.StringVar(&solver, "solver", d.Solver, "data solver (rk45, rk4)")
	f.Uint64Var(&seed, "seed", d.Seed, "random seed")
}

func addModelFlags(cmd *cobra.Command) {
	d := config.DefaultConfig()
	f := cmd.Flags()
	f.StringVar(&modelKind, "model", d.Model.Kind, "correction model (mlp, linear, zero)")
	f.IntVar(&hidden, "hidden", d.Model.Hidden, "hidden units per layer")
	f.IntVar(&layers, "layers", d.Model.Layers, "hidden layers")
	f.BoolVar(&zeroOutput, "zero-output", d.Model.ZeroOutput, "start from a correction that outputs zero")
	f.Float64Var(&learningRate, "lr", d.Train.LearningRate, "learning rate")
	f.IntVar(&epochs, "epochs", d.Train.Epochs, "training epochs")
	f.Float64Var(&gradClip, "grad-clip", d.Train.GradClip, "clip gradient norm (0 disables)")
	f.IntVar(&patience, "patience", d.Train.Patience, "stop after n epochs without improvement (0 disables)")
}

// resolveConfig layers defaults, preset, resumed run, config file and
// explicitly set flags, in that order.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if resumeRun != "" && cmd.Flags().Lookup("resume") != nil {
		loaded, err := storage.New(dataDir).LoadConfig(resumeRun)
		if err != nil {
			return nil, fmt.Errorf("failed to load run %s: %w", resumeRun, err)
		}
		cfg = loaded
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			apply()
		}
	}
	set("mass", func() { cfg.Mass = mass })
	set("stiffness", func() { cfg.Stiffness = stiffness })
	set("damping", func() { cfg.Damping = damping })
	set("x0", func() { cfg.Init.X = initX })
	set("v0", func() { cfg.Init.V = initV })
	set("time", func() { cfg.Time.End = tEnd })
	set("samples", func() { cfg.Time.Samples = samples })
	set("noise", func() { cfg.Noise = noise })
	set("solver", func() { cfg.Solver = solver })
	set("seed", func() { cfg.Seed = seed })
	set("model", func() { cfg.Model.Kind = modelKind })
	set("hidden", func() { cfg.Model.Hidden = hidden })
	set("layers", func() { cfg.Model.Layers = layers })
	set("zero-output", func() { cfg.Model.ZeroOutput = zeroOutput })
	set("lr", func() { cfg.Train.LearningRate = learningRate })
	set("epochs", func() { cfg.Train.Epochs = epochs })
	set("grad-clip", func() { cfg.Train.GradClip = gradClip })
	set("patience", func() { cfg.Train.Patience = patience })

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func trainRun(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	name := runName
	if name == "" {
		name = preset
	}
	if name == "" {
		name = "run"
	}

	progress := trainer.ObserverFunc(func(e trainer.Epoch) {
		if logEvery > 0 && (e.Index+1)%logEvery == 0 {
			log.Info("training", zap.Int("epoch", e.Index+1), zap.Int("of", cfg.Train.Epochs), zap.Float64("loss", e.Loss))
		}
	})

	opts := []experiment.Option{experiment.WithLogger(log), experiment.WithObserver(progress)}
	if resumeRun != "" {
		params, err := storage.New(dataDir).LoadParams(resumeRun)
		if err != nil {
			return fmt.Errorf("failed to load params of %s: %w", resumeRun, err)
		}
		opts = append(opts, experiment.WithInitialParams(params))
		log.Info("resuming", zap.String("run", resumeRun), zap.Int("params", len(params)))
	}

	exp, err := experiment.New(cfg, opts...)
	if err != nil {
		return err
	}
	if err := exp.Setup(cmd.Context()); err != nil {
		return err
	}

	res, runErr := exp.Run(cmd.Context())

	st := storage.New(dataDir)
	runID, err := st.Save(name, res, runErr)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	log.Info("run saved", zap.String("id", runID), zap.String("dir", dataDir))

	if runErr != nil {
		return fmt.Errorf("run %s failed: %w", runID, runErr)
	}

	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	fmt.Println(summary(meta))
	return nil
}

func generateData(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	data, err := experiment.GenerateData(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	if err := storage.WriteTrajectory(outPath, data); err != nil {
		return err
	}

	log.Info("trajectory written", zap.String("path", outPath), zap.Int("samples", data.Len()), zap.Float64("noise", cfg.Noise))
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tMODEL\tEPOCHS\tLOSS\tC TRUE\tC EST\tTIME\tTREND")

	for _, run := range runs {
		trend := ""
		if hist, err := st.LoadHistory(run.ID); err == nil {
			trend = viz.Sparkline(hist.Losses(), 20)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.3e\t%.3f\t%.3f\t%s\t%s\n",
			run.ID,
			run.Status,
			run.Model,
			run.Epochs,
			run.Loss.Last,
			run.Damping,
			run.Estimate.Damping,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			trend,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)

	if asJSON {
		return st.Export(runID, os.Stdout)
	}

	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	hist, err := st.LoadHistory(runID)
	if err != nil {
		return err
	}
	data, err := st.LoadTrajectory(runID)
	if err != nil {
		return err
	}

	fmt.Println(summary(meta))
	fmt.Println()
	fmt.Println(viz.LossChart(hist.Losses(), 70, 12, logLoss))
	fmt.Println()

	var predicted [][2]float64
	if pred, err := st.LoadPrediction(runID); err == nil {
		predicted = make([][2]float64, len(pred))
		for i, s := range pred {
			predicted[i] = [2]float64{s[0], s[1]}
		}
	}
	observed := viz.Points(data.X, data.V)
	fmt.Print(viz.PhasePortrait(observed, predicted, 40, 10))

	if svgDir != "" {
		return writeSVGs(svgDir, hist.Losses(), observed, predicted)
	}
	return nil
}

func writeSVGs(dir string, losses []float64, observed, predicted [][2]float64) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	write := func(name string, render func(io.Writer) error) error {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		defer f.Close()
		return render(f)
	}

	if len(losses) > 0 {
		if err := write("loss.svg", func(w io.Writer) error { return export.LossSVG(w, losses, 800, 400) }); err != nil {
			return err
		}
	}
	if err := write("phase.svg", func(w io.Writer) error { return export.PhaseSVG(w, observed, predicted, 600, 600) }); err != nil {
		return err
	}
	log.Info("svg written", zap.String("dir", dir))
	return nil
}

func summary(meta *storage.RunMetadata) string {
	status := viz.StatusDone.Render(meta.Status)
	if meta.Status != storage.StatusDone {
		status = viz.StatusFailed.Render(meta.Status)
	}

	lines := []string{
		viz.Field("status", status),
		viz.Field("model", meta.Model),
		viz.Field("seed", fmt.Sprint(meta.Seed)),
		viz.Field("samples", fmt.Sprint(meta.Samples)),
		viz.Field("epochs", fmt.Sprint(meta.Epochs)),
		viz.Field("loss", fmt.Sprintf("%.4e → %.4e (best %.4e @ %d)", meta.Loss.First, meta.Loss.Last, meta.Loss.Min, meta.Loss.MinEpoch)),
		viz.Field("improvement", fmt.Sprintf("%.1f%%", 100*meta.Loss.Improvement())),
		viz.Field("damping", fmt.Sprintf("true %.3f, estimated %.3f (R²=%.3f)", meta.Damping, meta.Estimate.Damping, meta.Estimate.RSquared)),
		viz.Field("elapsed", fmt.Sprintf("%dms", meta.ElapsedMS)),
	}
	if meta.Error != "" {
		lines = append(lines, viz.Field("error", meta.Error))
	}
	for _, name := range []string{"rmse_x", "rmse_v", "correction_effort", "energy_drift"} {
		if v, ok := meta.Metrics[name]; ok {
			lines = append(lines, viz.Field(name, fmt.Sprintf("%.4g", v)))
		}
	}

	return viz.BoxWithTitle(meta.ID, strings.Join(lines, "\n"), 70)
}

func searchRun(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	log.Info("grid search started",
		zap.Float64s("rates", searchRates),
		zap.Ints("widths", searchHidden),
		zap.Int("workers", workers),
	)
	best, score, trials, err := experiment.Search(cmd.Context(), cfg, searchRates, searchHidden, workers)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tLR\tHIDDEN\tFINAL LOSS")
	for i, tr := range optim.Ranked(trials) {
		fmt.Fprintf(w, "%d\t%g\t%d\t%.4e\n", i+1, tr.Params[experiment.ParamLearningRate], int(tr.Params[experiment.ParamHidden]), tr.Score)
	}
	for _, tr := range trials {
		if tr.Err != nil {
			fmt.Fprintf(w, "-\t%g\t%d\t%v\n", tr.Params[experiment.ParamLearningRate], int(tr.Params[experiment.ParamHidden]), tr.Err)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if best == nil {
		return fmt.Errorf("every trial failed")
	}
	fmt.Printf("\nbest: lr=%g hidden=%d loss=%.4e\n", best[experiment.ParamLearningRate], int(best[experiment.ParamHidden]), score)
	return nil
}

func seedsRun(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	log.Info("ensemble started", zap.Int("seeds", numSeeds), zap.Uint64("first_seed", cfg.Seed))
	results, errs, err := experiment.NewEnsemble(cfg, numSeeds, cfg.Seed, workers).Run(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEED\tFIRST LOSS\tLAST LOSS\tC EST\tSTATUS")

	improved := 0
	var estimates []float64
	for i, res := range results {
		seed := cfg.Seed + uint64(i)
		if errs[i] != nil {
			fmt.Fprintf(w, "%d\t-\t-\t-\t%v\n", seed, errs[i])
			continue
		}
		if res.Loss.Last < res.Loss.First {
			improved++
		}
		estimates = append(estimates, res.Damping.Damping)
		fmt.Fprintf(w, "%d\t%.4e\t%.4e\t%.3f\tok\n", seed, res.Loss.First, res.Loss.Last, res.Damping.Damping)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nloss decreased for %d of %d seeds\n", improved, numSeeds)
	if spread, err := analysis.SummarizeSpread(estimates); err == nil {
		fmt.Printf("damping: true %.3f, estimated %.3f ± %.3f (range %.3f to %.3f)\n",
			cfg.Damping, spread.Mean, spread.StdDev, spread.Min, spread.Max)
	}
	return nil
}
