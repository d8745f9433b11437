package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/chassis"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/chart"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/log"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/metrics"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/sim"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/storage"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/telemetry"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/tui"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/tune"
)

// simFlags are the run overrides shared by sim, live, record and tune.
type simFlags struct {
	seed        int64
	timeout     time.Duration
	imuDropout  time.Duration
	imuReturn   time.Duration
	encoderLoss time.Duration
}

func (f *simFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "sensor noise seed (default from config)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "give up after this much simulated time")
	cmd.Flags().DurationVar(&f.imuDropout, "imu-dropout", 0, "disconnect the IMU at this time")
	cmd.Flags().DurationVar(&f.imuReturn, "imu-return", 0, "reconnect the IMU at this time")
	cmd.Flags().DurationVar(&f.encoderLoss, "encoder-loss", 0, "disconnect one left encoder at this time")
}

func (f *simFlags) apply(cmd *cobra.Command, cfg sim.Config) sim.Config {
	if cmd.Flags().Changed("seed") {
		cfg.Seed = f.seed
	}
	if f.timeout > 0 {
		cfg.Timeout = f.timeout
	}
	if f.imuDropout > 0 {
		cfg.Faults.IMUDisconnect = f.imuDropout
		cfg.Faults.IMUReconnect = f.imuReturn
	}
	if f.encoderLoss > 0 {
		cfg.Faults.LeftEncoderOut = f.encoderLoss
	}
	return cfg
}

func saveRun(run *telemetry.Run, cfg sim.Config) (string, error) {
	st := storage.New(a.cfg.DataDir)
	if err := st.Init(); err != nil {
		return "", err
	}
	return st.Save(run, storage.Options{Seed: cfg.Seed, Dt: cfg.Dt, Preset: a.cfg.Preset})
}

func report(run *telemetry.Run, wall time.Duration) {
	status := "completed"
	if !run.Completed {
		status = "timed out"
	}
	fmt.Printf("%s in %v simulated (%v wall)\n", status, run.Elapsed, wall.Round(time.Millisecond))
	fmt.Printf("samples: %d  actions: %d  forced segments: %d\n", len(run.Samples), len(run.Actions), run.Forced)
	fmt.Println("\nmetrics:")
	printMetrics(run.Metrics)
}

func simCmd() *cobra.Command {
	var (
		flags    simFlags
		runs     int
		jsonOut  string
		noSave   bool
		graph    bool
		showActs bool
	)
	cmd := &cobra.Command{
		Use:   "sim [routine]",
		Short: "simulate a routine",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := a.routineArg(args)
			cfg := flags.apply(cmd, a.cfg.SimConfig())

			if runs > 1 {
				return runEnsemble(cmd, name, cfg, runs)
			}

			traj, err := a.routines.Build(name)
			if err != nil {
				return err
			}
			fmt.Printf("simulating %s (%d segments)...\n", name, traj.Len())

			start := time.Now()
			run, err := a.newSimulator().Run(cmd.Context(), name, traj, cfg)
			if err != nil {
				return err
			}
			report(run, time.Since(start))

			if showActs {
				fmt.Println("\nactions:")
				for _, ev := range run.Actions {
					fmt.Printf("  t=%6.3fs  progress=%5.2f  %s\n", ev.T, ev.Progress, ev.Action)
				}
			}
			if graph {
				g, err := chart.ASCII(run, "cross_track", 80, 10)
				if err != nil {
					return err
				}
				fmt.Println()
				fmt.Println(g)
			}
			if jsonOut != "" {
				if err := storage.ExportJSONFile(jsonOut, run); err != nil {
					return err
				}
				fmt.Printf("exported to %s\n", jsonOut)
			}
			if !noSave {
				id, err := saveRun(run, cfg)
				if err != nil {
					return err
				}
				fmt.Printf("run id: %s\n", id)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVarP(&runs, "runs", "n", 1, "repeat across this many noise seeds and report means")
	cmd.Flags().StringVar(&jsonOut, "json", "", "also export the run as JSON")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	cmd.Flags().BoolVar(&graph, "graph", false, "print the cross-track error")
	cmd.Flags().BoolVar(&showActs, "actions", false, "print dispatched actions")
	return cmd
}

func runEnsemble(cmd *cobra.Command, name string, cfg sim.Config, n int) error {
	if _, err := a.routines.Get(name); err != nil {
		return err
	}
	build := func() (*path.Trajectory, error) { return a.routines.Build(name) }

	fmt.Printf("simulating %s across %d seeds from %d...\n", name, n, cfg.Seed)
	start := time.Now()
	e := sim.NewEnsemble(a.newSimulator(), n, cfg.Seed, metrics.Default)
	runs, err := e.Run(cmd.Context(), name, build, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("done in %v\n\n", time.Since(start).Round(time.Millisecond))

	completed := 0
	for _, r := range runs {
		if r.Completed {
			completed++
		}
	}
	fmt.Printf("completed: %d/%d\n", completed, len(runs))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tMEAN")
	for _, m := range []string{"duration", "final_position_error", "final_heading_error", "cross_track_rms", "odometry_drift", "control_effort", "path_length"} {
		fmt.Fprintf(w, "%s\t%.6f\n", m, sim.Mean(runs, m))
	}
	return w.Flush()
}

func liveCmd() *cobra.Command {
	var (
		flags  simFlags
		noSave bool
	)
	cmd := &cobra.Command{
		Use:   "live [routine]",
		Short: "simulate a routine on a live terminal field view",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := a.routineArg(args)
			cfg := flags.apply(cmd, a.cfg.SimConfig())
			traj, err := a.routines.Build(name)
			if err != nil {
				return err
			}

			// Logging would tear the alternate screen.
			s := sim.New(a.cfg.OdomConfig(), a.cfg.ChassisConfig(), sim.NewRK4(), zap.NewNop())
			for _, m := range metrics.Default() {
				s.AddMetric(m)
			}
			feed := tui.Stream(cmd.Context(), s, name, traj, cfg)
			res, err := tui.Run(feed)
			if err != nil {
				return err
			}
			if res == nil || res.Run == nil {
				return nil
			}
			if res.Err != nil {
				return res.Err
			}
			report(res.Run, 0)
			if !noSave {
				id, err := saveRun(res.Run, cfg)
				if err != nil {
					return err
				}
				fmt.Printf("run id: %s\n", id)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	return cmd
}

func tuneCmd() *cobra.Command {
	var (
		flags   simFlags
		params  []string
		workers int
		top     int
	)
	cmd := &cobra.Command{
		Use:   "tune [routine]",
		Short: "grid-search chassis gains against a simulated routine",
		Long: "Each --param is name=v1,v2,...; every combination is simulated and scored on\n" +
			"time, final pose error and cross-track error. Parameters: " + strings.Join(tune.Names(), ", "),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := a.routineArg(args)
			if _, err := a.routines.Get(name); err != nil {
				return err
			}
			if len(params) == 0 {
				return fmt.Errorf("no --param given (available: %s)", strings.Join(tune.Names(), ", "))
			}
			grid := make([]tune.Param, 0, len(params))
			for _, p := range params {
				parsed, err := tune.ParseParam(p)
				if err != nil {
					return err
				}
				grid = append(grid, parsed)
			}
			g, err := tune.NewGridSearch(grid, log.Named("tune"))
			if err != nil {
				return err
			}
			g.Workers = workers

			cfg := flags.apply(cmd, a.cfg.SimConfig())
			eval := func(ctx context.Context, cc chassis.Config) (*telemetry.Run, error) {
				traj, err := a.routines.Build(name)
				if err != nil {
					return nil, err
				}
				s := sim.New(a.cfg.OdomConfig(), cc, sim.NewRK4(), nil)
				for _, m := range metrics.Default() {
					s.AddMetric(m)
				}
				return s.Run(ctx, name, traj, cfg)
			}

			combos := len(g.Combinations())
			fmt.Printf("tuning %s over %d combinations...\n", name, combos)
			start := time.Now()
			results, err := g.Search(cmd.Context(), a.cfg.ChassisConfig(), eval, tune.DefaultObjective)
			if err != nil {
				return err
			}
			fmt.Printf("done in %v\n\n", time.Since(start).Round(time.Millisecond))

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			header := []string{"RANK", "SCORE"}
			for _, p := range grid {
				header = append(header, strings.ToUpper(p.Name))
			}
			header = append(header, "DONE", "DURATION", "FINAL_ERR")
			fmt.Fprintln(w, strings.Join(header, "\t"))
			for i, c := range results {
				if i >= top {
					break
				}
				row := []string{fmt.Sprint(i + 1), fmt.Sprintf("%.4f", c.Score)}
				for _, p := range grid {
					row = append(row, fmt.Sprintf("%g", c.Params[p.Name]))
				}
				if c.Err != nil {
					row = append(row, "error", c.Err.Error(), "")
				} else {
					row = append(row, fmt.Sprint(c.Run.Completed),
						fmt.Sprintf("%.3f", c.Run.Metrics["duration"]),
						fmt.Sprintf("%.3f", c.Run.Metrics["final_position_error"]))
				}
				fmt.Fprintln(w, strings.Join(row, "\t"))
			}
			return w.Flush()
		},
	}
	flags.register(cmd)
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "name=v1,v2,... (repeatable)")
	cmd.Flags().IntVarP(&workers, "workers", "j", 4, "concurrent simulations")
	cmd.Flags().IntVar(&top, "top", 10, "rows to print")
	return cmd
}
