package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/config"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/log"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/metrics"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/routine"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/sim"
)

var (
	configFile  string
	preset      string
	dataDir     string
	routineDir  string
	logLevel    string
	development bool
)

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	cfg      *config.Config
	routines *routine.Registry
	log      *zap.Logger
}

var a app

func main() {
	rootCmd := &cobra.Command{
		Use:           "pushback",
		Short:         "tank-drive motion core: routines, simulation and tuning",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = log.Sync()
		},
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "YAML config file")
	pf.StringVar(&preset, "preset", "", "config preset (competition, skills, gentle)")
	pf.StringVar(&dataDir, "data", "", "run directory (default from config)")
	pf.StringVar(&routineDir, "routines", "", "directory of extra YAML routines")
	pf.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	pf.BoolVar(&development, "dev", false, "human-readable logs")

	rootCmd.AddCommand(
		routinesCmd(),
		simCmd(),
		liveCmd(),
		listCmd(),
		plotCmd(),
		renderCmd(),
		exportCmd(),
		recordCmd(),
		sessionsCmd(),
		fitCmd(),
		tuneCmd(),
		configCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command) error {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		if configFile != "" {
			// Keys in the file still win over the preset.
			p.Preset = preset
			if err := reload(p); err != nil {
				return err
			}
		}
		cfg = p
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("dev") {
		cfg.Log.Development = development
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		return fmt.Errorf("log level %q: %w", cfg.Log.Level, err)
	}

	reg := routine.NewRegistry()
	if routineDir != "" {
		if err := reg.LoadDir(routineDir); err != nil {
			return err
		}
	}

	a = app{cfg: cfg, routines: reg, log: log.L()}
	return nil
}

func reload(cfg *config.Config) error {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config %s: %w", configFile, err)
	}
	return cfg.Validate()
}

// newSimulator builds a simulator from the active config with the default
// metrics attached.
func (a *app) newSimulator() *sim.Simulator {
	s := sim.New(a.cfg.OdomConfig(), a.cfg.ChassisConfig(), sim.NewRK4(), log.Named("sim"))
	for _, m := range metrics.Default() {
		s.AddMetric(m)
	}
	return s
}

// routineArg picks the routine named on the command line, or the config
// default.
func (a *app) routineArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return a.cfg.Routine
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, m[name])
	}
}

func routinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routines",
		Short: "list autonomous routines",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSEGMENTS\tACTIONS\tDESCRIPTION")
			for _, name := range a.routines.List() {
				rt, err := a.routines.Get(name)
				if err != nil {
					return err
				}
				traj, err := rt.Build()
				if err != nil {
					fmt.Fprintf(w, "%s\t-\t-\tinvalid: %v\n", name, err)
					continue
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", name, traj.Len(), len(traj.Actions), rt.Description)
			}
			return w.Flush()
		},
	}
}

func configCmd() *cobra.Command {
	var save string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "print the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if save != "" {
				if err := config.Save(save, a.cfg); err != nil {
					return err
				}
				fmt.Printf("config written to %s\n", save)
				return nil
			}
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&save, "save", "", "write the config to this file instead of printing it")

	cmd.AddCommand(&cobra.Command{
		Use:   "presets",
		Short: "list config presets",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(strings.Join(config.ListPresets(), "\n"))
		},
	})
	return cmd
}
