package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/fit"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/record"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/telemetry"
)

var sessionDB string

func openSessions() (*record.Store, error) {
	db := sessionDB
	if db == "" {
		if err := os.MkdirAll(a.cfg.DataDir, 0755); err != nil {
			return nil, err
		}
		db = filepath.Join(a.cfg.DataDir, "sessions.db")
	}
	return record.Open(db)
}

func sessionID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("session id %q: %w", arg, err)
	}
	return id, nil
}

// recordCmd drives a routine in simulation and stores the odometry pose
// stream as a session, the way a driver-control recording would be kept.
func recordCmd() *cobra.Command {
	var (
		flags    simFlags
		name     string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "record [routine]",
		Short: "record a simulated routine as a replayable session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			routineName := a.routineArg(args)
			traj, err := a.routines.Build(routineName)
			if err != nil {
				return err
			}
			actions := append([]path.TimedAction(nil), traj.Actions...)
			cfg := flags.apply(cmd, a.cfg.SimConfig())

			if name == "" {
				name = routineName
			}
			rec := record.NewRecorder(name)
			rec.MinInterval = interval
			epoch := time.Now()
			at := func(t float64) time.Time { return epoch.Add(time.Duration(t * float64(time.Second))) }

			s := a.newSimulator()
			s.AddObserver(telemetry.ObserverFunc(func(smp telemetry.Sample) {
				rec.Pose(at(smp.T), path.Pose{X: smp.EstX, Y: smp.EstY, Heading: smp.EstHeading})
			}))
			run, err := s.Run(cmd.Context(), routineName, traj, cfg)
			if err != nil {
				return err
			}
			// Dispatch order matches the trajectory's sorted action list.
			for i, ev := range run.Actions {
				if i < len(actions) {
					rec.Action(at(ev.T), actions[i].Action)
				}
			}

			store, err := openSessions()
			if err != nil {
				return err
			}
			defer store.Close()
			n := rec.Len()
			id, err := rec.Save(cmd.Context(), store)
			if err != nil {
				return err
			}
			fmt.Printf("recorded %d poses and %d actions over %v\n", n, len(run.Actions), run.Elapsed)
			fmt.Printf("session id: %d\n", id)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&name, "name", "", "session name (default the routine name)")
	cmd.Flags().DurationVar(&interval, "interval", 20*time.Millisecond, "drop poses closer together than this")
	cmd.Flags().StringVar(&sessionDB, "db", "", "session database (default <data>/sessions.db)")
	return cmd
}

func sessionsCmd() *cobra.Command {
	var del int64
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "list recorded sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSessions()
			if err != nil {
				return err
			}
			defer store.Close()

			if del > 0 {
				if err := store.Delete(cmd.Context(), del); err != nil {
					return err
				}
				fmt.Printf("deleted session %d\n", del)
				return nil
			}

			sessions, err := store.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("no sessions found")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTARTED\tDURATION\tSAMPLES")
			for _, si := range sessions {
				fmt.Fprintf(w, "%d\t%s\t%s\t%v\t%d\n", si.ID, si.Name, si.Started.Format("2006-01-02 15:04:05"), si.Duration, si.Samples)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int64Var(&del, "delete", 0, "delete this session")
	cmd.Flags().StringVar(&sessionDB, "db", "", "session database (default <data>/sessions.db)")
	return cmd
}

func fitCmd() *cobra.Command {
	var (
		flags  simFlags
		opts   = fit.DefaultOptions()
		noSave bool
	)
	cmd := &cobra.Command{
		Use:   "fit [session_id]",
		Short: "fit a recorded session into a trajectory and simulate it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := sessionID(args[0])
			if err != nil {
				return err
			}
			store, err := openSessions()
			if err != nil {
				return err
			}
			defer store.Close()

			sess, err := store.Load(cmd.Context(), id)
			if err != nil {
				return err
			}
			traj, err := fit.Trajectory(sess.Samples, sess.Events, opts)
			if err != nil {
				return fmt.Errorf("session %d: %w", id, err)
			}
			name := fmt.Sprintf("fit-%s-%d", sess.Name, id)
			fmt.Printf("fitted %d poses into %d segments and %d actions\n", len(sess.Samples), traj.Len(), len(traj.Actions))

			cfg := flags.apply(cmd, a.cfg.SimConfig())
			start := time.Now()
			run, err := a.newSimulator().Run(cmd.Context(), name, traj, cfg)
			if err != nil {
				return err
			}
			report(run, time.Since(start))

			if !noSave {
				runID, err := saveRun(run, cfg)
				if err != nil {
					return err
				}
				fmt.Printf("run id: %s\n", runID)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&opts.Window, "window", opts.Window, "poses per fitted segment")
	cmd.Flags().Float64Var(&opts.Speed, "speed", opts.Speed, "speed ceiling of fitted segments")
	cmd.Flags().Float64Var(&opts.MinSpeed, "min-speed", opts.MinSpeed, "speed floor of chained segments")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	cmd.Flags().StringVar(&sessionDB, "db", "", "session database (default <data>/sessions.db)")
	return cmd
}
