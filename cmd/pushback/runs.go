package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/plot/vg"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/chart"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/storage"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/telemetry"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := storage.New(a.cfg.DataDir).List()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tROUTINE\tTIME\tELAPSED\tDONE\tFORCED\tFINAL_ERR\tSEED")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%v\t%d\t%.3f\t%d\n",
					run.ID,
					run.Routine,
					run.Timestamp.Format("2006-01-02 15:04:05"),
					run.Elapsed,
					run.Completed,
					run.Forced,
					run.Metrics["final_position_error"],
					run.Seed,
				)
			}
			return w.Flush()
		},
	}
}

func plotCmd() *cobra.Command {
	var columns []string
	cmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run traces in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := storage.New(a.cfg.DataDir).LoadRun(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("run: %s\n", args[0])
			fmt.Printf("routine: %s\n", run.Routine)
			fmt.Printf("samples: %d\n\n", len(run.Samples))

			for _, col := range columns {
				g, err := chart.ASCII(run, col, 80, 10)
				if err != nil {
					return err
				}
				fmt.Println(g)
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&columns, "columns", []string{"left", "right", "cross_track"},
		"sample columns to plot: "+strings.Join(telemetry.Fields, ", "))
	return cmd
}

func renderCmd() *cobra.Command {
	var (
		out    string
		series []string
		size   float64
	)
	cmd := &cobra.Command{
		Use:   "render [run_id]",
		Short: "render a run to PNG, SVG or PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			run, err := storage.New(a.cfg.DataDir).LoadRun(id)
			if err != nil {
				return err
			}
			if out == "" {
				out = id + ".png"
			}

			w, h := vg.Length(size)*vg.Inch, vg.Length(size)*vg.Inch
			if len(series) > 0 {
				p, err := chart.Series(run, series...)
				if err != nil {
					return err
				}
				if err := chart.Save(p, 2*w, h, out); err != nil {
					return err
				}
				fmt.Printf("wrote %s\n", out)
				return nil
			}

			var segments []path.Segment
			if traj, err := a.routines.Build(run.Routine); err == nil {
				segments = traj.Segments
			} else {
				a.log.Info("drawing without the authored path", zap.String("routine", run.Routine), zap.Error(err))
			}
			p, err := chart.Field(fmt.Sprintf("%s (%s)", run.Routine, id), segments, run)
			if err != nil {
				return err
			}
			if err := chart.Save(p, w, h, out); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file; the extension picks the format (default <run_id>.png)")
	cmd.Flags().StringSliceVar(&series, "series", nil, "plot these columns against time instead of the field")
	cmd.Flags().Float64Var(&size, "size", 6, "image height in inches")
	return cmd
}

func exportCmd() *cobra.Command {
	var (
		out   string
		trace bool
	)
	cmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as JSON, or its trace as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := storage.New(a.cfg.DataDir).LoadRun(args[0])
			if err != nil {
				return err
			}

			w := os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if trace {
				return storage.WriteTrace(w, run.Samples)
			}
			return storage.ExportJSON(w, run)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to this file instead of stdout")
	cmd.Flags().BoolVar(&trace, "csv", false, "export the sample trace as CSV")
	return cmd
}
