package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/telemetry"
)

type ExportData struct {
	Routine   string                  `json:"routine"`
	Completed bool                    `json:"completed"`
	Forced    int                     `json:"forced"`
	Elapsed   float64                 `json:"elapsed"`
	Steps     int                     `json:"steps"`
	Samples   []telemetry.Sample      `json:"samples"`
	Actions   []telemetry.ActionEvent `json:"actions"`
	Metrics   map[string]float64      `json:"metrics"`
}

func exportData(run *telemetry.Run) ExportData {
	return ExportData{
		Routine:   run.Routine,
		Completed: run.Completed,
		Forced:    run.Forced,
		Elapsed:   run.Elapsed.Seconds(),
		Steps:     len(run.Samples),
		Samples:   run.Samples,
		Actions:   run.Actions,
		Metrics:   run.Metrics,
	}
}

// ExportJSON writes the whole run, samples included, to w.
func ExportJSON(w io.Writer, run *telemetry.Run) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exportData(run))
}

func ExportJSONFile(path string, run *telemetry.Run) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return ExportJSON(file, run)
}
