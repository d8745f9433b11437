// Package storage keeps simulated runs on disk as a metadata.json and a
// trace.csv per run directory.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/telemetry"
)

var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string                  `json:"id"`
	Routine   string                  `json:"routine"`
	Timestamp time.Time               `json:"timestamp"`
	Seed      int64                   `json:"seed"`
	Dt        time.Duration           `json:"dt"`
	Preset    string                  `json:"preset,omitempty"`
	Completed bool                    `json:"completed"`
	Forced    int                     `json:"forced"`
	Elapsed   time.Duration           `json:"elapsed"`
	Samples   int                     `json:"samples"`
	Actions   []telemetry.ActionEvent `json:"actions"`
	Metrics   map[string]float64      `json:"metrics"`
}

// Options describe how a run was produced.
type Options struct {
	Seed   int64
	Dt     time.Duration
	Preset string
}

func (s *Store) Save(run *telemetry.Run, opts Options) (string, error) {
	runID := fmt.Sprintf("%s_%s", run.Routine, uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Routine:   run.Routine,
		Timestamp: time.Now(),
		Seed:      opts.Seed,
		Dt:        opts.Dt,
		Preset:    opts.Preset,
		Completed: run.Completed,
		Forced:    run.Forced,
		Elapsed:   run.Elapsed,
		Samples:   len(run.Samples),
		Actions:   run.Actions,
		Metrics:   run.Metrics,
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "trace.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteTrace(csvFile, run.Samples); err != nil {
		return "", err
	}
	return runID, nil
}

// WriteTrace writes samples as CSV with the telemetry.Fields columns
// followed by the control mode.
func WriteTrace(out io.Writer, samples []telemetry.Sample) error {
	w := csv.NewWriter(out)

	header := append(append([]string(nil), telemetry.Fields...), "mode")
	if err := w.Write(header); err != nil {
		return err
	}

	for _, sample := range samples {
		row := make([]string, 0, len(header))
		for _, f := range telemetry.Fields {
			v, _ := sample.Field(f)
			row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
		}
		row = append(row, sample.Mode)
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// List returns stored runs, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadSamples reads a run's trace. Unknown columns are ignored so older
// traces stay readable.
func (s *Store) LoadSamples(runID string) ([]telemetry.Sample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "trace.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []telemetry.Sample{}, nil
	}

	header := records[0]
	samples := make([]telemetry.Sample, 0, len(records)-1)
	for _, record := range records[1:] {
		var sample telemetry.Sample
		for j, name := range header {
			if j >= len(record) {
				break
			}
			if name == "mode" {
				sample.Mode = record[j]
				continue
			}
			v, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				continue
			}
			sample.SetField(name, v)
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// LoadRun reassembles a stored run.
func (s *Store) LoadRun(runID string) (*telemetry.Run, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	samples, err := s.LoadSamples(runID)
	if err != nil {
		return nil, err
	}
	return &telemetry.Run{
		Routine:   meta.Routine,
		Samples:   samples,
		Actions:   meta.Actions,
		Metrics:   meta.Metrics,
		Completed: meta.Completed,
		Forced:    meta.Forced,
		Elapsed:   meta.Elapsed,
	}, nil
}
