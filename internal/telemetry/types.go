// Package telemetry holds the records produced by a routine run and the
// interfaces that observe them.
package telemetry

import "time"

// Sample is one control period of a run.
type Sample struct {
	T float64 `json:"t"`

	// True pose from the plant.
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`

	// Odometry estimate.
	EstX       float64 `json:"est_x"`
	EstY       float64 `json:"est_y"`
	EstHeading float64 `json:"est_heading"`

	Left  float64 `json:"left"`
	Right float64 `json:"right"`

	Segment    int     `json:"segment"`
	Progress   float64 `json:"progress"`
	CrossTrack float64 `json:"cross_track"`
	Mode       string  `json:"mode"`
}

// ActionEvent is an action dispatched during a run.
type ActionEvent struct {
	T        float64 `json:"t"`
	Progress float64 `json:"progress"`
	Action   string  `json:"action"`
}

// Run is the outcome of following one routine.
type Run struct {
	Routine   string             `json:"routine"`
	Samples   []Sample           `json:"-"`
	Actions   []ActionEvent      `json:"actions"`
	Metrics   map[string]float64 `json:"metrics"`
	Completed bool               `json:"completed"`
	Forced    int                `json:"forced"`
	Elapsed   time.Duration      `json:"elapsed"`
}

// Last returns the final sample, or the zero sample for an empty run.
func (r *Run) Last() Sample {
	if len(r.Samples) == 0 {
		return Sample{}
	}
	return r.Samples[len(r.Samples)-1]
}

// Column extracts one field of every sample for plotting.
func (r *Run) Column(name string) []float64 {
	out := make([]float64, 0, len(r.Samples))
	for _, s := range r.Samples {
		v, ok := s.Field(name)
		if !ok {
			return nil
		}
		out = append(out, v)
	}
	return out
}

// Fields lists the numeric sample fields in CSV order.
var Fields = []string{
	"t", "x", "y", "heading", "est_x", "est_y", "est_heading",
	"left", "right", "segment", "progress", "cross_track",
}

func (s Sample) Field(name string) (float64, bool) {
	switch name {
	case "t":
		return s.T, true
	case "x":
		return s.X, true
	case "y":
		return s.Y, true
	case "heading":
		return s.Heading, true
	case "est_x":
		return s.EstX, true
	case "est_y":
		return s.EstY, true
	case "est_heading":
		return s.EstHeading, true
	case "left":
		return s.Left, true
	case "right":
		return s.Right, true
	case "segment":
		return float64(s.Segment), true
	case "progress":
		return s.Progress, true
	case "cross_track":
		return s.CrossTrack, true
	default:
		return 0, false
	}
}

// SetField is the inverse of Field.
func (s *Sample) SetField(name string, v float64) bool {
	switch name {
	case "t":
		s.T = v
	case "x":
		s.X = v
	case "y":
		s.Y = v
	case "heading":
		s.Heading = v
	case "est_x":
		s.EstX = v
	case "est_y":
		s.EstY = v
	case "est_heading":
		s.EstHeading = v
	case "left":
		s.Left = v
	case "right":
		s.Right = v
	case "segment":
		s.Segment = int(v)
	case "progress":
		s.Progress = v
	case "cross_track":
		s.CrossTrack = v
	default:
		return false
	}
	return true
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

type Observer interface {
	OnSample(s Sample)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Sample)

func (f ObserverFunc) OnSample(s Sample) { f(s) }
