package fit

import (
	"fmt"
	"sort"

	"github.com/golang/geo/r2"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
)

// Sample is one recorded pose, T in seconds from the start of recording.
type Sample struct {
	T    float64
	Pose path.Pose
}

// Event is a recorded mechanism action.
type Event struct {
	T      float64
	Action path.Action
}

type Options struct {
	// Window is the number of samples per fitted segment.
	Window   int
	Speed    float64
	MinSpeed float64
}

func DefaultOptions() Options {
	return Options{Window: 40, Speed: 1, MinSpeed: 0.3}
}

// window is a span of samples [from, to], inclusive, sharing its first
// sample with the previous window so fitted curves meet.
type window struct {
	from, to int
	t0, t1   float64
}

func split(samples []Sample, size int) []window {
	var ws []window
	for from := 0; from < len(samples)-1; from += size {
		to := from + size
		if to > len(samples)-1 {
			to = len(samples) - 1
		}
		// A short tail joins the previous window.
		if to-from < 3 && len(ws) > 0 {
			ws[len(ws)-1].to = to
			ws[len(ws)-1].t1 = samples[to].T
			break
		}
		ws = append(ws, window{from: from, to: to, t0: samples[from].T, t1: samples[to].T})
	}
	return ws
}

// Trajectory fits a chained trajectory to a recording and re-times its
// events into trajectory progress.
func Trajectory(samples []Sample, events []Event, opts Options) (*path.Trajectory, error) {
	if opts.Window < 3 {
		return nil, fmt.Errorf("fit: window must be at least 3, got %d", opts.Window)
	}
	if len(samples) < 4 {
		return nil, fmt.Errorf("%w: need 4, got %d", ErrTooFewSamples, len(samples))
	}
	samples = append([]Sample(nil), samples...)
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].T < samples[j].T })

	ws := split(samples, opts.Window)
	b := path.NewBuilder(samples[0].Pose)
	for i, w := range ws {
		span := w.t1 - w.t0
		if span <= 0 {
			return nil, fmt.Errorf("fit: window %d has no duration", i)
		}

		n := w.to - w.from + 1
		ts := make([]float64, 0, n)
		xs := make([]float64, 0, n)
		ys := make([]float64, 0, n)
		for _, s := range samples[w.from : w.to+1] {
			ts = append(ts, (s.T-w.t0)/span)
			xs = append(xs, s.Pose.X)
			ys = append(ys, s.Pose.Y)
		}

		c, err := Curve(ts, xs, ys)
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", i, err)
		}

		end := samples[w.to].Pose
		seg := path.DefaultSegment(c, end.Heading)
		seg.Ceiling = path.Constant(opts.Speed)
		seg.Reversed = drivenBackward(samples[w.from:w.to+1])
		if i < len(ws)-1 {
			seg.Chained = true
			seg.Floor = path.Constant(opts.MinSpeed)
		}
		b.Segment(seg)
	}

	for _, e := range events {
		b.Action(e.Action, progressAt(ws, e.T))
	}
	return b.Build()
}

// drivenBackward reports whether most of the motion was against the
// robot's heading.
func drivenBackward(samples []Sample) bool {
	var along float64
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1].Pose, samples[i].Pose
		d := r2.Point{X: cur.X - prev.X, Y: cur.Y - prev.Y}
		along += d.Dot(path.Forward(prev.Heading))
	}
	return along < 0
}

func progressAt(ws []window, t float64) float64 {
	if len(ws) == 0 || t <= ws[0].t0 {
		return 0
	}
	for i, w := range ws {
		if t <= w.t1 {
			return float64(i) + (t-w.t0)/(w.t1-w.t0)
		}
	}
	return float64(len(ws))
}
