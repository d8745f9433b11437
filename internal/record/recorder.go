package record

import (
	"context"
	"sync"
	"time"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/fit"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
)

// Recorder buffers poses and actions from the control task. It satisfies
// robot.Recorder; Save hands the buffer to a Store.
type Recorder struct {
	mu      sync.Mutex
	name    string
	started time.Time
	last    time.Time
	samples []fit.Sample
	events  []fit.Event
	// MinInterval drops poses closer together than this.
	MinInterval time.Duration
}

func NewRecorder(name string) *Recorder {
	return &Recorder{name: name}
}

func (r *Recorder) since(at time.Time) float64 {
	if r.started.IsZero() {
		r.started = at
	}
	return at.Sub(r.started).Seconds()
}

func (r *Recorder) Pose(at time.Time, p path.Pose) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.samples) > 0 && at.Sub(r.last) < r.MinInterval {
		return
	}
	r.last = at
	r.samples = append(r.samples, fit.Sample{T: r.since(at), Pose: p})
}

func (r *Recorder) Action(at time.Time, a path.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fit.Event{T: r.since(at), Action: a})
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

// Session copies the buffer out.
func (r *Recorder) Session() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	var d time.Duration
	if n := len(r.samples); n > 0 {
		d = seconds(r.samples[n-1].T)
	}
	return &Session{
		Name:     r.name,
		Started:  r.started,
		Duration: d,
		Samples:  append([]fit.Sample(nil), r.samples...),
		Events:   append([]fit.Event(nil), r.events...),
	}
}

// Save stores the session and clears the buffer.
func (r *Recorder) Save(ctx context.Context, s *Store) (int64, error) {
	id, err := s.Save(ctx, r.Session())
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	r.samples, r.events = nil, nil
	r.started, r.last = time.Time{}, time.Time{}
	r.mu.Unlock()
	return id, nil
}
