package record

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/fit"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/robot"
)

var _ robot.Recorder = (*Recorder)(nil)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "recordings.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(start time.Time) *Recorder {
	r := NewRecorder("practice")
	for i := 0; i < 50; i++ {
		at := start.Add(time.Duration(i) * 25 * time.Millisecond)
		r.Pose(at, path.Pose{X: float64(i) * 0.1, Y: float64(i), Heading: 0.01 * float64(i)})
		if i == 10 {
			r.Action(at, path.Toggle("matchload"))
		}
		if i == 30 {
			r.Action(at, path.Spin("intake", -0.5))
		}
	}
	r.Action(start.Add(time.Second), path.ResetPose(path.Pose{X: 1, Y: 2, Heading: 0.5}))
	return r
}

func TestRecorderTimestamps(t *testing.T) {
	start := time.Date(2025, 10, 18, 9, 0, 0, 0, time.UTC)
	sess := record(start).Session()

	if len(sess.Samples) != 50 || len(sess.Events) != 3 {
		t.Fatalf("got %d samples and %d events", len(sess.Samples), len(sess.Events))
	}
	if sess.Samples[0].T != 0 || sess.Events[0].T != 0.25 {
		t.Errorf("times not relative to the first sample: %v, %v", sess.Samples[0].T, sess.Events[0].T)
	}
	if want := 49 * 25 * time.Millisecond; sess.Duration != want {
		t.Errorf("duration = %v, want %v", sess.Duration, want)
	}
	if !sess.Started.Equal(start) {
		t.Errorf("started = %v", sess.Started)
	}
}

func TestRecorderMinInterval(t *testing.T) {
	r := NewRecorder("sparse")
	r.MinInterval = 50 * time.Millisecond
	start := time.Unix(0, 0)
	for i := 0; i < 10; i++ {
		r.Pose(start.Add(time.Duration(i)*25*time.Millisecond), path.Pose{Y: float64(i)})
	}
	if got := r.Len(); got != 5 {
		t.Errorf("kept %d samples, want 5", got)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	start := time.Date(2025, 10, 18, 9, 0, 0, 0, time.UTC)
	r := record(start)
	want := r.Session()

	id, err := r.Save(ctx, s)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if r.Len() != 0 {
		t.Error("recorder not cleared after save")
	}

	got, err := s.Load(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Name != "practice" || !got.Started.Equal(start) || got.Duration != want.Duration {
		t.Errorf("session = %q %v %v", got.Name, got.Started, got.Duration)
	}
	if len(got.Samples) != len(want.Samples) {
		t.Fatalf("got %d samples, want %d", len(got.Samples), len(want.Samples))
	}
	for i := range want.Samples {
		if got.Samples[i] != want.Samples[i] {
			t.Errorf("sample %d = %+v, want %+v", i, got.Samples[i], want.Samples[i])
		}
	}
	if len(got.Events) != 3 {
		t.Fatalf("got %d events", len(got.Events))
	}
	for i := range want.Events {
		if got.Events[i] != want.Events[i] {
			t.Errorf("event %d = %+v, want %+v", i, got.Events[i], want.Events[i])
		}
	}
}

func TestStoreSessions(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	first, err := record(time.Date(2025, 10, 18, 9, 0, 0, 0, time.UTC)).Save(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	second, err := record(time.Date(2025, 10, 18, 10, 0, 0, 0, time.UTC)).Save(ctx, s)
	if err != nil {
		t.Fatal(err)
	}

	infos, err := s.Sessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d sessions", len(infos))
	}
	if infos[0].ID != second || infos[1].ID != first {
		t.Errorf("sessions not newest first: %+v", infos)
	}
	if infos[0].Samples != 50 || infos[0].Actions != 3 {
		t.Errorf("counts = %+v", infos[0])
	}

	if err := s.Delete(ctx, first); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx, first); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("load deleted: %v", err)
	}
	if err := s.Delete(ctx, first); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("delete twice: %v", err)
	}
}

func TestRecordingFitsIntoTrajectory(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	id, err := record(time.Unix(0, 0)).Save(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	sess, err := s.Load(ctx, id)
	if err != nil {
		t.Fatal(err)
	}

	traj, err := fit.Trajectory(sess.Samples, sess.Events, fit.Options{Window: 20, Speed: 1, MinSpeed: 0.3})
	if err != nil {
		t.Fatal(err)
	}
	if traj.Len() != 3 {
		t.Errorf("got %d segments, want 3", traj.Len())
	}
	if len(traj.Actions) != 3 {
		t.Errorf("got %d actions", len(traj.Actions))
	}
}
