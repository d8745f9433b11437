package robot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/chassis"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/clock"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/device"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/odom"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
)

type fakeDrive struct {
	mu          sync.Mutex
	left, right float64
	calls       int
}

func (d *fakeDrive) Set(left, right float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.left, d.right = left, right
	d.calls++
	return nil
}

func (d *fakeDrive) last() (float64, float64, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.left, d.right, d.calls
}

type fakeMech struct {
	calls []string
	err   error
}

func (m *fakeMech) Toggle(name string) error {
	m.calls = append(m.calls, "toggle "+name)
	return m.err
}

func (m *fakeMech) Spin(name string, power float64) error {
	m.calls = append(m.calls, "spin "+name)
	return m.err
}

func (m *fakeMech) Stop(name string) error {
	m.calls = append(m.calls, "stop "+name)
	return m.err
}

type fakeEncoder struct{}

func (fakeEncoder) Connected() bool   { return true }
func (fakeEncoder) Position() float64 { return 0 }
func (fakeEncoder) Reset()            {}

type fakeIMU struct{ calibrations atomic.Int32 }

func (m *fakeIMU) Connected() bool  { return true }
func (m *fakeIMU) Heading() float64 { return 0 }
func (m *fakeIMU) Calibrate(ctx context.Context) error {
	m.calibrations.Add(1)
	return ctx.Err()
}

type fakeRecorder struct {
	mu      sync.Mutex
	poses   int
	actions []path.Action
}

func (r *fakeRecorder) Pose(time.Time, path.Pose) {
	r.mu.Lock()
	r.poses++
	r.mu.Unlock()
}

func (r *fakeRecorder) Action(_ time.Time, a path.Action) {
	r.mu.Lock()
	r.actions = append(r.actions, a)
	r.mu.Unlock()
}

func (r *fakeRecorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.poses, len(r.actions)
}

func TestTickMonitor(t *testing.T) {
	m := NewTickMonitor(10 * time.Millisecond)
	if m.Observe(4 * time.Millisecond) {
		t.Error("4ms should fit a 10ms budget")
	}
	if !m.Observe(16 * time.Millisecond) {
		t.Error("16ms should overrun a 10ms budget")
	}

	s := m.Snapshot()
	want := TickStats{Samples: 2, Average: 10 * time.Millisecond, Max: 16 * time.Millisecond, Last: 16 * time.Millisecond, Overruns: 1}
	if s != want {
		t.Errorf("snapshot = %+v, want %+v", s, want)
	}

	m.Reset()
	if s := m.Snapshot(); s != (TickStats{}) {
		t.Errorf("after reset = %+v", s)
	}

	var nilMon *TickMonitor
	if nilMon.Observe(time.Second) || nilMon.Snapshot() != (TickStats{}) {
		t.Error("nil monitor should be inert")
	}
}

func TestPeriodicStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	var ticks atomic.Int32
	mon := NewTickMonitor(5 * time.Millisecond)
	err := Periodic(ctx, 5*time.Millisecond, mon, func(context.Context) { ticks.Add(1) })

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if n := ticks.Load(); n < 3 {
		t.Errorf("expected several ticks in 60ms, got %d", n)
	}
	if mon.Snapshot().Samples != int(ticks.Load()) {
		t.Error("monitor missed ticks")
	}
}

func TestTickMonitorReportsOverrunningTick(t *testing.T) {
	m := NewTickMonitor(10 * time.Millisecond)
	var took []time.Duration
	var counts []int
	m.OnOverrun = func(d time.Duration, overruns int) {
		took = append(took, d)
		counts = append(counts, overruns)
		// The callback runs outside the lock.
		_ = m.Snapshot()
	}

	m.Observe(4 * time.Millisecond)
	m.Observe(30 * time.Millisecond)
	m.Observe(5 * time.Millisecond)
	m.Observe(12 * time.Millisecond)

	want := []time.Duration{30 * time.Millisecond, 12 * time.Millisecond}
	if len(took) != len(want) || took[0] != want[0] || took[1] != want[1] {
		t.Errorf("overrun durations = %v, want %v", took, want)
	}
	if len(counts) != 2 || counts[0] != 1 || counts[1] != 2 {
		t.Errorf("overrun counts = %v, want [1 2]", counts)
	}
}

func TestPeriodicReportsSlowTickItself(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mon := NewTickMonitor(2 * time.Millisecond)
	reported := make(chan time.Duration, 1)
	mon.OnOverrun = func(d time.Duration, _ int) {
		select {
		case reported <- d:
		default:
		}
		cancel()
	}

	var ticks atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Periodic(ctx, time.Millisecond, mon, func(context.Context) {
			// Only the first tick is slow.
			if ticks.Add(1) == 1 {
				time.Sleep(20 * time.Millisecond)
			}
		})
	}()

	select {
	case d := <-reported:
		if d < 20*time.Millisecond {
			t.Errorf("reported %v, want the slow tick's duration", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("overrun never reported")
	}
	<-done
}

func newFollower(t *testing.T, mech device.Mechanisms) (*Follower, *odom.Shared, *fakeDrive) {
	t.Helper()
	clk := clock.NewManual(time.Unix(0, 0))
	shared := odom.NewShared(path.Pose{})
	drive := &fakeDrive{}
	ch := chassis.New(chassis.DefaultConfig(), clk, nil)
	return NewFollower(ch, shared, clk, drive, mech, nil), shared, drive
}

func TestFollowerHoldsWithoutTrajectory(t *testing.T) {
	f, _, drive := newFollower(t, nil)
	cmd, err := f.Tick()
	if err != nil {
		t.Fatal(err)
	}
	l, r, calls := drive.last()
	if calls != 1 || l != 0 || r != 0 || cmd.Left != 0 || cmd.Right != 0 {
		t.Errorf("expected a zero hold, got %v/%v after %d calls", l, r, calls)
	}
	if !f.Done() {
		t.Error("follower without a trajectory should be done")
	}
}

func TestFollowerDispatchesDueActions(t *testing.T) {
	mech := &fakeMech{}
	f, shared, drive := newFollower(t, mech)

	traj, err := path.NewBuilder(path.Pose{}).
		MoveTo(path.Pose{Y: 24}, 1).
		Action(path.Spin("intake", 1), 0).
		Action(path.Toggle("matchload"), 0).
		Action(path.ResetPose(path.Pose{X: 1}), 0).
		Action(path.Stop("intake"), 1).
		Build()
	if err != nil {
		t.Fatal(err)
	}

	var seen []path.TimedAction
	f.OnAction = func(ta path.TimedAction) { seen = append(seen, ta) }
	f.Load(traj)

	if _, err := f.Tick(); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 3 {
		t.Fatalf("dispatched %d actions, want 3", len(seen))
	}
	want := []string{"spin intake", "toggle matchload"}
	if len(mech.calls) != len(want) || mech.calls[0] != want[0] || mech.calls[1] != want[1] {
		t.Errorf("mechanism calls = %v, want %v", mech.calls, want)
	}
	if _, ok := shared.Snapshot(); ok {
		t.Error("reset action should leave a pending reset")
	}
	if l, r, _ := drive.last(); l <= 0 || r <= 0 {
		t.Errorf("expected forward drive toward the target, got %v/%v", l, r)
	}

	// Pose is unusable until the odometry task applies the reset.
	if _, err := f.Tick(); err != nil {
		t.Fatal(err)
	}
	if l, r, _ := drive.last(); l != 0 || r != 0 {
		t.Errorf("expected a hold while the reset is pending, got %v/%v", l, r)
	}
}

func TestFollowerReportsMechanismErrors(t *testing.T) {
	boom := errors.New("jammed")
	f, _, _ := newFollower(t, &fakeMech{err: boom})
	traj, err := path.NewBuilder(path.Pose{}).
		MoveTo(path.Pose{Y: 24}, 1).
		Action(path.Spin("intake", 1), 0).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	f.Load(traj)

	if _, err := f.Tick(); !errors.Is(err, boom) {
		t.Errorf("expected the mechanism error, got %v", err)
	}
}

func TestPhaseString(t *testing.T) {
	for p, want := range map[Phase]string{PhaseDisabled: "disabled", PhaseAutonomous: "autonomous", PhaseDriver: "driver"} {
		if p.String() != want {
			t.Errorf("%d.String() = %q, want %q", p, p.String(), want)
		}
	}
}

func newRuntime(t *testing.T) (*Runtime, *fakeIMU, *fakeDrive) {
	t.Helper()
	imu := &fakeIMU{}
	shared := odom.NewShared(path.Pose{})
	sensors := odom.Sensors{
		Left:  []device.Encoder{fakeEncoder{}},
		Right: []device.Encoder{fakeEncoder{}},
		IMU:   imu,
	}
	tracker := odom.NewTracker(odom.DefaultConfig(), sensors, shared, nil)
	drive := &fakeDrive{}
	ch := chassis.New(chassis.DefaultConfig(), clock.Real{}, nil)
	cfg := Config{OdomPeriod: 2 * time.Millisecond, ControlPeriod: 5 * time.Millisecond}
	return NewRuntime(cfg, shared, tracker, ch, drive, &fakeMech{}, nil), imu, drive
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestRuntimeDriverPhaseRecords(t *testing.T) {
	rt, _, drive := newRuntime(t)
	rec := &fakeRecorder{}
	rt.SetRecorder(rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	start := path.Pose{X: 10, Y: -5, Heading: path.Deg(90)}
	rt.SwitchPhase(PhaseDriver, start, nil)
	rt.RecordAction(path.Toggle("wing"))

	eventually(t, func() bool {
		poses, actions := rec.counts()
		return poses > 3 && actions == 1
	}, "driver phase never recorded")

	if got := rt.Pose().Pose(); got != start {
		t.Errorf("driver phase pose = %+v, want %+v", got, start)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("run returned %v", err)
	}
	if l, r, _ := drive.last(); l != 0 || r != 0 {
		t.Error("drive not stopped on exit")
	}
	odomStats, controlStats := rt.Stats()
	if odomStats.Samples == 0 || controlStats.Samples == 0 {
		t.Error("tasks never ticked")
	}
}

func TestRuntimeAutonomousRecalibrates(t *testing.T) {
	rt, imu, drive := newRuntime(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	traj, err := path.NewBuilder(path.Pose{}).MoveTo(path.Pose{Y: 24}, 1).Build()
	if err != nil {
		t.Fatal(err)
	}
	rt.SwitchPhase(PhaseAutonomous, traj.Start, traj)

	eventually(t, func() bool { return imu.calibrations.Load() >= 2 }, "entering autonomous did not recalibrate")
	eventually(t, func() bool {
		l, r, _ := drive.last()
		return l > 0 && r > 0
	}, "autonomous never drove")

	cancel()
	if err := <-done; err != nil {
		t.Errorf("run returned %v", err)
	}
}
