// Package robot runs the motion core: the odometry task, the control task
// and the phase changes between them.
package robot

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/chassis"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/clock"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/device"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/odom"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
)

type Phase int

const (
	PhaseDisabled Phase = iota
	PhaseAutonomous
	PhaseDriver
)

func (p Phase) String() string {
	switch p {
	case PhaseAutonomous:
		return "autonomous"
	case PhaseDriver:
		return "driver"
	default:
		return "disabled"
	}
}

type Config struct {
	OdomPeriod    time.Duration `yaml:"odom_period" json:"odom_period"`
	ControlPeriod time.Duration `yaml:"control_period" json:"control_period"`
}

func DefaultConfig() Config {
	return Config{
		OdomPeriod:    10 * time.Millisecond,
		ControlPeriod: 25 * time.Millisecond,
	}
}

// Recorder receives driver-control samples.
type Recorder interface {
	Pose(at time.Time, p path.Pose)
	Action(at time.Time, a path.Action)
}

type phaseChange struct {
	phase Phase
	start path.Pose
	traj  *path.Trajectory
}

// Runtime owns the two periodic tasks. The trajectory and chassis state
// are touched only from the control task; other goroutines talk to it
// through channels.
type Runtime struct {
	cfg      Config
	clock    clock.Clock
	pose     *odom.Shared
	tracker  *odom.Tracker
	follower *Follower
	drive    device.Drive
	log      *zap.Logger

	odomMon    *TickMonitor
	controlMon *TickMonitor

	changes  chan phaseChange
	phase    Phase
	recorder Recorder
	actions  chan path.Action
}

func NewRuntime(cfg Config, pose *odom.Shared, tracker *odom.Tracker, ch *chassis.Chassis, drive device.Drive, mech device.Mechanisms, log *zap.Logger) *Runtime {
	if log == nil {
		log = zap.NewNop()
	}
	c := clock.Clock(clock.Real{})
	r := &Runtime{
		cfg:        cfg,
		clock:      c,
		pose:       pose,
		tracker:    tracker,
		follower:   NewFollower(ch, pose, c, drive, mech, log.Named("follower")),
		drive:      drive,
		log:        log,
		odomMon:    NewTickMonitor(cfg.OdomPeriod),
		controlMon: NewTickMonitor(cfg.ControlPeriod),
		changes:    make(chan phaseChange, 4),
		actions:    make(chan path.Action, 16),
	}
	r.odomMon.OnOverrun = r.overrun("odometry", cfg.OdomPeriod)
	r.controlMon.OnOverrun = r.overrun("control", cfg.ControlPeriod)
	return r
}

func (r *Runtime) overrun(task string, budget time.Duration) func(time.Duration, int) {
	return func(took time.Duration, overruns int) {
		r.log.Warn("tick overran",
			zap.String("task", task),
			zap.Duration("took", took),
			zap.Duration("budget", budget),
			zap.Int("overruns", overruns))
	}
}

// SetRecorder installs a recorder fed during the driver phase. Call before
// Run.
func (r *Runtime) SetRecorder(rec Recorder) { r.recorder = rec }

// Run blocks, ticking both tasks until ctx is cancelled.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.tracker.Calibrate(ctx); err != nil {
		r.log.Warn("starting without heading calibration", zap.Error(err))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return Periodic(ctx, r.cfg.OdomPeriod, r.odomMon, r.odomTick)
	})
	g.Go(func() error {
		return Periodic(ctx, r.cfg.ControlPeriod, r.controlMon, r.controlTick)
	})

	err := g.Wait()
	r.tracker.Wait()
	if r.drive != nil {
		_ = r.drive.Set(0, 0)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// SwitchPhase changes the top-level phase. Entering autonomous resets the
// controllers, recalibrates the heading sensor and moves the pose to the
// routine's start before following traj.
func (r *Runtime) SwitchPhase(phase Phase, start path.Pose, traj *path.Trajectory) {
	r.changes <- phaseChange{phase: phase, start: start, traj: traj}
}

// RecordAction notes a mechanism action taken by the driver.
func (r *Runtime) RecordAction(a path.Action) {
	select {
	case r.actions <- a:
	default:
		r.log.Warn("dropped recorded action", zap.Stringer("action", a))
	}
}

func (r *Runtime) Pose() *odom.Shared { return r.pose }

func (r *Runtime) Stats() (odomStats, controlStats TickStats) {
	return r.odomMon.Snapshot(), r.controlMon.Snapshot()
}

func (r *Runtime) odomTick(ctx context.Context) {
	err := r.tracker.Tick(ctx)
	if err != nil && !errors.Is(err, odom.ErrCalibrating) {
		r.log.Debug("odometry tick skipped", zap.Error(err))
	}
}

func (r *Runtime) controlTick(context.Context) {
	r.applyPhaseChanges()

	switch r.phase {
	case PhaseAutonomous:
		if _, err := r.follower.Tick(); err != nil {
			r.log.Warn("control tick", zap.Error(err))
		}
	case PhaseDriver:
		r.record()
	}
}

func (r *Runtime) applyPhaseChanges() {
	for {
		select {
		case c := <-r.changes:
			r.enterPhase(c)
		default:
			return
		}
	}
}

func (r *Runtime) enterPhase(c phaseChange) {
	r.log.Info("phase change", zap.Stringer("from", r.phase), zap.Stringer("to", c.phase))
	r.phase = c.phase
	r.follower.Load(nil)
	if r.drive != nil {
		_ = r.drive.Set(0, 0)
	}

	switch c.phase {
	case PhaseAutonomous:
		r.pose.RequestCalibrate(c.start)
		r.follower.Load(c.traj)
	case PhaseDriver:
		r.pose.RequestReset(c.start)
	}
}

func (r *Runtime) record() {
	if r.recorder == nil {
		return
	}
	now := r.clock.Now()
	if p, ok := r.pose.Snapshot(); ok {
		r.recorder.Pose(now, p)
	}
	for {
		select {
		case a := <-r.actions:
			r.recorder.Action(now, a)
		default:
			return
		}
	}
}
