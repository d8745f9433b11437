package robot

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/chassis"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/clock"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/device"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/odom"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
)

// Follower is the control-task body: it reads a pose snapshot, sequences
// the trajectory, runs the chassis and dispatches due actions.
type Follower struct {
	chassis *chassis.Chassis
	pose    *odom.Shared
	clock   clock.Clock
	drive   device.Drive
	mech    device.Mechanisms
	log     *zap.Logger

	traj   *path.Trajectory
	forced int

	// OnAction, when set, observes every dispatched action.
	OnAction func(path.TimedAction)
}

func NewFollower(ch *chassis.Chassis, pose *odom.Shared, c clock.Clock, drive device.Drive, mech device.Mechanisms, log *zap.Logger) *Follower {
	if c == nil {
		c = clock.Real{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Follower{chassis: ch, pose: pose, clock: c, drive: drive, mech: mech, log: log}
}

// Load replaces the active trajectory and clears controller state.
func (f *Follower) Load(traj *path.Trajectory) {
	if traj != nil {
		traj.Reset()
	}
	f.traj = traj
	f.forced = 0
	f.chassis.Reset()
}

func (f *Follower) Trajectory() *path.Trajectory { return f.traj }

func (f *Follower) Done() bool { return f.traj == nil || f.traj.Done() }

// Forced is the number of segments that ended on their timeout.
func (f *Follower) Forced() int { return f.forced }

func (f *Follower) Chassis() *chassis.Chassis { return f.chassis }

// Tick runs one control period.
func (f *Follower) Tick() (chassis.Command, error) {
	pose, ok := f.pose.Snapshot()
	if !ok || f.traj == nil {
		return f.apply(f.chassis.Hold())
	}

	tr := f.traj.Advance(f.clock.Now())
	if tr.Forced {
		f.forced++
		f.log.Warn("segment timed out", zap.Int("segment", tr.From))
	}
	if tr.Advanced {
		f.log.Info("segment finished", zap.Int("segment", tr.From), zap.Bool("done", f.traj.Done()))
	}

	var cmd chassis.Command
	if tr.Hold {
		cmd = f.chassis.Hold()
	} else {
		cmd = f.chassis.Update(pose, f.traj)
	}
	cmd, err := f.apply(cmd)

	for _, a := range f.traj.DueActions() {
		err = multierr.Append(err, f.dispatch(a))
	}
	return cmd, err
}

func (f *Follower) apply(cmd chassis.Command) (chassis.Command, error) {
	if f.drive == nil {
		return cmd, nil
	}
	if err := f.drive.Set(cmd.Left, cmd.Right); err != nil {
		return cmd, fmt.Errorf("drive: %w", err)
	}
	return cmd, nil
}

func (f *Follower) dispatch(ta path.TimedAction) error {
	a := ta.Action
	f.log.Info("action", zap.Stringer("action", a), zap.Float64("at", ta.At), zap.Float64("progress", f.traj.Progress))
	if f.OnAction != nil {
		f.OnAction(ta)
	}

	if a.Kind == path.ActionResetPose {
		f.pose.RequestReset(a.Pose)
		return nil
	}
	if f.mech == nil {
		return nil
	}

	var err error
	switch a.Kind {
	case path.ActionToggle:
		err = f.mech.Toggle(a.Mechanism)
	case path.ActionSpin:
		err = f.mech.Spin(a.Mechanism, a.Power)
	case path.ActionStop:
		err = f.mech.Stop(a.Mechanism)
	}
	if err != nil {
		return fmt.Errorf("action %s: %w", a, err)
	}
	return nil
}
