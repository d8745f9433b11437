// Package routine holds the named autonomous routines and loads extra
// ones from YAML files.
package routine

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang/geo/r2"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
)

var ErrUnknownRoutine = errors.New("routine: unknown routine")

// Mechanism names used by the built-in routines.
const (
	Intake    = "intake"
	Indexer   = "indexer"
	Matchload = "matchload"
	Descore   = "descore"
)

type Routine struct {
	Name        string
	Description string
	Build       func() (*path.Trajectory, error)
}

type Registry struct {
	routines map[string]Routine
}

func NewRegistry() *Registry {
	r := &Registry{routines: make(map[string]Routine)}

	r.Register(Routine{Name: "none", Description: "drive ten inches forward", Build: none})
	r.Register(Routine{Name: "left-qual", Description: "left side qualification: center goal then long goal", Build: func() (*path.Trajectory, error) { return qual(false) }})
	r.Register(Routine{Name: "right-qual", Description: "right side qualification: center goal then long goal", Build: func() (*path.Trajectory, error) { return qual(true) }})
	r.Register(Routine{Name: "left-elims", Description: "left side eliminations: matchload, long goal, center goal", Build: func() (*path.Trajectory, error) { return elims(false) }})
	r.Register(Routine{Name: "right-elims", Description: "right side eliminations: matchload, long goal, center goal", Build: func() (*path.Trajectory, error) { return elims(true) }})
	r.Register(Routine{Name: "solo", Description: "solo autonomous win point across both sides", Build: solo})
	r.Register(Routine{Name: "skills", Description: "curved skills route through both matchloaders", Build: skills})

	return r
}

func (r *Registry) Register(rt Routine) {
	r.routines[rt.Name] = rt
}

func (r *Registry) Get(name string) (Routine, error) {
	rt, ok := r.routines[name]
	if !ok {
		return Routine{}, fmt.Errorf("%w: %s", ErrUnknownRoutine, name)
	}
	return rt, nil
}

// Build returns a fresh trajectory for the named routine.
func (r *Registry) Build(name string) (*path.Trajectory, error) {
	rt, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	traj, err := rt.Build()
	if err != nil {
		return nil, fmt.Errorf("routine %s: %w", name, err)
	}
	return traj, nil
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.routines))
	for name := range r.routines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func pose(x, y, deg float64) path.Pose {
	return path.Pose{X: x, Y: y, Heading: path.NormalizeAngle(path.Deg(deg))}
}

func none() (*path.Trajectory, error) {
	return path.NewBuilder(path.Pose{}).MoveTo(pose(0, 10, 0), 1).Build()
}

// sided returns a pose constructor for the left start tile, or for the
// right tile mirrored across the x axis.
func sided(right bool) func(x, y, deg float64) path.Pose {
	if !right {
		return pose
	}
	return func(x, y, deg float64) path.Pose { return pose(x, -y, 180-deg) }
}

func qual(right bool) (*path.Trajectory, error) {
	pose := sided(right)
	b := path.NewBuilder(path.Pose{})
	b.Action(path.Spin(Intake, 1), 0)
	b.MoveTo(pose(-28, 16, -45), 1)
	b.Action(path.Toggle(Matchload), 1)
	b.MoveTo(pose(-16, 28, 60), 0.75)
	b.Action(path.Toggle(Matchload), 2)
	b.MoveTo(pose(-47, 47, 90), 1)
	b.Action(path.Toggle(Matchload), 3)
	b.MoveTo(pose(-56, 47, 90), 1)
	b.Wait(time.Second)
	b.MoveToReverse(pose(-30, 47, 90), 1)
	b.Action(path.Toggle(Descore), 6)
	b.Action(path.Spin(Indexer, 1), 6)
	b.Action(path.Toggle(Matchload), 6)
	b.Wait(time.Second)
	b.MoveTo(pose(-35, 39, -90), 1)
	b.Action(path.Toggle(Descore), 8)
	b.MoveTo(pose(-12, 39, -90), 1)
	return b.Build()
}

func elims(right bool) (*path.Trajectory, error) {
	pose := sided(right)
	b := path.NewBuilder(path.Pose{})
	b.Action(path.Spin(Intake, 1), 0)
	b.MoveTo(pose(-48, 47, 90), 1)
	b.Action(path.Toggle(Matchload), 1)
	b.MoveTo(pose(-55, 47, 90), 1)
	b.Wait(time.Second)
	b.MoveToReverse(pose(-30, 47, 90), 1)
	b.Action(path.Toggle(Descore), 4)
	b.Action(path.Spin(Indexer, 1), 4)
	b.Action(path.Toggle(Matchload), 4)
	b.Wait(time.Second)
	b.Action(path.Stop(Indexer), 5)
	b.Action(path.Toggle(Descore), 5)
	b.MoveTo(pose(-36, 36, -135), 1)
	b.MoveTo(pose(-28.5, 28.5, -135), 1)
	b.Action(path.Toggle(Matchload), 7)
	b.MoveTo(pose(-19, 19, -135), 0.75)
	b.Action(path.Toggle(Matchload), 8)
	b.MoveTo(pose(-13, 13, -135), 1)
	b.Action(path.Spin(Intake, -0.5), 9)
	b.Wait(time.Second)
	b.Action(path.Stop(Intake), 10)
	b.MoveTo(pose(-25, 39, -90), 1)
	b.Action(path.Toggle(Descore), 11)
	b.MoveTo(pose(-12.5, 39, -90), 1)
	return b.Build()
}

func solo() (*path.Trajectory, error) {
	b := path.NewBuilder(path.Pose{})
	b.Action(path.Spin(Intake, 1), 0)
	b.MoveTo(pose(-48, -47, 90), 1)
	b.Action(path.Toggle(Matchload), 1)
	b.MoveTo(pose(-56, -47, 90), 1)
	b.Wait(time.Second)
	b.MoveToReverse(pose(-30, -47, 90), 1)
	b.Action(path.Toggle(Descore), 4)
	b.Action(path.Spin(Indexer, 1), 4)
	b.Wait(2 * time.Second)
	b.Action(path.Toggle(Descore), 5)
	b.Action(path.Stop(Indexer), 5)
	b.Action(path.Toggle(Matchload), 5)
	b.MoveTo(pose(-24, -30, 0), 1)
	b.Action(path.Toggle(Matchload), 6)
	b.MoveTo(pose(-24, -15, 0), 0.75)
	b.Action(path.Toggle(Matchload), 7)
	b.MoveTo(pose(-24, 12, 0), 1)
	b.Action(path.Toggle(Matchload), 8)
	b.MoveTo(pose(-24, 30, 30), 0.75)
	b.MoveTo(pose(-11, 11, 45), 1)
	b.Action(path.Spin(Indexer, -0.5), 10)
	b.Wait(500 * time.Millisecond)
	b.Action(path.Stop(Indexer), 11)
	b.MoveTo(pose(-47, 47, 90), 1)
	b.MoveToReverse(pose(-30, 47, 90), 1)
	b.Action(path.Toggle(Descore), 13)
	b.Action(path.Spin(Indexer, 1), 13)
	return b.Build()
}

func skills() (*path.Trajectory, error) {
	b := path.NewBuilder(path.Pose{})
	b.Action(path.Spin(Intake, 1), 0)
	b.Chain(pose(-24, 24, 45), 0.3, 1)
	b.CurveTo(r2.Point{X: -40, Y: 36}, r2.Point{X: -48, Y: 47}, pose(-56, 47, 90), 0.8)
	b.Action(path.Toggle(Matchload), 1.5)
	b.Wait(1500 * time.Millisecond)
	b.MoveToReverse(pose(-30, 47, 90), 1)
	b.Action(path.Toggle(Matchload), 3)
	b.Action(path.Spin(Indexer, 1), 3)
	b.Wait(2 * time.Second)
	b.Action(path.Stop(Indexer), 4)
	b.CurveTo(r2.Point{X: -30, Y: 20}, r2.Point{X: -30, Y: -20}, pose(-48, -47, 90), 0.8)
	b.MoveTo(pose(-56, -47, 90), 1)
	b.Action(path.Toggle(Matchload), 6)
	b.Wait(1500 * time.Millisecond)
	b.MoveToReverse(pose(-30, -47, 90), 1)
	b.Action(path.Toggle(Matchload), 8)
	b.Action(path.Spin(Indexer, 1), 8)
	b.Wait(2 * time.Second)
	b.Action(path.Stop(Indexer), 9)
	b.Action(path.Stop(Intake), 9)
	return b.Build()
}
