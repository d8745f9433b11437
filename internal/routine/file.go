package routine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/geo/r2"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
)

var ErrInvalidStep = errors.New("routine: invalid step")

// Point is a pose in a routine file. Heading is in degrees.
type Point struct {
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Heading float64 `yaml:"heading"`
}

func (p Point) Pose() path.Pose {
	return pose(p.X, p.Y, p.Heading)
}

type CurveStep struct {
	C1 [2]float64 `yaml:"c1"`
	C2 [2]float64 `yaml:"c2"`
	To Point      `yaml:"to"`
}

// Step is one line of a routine file. Exactly one of Move, Reverse,
// Chain, Curve, Wait or Action is set; the other fields modify it.
type Step struct {
	Move    *Point        `yaml:"move,omitempty"`
	Reverse *Point        `yaml:"reverse,omitempty"`
	Chain   *Point        `yaml:"chain,omitempty"`
	Curve   *CurveStep    `yaml:"curve,omitempty"`
	Wait    time.Duration `yaml:"wait,omitempty"`
	Action  string        `yaml:"action,omitempty"`

	Speed     float64       `yaml:"speed,omitempty"`
	Min       float64       `yaml:"min,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
	ExtraWait time.Duration `yaml:"extra_wait,omitempty"`

	Mechanism string   `yaml:"mechanism,omitempty"`
	Power     float64  `yaml:"power,omitempty"`
	Pose      *Point   `yaml:"pose,omitempty"`
	At        *float64 `yaml:"at,omitempty"`
}

type File struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Start       Point  `yaml:"start"`
	Steps       []Step `yaml:"steps"`
}

func LoadFile(p string) (*File, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	return ParseFile(data, strings.TrimSuffix(filepath.Base(p), filepath.Ext(p)))
}

// ParseFile decodes a routine. name is used when the file has none.
func ParseFile(data []byte, name string) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Name == "" {
		f.Name = name
	}
	return &f, nil
}

func (s Step) kinds() []string {
	var k []string
	if s.Move != nil {
		k = append(k, "move")
	}
	if s.Reverse != nil {
		k = append(k, "reverse")
	}
	if s.Chain != nil {
		k = append(k, "chain")
	}
	if s.Curve != nil {
		k = append(k, "curve")
	}
	if s.Wait > 0 {
		k = append(k, "wait")
	}
	if s.Action != "" {
		k = append(k, "action")
	}
	return k
}

func (s Step) speed() float64 {
	if s.Speed == 0 {
		return 1
	}
	return s.Speed
}

func (s Step) action() (path.Action, error) {
	kind, err := path.ParseActionKind(s.Action)
	if err != nil {
		return path.Action{}, err
	}
	a := path.Action{Kind: kind, Mechanism: s.Mechanism, Power: s.Power}
	switch kind {
	case path.ActionResetPose:
		if s.Pose == nil {
			return a, errors.New("reset_pose needs a pose")
		}
		a.Pose = s.Pose.Pose()
	default:
		if s.Mechanism == "" {
			return a, fmt.Errorf("%s needs a mechanism", kind)
		}
	}
	return a, nil
}

// Trajectory compiles the file with the path builder. Every bad step is
// reported, not just the first.
func (f *File) Trajectory() (*path.Trajectory, error) {
	b := path.NewBuilder(f.Start.Pose())

	var errs error
	for i, s := range f.Steps {
		kinds := s.kinds()
		if len(kinds) != 1 {
			errs = multierr.Append(errs, fmt.Errorf("%w %d: want one of move, reverse, chain, curve, wait, action; got %v", ErrInvalidStep, i, kinds))
			continue
		}

		switch kinds[0] {
		case "move":
			b.MoveTo(s.Move.Pose(), s.speed())
		case "reverse":
			b.MoveToReverse(s.Reverse.Pose(), s.speed())
		case "chain":
			b.Chain(s.Chain.Pose(), s.Min, s.speed())
		case "curve":
			c := s.Curve
			b.CurveTo(r2.Point{X: c.C1[0], Y: c.C1[1]}, r2.Point{X: c.C2[0], Y: c.C2[1]}, c.To.Pose(), s.speed())
		case "wait":
			b.Wait(s.Wait)
		case "action":
			a, err := s.action()
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%w %d: %v", ErrInvalidStep, i, err))
				continue
			}
			if s.At != nil {
				b.Action(a, *s.At)
			} else {
				b.ActionHere(a)
			}
			continue
		}

		if s.Timeout > 0 {
			b.Timeout(s.Timeout)
		}
		if s.ExtraWait > 0 {
			b.ExtraWait(s.ExtraWait)
		}
	}
	if errs != nil {
		return nil, fmt.Errorf("routine %s: %w", f.Name, errs)
	}
	return b.Build()
}

// Routine wraps the file for a Registry.
func (f *File) Routine() Routine {
	return Routine{Name: f.Name, Description: f.Description, Build: f.Trajectory}
}

// LoadDir registers every .yaml routine in dir, replacing built-ins of the
// same name.
func (r *Registry) LoadDir(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return err
	}
	var errs error
	for _, m := range matches {
		f, err := LoadFile(m)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", m, err))
			continue
		}
		r.Register(f.Routine())
	}
	return errs
}
