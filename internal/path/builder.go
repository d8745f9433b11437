package path

import (
	"fmt"
	"time"

	"github.com/golang/geo/r2"
	"go.uber.org/multierr"
)

// Builder accumulates segments and actions for an autonomous routine. Each
// new segment starts where the previous one ended.
type Builder struct {
	start    Pose
	cursor   Pose
	segments []Segment
	actions  []TimedAction
	err      error
}

func NewBuilder(start Pose) *Builder {
	return &Builder{start: start, cursor: start}
}

func (b *Builder) push(s Segment, end Pose) *Builder {
	b.segments = append(b.segments, s)
	b.cursor = end
	return b
}

func (b *Builder) last(op string) *Segment {
	if len(b.segments) == 0 {
		b.err = multierr.Append(b.err, fmt.Errorf("%s: %w", op, ErrNoPrevious))
		return nil
	}
	return &b.segments[len(b.segments)-1]
}

// MoveTo drives straight to p and turns to p.Heading.
func (b *Builder) MoveTo(p Pose, speed float64) *Builder {
	s := DefaultSegment(NewLinear(b.cursor.Position(), p.Position()), p.Heading)
	s.Ceiling = Constant(speed)
	return b.push(s, p)
}

func (b *Builder) MoveToReverse(p Pose, speed float64) *Builder {
	return b.MoveTo(p, speed).Reversed()
}

// Chain drives to p without stopping, keeping speed between minSpeed and
// maxSpeed.
func (b *Builder) Chain(p Pose, minSpeed, maxSpeed float64) *Builder {
	s := DefaultSegment(NewLinear(b.cursor.Position(), p.Position()), p.Heading)
	s.Ceiling = Constant(maxSpeed)
	s.Floor = Constant(minSpeed)
	s.Chained = true
	return b.push(s, p)
}

// CurveTo follows a cubic Bezier through control points c1 and c2.
func (b *Builder) CurveTo(c1, c2 r2.Point, p Pose, speed float64) *Builder {
	s := DefaultSegment(NewCubicBezier(b.cursor.Position(), c1, c2, p.Position()), p.Heading)
	s.Ceiling = Constant(speed)
	return b.push(s, p)
}

// Follow appends an arbitrary curve, such as one fitted to a recording.
func (b *Builder) Follow(c Curve, heading, speed float64) *Builder {
	s := DefaultSegment(c, heading)
	s.Ceiling = Constant(speed)
	end := End(c)
	return b.push(s, Pose{X: end.X, Y: end.Y, Heading: heading})
}

// Segment appends s as given.
func (b *Builder) Segment(s Segment) *Builder {
	end := s.End()
	if s.Curve == nil {
		end = b.cursor
	}
	return b.push(s, end)
}

// Wait holds the current pose for d.
func (b *Builder) Wait(d time.Duration) *Builder {
	s := DefaultSegment(NewLinear(b.cursor.Position(), b.cursor.Position()), b.cursor.Heading)
	s.Timeout = 0
	s.Wait = d
	return b.push(s, b.cursor)
}

func (b *Builder) Reversed() *Builder {
	if s := b.last("reversed"); s != nil {
		s.Reversed = true
	}
	return b
}

func (b *Builder) Timeout(d time.Duration) *Builder {
	if s := b.last("timeout"); s != nil {
		s.Timeout = d
	}
	return b
}

func (b *Builder) ExtraWait(d time.Duration) *Builder {
	if s := b.last("extra wait"); s != nil {
		s.Wait += d
	}
	return b
}

// Speed replaces the ceiling of the previous segment.
func (b *Builder) Speed(p SpeedProfile) *Builder {
	if s := b.last("speed"); s != nil {
		s.Ceiling = p
	}
	return b
}

// Action schedules a at trajectory progress at.
func (b *Builder) Action(a Action, at float64) *Builder {
	b.actions = append(b.actions, TimedAction{Action: a, At: at})
	return b
}

// ActionHere schedules a at the start of the next segment.
func (b *Builder) ActionHere(a Action) *Builder {
	return b.Action(a, float64(len(b.segments)))
}

func (b *Builder) Build() (*Trajectory, error) {
	err := b.err
	if len(b.segments) == 0 {
		err = multierr.Append(err, ErrNoSegments)
	}
	for i, s := range b.segments {
		if serr := s.Validate(); serr != nil {
			err = multierr.Append(err, &SegmentError{Index: i, Wrapped: serr})
		}
	}
	if err != nil {
		return nil, err
	}

	segments := make([]Segment, len(b.segments))
	copy(segments, b.segments)
	return New(b.start, segments, b.actions), nil
}
