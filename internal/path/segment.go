package path

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
)

const (
	DefaultTimeout          = 5 * time.Second
	DefaultHeadingTolerance = 0.05
	DefaultSpeed            = 1.0
)

// Segment is one curve plus everything needed to follow it.
type Segment struct {
	Curve Curve
	// Ceiling caps commanded speed along the segment.
	Ceiling SpeedProfile
	// Floor is the minimum commanded speed; only used when Chained.
	Floor SpeedProfile

	EndHeading float64
	// HeadingTolerance decides the terminal turn is done; only used when
	// Chained.
	HeadingTolerance float64

	Reversed bool
	Timeout  time.Duration
	Wait     time.Duration
	Chained  bool
}

func DefaultSegment(c Curve, endHeading float64) Segment {
	return Segment{
		Curve:            c,
		Ceiling:          Constant(DefaultSpeed),
		EndHeading:       endHeading,
		HeadingTolerance: DefaultHeadingTolerance,
		Timeout:          DefaultTimeout,
	}
}

func (s Segment) Validate() error {
	var err error
	if s.Curve == nil {
		err = multierr.Append(err, fmt.Errorf("%w: missing curve", ErrInvalidSegment))
	}
	if s.Timeout < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: negative timeout %v", ErrInvalidSegment, s.Timeout))
	}
	if s.Wait < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: negative wait %v", ErrInvalidSegment, s.Wait))
	}
	err = multierr.Append(err, s.Ceiling.Validate())
	if s.Chained {
		err = multierr.Append(err, s.Floor.Validate())
		if !s.Floor.Below(s.Ceiling) {
			err = multierr.Append(err, fmt.Errorf("%w: floor %+v exceeds ceiling %+v", ErrInvalidSegment, s.Floor, s.Ceiling))
		}
	}
	return err
}

// End is the pose the segment drives to.
func (s Segment) End() Pose {
	p := End(s.Curve)
	return Pose{X: p.X, Y: p.Y, Heading: s.EndHeading}
}
