package path

import "fmt"

// SpeedProfile is a quadratic Bezier envelope over the in-segment
// parameter. A linear profile places the control value at the midpoint.
type SpeedProfile struct {
	Start   float64 `yaml:"start" json:"start"`
	Control float64 `yaml:"control" json:"control"`
	End     float64 `yaml:"end" json:"end"`
}

func LinearProfile(start, end float64) SpeedProfile {
	return SpeedProfile{Start: start, Control: (start + end) / 2, End: end}
}

func QuadraticProfile(start, control, end float64) SpeedProfile {
	return SpeedProfile{Start: start, Control: control, End: end}
}

func Constant(v float64) SpeedProfile {
	return SpeedProfile{Start: v, Control: v, End: v}
}

func (s SpeedProfile) Sample(t float64) float64 {
	return t*t*(s.End-2*s.Control+s.Start) + 2*t*(s.Control-s.Start) + s.Start
}

func (s SpeedProfile) IsZero() bool {
	return s.Start == 0 && s.Control == 0 && s.End == 0
}

func (s SpeedProfile) Validate() error {
	if s.Start < 0 || s.Control < 0 || s.End < 0 {
		return fmt.Errorf("%w: speed profile %+v has negative values", ErrInvalidSegment, s)
	}
	return nil
}

// Below reports whether s never exceeds other on [0, 1]. The difference
// of two profiles is itself a quadratic Bezier, so its maximum is at an
// end or at the single interior extremum.
func (s SpeedProfile) Below(other SpeedProfile) bool {
	d := SpeedProfile{
		Start:   s.Start - other.Start,
		Control: s.Control - other.Control,
		End:     s.End - other.End,
	}
	const tol = 1e-9
	if d.Start > tol || d.End > tol {
		return false
	}
	if den := d.Start - 2*d.Control + d.End; den != 0 {
		if t := (d.Start - d.Control) / den; t > 0 && t < 1 && d.Sample(t) > tol {
			return false
		}
	}
	return true
}
