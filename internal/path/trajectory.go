package path

import (
	"math"
	"sort"
	"time"
)

type ExitState int

const (
	ExitNone ExitState = iota
	// ExitArrived means the robot passed the target or the axis PIDs
	// timed out; the terminal heading correction runs next.
	ExitArrived
	// ExitSettled means heading converged and the segment is finished.
	ExitSettled
)

// ActionTolerance is how far ahead of the current progress an action may
// be and still fire.
const ActionTolerance = 0.025

var maxLocal = math.Nextafter(1, 0)

// Trajectory is an ordered list of segments plus the follower state. It is
// owned by the control task and is not safe for concurrent use.
type Trajectory struct {
	Start    Pose
	Segments []Segment
	Actions  []TimedAction

	// Progress is the continuous cursor: integer part is the active
	// segment, fractional part the in-segment parameter.
	Progress float64
	Waiting  bool
	Close    bool
	Exit     ExitState
	// CloseSpeed is the ceiling frozen when Close was entered.
	CloseSpeed float64

	nextAction   int
	segmentStart time.Time
	waitStart    time.Time
	started      bool
	done         bool
}

// Transition reports what Advance did on a tick.
type Transition struct {
	// Hold means the drive should output zero this tick.
	Hold     bool
	Advanced bool
	// Forced means the segment ended on its timeout, not on arrival.
	Forced bool
	From   int
}

func New(start Pose, segments []Segment, actions []TimedAction) *Trajectory {
	t := &Trajectory{
		Start:    start,
		Segments: segments,
		Actions:  append([]TimedAction(nil), actions...),
	}
	sort.SliceStable(t.Actions, func(i, j int) bool { return t.Actions[i].At < t.Actions[j].At })
	return t
}

func (t *Trajectory) Len() int { return len(t.Segments) }

// Index is the active segment, clamped to the valid range.
func (t *Trajectory) Index() int {
	if len(t.Segments) == 0 {
		return 0
	}
	i := int(math.Floor(t.Progress))
	if i < 0 {
		return 0
	}
	if i >= len(t.Segments) {
		return len(t.Segments) - 1
	}
	return i
}

func (t *Trajectory) Segment() *Segment {
	if len(t.Segments) == 0 {
		return nil
	}
	return &t.Segments[t.Index()]
}

// Local is the in-segment parameter of the cursor, in [0, 1).
func (t *Trajectory) Local() float64 {
	u := t.Progress - float64(t.Index())
	return math.Max(0, math.Min(u, maxLocal))
}

// SetLocal moves the cursor within the active segment.
func (t *Trajectory) SetLocal(u float64) {
	t.Progress = float64(t.Index()) + math.Max(0, math.Min(u, maxLocal))
}

func (t *Trajectory) Done() bool { return t.done || len(t.Segments) == 0 }

// Begin starts the timeout clock of the first segment. Advance calls it
// on the first tick if nobody has.
func (t *Trajectory) Begin(now time.Time) {
	t.started = true
	t.segmentStart = now
}

// SegmentElapsed is the time spent on the active segment.
func (t *Trajectory) SegmentElapsed(now time.Time) time.Duration {
	if !t.started {
		return 0
	}
	return now.Sub(t.segmentStart)
}

// Advance applies the sequencing rule: a segment ends when the control law
// has settled or the segment timeout elapsed, and the cursor moves on once
// the post-arrival wait has passed.
func (t *Trajectory) Advance(now time.Time) Transition {
	if t.Done() {
		return Transition{Hold: true, From: t.Index()}
	}
	if !t.started {
		t.Begin(now)
	}

	seg := t.Segment()
	tr := Transition{From: t.Index()}
	if !t.Waiting {
		timedOut := now.Sub(t.segmentStart) >= seg.Timeout
		if t.Exit == ExitSettled || timedOut {
			t.Waiting = true
			t.waitStart = now
		}
		// A zero timeout is a pure wait, never a forced exit.
		tr.Forced = timedOut && t.Exit != ExitSettled && seg.Timeout > 0
	}
	if !t.Waiting {
		return tr
	}
	if now.Sub(t.waitStart) < seg.Wait {
		tr.Hold = true
		return tr
	}

	t.next(now)
	tr.Advanced = true
	tr.Hold = t.done
	return tr
}

func (t *Trajectory) next(now time.Time) {
	i := t.Index()
	t.Waiting = false
	t.Close = false
	t.Exit = ExitNone
	t.CloseSpeed = 0
	t.segmentStart = now
	if i+1 >= len(t.Segments) {
		t.done = true
		t.Progress = float64(i) + maxLocal
		return
	}
	t.Progress = float64(i + 1)
}

// DueActions returns actions that are due at the current progress, each
// exactly once, in timestamp order. It stops at the first action that is
// not yet due.
func (t *Trajectory) DueActions() []TimedAction {
	var due []TimedAction
	for t.nextAction < len(t.Actions) {
		a := t.Actions[t.nextAction]
		if a.At > t.Progress+ActionTolerance {
			break
		}
		due = append(due, a)
		t.nextAction++
	}
	return due
}

// Pending is the number of actions not yet dispatched.
func (t *Trajectory) Pending() int { return len(t.Actions) - t.nextAction }

// Reset rewinds the follower state so the trajectory can run again.
func (t *Trajectory) Reset() {
	t.Progress = 0
	t.Waiting = false
	t.Close = false
	t.Exit = ExitNone
	t.CloseSpeed = 0
	t.nextAction = 0
	t.started = false
	t.done = false
}
