package path

import "fmt"

type ActionKind int

const (
	// ActionToggle flips a pneumatic actuator.
	ActionToggle ActionKind = iota
	// ActionSpin drives a mechanism at a fractional power.
	ActionSpin
	ActionStop
	// ActionResetPose overwrites the pose estimate mid-routine.
	ActionResetPose
)

var actionNames = map[ActionKind]string{
	ActionToggle:    "toggle",
	ActionSpin:      "spin",
	ActionStop:      "stop",
	ActionResetPose: "reset_pose",
}

func (k ActionKind) String() string {
	if n, ok := actionNames[k]; ok {
		return n
	}
	return fmt.Sprintf("action(%d)", int(k))
}

// ParseActionKind is the inverse of ActionKind.String.
func ParseActionKind(s string) (ActionKind, error) {
	for k, n := range actionNames {
		if n == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("path: unknown action kind %q", s)
}

type Action struct {
	Kind      ActionKind
	Mechanism string
	Power     float64
	Pose      Pose
}

func Toggle(mechanism string) Action {
	return Action{Kind: ActionToggle, Mechanism: mechanism}
}

func Spin(mechanism string, power float64) Action {
	return Action{Kind: ActionSpin, Mechanism: mechanism, Power: power}
}

func Stop(mechanism string) Action {
	return Action{Kind: ActionStop, Mechanism: mechanism}
}

func ResetPose(p Pose) Action {
	return Action{Kind: ActionResetPose, Pose: p}
}

func (a Action) String() string {
	switch a.Kind {
	case ActionSpin:
		return fmt.Sprintf("spin %s %.2f", a.Mechanism, a.Power)
	case ActionResetPose:
		return fmt.Sprintf("reset_pose (%.1f, %.1f, %.1f°)", a.Pose.X, a.Pose.Y, ToDeg(a.Pose.Heading))
	default:
		return fmt.Sprintf("%s %s", a.Kind, a.Mechanism)
	}
}

// TimedAction is an action tagged with the trajectory progress at which it
// fires.
type TimedAction struct {
	Action Action
	At     float64
}
