package routine

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/geo/r2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
)

func TestRegistryBuildsEveryRoutine(t *testing.T) {
	r := NewRegistry()
	want := []string{"left-elims", "left-qual", "none", "right-elims", "right-qual", "skills", "solo"}
	if diff := cmp.Diff(want, r.List()); diff != "" {
		t.Fatalf("List() mismatch (-want +got):\n%s", diff)
	}

	for _, name := range r.List() {
		t.Run(name, func(t *testing.T) {
			traj, err := r.Build(name)
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			if traj.Len() == 0 {
				t.Fatal("no segments")
			}
			for _, a := range traj.Actions {
				if a.At < 0 || a.At > float64(traj.Len()) {
					t.Errorf("action %s at %.1f outside [0, %d]", a.Action, a.At, traj.Len())
				}
			}
		})
	}
}

func TestRegistryUnknown(t *testing.T) {
	if _, err := NewRegistry().Build("auton-of-the-year"); !errors.Is(err, ErrUnknownRoutine) {
		t.Errorf("err = %v, want ErrUnknownRoutine", err)
	}
}

func TestBuildReturnsFreshTrajectories(t *testing.T) {
	r := NewRegistry()
	a, _ := r.Build("left-qual")
	b, _ := r.Build("left-qual")
	a.Progress = 3
	if b.Progress != 0 {
		t.Error("routines share trajectory state")
	}
}

func TestRightSideMirrorsLeft(t *testing.T) {
	r := NewRegistry()
	for _, pair := range [][2]string{{"left-qual", "right-qual"}, {"left-elims", "right-elims"}} {
		left, err := r.Build(pair[0])
		if err != nil {
			t.Fatal(err)
		}
		right, err := r.Build(pair[1])
		if err != nil {
			t.Fatal(err)
		}
		if left.Len() != right.Len() {
			t.Fatalf("%s has %d segments, %s has %d", pair[0], left.Len(), pair[1], right.Len())
		}
		for i := range left.Segments {
			l, rt := left.Segments[i].End(), right.Segments[i].End()
			if math.Abs(l.X-rt.X) > 1e-9 || math.Abs(l.Y+rt.Y) > 1e-9 {
				t.Errorf("segment %d: left ends at (%.1f, %.1f), right at (%.1f, %.1f)", i, l.X, l.Y, rt.X, rt.Y)
			}
			// Mirrored headings point the same way along x.
			lf, rf := path.Forward(l.Heading), path.Forward(rt.Heading)
			if math.Abs(lf.X-rf.X) > 1e-9 || math.Abs(lf.Y+rf.Y) > 1e-9 {
				t.Errorf("segment %d: headings %.2f and %.2f are not mirrored", i, l.Heading, rt.Heading)
			}
		}
		if diff := cmp.Diff(left.Actions, right.Actions); diff != "" {
			t.Errorf("%s actions differ from %s (-left +right):\n%s", pair[0], pair[1], diff)
		}
	}
}

const sampleFile = `
description: score the near long goal
start: {x: 0, y: 0, heading: 0}
steps:
  - action: spin
    mechanism: intake
    power: 1
  - move: {x: -48, y: 47, heading: 90}
  - action: toggle
    mechanism: matchload
    at: 1
  - move: {x: -56, y: 47, heading: 90}
    speed: 0.75
    timeout: 2s
  - wait: 1s
  - reverse: {x: -30, y: 47, heading: 90}
  - chain: {x: -30, y: 20, heading: 180}
    min: 0.3
  - curve:
      c1: [-30, 0]
      c2: [-20, -10]
      to: {x: -10, y: -10, heading: -90}
    speed: 0.8
    extra_wait: 250ms
  - action: reset_pose
    pose: {x: -10, y: -10, heading: -90}
`

func TestFileMatchesBuilder(t *testing.T) {
	f, err := ParseFile([]byte(sampleFile), "long-goal")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Name != "long-goal" {
		t.Errorf("name = %q, want the fallback", f.Name)
	}

	got, err := f.Trajectory()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	want, err := path.NewBuilder(pose(0, 0, 0)).
		ActionHere(path.Spin("intake", 1)).
		MoveTo(pose(-48, 47, 90), 1).
		Action(path.Toggle("matchload"), 1).
		MoveTo(pose(-56, 47, 90), 0.75).Timeout(2*time.Second).
		Wait(time.Second).
		MoveToReverse(pose(-30, 47, 90), 1).
		Chain(pose(-30, 20, 180), 0.3, 1).
		CurveTo(r2.Point{X: -30, Y: 0}, r2.Point{X: -20, Y: -10}, pose(-10, -10, -90), 0.8).ExtraWait(250*time.Millisecond).
		ActionHere(path.ResetPose(pose(-10, -10, -90))).
		Build()
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(want.Segments, got.Segments); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.Actions, got.Actions, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("actions mismatch (-want +got):\n%s", diff)
	}
}

func TestFileReportsEveryBadStep(t *testing.T) {
	f, err := ParseFile([]byte(`
steps:
  - move: {x: 0, y: 10}
    wait: 1s
  - action: spin
  - action: launch
    mechanism: intake
  - move: {x: 0, y: 20}
`), "bad")
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.Trajectory()
	if !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("err = %v, want ErrInvalidStep", err)
	}
	for _, want := range []string{"step 0", "step 1", "step 2"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadDirOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "none.yaml"), []byte("steps:\n  - move: {x: 0, y: 30}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "practice.yaml"), []byte("name: practice\nsteps:\n  - wait: 500ms\n"), 0644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	if err := r.LoadDir(dir); err != nil {
		t.Fatal(err)
	}

	traj, err := r.Build("none")
	if err != nil {
		t.Fatal(err)
	}
	if end := traj.Segments[0].End(); end.Y != 30 {
		t.Errorf("none ends at y=%.0f, want the file's 30", end.Y)
	}
	if _, err := r.Get("practice"); err != nil {
		t.Errorf("practice not registered: %v", err)
	}
}
