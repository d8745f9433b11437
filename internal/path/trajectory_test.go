package path

import (
	"errors"
	"time"

	"github.com/golang/geo/r2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Trajectory", func() {
	var (
		t0   time.Time
		traj *Trajectory
	)

	BeforeEach(func() {
		t0 = time.Unix(1000, 0)
		var err error
		traj, err = NewBuilder(Pose{}).
			MoveTo(Pose{Y: 24}, 0.8).
			Chain(Pose{X: 24, Y: 24, Heading: -1.57}, 0.2, 0.6).Timeout(2 * time.Second).
			Wait(500*time.Millisecond).
			Action(Spin("intake", 1), 0).
			Action(Toggle("matchload"), 1.5).
			Action(Stop("intake"), 1.0).
			Build()
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("building", func() {
		It("chains segment start points", func() {
			Expect(traj.Len()).To(Equal(3))
			Expect(Start(traj.Segments[1].Curve)).To(Equal(End(traj.Segments[0].Curve)))
			Expect(traj.Segments[1].Chained).To(BeTrue())
			Expect(traj.Segments[1].Timeout).To(Equal(2 * time.Second))
		})

		It("sorts actions by timestamp", func() {
			Expect(traj.Actions).To(HaveLen(3))
			Expect(traj.Actions[0].At).To(Equal(0.0))
			Expect(traj.Actions[1].Action.Kind).To(Equal(ActionStop))
			Expect(traj.Actions[2].Action.Kind).To(Equal(ActionToggle))
		})

		It("makes waits hold position with no timeout", func() {
			w := traj.Segments[2]
			Expect(Start(w.Curve)).To(Equal(End(w.Curve)))
			Expect(w.Timeout).To(BeZero())
			Expect(w.Wait).To(Equal(500 * time.Millisecond))
		})

		It("rejects an empty routine", func() {
			_, err := NewBuilder(Pose{}).Build()
			Expect(errors.Is(err, ErrNoSegments)).To(BeTrue())
		})

		It("rejects modifiers with no previous segment", func() {
			_, err := NewBuilder(Pose{}).Reversed().MoveTo(Pose{Y: 5}, 1).Build()
			Expect(errors.Is(err, ErrNoPrevious)).To(BeTrue())
		})

		It("rejects a chained floor above the ceiling", func() {
			_, err := NewBuilder(Pose{}).Chain(Pose{Y: 10}, 0.9, 0.5).Build()
			Expect(errors.Is(err, ErrInvalidSegment)).To(BeTrue())
			var se *SegmentError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Index).To(Equal(0))
		})

		It("rejects a floor that rises above the ceiling between its ends", func() {
			seg := DefaultSegment(NewLinear(r2.Point{}, r2.Point{Y: 10}), 0)
			seg.Chained = true
			seg.Ceiling = Constant(1)
			seg.Floor = QuadraticProfile(1, 1.4, 0.2)
			Expect(seg.Floor.Sample(0.25)).To(BeNumerically(">", seg.Ceiling.Sample(0.25)))

			err := seg.Validate()
			Expect(errors.Is(err, ErrInvalidSegment)).To(BeTrue())
		})

		It("marks reverse moves", func() {
			r, err := NewBuilder(Pose{}).MoveToReverse(Pose{Y: -12}, 0.5).ExtraWait(time.Second).Build()
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Segments[0].Reversed).To(BeTrue())
			Expect(r.Segments[0].Wait).To(Equal(time.Second))
		})
	})

	Describe("cursor", func() {
		It("clamps the index to the last segment", func() {
			traj.Progress = 7.4
			Expect(traj.Index()).To(Equal(2))
			traj.Progress = -1
			Expect(traj.Index()).To(Equal(0))
		})

		It("keeps local progress inside the active segment", func() {
			traj.Progress = 1.2
			traj.SetLocal(1.5)
			Expect(traj.Index()).To(Equal(1))
			Expect(traj.Local()).To(BeNumerically("<", 1))
			traj.SetLocal(-0.3)
			Expect(traj.Progress).To(Equal(1.0))
		})
	})

	Describe("advancing", func() {
		It("does not advance while tracking", func() {
			tr := traj.Advance(t0)
			Expect(tr.Hold).To(BeFalse())
			Expect(tr.Advanced).To(BeFalse())
			Expect(traj.Index()).To(Equal(0))
		})

		It("advances once the control law settles", func() {
			traj.Advance(t0)
			traj.Exit = ExitSettled
			tr := traj.Advance(t0.Add(time.Second))
			Expect(tr.Advanced).To(BeTrue())
			Expect(tr.Forced).To(BeFalse())
			Expect(traj.Index()).To(Equal(1))
			Expect(traj.Exit).To(Equal(ExitNone))
			Expect(traj.Close).To(BeFalse())
		})

		It("forces the advance when the timeout elapses", func() {
			traj.Advance(t0)
			tr := traj.Advance(t0.Add(DefaultTimeout))
			Expect(tr.Advanced).To(BeTrue())
			Expect(tr.Forced).To(BeTrue())
			Expect(traj.Index()).To(Equal(1))
		})

		It("holds for the post-arrival wait before finishing", func() {
			traj.Progress = 2
			traj.Begin(t0)

			tr := traj.Advance(t0)
			Expect(tr.Hold).To(BeTrue())
			Expect(tr.Forced).To(BeFalse())
			Expect(traj.Waiting).To(BeTrue())

			tr = traj.Advance(t0.Add(499 * time.Millisecond))
			Expect(tr.Hold).To(BeTrue())
			Expect(traj.Done()).To(BeFalse())

			tr = traj.Advance(t0.Add(500 * time.Millisecond))
			Expect(tr.Advanced).To(BeTrue())
			Expect(traj.Done()).To(BeTrue())
			Expect(traj.Index()).To(Equal(2))
		})

		It("never reports a wait step as forced", func() {
			w, err := NewBuilder(Pose{}).Wait(0).Wait(250 * time.Millisecond).Build()
			Expect(err).NotTo(HaveOccurred())

			forced := 0
			now := t0
			for i := 0; i < 20 && !w.Done(); i++ {
				if w.Advance(now).Forced {
					forced++
				}
				now = now.Add(25 * time.Millisecond)
			}
			Expect(w.Done()).To(BeTrue())
			Expect(forced).To(BeZero())
		})

		It("rewinds on reset", func() {
			traj.Progress = 2.5
			traj.Exit = ExitArrived
			traj.DueActions()
			traj.Reset()
			Expect(traj.Progress).To(BeZero())
			Expect(traj.Exit).To(Equal(ExitNone))
			Expect(traj.Pending()).To(Equal(3))
		})
	})

	Describe("actions", func() {
		It("dispatches due actions once in order", func() {
			due := traj.DueActions()
			Expect(due).To(HaveLen(1))
			Expect(due[0].Action.Mechanism).To(Equal("intake"))
			Expect(traj.DueActions()).To(BeEmpty())
		})

		It("fires actions within tolerance of the cursor", func() {
			traj.DueActions()
			traj.Progress = 1.0 - ActionTolerance/2
			due := traj.DueActions()
			Expect(due).To(HaveLen(1))
			Expect(due[0].Action.Kind).To(Equal(ActionStop))
		})

		It("stops at the first action that is not due", func() {
			traj.Progress = 0.5
			Expect(traj.DueActions()).To(HaveLen(1))
			Expect(traj.Pending()).To(Equal(2))
		})

		It("catches up on actions the cursor skipped", func() {
			traj.Progress = 1.7
			Expect(traj.DueActions()).To(HaveLen(3))
		})
	})
})
