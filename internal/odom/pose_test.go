package odom

import (
	"sync"
	"testing"
)

func TestSharedConcurrentReaders(t *testing.T) {
	s := NewShared(Pose{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.set(Pose{X: float64(i), Y: float64(i)})
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				p, _ := s.Snapshot()
				if p.X != p.Y {
					t.Errorf("torn read: %+v", p)
					return
				}
			}
		}()
	}
	wg.Wait()

	if s.Version() != 1000 {
		t.Errorf("expected version 1000, got %d", s.Version())
	}
}

func TestRequestFlags(t *testing.T) {
	s := NewShared(Pose{})
	if _, ok := s.Snapshot(); !ok {
		t.Fatal("fresh pose should be usable")
	}

	s.RequestCalibrate(Pose{X: 4})
	if !s.Calibrating() {
		t.Error("expected calibrating after request")
	}

	r := s.take()
	if !r.calibrate || r.reset {
		t.Errorf("calibration should be handed over before the reset, got %+v", r)
	}
	s.finishCalibration()

	r = s.take()
	if !r.reset || r.pose.X != 4 {
		t.Errorf("expected pending reset to (4, 0), got %+v", r)
	}
	if _, ok := s.Snapshot(); !ok {
		t.Error("expected usable pose once requests are drained")
	}
}
