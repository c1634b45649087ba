package camera

import (
	"context"
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

// fakeSource delivers n small frames, then fails
type fakeSource struct {
	n      int
	reads  int
	closes int
	empty  bool
}

func (f *fakeSource) Read(m *gocv.Mat) bool {
	if f.reads >= f.n {
		return false
	}
	f.reads++
	if f.empty {
		return true
	}
	src := gocv.Zeros(8, 12, gocv.MatTypeCV8UC3)
	defer src.Close()
	src.CopyTo(m)
	return true
}

func (f *fakeSource) Close() error {
	f.closes++
	return nil
}

func TestSession_RunUntilGrabFails(t *testing.T) {
	src := &fakeSource{n: 5}
	s := NewSession(src, DefaultConfig())
	defer s.Close()

	var seen int
	err := s.Run(context.Background(), func(frame gocv.Mat) error {
		seen++
		if frame.Cols() != 12 || frame.Rows() != 8 {
			t.Errorf("frame size: got %dx%d, want 12x8", frame.Cols(), frame.Rows())
		}
		return nil
	})

	if !errors.Is(err, ErrGrabFailed) {
		t.Fatalf("Run: got %v, want ErrGrabFailed", err)
	}
	if seen != 5 || s.Frames() != 5 {
		t.Errorf("frames: callback saw %d, session counted %d, want 5", seen, s.Frames())
	}
}

func TestSession_StopEndsCleanly(t *testing.T) {
	src := &fakeSource{n: 100}
	s := NewSession(src, DefaultConfig())
	defer s.Close()

	err := s.Run(context.Background(), func(gocv.Mat) error {
		if s.Frames() == 3 {
			return ErrStop
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Run: got %v, want nil after ErrStop", err)
	}
	if src.reads != 3 {
		t.Errorf("reads: got %d, want 3", src.reads)
	}
}

func TestSession_CallbackErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	s := NewSession(&fakeSource{n: 10}, DefaultConfig())
	defer s.Close()

	err := s.Run(context.Background(), func(gocv.Mat) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("Run: got %v, want %v", err, boom)
	}
}

func TestSession_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSession(&fakeSource{n: 100}, DefaultConfig())
	defer s.Close()

	err := s.Run(ctx, func(gocv.Mat) error {
		if s.Frames() == 2 {
			cancel()
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Run: got %v, want nil on cancel", err)
	}
	if s.Frames() != 2 {
		t.Errorf("frames: got %d, want 2", s.Frames())
	}
}

func TestSession_EmptyFrameIsGrabFailure(t *testing.T) {
	s := NewSession(&fakeSource{n: 3, empty: true}, DefaultConfig())
	defer s.Close()

	err := s.Run(context.Background(), func(gocv.Mat) error {
		t.Error("callback should not see empty frames")
		return nil
	})
	if !errors.Is(err, ErrGrabFailed) {
		t.Errorf("Run: got %v, want ErrGrabFailed", err)
	}
}

func TestSession_Mirror(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mirror = true
	s := NewSession(&fakeSource{n: 1}, cfg)
	defer s.Close()

	s.Run(context.Background(), func(frame gocv.Mat) error {
		if frame.Cols() != 12 || frame.Rows() != 8 {
			t.Errorf("mirrored frame size: got %dx%d, want 12x8", frame.Cols(), frame.Rows())
		}
		return nil
	})
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	src := &fakeSource{n: 1}
	s := NewSession(src, DefaultConfig())

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if src.closes != 1 {
		t.Errorf("source closed %d times, want 1", src.closes)
	}

	if err := s.Run(context.Background(), func(gocv.Mat) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("Run after Close: got %v, want ErrClosed", err)
	}
}

func TestSession_ID(t *testing.T) {
	a := NewSession(&fakeSource{}, DefaultConfig())
	b := NewSession(&fakeSource{}, DefaultConfig())
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("session ids should be unique: %q %q", a.ID(), b.ID())
	}
	if a.Total() != 0 {
		t.Errorf("Total on a fake source: got %d, want 0", a.Total())
	}
}
