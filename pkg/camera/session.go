package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/teslashibe/go-qrfinder/internal/log"
	"gocv.io/x/gocv"
)

var (
	// ErrGrabFailed means the source stopped delivering frames
	ErrGrabFailed = errors.New("failed to grab frame")

	// ErrStop may be returned by a FrameFunc to end Run cleanly
	ErrStop = errors.New("stop requested")

	// ErrClosed is returned by Run on a closed session
	ErrClosed = errors.New("session closed")
)

// Source is anything frames can be read from.
// *gocv.VideoCapture satisfies it.
type Source interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// FrameFunc receives each captured frame.
// The frame is reused by the next read; Clone it to keep it.
type FrameFunc func(frame gocv.Mat) error

// Session owns a capture source from Open until Close
type Session struct {
	id     string
	config Config
	src    Source

	frames atomic.Int64

	mu     sync.Mutex
	closed bool
}

// Open acquires the configured device or file.
// The caller must Close the session on every exit path.
func Open(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("camera config: %w", err)
	}

	var (
		vc  *gocv.VideoCapture
		err error
	)
	if cfg.File != "" {
		vc, err = gocv.VideoCaptureFile(cfg.File)
	} else {
		vc, err = gocv.VideoCaptureDevice(cfg.Device)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Source(), err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open %s: device not available", cfg.Source())
	}

	if cfg.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.FPS > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))
	}

	s := NewSession(vc, cfg)
	log.Info("capture opened", "session", s.id, "source", cfg.Source())
	return s, nil
}

// NewSession wraps an already-open source
func NewSession(src Source, cfg Config) *Session {
	return &Session{
		id:     uuid.NewString(),
		config: cfg,
		src:    src,
	}
}

// ID returns the session's unique id
func (s *Session) ID() string {
	return s.id
}

// Frames returns how many frames have been delivered so far
func (s *Session) Frames() int {
	return int(s.frames.Load())
}

// Total returns the frame count reported by a file source, or 0 if unknown
func (s *Session) Total() int {
	vc, ok := s.src.(*gocv.VideoCapture)
	if !ok || s.config.File == "" {
		return 0
	}
	n := int(vc.Get(gocv.VideoCaptureFrameCount))
	if n < 0 {
		return 0
	}
	return n
}

// Run reads frames and hands each to fn until the source fails,
// fn returns an error, or ctx is cancelled.
// A read failure returns ErrGrabFailed; ErrStop and cancellation return nil.
func (s *Session) Run(ctx context.Context, fn FrameFunc) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	frame := gocv.NewMat()
	defer frame.Close()

	mirrored := gocv.NewMat()
	defer mirrored.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if ok := s.src.Read(&frame); !ok || frame.Empty() {
			return ErrGrabFailed
		}
		s.frames.Add(1)

		current := frame
		if s.config.Mirror {
			gocv.Flip(frame, &mirrored, 1)
			current = mirrored
		}

		if err := fn(current); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
}

// Close releases the source. Calling it more than once is safe.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	log.Debug("capture released", "session", s.id, "frames", s.Frames())
	return s.src.Close()
}
