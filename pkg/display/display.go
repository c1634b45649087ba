// Package display shows annotated frames and relays the quit key
package display

import "gocv.io/x/gocv"

// DefaultTitle is the window title used by the watch loop
const DefaultTitle = "QR Code Reader"

// Keys that end the loop
const (
	KeyQuit   = 'q'
	KeyEscape = 27
)

// Sink consumes annotated frames
type Sink interface {
	// Show displays frame and reports whether the user asked to quit
	Show(frame gocv.Mat) (quit bool)

	// Close releases resources
	Close() error
}

// IsQuitKey reports whether a WaitKey result should end the loop.
// Only the low byte is significant; -1 means no key was pressed.
func IsQuitKey(key int) bool {
	if key < 0 {
		return false
	}
	k := key & 0xFF
	return k == KeyQuit || k == KeyEscape
}

// Window is an OpenCV highgui window.
// It must be driven from the main goroutine.
type Window struct {
	win *gocv.Window
}

// NewWindow opens a window with the given title
func NewWindow(title string) *Window {
	if title == "" {
		title = DefaultTitle
	}
	return &Window{win: gocv.NewWindow(title)}
}

// Show draws frame and polls the keyboard for 1ms
func (w *Window) Show(frame gocv.Mat) bool {
	w.win.IMShow(frame)
	return IsQuitKey(w.win.WaitKey(1))
}

// Close destroys the window
func (w *Window) Close() error {
	return w.win.Close()
}

// Headless discards frames. Used when no display is attached.
type Headless struct{}

// Show never requests quit
func (Headless) Show(gocv.Mat) bool { return false }

// Close does nothing
func (Headless) Close() error { return nil }
