// Package detection locates QR-code-like finder patterns in video frames
package detection

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyFrame is returned when a frame has no pixels
var ErrEmptyFrame = errors.New("empty frame")

// Candidate is a near-square quadrilateral that survived filtering
type Candidate struct {
	Points []image.Point   // Polygon vertices (always 4)
	Box    image.Rectangle // Axis-aligned bounding box
	Area   float64         // Enclosed polygon area
}

// Result describes what the finder saw in one frame
type Result struct {
	Detected   bool              `json:"detected"`
	Outer      image.Rectangle   `json:"outer"`      // Union of the three finder boxes
	Finders    []image.Rectangle `json:"finders"`    // Largest three candidates, by area
	Candidates int               `json:"candidates"` // Candidates that passed filtering
}

// Event is a detection stamped for broadcast
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Frame     int       `json:"frame"`
	Time      time.Time `json:"time"`
	Result    Result    `json:"result"`
}

// NewEvent stamps a result with a fresh id
func NewEvent(sessionID string, frame int, r Result) Event {
	return Event{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Frame:     frame,
		Time:      time.Now(),
		Result:    r,
	}
}

// Config holds the finder thresholds
type Config struct {
	BlurKernel    int     `yaml:"blur_kernel" json:"blur_kernel"`       // Gaussian kernel size (odd)
	CannyLow      float32 `yaml:"canny_low" json:"canny_low"`           // Hysteresis low threshold
	CannyHigh     float32 `yaml:"canny_high" json:"canny_high"`         // Hysteresis high threshold
	ApproxEpsilon float64 `yaml:"approx_epsilon" json:"approx_epsilon"` // Fraction of perimeter
	MinAspect     float64 `yaml:"min_aspect" json:"min_aspect"`
	MaxAspect     float64 `yaml:"max_aspect" json:"max_aspect"`
	MinCandidates int     `yaml:"min_candidates" json:"min_candidates"`
}

// DefaultConfig returns the stock finder thresholds
func DefaultConfig() Config {
	return Config{
		BlurKernel:    5,
		CannyLow:      50,
		CannyHigh:     150,
		ApproxEpsilon: 0.04,
		MinAspect:     0.8,
		MaxAspect:     1.2,
		MinCandidates: 3,
	}
}

// Validate reports every out-of-range field
func (c Config) Validate() error {
	var errs []error

	if c.BlurKernel <= 0 || c.BlurKernel%2 == 0 {
		errs = append(errs, fmt.Errorf("blur_kernel must be a positive odd number, got %d", c.BlurKernel))
	}
	if c.CannyLow < 0 || c.CannyHigh <= c.CannyLow {
		errs = append(errs, fmt.Errorf("canny thresholds must satisfy 0 <= low < high, got %v/%v", c.CannyLow, c.CannyHigh))
	}
	if c.ApproxEpsilon <= 0 || c.ApproxEpsilon >= 1 {
		errs = append(errs, fmt.Errorf("approx_epsilon must be in (0, 1), got %v", c.ApproxEpsilon))
	}
	if c.MinAspect <= 0 || c.MaxAspect < c.MinAspect {
		errs = append(errs, fmt.Errorf("aspect bounds must satisfy 0 < min <= max, got %v/%v", c.MinAspect, c.MaxAspect))
	}
	if c.MinCandidates < 1 {
		errs = append(errs, fmt.Errorf("min_candidates must be at least 1, got %d", c.MinCandidates))
	}

	return errors.Join(errs...)
}

// Style controls how a result is drawn
type Style struct {
	Outer     color.RGBA // Box around the whole pattern
	Finder    color.RGBA // Box around each finder square
	Thickness int
}

// DefaultStyle draws the outer box red and the finders green
func DefaultStyle() Style {
	return Style{
		Outer:     color.RGBA{R: 255, A: 0},
		Finder:    color.RGBA{G: 255, A: 0},
		Thickness: 2,
	}
}

// AspectRatio returns width/height of r.
// ok is false for a zero-height box.
func AspectRatio(r image.Rectangle) (ratio float64, ok bool) {
	if r.Dy() == 0 {
		return 0, false
	}
	return float64(r.Dx()) / float64(r.Dy()), true
}

// accepts reports whether a 4-vertex polygon with the given box is near-square
func (c Config) accepts(box image.Rectangle) bool {
	ratio, ok := AspectRatio(box)
	if !ok {
		return false
	}
	return ratio >= c.MinAspect && ratio <= c.MaxAspect
}

// RankByArea sorts candidates largest first.
// Equal areas keep their contour order.
func RankByArea(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Area > cands[j].Area
	})
}

// UnionBounds returns the bounding box of every point in cands
func UnionBounds(cands []Candidate) image.Rectangle {
	var out image.Rectangle
	for i, c := range cands {
		if i == 0 {
			out = c.Box
			continue
		}
		out = out.Union(c.Box)
	}
	return out
}

// Select turns ranked candidates into a Result.
// cands must already be sorted by RankByArea.
func Select(cands []Candidate, minCandidates int) Result {
	res := Result{Candidates: len(cands)}
	if len(cands) < minCandidates || len(cands) < 3 {
		return res
	}

	top := cands[:3]
	res.Detected = true
	res.Outer = UnionBounds(top)
	res.Finders = make([]image.Rectangle, 0, len(top))
	for _, c := range top {
		res.Finders = append(res.Finders, c.Box)
	}

	return res
}
