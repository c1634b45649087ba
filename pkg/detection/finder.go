package detection

import (
	"image"

	"github.com/teslashibe/go-qrfinder/internal/log"
	"gocv.io/x/gocv"
)

// Finder runs the contour pipeline on BGR frames.
// A Finder holds no per-frame state and is safe for concurrent use.
type Finder struct {
	config Config
	style  Style
}

// NewFinder creates a finder with the given thresholds
func NewFinder(cfg Config) (*Finder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Finder{config: cfg, style: DefaultStyle()}, nil
}

// WithStyle returns a copy of f that draws with s
func (f *Finder) WithStyle(s Style) *Finder {
	cp := *f
	cp.style = s
	return &cp
}

// Config returns the finder thresholds
func (f *Finder) Config() Config {
	return f.config
}

// Detect locates the pattern and returns an annotated copy of frame.
// frame is left untouched; the caller owns and must close the copy.
func (f *Finder) Detect(frame gocv.Mat) (gocv.Mat, Result) {
	out := frame.Clone()

	res, err := f.Locate(frame)
	if err != nil {
		return out, res
	}

	Annotate(&out, res, f.style)
	return out, res
}

// Locate runs the pipeline without drawing
func (f *Finder) Locate(frame gocv.Mat) (Result, error) {
	if frame.Empty() {
		return Result{}, ErrEmptyFrame
	}

	cands := f.Candidates(frame)
	RankByArea(cands)
	res := Select(cands, f.config.MinCandidates)

	if res.Detected {
		log.Debug("finder pattern located", "candidates", res.Candidates, "outer", res.Outer)
	}

	return res, nil
}

// Candidates returns the near-square quadrilaterals in frame, unsorted
func (f *Finder) Candidates(frame gocv.Mat) []Candidate {
	edges := f.edgeMap(frame)
	defer edges.Close()

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var cands []Candidate
	for i := 0; i < contours.Size(); i++ {
		if c, ok := f.quad(contours.At(i)); ok {
			cands = append(cands, c)
		}
	}

	return cands
}

// edgeMap converts frame to a binary Canny edge image
func (f *Finder) edgeMap(frame gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() == 1 {
		frame.CopyTo(&gray)
	} else {
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	k := f.config.BlurKernel
	gocv.GaussianBlur(gray, &blurred, image.Pt(k, k), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	gocv.Canny(blurred, &edges, f.config.CannyLow, f.config.CannyHigh)

	return edges
}

// quad approximates a contour and keeps it only if it is a near-square quadrilateral
func (f *Finder) quad(contour gocv.PointVector) (Candidate, bool) {
	perimeter := gocv.ArcLength(contour, true)
	approx := gocv.ApproxPolyDP(contour, f.config.ApproxEpsilon*perimeter, true)
	defer approx.Close()

	if approx.Size() != 4 {
		return Candidate{}, false
	}

	box := gocv.BoundingRect(approx)
	if !f.config.accepts(box) {
		return Candidate{}, false
	}

	return Candidate{
		Points: approx.ToPoints(),
		Box:    box,
		Area:   gocv.ContourArea(approx),
	}, true
}

// Annotate draws r onto dst. Nothing is drawn for a miss.
func Annotate(dst *gocv.Mat, r Result, s Style) {
	if !r.Detected {
		return
	}

	gocv.Rectangle(dst, r.Outer, s.Outer, s.Thickness)
	for _, box := range r.Finders {
		gocv.Rectangle(dst, box, s.Finder, s.Thickness)
	}
}
