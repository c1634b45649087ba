package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/teslashibe/go-qrfinder/internal/log"
	"github.com/teslashibe/go-qrfinder/pkg/camera"
	"github.com/teslashibe/go-qrfinder/pkg/detection"
	"gocv.io/x/gocv"
)

// scanSummary is the per-file report printed by scan
type scanSummary struct {
	File       string `json:"file"`
	Frames     int    `json:"frames"`
	Sampled    int    `json:"sampled"`
	Detections int    `json:"detections"`
	FirstFrame int    `json:"first_frame"` // -1 if never detected
}

// tally accumulates per-frame results into a summary
func (s *scanSummary) tally(frame int, res detection.Result) {
	s.Sampled++
	if !res.Detected {
		return
	}
	s.Detections++
	if s.FirstFrame < 0 {
		s.FirstFrame = frame
	}
}

var scanOpts struct {
	NthFrame int
	JSON     bool
	Quiet    bool
}

var scanCmd = &cobra.Command{
	Use:   "scan <video>...",
	Short: "Run the finder over recorded video files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().IntVarP(&scanOpts.NthFrame, "nth-frame", "n", 1, "Only examine every nth frame")
	scanCmd.Flags().BoolVar(&scanOpts.JSON, "json", false, "Print summaries as JSON lines")
	scanCmd.Flags().BoolVarP(&scanOpts.Quiet, "quiet", "q", false, "Hide the progress bar")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanOpts.NthFrame < 1 {
		return fmt.Errorf("nth-frame must be at least 1, got %d", scanOpts.NthFrame)
	}

	finder, err := detection.NewFinder(cfg.Detector)
	if err != nil {
		return err
	}

	var errs []error
	for _, path := range args {
		sum, err := scanFile(cmd, finder, path)
		if err != nil {
			log.Error("scan failed", "file", path, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		printSummary(sum)
	}

	return errors.Join(errs...)
}

func scanFile(cmd *cobra.Command, finder *detection.Finder, path string) (scanSummary, error) {
	sum := scanSummary{File: path, FirstFrame: -1}

	camCfg := cfg.Camera
	camCfg.File = path
	sess, err := camera.Open(camCfg)
	if err != nil {
		return sum, err
	}
	defer sess.Close()

	total := sess.Total()
	if total <= 0 {
		total = -1 // spinner
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Scanning "+path),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetVisibility(!scanOpts.Quiet),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish()

	err = sess.Run(cmd.Context(), func(frame gocv.Mat) error {
		bar.Add(1)

		n := sess.Frames()
		if (n-1)%scanOpts.NthFrame != 0 {
			return nil
		}

		res, err := finder.Locate(frame)
		if err != nil {
			return err
		}
		if res.Detected {
			log.Debug("QR code detected", "file", path, "frame", n, "outer", res.Outer)
		}
		sum.tally(n, res)
		return nil
	})
	sum.Frames = sess.Frames()

	// End of file surfaces as a failed grab
	if errors.Is(err, camera.ErrGrabFailed) {
		err = nil
	}
	return sum, err
}

func printSummary(sum scanSummary) {
	if scanOpts.JSON {
		data, _ := json.Marshal(sum)
		fmt.Println(string(data))
		return
	}

	if sum.Detections == 0 {
		fmt.Printf("%s: no QR code in %d frames\n", sum.File, sum.Frames)
		return
	}
	fmt.Printf("%s: QR code detected in %d of %d sampled frames (first at frame %d)\n",
		sum.File, sum.Detections, sum.Sampled, sum.FirstFrame)
}
