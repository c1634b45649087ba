package main

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/teslashibe/go-qrfinder/internal/config"
	"github.com/teslashibe/go-qrfinder/internal/log"
	"github.com/teslashibe/go-qrfinder/pkg/camera"
	"github.com/teslashibe/go-qrfinder/pkg/detection"
	"github.com/teslashibe/go-qrfinder/pkg/display"
	"github.com/teslashibe/go-qrfinder/pkg/web"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

// watchOptions are flag overrides for the camera loop
type watchOptions struct {
	Device   int
	File     string
	Preset   string
	Mirror   bool
	Title    string
	Headless bool
	Listen   string
}

var watchOpts watchOptions

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the live camera loop (press q to quit)",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	addWatchFlags(rootCmd)
	addWatchFlags(watchCmd)
	rootCmd.AddCommand(watchCmd)
}

func addWatchFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&watchOpts.Device, "device", "d", 0, "Capture device index")
	cmd.Flags().StringVarP(&watchOpts.File, "file", "f", "", "Read frames from a video file instead of a camera")
	cmd.Flags().StringVarP(&watchOpts.Preset, "preset", "p", "", "Capture format preset: "+strings.Join(camera.PresetNames(), ", "))
	cmd.Flags().BoolVar(&watchOpts.Mirror, "mirror", false, "Flip frames horizontally")
	cmd.Flags().StringVar(&watchOpts.Title, "title", display.DefaultTitle, "Window title")
	cmd.Flags().BoolVar(&watchOpts.Headless, "headless", false, "Do not open a window")
	cmd.Flags().StringVar(&watchOpts.Listen, "listen", "", "Serve the dashboard on this address (e.g. :8080)")
}

// applyWatchFlags layers explicitly set flags over the loaded config
func applyWatchFlags(cmd *cobra.Command, opts watchOptions, c *config.Config) error {
	f := cmd.Flags()
	if f.Changed("device") {
		c.Camera.Device = opts.Device
	}
	if f.Changed("file") {
		c.Camera.File = opts.File
	}
	if f.Changed("preset") {
		if err := c.Camera.ApplyPreset(opts.Preset); err != nil {
			return err
		}
	}
	if f.Changed("mirror") {
		c.Camera.Mirror = opts.Mirror
	}
	if f.Changed("title") {
		c.Display.Title = opts.Title
	}
	if f.Changed("headless") {
		c.Display.Headless = opts.Headless
	}
	if f.Changed("listen") {
		c.Web.Listen = opts.Listen
	}
	return c.Validate()
}

// runWatch drives the capture → detect → display loop on the main goroutine
func runWatch(cmd *cobra.Command, args []string) error {
	c := cfg
	if err := applyWatchFlags(cmd, watchOpts, &c); err != nil {
		return err
	}

	finder, err := detection.NewFinder(c.Detector)
	if err != nil {
		return err
	}

	sess, err := camera.Open(c.Camera)
	if err != nil {
		return err
	}
	defer sess.Close()

	var sink display.Sink = display.Headless{}
	if !c.Display.Headless {
		w := display.NewWindow(c.Display.Title)
		defer w.Close()
		sink = w
	}

	g, gctx := errgroup.WithContext(cmd.Context())
	loopCtx, stop := context.WithCancel(gctx)
	defer stop()

	var dash *web.Server
	if c.Web.Listen != "" {
		dash = web.NewServer(c.Web.Listen, c.Detector)
		dash.Quality = c.Web.Quality
		dash.Attach(sess.ID(), c.Camera.Source())
		g.Go(func() error { return dash.Run(loopCtx) })
	}

	loopErr := sess.Run(loopCtx, func(frame gocv.Mat) error {
		out, res := finder.Detect(frame)
		defer out.Close()

		n := sess.Frames()
		if res.Detected {
			log.Info("QR code detected", "frame", n, "outer", res.Outer)
		}
		if dash != nil {
			dash.Record(n, res)
			dash.SendFrame(out)
		}

		if sink.Show(out) {
			return camera.ErrStop
		}
		return nil
	})

	stop()
	webErr := g.Wait()

	if errors.Is(loopErr, camera.ErrGrabFailed) {
		log.Warn("Failed to grab frame", "session", sess.ID(), "frames", sess.Frames())
		if sess.Frames() == 0 {
			loopErr = &exitError{code: exitFailure, err: loopErr}
		} else {
			loopErr = nil
		}
	}

	log.Info("capture finished", "session", sess.ID(), "frames", sess.Frames())
	return errors.Join(loopErr, webErr)
}
