package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/disintegration/gift"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"github.com/teslashibe/go-qrfinder/internal/log"
)

// sampleOptions describe a generated test card
type sampleOptions struct {
	Output string
	Text   string
	Size   int
	Rotate float64
	Blur   float64
}

var sampleOpts sampleOptions

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Render a QR code test card to hold up to the camera",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := writeSample(sampleOpts); err != nil {
			return err
		}
		log.Info("sample written", "path", sampleOpts.Output, "size", sampleOpts.Size)
		return nil
	},
}

func init() {
	sampleCmd.Flags().StringVarP(&sampleOpts.Output, "output", "o", "qrfinder-sample.png", "PNG file to write")
	sampleCmd.Flags().StringVarP(&sampleOpts.Text, "text", "t", "https://github.com/teslashibe/go-qrfinder", "Payload to encode")
	sampleCmd.Flags().IntVarP(&sampleOpts.Size, "size", "s", 512, "Image size in pixels")
	sampleCmd.Flags().Float64Var(&sampleOpts.Rotate, "rotate", 0, "Rotate the card by this many degrees")
	sampleCmd.Flags().Float64Var(&sampleOpts.Blur, "blur", 0, "Gaussian blur sigma, to mimic an out-of-focus camera")
	rootCmd.AddCommand(sampleCmd)
}

// renderSample draws the test card in memory
func renderSample(opts sampleOptions) (image.Image, error) {
	if opts.Size < 64 {
		return nil, fmt.Errorf("size must be at least 64, got %d", opts.Size)
	}

	q, err := qrcode.New(opts.Text, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	img := q.Image(opts.Size)

	var filters []gift.Filter
	if opts.Rotate != 0 {
		filters = append(filters, gift.Rotate(float32(opts.Rotate), color.White, gift.CubicInterpolation))
	}
	if opts.Blur > 0 {
		filters = append(filters, gift.GaussianBlur(float32(opts.Blur)))
	}
	if len(filters) == 0 {
		return img, nil
	}

	g := gift.New(filters...)
	dst := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst, nil
}

func writeSample(opts sampleOptions) error {
	img, err := renderSample(opts)
	if err != nil {
		return err
	}

	f, err := os.Create(opts.Output)
	if err != nil {
		return fmt.Errorf("create %s: %w", opts.Output, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}
