package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/teslashibe/go-qrfinder/pkg/detection"
	"gocv.io/x/gocv"
)

var detectOpts struct {
	Output string
	JSON   bool
}

var detectCmd = &cobra.Command{
	Use:   "detect <image>",
	Short: "Run the finder on a still image (exit 2 when nothing is found)",
	Args:  cobra.ExactArgs(1),
	RunE:  runDetect,
}

func init() {
	detectCmd.Flags().StringVarP(&detectOpts.Output, "output", "o", "", "Write the annotated image here")
	detectCmd.Flags().BoolVar(&detectOpts.JSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	res, err := detectFile(args[0], detectOpts.Output)
	if err != nil {
		return err
	}

	if detectOpts.JSON {
		data, err := json.Marshal(res)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else if res.Detected {
		fmt.Fprintf(cmd.OutOrStdout(), "QR code detected at %v\n", res.Outer)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "no QR code found (%d candidates)\n", res.Candidates)
	}

	if !res.Detected {
		return &exitError{code: exitNotFound}
	}
	return nil
}

// detectFile runs the finder on one image, optionally saving the annotated copy
func detectFile(path, output string) (detection.Result, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return detection.Result{}, fmt.Errorf("read image %s: unreadable or empty", path)
	}

	finder, err := detection.NewFinder(cfg.Detector)
	if err != nil {
		return detection.Result{}, err
	}

	out, res := finder.Detect(img)
	defer out.Close()

	if output != "" {
		if ok := gocv.IMWrite(output, out); !ok {
			return res, fmt.Errorf("write image %s failed", output)
		}
	}

	return res, nil
}
