// qrfinder - locate QR-code finder patterns in live video
//
// Captures frames from a webcam, outlines the three finder squares of any
// QR code in view and reports each frame in which one was found.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/teslashibe/go-qrfinder/internal/config"
	"github.com/teslashibe/go-qrfinder/internal/log"
)

// Version is the application version.
const Version = "0.1.0"

// Exit codes
const (
	exitOK       = 0
	exitFailure  = 1
	exitNotFound = 2
)

// exitError carries a specific process exit code
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// exitCode maps a command error to the process exit status
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}

var (
	// cfg is loaded once in PersistentPreRunE and shared by subcommands
	cfg config.Config

	cfgPath  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "qrfinder",
	Short:         "Locate QR-code finder patterns in live video",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Log.Level = logLevel
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		cfg = loaded
		log.Init(cfg.Log.Level)
		return nil
	},
	// Bare invocation runs the camera loop
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()

	code := exitCode(err)
	var ee *exitError
	if err != nil && !(errors.As(err, &ee) && ee.err == nil) {
		log.Error("qrfinder failed", "error", err)
	}
	os.Exit(code)
}
