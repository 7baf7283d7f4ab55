package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/boxshrink/internal/logger"
	"github.com/AnyUserName/boxshrink/internal/scanline"
	"github.com/AnyUserName/boxshrink/internal/shrink"
)

var (
	version = "0.1.0"
	verbose bool
	debug   bool
)

var log = logger.Log

var rootCmd = &cobra.Command{
	Use:   "boxshrink",
	Short: "Streaming integer-factor image reducer",
	Long: `boxshrink shrinks images by an integer factor with a box filter,
decoding, averaging and re-encoding one scanline at a time so memory stays
proportional to the image width.

Reads PNG, JPEG, PGM/PPM, GIF, BMP, TIFF and WebP; writes PNG, JPEG and PGM/PPM.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(*cobra.Command, []string) {
		logger.SetVerbosity(verbose, debug)
	},
}

// Execute runs the command line. An interrupt cancels the command's
// context; a batch build stops dispatching images and returns.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return ExecuteContext(ctx, os.Args[1:])
}

// ExecuteContext runs the command line given by args under ctx.
func ExecuteContext(ctx context.Context, args []string) error {
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug output")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"boxshrink %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

// Message returns the one-line diagnostic printed for err. Codec and
// bounds failures print their fixed message; the cause goes to the log.
func Message(err error) string {
	var se *scanline.Error
	switch {
	case errors.As(err, &se):
		log.Debug(se.Detail())
		return se.Code.String()
	case errors.Is(err, shrink.ErrBoundsViolated):
		log.Debug(err)
		return shrink.ErrBoundsViolated.Error()
	}
	return err.Error()
}
