package cmd

import (
	"github.com/spf13/cobra"

	"github.com/AnyUserName/boxshrink/internal/shrink"
)

var echoIO streamFlags

var echoCmd = &cobra.Command{
	Use:   "echo [quality]",
	Short: "Re-encode one image without reducing it",
	Long: `Streams an image through the decoder and encoder unchanged, one row at
a time. Useful for converting between formats (--to) or recompressing at a
different quality (0-100, default 90).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEcho,
}

func init() {
	echoIO.register(echoCmd)
	rootCmd.AddCommand(echoCmd)
}

func runEcho(_ *cobra.Command, args []string) error {
	opts := shrink.Options{Factor: 1, Quality: defaultQuality}
	if len(args) > 0 {
		q, err := parseQuality(args[0])
		if err != nil {
			return err
		}
		opts.Quality = q
	}
	return reduceFiles(echoIO, echoIO.to, opts)
}
