package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/AnyUserName/boxshrink/internal/codec"
	"github.com/AnyUserName/boxshrink/internal/scanline"
	"github.com/AnyUserName/boxshrink/internal/shrink"
)

var (
	reduceIO      streamFlags
	reduceBounds  boundFlags
	reduceProfile string
)

var reduceCmd = &cobra.Command{
	Use:   "reduce <factor> [quality]",
	Short: "Shrink one image by an integer factor",
	Long: `Reads an image from stdin (or --input), divides both sides by factor
(1-16) averaging each factor x factor block, and writes the result to stdout
(or --output). Edges are extended, so the output is ceil(w/factor) by
ceil(h/factor).

Quality (0-100, default 90) is passed to the output codec. A profile
supplies defaults for factor, quality, format and bounds; arguments and
flags override it.`,
	Args: cobra.RangeArgs(0, 2),
	RunE: runReduce,
}

func init() {
	reduceIO.register(reduceCmd)
	reduceBounds.register(reduceCmd)
	reduceCmd.Flags().StringVarP(&reduceProfile, "profile", "p", "", "named profile (thumb, preview, half, archive)")
	rootCmd.AddCommand(reduceCmd)
}

func runReduce(cmd *cobra.Command, args []string) error {
	prof, err := lookupProfile(reduceProfile)
	if err != nil {
		return err
	}

	opts := shrink.Options{Factor: prof.Factor, Quality: defaultQuality}
	if reduceProfile != "" {
		opts.Quality = prof.Quality
	}
	if len(args) > 0 {
		if opts.Factor, err = parseFactor(args[0]); err != nil {
			return err
		}
	}
	if opts.Factor == 0 {
		return errMissingFactor
	}
	if len(args) > 1 {
		if opts.Quality, err = parseQuality(args[1]); err != nil {
			return err
		}
	}
	if opts.Bounds, err = reduceBounds.apply(cmd, prof.Bounds); err != nil {
		return err
	}

	to := reduceIO.to
	if to == "" && reduceIO.output == "" {
		to = prof.Format
	}
	return reduceFiles(reduceIO, to, opts)
}

// reduceFiles opens the input and output named by f, defaulting to stdin
// and stdout.
func reduceFiles(f streamFlags, to string, opts shrink.Options) (err error) {
	var in io.Reader = os.Stdin
	if f.input != "" {
		file, err := os.Open(f.input)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer file.Close()
		in = file
	}

	var out io.Writer = os.Stdout
	if f.output != "" {
		lf := &lazyFile{path: f.output}
		defer func() {
			if cerr := lf.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close output: %w", cerr)
			}
		}()
		out = lf
	}

	reg := codec.NewRegistry()
	if to == "" && f.output != "" {
		if enc, ok := reg.ForPath(f.output).(codec.Encoder); ok {
			to = enc.Name()
		}
	}
	return reduceStream(reg, in, out, f.from, to, opts)
}

// reduceStream runs one reduction from in to out. from and to name the
// formats; empty from sniffs the content, empty to keeps the input format.
func reduceStream(reg *codec.Registry, in io.Reader, out io.Writer, from, to string, opts shrink.Options) error {
	br := bufio.NewReader(in)

	var dec codec.Decoder
	var err error
	if from != "" {
		if dec, err = reg.Decoder(from); err != nil {
			return err
		}
	} else if dec, err = reg.Sniff(br); err != nil {
		return &scanline.Error{Code: scanline.CodeHeader, Cause: err}
	}

	enc, err := reg.OutputFor(to, dec.Name())
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"from":    dec.Name(),
		"to":      enc.Name(),
		"factor":  opts.Factor,
		"quality": opts.Quality,
	}).Info("reduce")

	return shrink.Reduce(dec.NewReader(br), codec.Opener(enc, out), opts)
}
