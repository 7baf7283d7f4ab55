// Package shrink reduces scanline image streams by an integer factor using
// a box filter, holding one input row, one accumulator row and one output
// row at a time.
//
// Edges are extended rather than zero-filled: each row is padded to a
// multiple of the factor by repeating its last pixel, and the last row is
// repeated until the padded height is reached.
package shrink

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/AnyUserName/boxshrink/internal/logger"
	"github.com/AnyUserName/boxshrink/internal/scanline"
)

var log = logger.Log

// Options controls a single reduction.
type Options struct {
	Factor  int     // in [1, MaxShrink]
	Quality int     // in [0, 100], passed to the output codec
	Bounds  *Bounds // optional
}

// Reduce reads every row of src, reduces the image by opts.Factor and writes
// the result to a Writer obtained from open.
//
// It returns nil, the Reader's or Writer's *scanline.Error, or an error
// wrapping ErrBoundsViolated. Bounds are checked before the output is
// opened or any row is read. Nothing is retried; on failure the output may
// be partially written.
func Reduce(src scanline.Reader, open scanline.Opener, opts Options) error {
	if src == nil || open == nil {
		panic("shrink: nil reader or opener")
	}
	checkFactor(opts.Factor)
	if opts.Quality < 0 || opts.Quality > 100 {
		panic(fmt.Sprintf("shrink: quality %d outside [0, 100]", opts.Quality))
	}

	if err := src.Err(); err != nil {
		return err
	}
	in := src.Descriptor()
	out, err := Resolve(in, opts.Factor, opts.Bounds)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"factor":  opts.Factor,
		"in":      in.String(),
		"out":     out.String(),
		"quality": opts.Quality,
	}).Debug("reduce")

	dst := open(out, opts.Quality)
	if opts.Factor == 1 {
		return copyRows(src, dst, in)
	}
	return newReducer(in, out, opts.Factor).run(src, dst)
}

// copyRows forwards every row unchanged.
func copyRows(src scanline.Reader, dst scanline.Writer, d scanline.Descriptor) error {
	row := make([]byte, d.RowBytes())
	for y := 0; y < d.Height; y++ {
		if err := src.ReadRow(row); err != nil {
			return err
		}
		if err := dst.WriteRow(row); err != nil {
			return err
		}
	}
	return nil
}

// reducer owns the buffers of one run. They are sized once and reused for
// every row.
type reducer struct {
	in     scanline.Descriptor
	out    scanline.Descriptor
	factor int
	pad    int          // pixels added to each input row
	row    []byte       // padded input row: out.Width*factor pixels
	acc    *accumulator // out.Width*channels sums
	line   []byte       // output row
}

func newReducer(in, out scanline.Descriptor, factor int) *reducer {
	padded := out.Width * factor
	return &reducer{
		in:     in,
		out:    out,
		factor: factor,
		pad:    padded - in.Width,
		row:    make([]byte, padded*in.Channels),
		acc:    newAccumulator(out.Width, in.Channels, factor),
		line:   make([]byte, out.RowBytes()),
	}
}

// run walks the padded input height. Past the last real row the previous
// padded row is mixed again, which repeats the bottom edge.
func (r *reducer) run(src scanline.Reader, dst scanline.Writer) error {
	s := r.factor
	padHeight := r.out.Height * s
	for y := 0; y < padHeight; y++ {
		if y < r.in.Height {
			if err := src.ReadRow(r.row); err != nil {
				log.WithField("row", y).Debug("reduce: read failed")
				return err
			}
			padRow(r.row, r.in.Width, r.pad, r.in.Channels)
		}
		if y%s == 0 {
			r.acc.reset()
		}
		r.acc.mix(r.row)
		if y%s == s-1 {
			r.acc.emit(r.line)
			if err := dst.WriteRow(r.line); err != nil {
				return err
			}
		}
	}
	return nil
}
