package shrink

import (
	"errors"
	"fmt"

	"github.com/AnyUserName/boxshrink/internal/scanline"
)

// MaxShrink is the largest reduction factor. 16*16*255 = 65280 still fits
// the uint16 accumulator.
const MaxShrink = 16

// ErrBoundsViolated is returned when the computed output size exceeds a
// caller-supplied bound.
var ErrBoundsViolated = errors.New("Output dimensions exceed bounds")

// Bounds constrains the computed output size. A zero field is unconstrained.
type Bounds struct {
	MaxLong   int   // max(width, height)
	MaxShort  int   // min(width, height)
	MaxWidth  int
	MaxHeight int
	MaxPixels int64 // width * height
}

// IsZero reports whether no bound is set.
func (b Bounds) IsZero() bool {
	return b == Bounds{}
}

func (b Bounds) validate() {
	if b.MaxLong < 0 || b.MaxShort < 0 || b.MaxWidth < 0 || b.MaxHeight < 0 || b.MaxPixels < 0 {
		panic(fmt.Sprintf("shrink: negative bound in %+v", b))
	}
}

// Check returns nil when width x height satisfies every set bound, or an
// error wrapping ErrBoundsViolated naming the first bound that fails.
func (b Bounds) Check(width, height int) error {
	b.validate()

	// Width wins ties for the long side, height for the short side; the
	// values are equal then so only the naming differs.
	long, short := width, height
	if height > width {
		long, short = height, width
	}
	pixels := int64(width) * int64(height)

	switch {
	case b.MaxLong > 0 && long > b.MaxLong:
		return fmt.Errorf("%w: long side %d > %d", ErrBoundsViolated, long, b.MaxLong)
	case b.MaxShort > 0 && short > b.MaxShort:
		return fmt.Errorf("%w: short side %d > %d", ErrBoundsViolated, short, b.MaxShort)
	case b.MaxWidth > 0 && width > b.MaxWidth:
		return fmt.Errorf("%w: width %d > %d", ErrBoundsViolated, width, b.MaxWidth)
	case b.MaxHeight > 0 && height > b.MaxHeight:
		return fmt.Errorf("%w: height %d > %d", ErrBoundsViolated, height, b.MaxHeight)
	case b.MaxPixels > 0 && pixels > b.MaxPixels:
		return fmt.Errorf("%w: %d pixels > %d", ErrBoundsViolated, pixels, b.MaxPixels)
	}
	return nil
}

// OutputSize returns the dimensions produced by reducing width x height by
// factor: each axis is divided and rounded up, so the padded input covers at
// most factor-1 extra pixels per axis.
func OutputSize(width, height, factor int) (int, int) {
	checkFactor(factor)
	if factor == 1 {
		return width, height
	}
	return ceilDiv(width, factor), ceilDiv(height, factor)
}

// Resolve computes the output descriptor for in and checks it against
// bounds, which may be nil.
func Resolve(in scanline.Descriptor, factor int, bounds *Bounds) (scanline.Descriptor, error) {
	w, h := OutputSize(in.Width, in.Height, factor)
	out := scanline.Descriptor{Width: w, Height: h, Channels: in.Channels}
	if bounds != nil {
		if err := bounds.Check(w, h); err != nil {
			return out, err
		}
	}
	return out, nil
}

func ceilDiv(n, d int) int {
	q := n / d
	if n%d != 0 {
		q++
	}
	return q
}

func checkFactor(factor int) {
	if factor < 1 || factor > MaxShrink {
		panic(fmt.Sprintf("shrink: factor %d outside [1, %d]", factor, MaxShrink))
	}
}
