package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/boxshrink/internal/profile"
	"github.com/AnyUserName/boxshrink/internal/shrink"
)

// defaultQuality applies when neither an argument nor a profile sets one.
const defaultQuality = 90

// Argument errors print verbatim.
var (
	errParseFactor   = errors.New("Can't parse reduction value")
	errFactorRange   = errors.New("Reduction value out of range")
	errParseQuality  = errors.New("Can't parse quality value")
	errQualityRange  = errors.New("Quality value out of range")
	errMissingFactor = errors.New("Missing reduction value")
	errNegativeBound = errors.New("Bounds must not be negative")
)

func parseFactor(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errParseFactor
	}
	if v < 1 || v > shrink.MaxShrink {
		return 0, errFactorRange
	}
	return v, nil
}

func parseQuality(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errParseQuality
	}
	if v < 0 || v > 100 {
		return 0, errQualityRange
	}
	return v, nil
}

// lookupProfile returns the named profile; an empty name yields the zero
// Profile.
func lookupProfile(name string) (profile.Profile, error) {
	if name == "" {
		return profile.Profile{}, nil
	}
	p, ok := profile.Lookup(name)
	if !ok {
		return p, fmt.Errorf("unknown profile %q (have %v)", name, profile.Names())
	}
	return p, nil
}

// streamFlags selects the input and output of a single-image command.
type streamFlags struct {
	input  string
	output string
	from   string
	to     string
}

func (f *streamFlags) register(c *cobra.Command) {
	c.Flags().StringVarP(&f.input, "input", "i", "", "input file (default stdin)")
	c.Flags().StringVarP(&f.output, "output", "o", "", "output file (default stdout)")
	c.Flags().StringVar(&f.from, "from", "", "input format (default: detected from content)")
	c.Flags().StringVar(&f.to, "to", "", "output format (default: output extension, else input format)")
}

// boundFlags holds the --max-* flags.
type boundFlags struct {
	shrink.Bounds
}

func (b *boundFlags) register(c *cobra.Command) {
	c.Flags().IntVar(&b.MaxLong, "max-long", 0, "max output long side (0 = unbounded)")
	c.Flags().IntVar(&b.MaxShort, "max-short", 0, "max output short side (0 = unbounded)")
	c.Flags().IntVar(&b.MaxWidth, "max-width", 0, "max output width (0 = unbounded)")
	c.Flags().IntVar(&b.MaxHeight, "max-height", 0, "max output height (0 = unbounded)")
	c.Flags().Int64Var(&b.MaxPixels, "max-pixels", 0, "max output pixel count (0 = unbounded)")
}

// apply overlays the flags that were set on base and returns nil when the
// result is unbounded.
func (b *boundFlags) apply(c *cobra.Command, base shrink.Bounds) (*shrink.Bounds, error) {
	flags := c.Flags()
	if flags.Changed("max-long") {
		base.MaxLong = b.MaxLong
	}
	if flags.Changed("max-short") {
		base.MaxShort = b.MaxShort
	}
	if flags.Changed("max-width") {
		base.MaxWidth = b.MaxWidth
	}
	if flags.Changed("max-height") {
		base.MaxHeight = b.MaxHeight
	}
	if flags.Changed("max-pixels") {
		base.MaxPixels = b.MaxPixels
	}
	if base.MaxLong < 0 || base.MaxShort < 0 || base.MaxWidth < 0 || base.MaxHeight < 0 || base.MaxPixels < 0 {
		return nil, errNegativeBound
	}
	if base.IsZero() {
		return nil, nil
	}
	return &base, nil
}

// lazyFile creates its file on the first write, so a run that fails before
// producing output leaves nothing behind.
type lazyFile struct {
	path string
	f    *os.File
}

func (l *lazyFile) Write(p []byte) (int, error) {
	if l.f == nil {
		f, err := os.Create(l.path)
		if err != nil {
			return 0, err
		}
		l.f = f
	}
	return l.f.Write(p)
}

func (l *lazyFile) Close() error {
	if l.f == nil {
		return nil
	}
	return l.f.Close()
}
