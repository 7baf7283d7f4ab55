// Package codec adapts compressed image containers to the scanline
// Reader/Writer contract.
package codec

import (
	"io"

	"github.com/AnyUserName/boxshrink/internal/scanline"
)

// Format identifies an image container.
type Format interface {
	// Name returns the format name (e.g. "png", "jpeg").
	Name() string

	// Extensions returns the file extensions, without dot, canonical first.
	Extensions() []string

	// Match reports whether magic, the first bytes of a stream, belongs to
	// this format.
	Match(magic []byte) bool
}

// Decoder is a Format whose streams can be read row by row.
type Decoder interface {
	Format

	// NewReader parses the stream header. It never returns nil; failures
	// are reported through the Reader's sticky Err.
	NewReader(r io.Reader) scanline.Reader
}

// Encoder is a Format that can be written row by row.
type Encoder interface {
	Format

	// NewWriter returns a Writer for an image of geometry d. The header is
	// written with the first row; the last row finalizes the stream.
	NewWriter(w io.Writer, d scanline.Descriptor, quality int) scanline.Writer
}

// Opener binds enc and w into a scanline.Opener.
func Opener(enc Encoder, w io.Writer) scanline.Opener {
	return func(d scanline.Descriptor, quality int) scanline.Writer {
		return enc.NewWriter(w, d, quality)
	}
}

// clampQuality limits q to [lo, hi].
func clampQuality(q, lo, hi int) int {
	if q < lo {
		return lo
	}
	if q > hi {
		return hi
	}
	return q
}
