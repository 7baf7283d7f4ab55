// Package scanline defines the row-at-a-time contract between image codecs
// and the reduction engine.
package scanline

import "fmt"

// MaxDim is the largest width or height a stream may declare.
const MaxDim = 32000

// Descriptor describes the geometry of an image stream.
type Descriptor struct {
	Width    int
	Height   int
	Channels int // 1 = grayscale, 3 = RGB
}

// fallback is reported by readers whose stream failed to open.
var fallback = Descriptor{Width: 1, Height: 1, Channels: 1}

// RowBytes returns the number of bytes in one unpadded row.
func (d Descriptor) RowBytes() int {
	return d.Width * d.Channels
}

// Check reports which range rule d breaks, if any.
func (d Descriptor) Check() Code {
	if d.Width < 1 || d.Width > MaxDim || d.Height < 1 || d.Height > MaxDim {
		return CodeDimensions
	}
	if d.Channels != 1 && d.Channels != 3 {
		return CodeChannels
	}
	return CodeOK
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%dx%dx%d", d.Width, d.Height, d.Channels)
}

// Reader yields the rows of one image, top to bottom.
//
// Err is sticky: once a Reader fails it stays failed and ReadRow zero-fills
// the buffer and returns the same error. Calling ReadRow more than
// Descriptor().Height times, or with a buffer shorter than RowBytes, panics.
type Reader interface {
	Descriptor() Descriptor
	Err() error
	ReadRow(row []byte) error
}

// Writer consumes the rows of one image, top to bottom.
//
// WriteRow must be called exactly Height times; the final call finalizes the
// encoded stream. A further call panics.
type Writer interface {
	WriteRow(row []byte) error
}

// Opener creates a Writer for an output image once its geometry is known.
// Quality is in [0, 100]; each codec clamps it to the range it supports.
type Opener func(d Descriptor, quality int) Writer
