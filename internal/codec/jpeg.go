package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/jpegn"

	"github.com/AnyUserName/boxshrink/internal/scanline"
)

// JPEG quality is limited to this range on output.
const (
	jpegMinQuality = 25
	jpegMaxQuality = 90
)

// JPEG reads with jpegn and writes with a band-streaming baseline encoder.
type JPEG struct{}

func (JPEG) Name() string           { return "jpeg" }
func (JPEG) Extensions() []string   { return []string{"jpg", "jpeg", "jpe"} }
func (JPEG) Match(magic []byte) bool { return bytes.HasPrefix(magic, []byte{0xff, 0xd8}) }

// NewReader probes the header up front; pixels are decoded on the first
// ReadRow so data errors surface as decode failures.
func (JPEG) NewReader(r io.Reader) scanline.Reader {
	ir := &imageReader{format: "jpeg"}
	data, err := io.ReadAll(r)
	if err != nil {
		ir.FailOpen(scanline.CodeHeader, err)
		return ir
	}
	cfg, err := jpegn.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		ir.FailOpen(scanline.CodeHeader, fmt.Errorf("jpeg: %w", err))
		return ir
	}
	channels := 0
	switch cfg.ColorModel {
	case color.GrayModel:
		channels = 1
	case color.YCbCrModel, color.RGBAModel:
		channels = 3
	default:
		ir.FailOpen(scanline.CodeChannels, fmt.Errorf("jpeg: unsupported color model %T", cfg.ColorModel))
		return ir
	}
	if ir.Open(scanline.Descriptor{Width: cfg.Width, Height: cfg.Height, Channels: channels}) != nil {
		return ir
	}
	ir.data = data
	ir.decode = func(b []byte) (image.Image, error) {
		return jpegn.Decode(bytes.NewReader(b))
	}
	return ir
}

// NewWriter clamps quality to [25, 90].
func (JPEG) NewWriter(w io.Writer, d scanline.Descriptor, quality int) scanline.Writer {
	return newJPEGWriter(w, d, clampQuality(quality, jpegMinQuality, jpegMaxQuality))
}

// imageReader serves rows out of a fully decoded image.Image. Decoding
// is deferred to the first ReadRow.
type imageReader struct {
	scanline.Source
	format string
	data   []byte
	decode func([]byte) (image.Image, error)
	img    image.Image
	y      int
}

func (ir *imageReader) ReadRow(row []byte) error {
	if !ir.Next(row) {
		return ir.Err()
	}
	if ir.img == nil {
		img, err := ir.decode(ir.data)
		ir.data = nil
		if err != nil {
			return ir.FailRow(row, fmt.Errorf("%s: %w", ir.format, err))
		}
		b := img.Bounds()
		d := ir.Descriptor()
		if b.Dx() != d.Width || b.Dy() != d.Height {
			return ir.FailRow(row, fmt.Errorf("%s: decoded %dx%d, header said %dx%d",
				ir.format, b.Dx(), b.Dy(), d.Width, d.Height))
		}
		ir.img = normalize(img, d.Channels)
	}
	imageRow(ir.img, ir.y, row, ir.Descriptor().Channels)
	ir.y++
	if ir.Last() {
		ir.img = nil
	}
	return nil
}

// normalize keeps the pixel layouts imageRow reads directly and converts
// anything else to NRGBA.
func normalize(img image.Image, channels int) image.Image {
	switch img.(type) {
	case *image.Gray:
		if channels == 1 {
			return img
		}
	case *image.YCbCr:
		if channels == 3 {
			return img
		}
	case *image.RGBA, *image.NRGBA:
		return img
	}
	return imaging.Clone(img)
}

// imageRow copies row y (relative to the bounds) of img into row. Color
// samples are taken without alpha.
func imageRow(img image.Image, y int, row []byte, channels int) {
	b := img.Bounds()
	w := b.Dx()
	switch m := img.(type) {
	case *image.Gray:
		off := y * m.Stride
		copy(row[:w], m.Pix[off:off+w])
	case *image.YCbCr:
		for x := 0; x < w; x++ {
			yi := m.YOffset(b.Min.X+x, b.Min.Y+y)
			ci := m.COffset(b.Min.X+x, b.Min.Y+y)
			r, g, bl := color.YCbCrToRGB(m.Y[yi], m.Cb[ci], m.Cr[ci])
			row[3*x], row[3*x+1], row[3*x+2] = r, g, bl
		}
	case *image.RGBA:
		rgbaRow(m.Pix[y*m.Stride:], row, w, channels)
	case *image.NRGBA:
		rgbaRow(m.Pix[y*m.Stride:], row, w, channels)
	}
}

// rgbaRow drops alpha from 4-byte pixels, converting to luma when the
// output is single channel.
func rgbaRow(pix, row []byte, w, channels int) {
	for x := 0; x < w; x++ {
		p := pix[4*x : 4*x+3]
		if channels == 1 {
			row[x] = color.GrayModel.Convert(color.RGBA{p[0], p[1], p[2], 0xff}).(color.Gray).Y
			continue
		}
		copy(row[3*x:3*x+3], p)
	}
}
