package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/AnyUserName/boxshrink/internal/scanline"
)

// decoded is a read-only format that decodes the whole image with the
// registered image decoders before serving rows.
type decoded struct {
	name  string
	exts  []string
	match func(magic []byte) bool
}

var (
	decodedGIF = decoded{
		name:  "gif",
		exts:  []string{"gif"},
		match: prefix("GIF8"),
	}
	decodedBMP = decoded{
		name:  "bmp",
		exts:  []string{"bmp"},
		match: prefix("BM"),
	}
	decodedTIFF = decoded{
		name: "tiff",
		exts: []string{"tif", "tiff"},
		match: func(m []byte) bool {
			return bytes.HasPrefix(m, []byte("II*\x00")) || bytes.HasPrefix(m, []byte("MM\x00*"))
		},
	}
	decodedWebP = decoded{
		name: "webp",
		exts: []string{"webp"},
		match: func(m []byte) bool {
			return len(m) >= 12 && string(m[:4]) == "RIFF" && string(m[8:12]) == "WEBP"
		},
	}
)

func prefix(p string) func([]byte) bool {
	return func(m []byte) bool { return bytes.HasPrefix(m, []byte(p)) }
}

func (f decoded) Name() string            { return f.name }
func (f decoded) Extensions() []string    { return f.exts }
func (f decoded) Match(magic []byte) bool { return f.match(magic) }

func (f decoded) NewReader(r io.Reader) scanline.Reader {
	ir := &imageReader{format: f.name}
	data, err := io.ReadAll(r)
	if err != nil {
		ir.FailOpen(scanline.CodeHeader, err)
		return ir
	}
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		ir.FailOpen(scanline.CodeHeader, fmt.Errorf("%s: %w", f.name, err))
		return ir
	}
	if name != f.name {
		ir.FailOpen(scanline.CodeHeader, fmt.Errorf("%s: stream is %s", f.name, name))
		return ir
	}
	channels := 3
	switch cfg.ColorModel {
	case color.GrayModel, color.Gray16Model:
		channels = 1
	}
	if ir.Open(scanline.Descriptor{Width: cfg.Width, Height: cfg.Height, Channels: channels}) != nil {
		return ir
	}
	ir.data = data
	ir.decode = func(b []byte) (image.Image, error) {
		return imaging.Decode(bytes.NewReader(b))
	}
	return ir
}
