package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/AnyUserName/boxshrink/internal/scanline"
)

const pngSignature = "\x89PNG\r\n\x1a\n"

// PNG color types.
const (
	pngGray      = 0
	pngRGB       = 2
	pngPalette   = 3
	pngGrayAlpha = 4
	pngRGBA      = 6
)

// PNG streams non-interlaced gray, RGB and palette images in both
// directions. Gray and palette input may use 1, 2, 4 or 8 bits per sample;
// output is always 8-bit. IDAT data is inflated as rows are requested, so only the
// current and previous rows are held.
type PNG struct{}

func (PNG) Name() string           { return "png" }
func (PNG) Extensions() []string   { return []string{"png"} }
func (PNG) Match(magic []byte) bool { return bytes.HasPrefix(magic, []byte(pngSignature)) }

var errChunkCRC = errors.New("png: chunk checksum mismatch")

// chunkHeader reads the length and type of the next chunk.
func chunkHeader(r io.Reader, buf *[8]byte) (uint32, string, error) {
	if _, err := io.ReadFull(r, buf[:8]); err != nil {
		return 0, "", err
	}
	length := binary.BigEndian.Uint32(buf[:4])
	if length > 1<<31-1 {
		return 0, "", fmt.Errorf("png: chunk length %d", length)
	}
	return length, string(buf[4:8]), nil
}

// readChunk reads the body and checksum of a chunk whose header was just
// read. Callers cap length before calling.
func readChunk(r io.Reader, typ string, length uint32) ([]byte, error) {
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	return data, checkCRC(r, typ, crc)
}

// skipChunk discards a chunk body, still verifying its checksum.
func skipChunk(r io.Reader, typ string, length uint32) error {
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	if _, err := io.CopyN(crc, r, int64(length)); err != nil {
		return err
	}
	return checkCRC(r, typ, crc)
}

func checkCRC(r io.Reader, typ string, crc hash.Hash32) error {
	var sum [4]byte
	if _, err := io.ReadFull(r, sum[:]); err != nil {
		return err
	}
	if crc.Sum32() != binary.BigEndian.Uint32(sum[:]) {
		return fmt.Errorf("%w in %s", errChunkCRC, typ)
	}
	return nil
}

// idatReader concatenates consecutive IDAT chunk bodies, checking each
// chunk's CRC. It reports io.EOF at the first non-IDAT chunk.
type idatReader struct {
	r      io.Reader
	remain uint32
	crc    hash.Hash32
	buf    [8]byte
	done   bool
}

func newIDATReader(r io.Reader, length uint32) *idatReader {
	d := &idatReader{r: r, remain: length, crc: crc32.NewIEEE()}
	d.crc.Write([]byte("IDAT"))
	return d
}

func (d *idatReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for d.remain == 0 {
		if d.done {
			return 0, io.EOF
		}
		if _, err := io.ReadFull(d.r, d.buf[:4]); err != nil {
			return 0, err
		}
		if d.crc.Sum32() != binary.BigEndian.Uint32(d.buf[:4]) {
			return 0, fmt.Errorf("%w in IDAT", errChunkCRC)
		}
		length, typ, err := chunkHeader(d.r, &d.buf)
		if err != nil {
			return 0, err
		}
		if typ != "IDAT" {
			d.done = true
			return 0, io.EOF
		}
		d.remain = length
		d.crc.Reset()
		d.crc.Write([]byte(typ))
	}
	if uint32(len(p)) > d.remain {
		p = p[:d.remain]
	}
	n, err := d.r.Read(p)
	d.crc.Write(p[:n])
	d.remain -= uint32(n)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

type pngReader struct {
	scanline.Source
	zr        io.ReadCloser
	colorType byte
	depth     int    // bits per sample
	samples   int    // samples per pixel in the encoded stream
	palette   []byte // RGB triples
	bpp       int    // filter stride in bytes, at least 1
	cur, prev []byte // filter byte + encoded row
	unpacked  []byte // one sample per pixel for depths below 8
}

func (PNG) NewReader(r io.Reader) scanline.Reader {
	pr := &pngReader{}
	pr.open(r)
	return pr
}

func (pr *pngReader) open(r io.Reader) {
	var sig [8]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		pr.FailOpen(scanline.CodeHeader, err)
		return
	}
	if string(sig[:]) != pngSignature {
		pr.FailOpen(scanline.CodeHeader, errors.New("png: bad signature"))
		return
	}

	var buf [8]byte
	seenIHDR := false
	for {
		length, typ, err := chunkHeader(r, &buf)
		if err != nil {
			pr.FailOpen(scanline.CodeHeader, err)
			return
		}
		if !seenIHDR && typ != "IHDR" {
			pr.FailOpen(scanline.CodeHeader, fmt.Errorf("png: %s before IHDR", typ))
			return
		}
		if typ == "IDAT" {
			pr.startData(r, length)
			return
		}
		if typ == "IEND" {
			pr.FailOpen(scanline.CodeHeader, errors.New("png: no image data"))
			return
		}
		switch typ {
		case "IHDR":
			if length != 13 {
				pr.FailOpen(scanline.CodeHeader, errors.New("png: bad IHDR length"))
				return
			}
			data, err := readChunk(r, typ, length)
			if err != nil {
				pr.FailOpen(scanline.CodeHeader, err)
				return
			}
			if err := pr.parseIHDR(data); err != nil {
				return
			}
			seenIHDR = true
		case "PLTE":
			if length == 0 || length%3 != 0 || length > 256*3 {
				pr.FailOpen(scanline.CodeHeader, errors.New("png: bad palette"))
				return
			}
			data, err := readChunk(r, typ, length)
			if err != nil {
				pr.FailOpen(scanline.CodeHeader, err)
				return
			}
			pr.palette = data
		default:
			if err := skipChunk(r, typ, length); err != nil {
				pr.FailOpen(scanline.CodeHeader, fmt.Errorf("png: %s: %w", typ, err))
				return
			}
		}
	}
}

// parseIHDR records the failure itself and returns it.
func (pr *pngReader) parseIHDR(data []byte) error {
	width := binary.BigEndian.Uint32(data[0:4])
	height := binary.BigEndian.Uint32(data[4:8])
	depth, colorType := data[8], data[9]
	compression, filter, interlace := data[10], data[11], data[12]

	channels := 0
	switch colorType {
	case pngGray:
		channels, pr.samples = 1, 1
	case pngRGB:
		channels, pr.samples = 3, 3
	case pngPalette:
		channels, pr.samples = 3, 1
	case pngGrayAlpha, pngRGBA:
		return pr.FailOpen(scanline.CodeChannels, fmt.Errorf("png: color type %d has alpha", colorType))
	default:
		return pr.FailOpen(scanline.CodeHeader, fmt.Errorf("png: color type %d", colorType))
	}
	switch {
	case depth == 8:
	case (depth == 1 || depth == 2 || depth == 4) && colorType != pngRGB:
	default:
		return pr.FailOpen(scanline.CodeHeader, fmt.Errorf("png: bit depth %d for color type %d", depth, colorType))
	}
	if compression != 0 || filter != 0 || interlace != 0 {
		return pr.FailOpen(scanline.CodeHeader, errors.New("png: unsupported compression, filter or interlace method"))
	}
	if width > scanline.MaxDim || height > scanline.MaxDim {
		return pr.FailOpen(scanline.CodeDimensions, fmt.Errorf("png: %dx%d", width, height))
	}
	pr.colorType = colorType
	pr.depth = int(depth)
	pr.bpp = max(1, pr.samples*pr.depth/8)
	return pr.Open(scanline.Descriptor{Width: int(width), Height: int(height), Channels: channels})
}

func (pr *pngReader) startData(r io.Reader, length uint32) {
	if pr.colorType == pngPalette && pr.palette == nil {
		pr.FailOpen(scanline.CodeHeader, errors.New("png: missing palette"))
		return
	}
	zr, err := zlib.NewReader(newIDATReader(r, length))
	if err != nil {
		pr.FailOpen(scanline.CodeHeader, err)
		return
	}
	pr.zr = zr
	width := pr.Descriptor().Width
	n := 1 + (width*pr.samples*pr.depth+7)/8
	pr.cur = make([]byte, n)
	pr.prev = make([]byte, n)
	if pr.depth < 8 {
		pr.unpacked = make([]byte, width)
	}
}

// unpackSamples splits packed sub-byte samples, most significant bits
// first, into one byte each.
func unpackSamples(dst, src []byte, depth int) {
	mask := byte(1<<depth - 1)
	perByte := 8 / depth
	for x := range dst {
		shift := 8 - depth*(x%perByte+1)
		dst[x] = src[x/perByte] >> shift & mask
	}
}

func (pr *pngReader) ReadRow(row []byte) error {
	if !pr.Next(row) {
		return pr.Err()
	}
	if _, err := io.ReadFull(pr.zr, pr.cur); err != nil {
		return pr.FailRow(row, err)
	}
	if err := unfilter(pr.cur[0], pr.cur[1:], pr.prev[1:], pr.bpp); err != nil {
		return pr.FailRow(row, err)
	}

	pix := pr.cur[1:]
	if pr.depth < 8 {
		unpackSamples(pr.unpacked, pix, pr.depth)
		pix = pr.unpacked
		if pr.colorType == pngGray {
			scale := 255 / byte(1<<pr.depth-1)
			for i := range pix {
				pix[i] *= scale
			}
		}
	}
	if pr.colorType == pngPalette {
		for x, idx := range pix {
			i := int(idx) * 3
			if i+3 > len(pr.palette) {
				return pr.FailRow(row, fmt.Errorf("png: palette index %d out of range", idx))
			}
			copy(row[x*3:x*3+3], pr.palette[i:i+3])
		}
	} else {
		copy(row, pix)
	}

	pr.cur, pr.prev = pr.prev, pr.cur
	if pr.Last() {
		pr.zr.Close()
	}
	return nil
}

// chunkWriter emits every Write as one IDAT chunk.
type chunkWriter struct {
	w   io.Writer
	typ string
}

func (c *chunkWriter) Write(p []byte) (int, error) {
	if err := writeChunk(c.w, c.typ, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func writeChunk(w io.Writer, typ string, data []byte) error {
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[:4], uint32(len(data)))
	copy(hdr[4:], typ)
	crc := crc32.NewIEEE()
	crc.Write(hdr[4:8])
	crc.Write(data)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())

	for _, b := range [][]byte{hdr[:], data, sum[:]} {
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}

type pngWriter struct {
	scanline.Sink
	w         io.Writer
	level     int
	started   bool
	bw        *bufio.Writer
	zw        *zlib.Writer
	cur, prev []byte
	cand      [nFilter][]byte
}

// NewWriter maps quality [0, 100] onto zlib levels 1 through 9.
func (PNG) NewWriter(w io.Writer, d scanline.Descriptor, quality int) scanline.Writer {
	n := d.RowBytes()
	pw := &pngWriter{
		Sink:  scanline.NewSink(d),
		w:     w,
		level: 1 + clampQuality(quality, 0, 100)*8/100,
		cur:   make([]byte, n),
		prev:  make([]byte, n),
	}
	for i := range pw.cand {
		pw.cand[i] = make([]byte, n+1)
	}
	return pw
}

func (pw *pngWriter) start() error {
	d := pw.Descriptor()
	if _, err := io.WriteString(pw.w, pngSignature); err != nil {
		return err
	}
	var ihdr [13]byte
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(d.Width))
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(d.Height))
	ihdr[8] = 8
	ihdr[9] = pngGray
	if d.Channels == 3 {
		ihdr[9] = pngRGB
	}
	if err := writeChunk(pw.w, "IHDR", ihdr[:]); err != nil {
		return err
	}

	pw.bw = bufio.NewWriterSize(&chunkWriter{w: pw.w, typ: "IDAT"}, 1<<15)
	zw, err := zlib.NewWriterLevel(pw.bw, pw.level)
	if err != nil {
		return err
	}
	pw.zw = zw
	return nil
}

func (pw *pngWriter) WriteRow(row []byte) error {
	if !pw.Next(row) {
		return pw.Err()
	}
	if !pw.started {
		pw.started = true
		if err := pw.start(); err != nil {
			return pw.Fail(err)
		}
	}

	d := pw.Descriptor()
	copy(pw.cur, row[:d.RowBytes()])
	filtered := filterBest(&pw.cand, pw.cur, pw.prev, d.Channels)
	if _, err := pw.zw.Write(filtered); err != nil {
		return pw.Fail(err)
	}
	pw.cur, pw.prev = pw.prev, pw.cur

	if pw.Last() {
		if err := pw.finish(); err != nil {
			return pw.Fail(err)
		}
	}
	return nil
}

func (pw *pngWriter) finish() error {
	if err := pw.zw.Close(); err != nil {
		return err
	}
	if err := pw.bw.Flush(); err != nil {
		return err
	}
	return writeChunk(pw.w, "IEND", nil)
}
