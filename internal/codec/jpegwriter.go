package codec

import (
	"bufio"
	"image/color"
	"io"

	"github.com/AnyUserName/boxshrink/internal/scanline"
)

const (
	sof0Marker = 0xc0
	dhtMarker  = 0xc4
	dqtMarker  = 0xdb
)

// sosHeaderY starts a scan of one component using tables 0.
var sosHeaderY = []byte{
	0xff, 0xda, 0x00, 0x08, 0x01, 0x01, 0x00, 0x00, 0x3f, 0x00,
}

// sosHeaderYCbCr starts an interleaved scan; chroma uses tables 1.
var sosHeaderYCbCr = []byte{
	0xff, 0xda, 0x00, 0x0c, 0x03, 0x01, 0x00, 0x02,
	0x11, 0x03, 0x11, 0x00, 0x3f, 0x00,
}

// bitWriter packs Huffman codes with byte stuffing. The first write error
// sticks and later writes are no-ops.
type bitWriter struct {
	w           *bufio.Writer
	err         error
	bits, nBits uint32
	buf         [16]byte
}

func (e *bitWriter) write(p []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(p)
}

func (e *bitWriter) writeByte(b byte) {
	if e.err != nil {
		return
	}
	e.err = e.w.WriteByte(b)
}

func (e *bitWriter) flush() {
	if e.err != nil {
		return
	}
	e.err = e.w.Flush()
}

// emit appends the low nBits of bits; nBits is at most 16.
func (e *bitWriter) emit(bits, nBits uint32) {
	nBits += e.nBits
	bits <<= 32 - nBits
	bits |= e.bits
	for nBits >= 8 {
		b := uint8(bits >> 24)
		e.writeByte(b)
		if b == 0xff {
			e.writeByte(0x00)
		}
		bits <<= 8
		nBits -= 8
	}
	e.bits, e.nBits = bits, nBits
}

func (e *bitWriter) emitHuff(h huffIndex, value int32) {
	x := theHuffmanLUT[h][value]
	e.emit(x&(1<<24-1), x>>24)
}

// emitHuffRLE emits a run length and the magnitude category of value,
// followed by its extra bits.
func (e *bitWriter) emitHuffRLE(h huffIndex, runLength, value int32) {
	a, b := value, value
	if a < 0 {
		a, b = -value, value-1
	}
	nBits := bitLength(a)
	e.emitHuff(h, runLength<<4|int32(nBits))
	if nBits > 0 {
		e.emit(uint32(b)&(1<<nBits-1), nBits)
	}
}

func (e *bitWriter) writeMarkerHeader(marker uint8, markerlen int) {
	e.buf[0] = 0xff
	e.buf[1] = marker
	e.buf[2] = uint8(markerlen >> 8)
	e.buf[3] = uint8(markerlen & 0xff)
	e.write(e.buf[:4])
}

// jpegWriter is a baseline encoder that holds only one MCU band: 8 rows
// for gray, 16 rows of Y, Cb and Cr for 4:2:0 color.
type jpegWriter struct {
	scanline.Sink
	bitWriter
	out     io.Writer
	quant   [nQuantIndex][blockSize]byte
	started bool

	mcu    int       // band height and MCU width in pixels
	planes [3][]byte // band samples, mcu rows of Width each
	filled int       // rows in the current band
	prevDC [3]int32
	blk    block
	sub    [4]block
}

func newJPEGWriter(w io.Writer, d scanline.Descriptor, quality int) *jpegWriter {
	jw := &jpegWriter{
		Sink:  scanline.NewSink(d),
		out:   w,
		quant: scaleQuant(quality),
		mcu:   8,
	}
	if d.Channels == 3 {
		jw.mcu = 16
	}
	for c := 0; c < d.Channels; c++ {
		jw.planes[c] = make([]byte, jw.mcu*d.Width)
	}
	return jw
}

func (jw *jpegWriter) start() {
	d := jw.Descriptor()
	jw.w = bufio.NewWriter(jw.out)

	jw.write([]byte{0xff, 0xd8})

	const dqtLen = 2 + int(nQuantIndex)*(1+blockSize)
	jw.writeMarkerHeader(dqtMarker, dqtLen)
	for i := range jw.quant {
		jw.writeByte(uint8(i))
		jw.write(jw.quant[i][:])
	}

	n := d.Channels
	jw.writeMarkerHeader(sof0Marker, 8+3*n)
	jw.buf[0] = 8
	jw.buf[1] = uint8(d.Height >> 8)
	jw.buf[2] = uint8(d.Height & 0xff)
	jw.buf[3] = uint8(d.Width >> 8)
	jw.buf[4] = uint8(d.Width & 0xff)
	jw.buf[5] = uint8(n)
	if n == 1 {
		jw.buf[6], jw.buf[7], jw.buf[8] = 1, 0x11, 0x00
	} else {
		for i := 0; i < n; i++ {
			jw.buf[3*i+6] = uint8(i + 1)
			jw.buf[3*i+7] = "\x22\x11\x11"[i]
			jw.buf[3*i+8] = "\x00\x01\x01"[i]
		}
	}
	jw.write(jw.buf[:3*(n-1)+9])

	specs := theHuffmanSpec[:]
	if n == 1 {
		specs = specs[:2]
	}
	dhtLen := 2
	for _, s := range specs {
		dhtLen += 1 + 16 + len(s.value)
	}
	jw.writeMarkerHeader(dhtMarker, dhtLen)
	for i, s := range specs {
		jw.writeByte("\x00\x10\x01\x11"[i])
		jw.write(s.count[:])
		jw.write(s.value)
	}

	if n == 1 {
		jw.write(sosHeaderY)
	} else {
		jw.write(sosHeaderYCbCr)
	}
}

func (jw *jpegWriter) WriteRow(row []byte) error {
	if !jw.Next(row) {
		return jw.Err()
	}
	if !jw.started {
		jw.started = true
		jw.start()
	}

	d := jw.Descriptor()
	off := jw.filled * d.Width
	if d.Channels == 1 {
		copy(jw.planes[0][off:off+d.Width], row)
	} else {
		for x := 0; x < d.Width; x++ {
			p := row[3*x : 3*x+3]
			yy, cb, cr := color.RGBToYCbCr(p[0], p[1], p[2])
			jw.planes[0][off+x] = yy
			jw.planes[1][off+x] = cb
			jw.planes[2][off+x] = cr
		}
	}
	jw.filled++

	if jw.filled == jw.mcu || jw.Last() {
		jw.encodeBand()
		jw.filled = 0
	}
	if jw.Last() {
		jw.emit(0x7f, 7)
		jw.write([]byte{0xff, 0xd9})
		jw.flush()
	}
	if jw.err != nil {
		return jw.Fail(jw.err)
	}
	return nil
}

// load copies the 8x8 region at (x0, y0) of plane into b, repeating the
// last column and the last filled row past the edges.
func (jw *jpegWriter) load(b *block, plane []byte, x0, y0 int) {
	w := jw.Descriptor().Width
	for j := 0; j < 8; j++ {
		y := min(y0+j, jw.filled-1)
		line := plane[y*w : (y+1)*w]
		for i := 0; i < 8; i++ {
			b[8*j+i] = int32(line[min(x0+i, w-1)])
		}
	}
}

func (jw *jpegWriter) encodeBand() {
	w := jw.Descriptor().Width
	for x := 0; x < w; x += jw.mcu {
		if jw.mcu == 8 {
			jw.load(&jw.blk, jw.planes[0], x, 0)
			jw.prevDC[0] = jw.writeBlock(&jw.blk, quantLuminance, jw.prevDC[0])
			continue
		}
		for i := 0; i < 4; i++ {
			jw.load(&jw.blk, jw.planes[0], x+(i&1)*8, (i&2)*4)
			jw.prevDC[0] = jw.writeBlock(&jw.blk, quantLuminance, jw.prevDC[0])
		}
		for c := 1; c < 3; c++ {
			for i := 0; i < 4; i++ {
				jw.load(&jw.sub[i], jw.planes[c], x+(i&1)*8, (i&2)*4)
			}
			scale(&jw.blk, &jw.sub)
			jw.prevDC[c] = jw.writeBlock(&jw.blk, quantChrominance, jw.prevDC[c])
		}
	}
}

// writeBlock encodes b and returns its quantized DC value.
func (jw *jpegWriter) writeBlock(b *block, q quantIndex, prevDC int32) int32 {
	fdct(b)
	dc := div(b[0], 8*int32(jw.quant[q][0]))
	jw.emitHuffRLE(huffIndex(2*q), 0, dc-prevDC)

	h, runLength := huffIndex(2*q+1), int32(0)
	for zig := 1; zig < blockSize; zig++ {
		ac := div(b[unzig[zig]], 8*int32(jw.quant[q][zig]))
		if ac == 0 {
			runLength++
			continue
		}
		for runLength > 15 {
			jw.emitHuff(h, 0xf0)
			runLength -= 16
		}
		jw.emitHuffRLE(h, runLength, ac)
		runLength = 0
	}
	if runLength > 0 {
		jw.emitHuff(h, 0x00)
	}
	return dc
}

// scale averages the 16x16 region held by the four src blocks (top left,
// top right, bottom left, bottom right) down to 8x8.
func scale(dst *block, src *[4]block) {
	for i := 0; i < 4; i++ {
		dstOff := (i&2)<<4 | (i&1)<<2
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				j := 16*y + 2*x
				sum := src[i][j] + src[i][j+1] + src[i][j+8] + src[i][j+9]
				dst[8*y+x+dstOff] = (sum + 2) >> 2
			}
		}
	}
}
