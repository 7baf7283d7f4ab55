package hasher

import (
	"encoding/hex"
	"io"

	"github.com/cespare/xxhash/v2"
)

// HexLen is the hash length recorded in manifests; file names use the
// first 8 characters.
const HexLen = 16

// ContentHash computes the xxHash64 of data and returns a hex string
// truncated to hexLen.
func ContentHash(data []byte, hexLen int) string {
	return format(xxhash.Sum64(data), hexLen)
}

// ContentHashReader computes xxHash64 from a reader, streaming.
func ContentHashReader(r io.Reader, hexLen int) (string, error) {
	h := xxhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return format(h.Sum64(), hexLen), nil
}

// Writer passes writes through to an underlying writer while hashing
// them, so an encoded image can be named by content without buffering it.
type Writer struct {
	w io.Writer
	h *xxhash.Digest
	n int64
}

// NewWriter returns a hashing Writer in front of w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, h: xxhash.New()}
}

func (hw *Writer) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	hw.h.Write(p[:n])
	hw.n += int64(n)
	return n, err
}

// Size returns the number of bytes written so far.
func (hw *Writer) Size() int64 { return hw.n }

// Sum returns the hash of everything written so far.
func (hw *Writer) Sum(hexLen int) string { return format(hw.h.Sum64(), hexLen) }

func format(v uint64, hexLen int) string {
	full := hex.EncodeToString(uint64ToBytes(v))
	if hexLen > 0 && hexLen < len(full) {
		return full[:hexLen]
	}
	return full
}

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	b[0] = byte(v >> 56)
	b[1] = byte(v >> 48)
	b[2] = byte(v >> 40)
	b[3] = byte(v >> 32)
	b[4] = byte(v >> 24)
	b[5] = byte(v >> 16)
	b[6] = byte(v >> 8)
	b[7] = byte(v)
	return b
}
