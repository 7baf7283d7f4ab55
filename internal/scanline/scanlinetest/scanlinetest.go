// Package scanlinetest provides in-memory Readers and Writers for tests.
package scanlinetest

import (
	"errors"
	"fmt"

	"github.com/AnyUserName/boxshrink/internal/scanline"
)

// ErrInjected is the cause recorded when a Reader fails on purpose.
var ErrInjected = errors.New("injected decode failure")

// Reader serves rows held in memory.
type Reader struct {
	scanline.Source
	rows   [][]byte
	next   int
	failAt int
	Reads  int
}

// NewReader returns a Reader over rows; each row must hold d.RowBytes bytes.
func NewReader(d scanline.Descriptor, rows [][]byte) *Reader {
	r := &Reader{rows: rows, failAt: -1}
	if err := r.Open(d); err != nil {
		return r
	}
	if len(rows) != d.Height {
		panic(fmt.Sprintf("scanlinetest: %d rows for height %d", len(rows), d.Height))
	}
	return r
}

// NewFailedReader returns a Reader whose open already failed with code.
func NewFailedReader(code scanline.Code) *Reader {
	r := &Reader{failAt: -1}
	r.FailOpen(code, ErrInjected)
	return r
}

// FailAt makes the read of row index i (zero based) fail.
func (r *Reader) FailAt(i int) *Reader {
	r.failAt = i
	return r
}

func (r *Reader) ReadRow(row []byte) error {
	r.Reads++
	if !r.Next(row) {
		return r.Err()
	}
	i := r.next
	r.next++
	if i == r.failAt {
		return r.FailRow(row, ErrInjected)
	}
	copy(row, r.rows[i])
	return nil
}

// Recorder opens Writers that keep every row written to them.
type Recorder struct {
	Opened  bool
	Desc    scanline.Descriptor
	Quality int
	Rows    [][]byte
	// FailAt, when positive, makes the write of that row number (one based) fail.
	FailAt int
}

// Open satisfies scanline.Opener.
func (rec *Recorder) Open(d scanline.Descriptor, quality int) scanline.Writer {
	rec.Opened = true
	rec.Desc = d
	rec.Quality = quality
	return &recordWriter{Sink: scanline.NewSink(d), rec: rec}
}

// Finished reports whether exactly Desc.Height rows were written.
func (rec *Recorder) Finished() bool {
	return rec.Opened && len(rec.Rows) == rec.Desc.Height
}

type recordWriter struct {
	scanline.Sink
	rec *Recorder
}

func (w *recordWriter) WriteRow(row []byte) error {
	if !w.Next(row) {
		return w.Err()
	}
	if w.rec.FailAt > 0 && w.Rows() == w.rec.FailAt {
		return w.Fail(ErrInjected)
	}
	w.rec.Rows = append(w.rec.Rows, append([]byte(nil), row[:w.Descriptor().RowBytes()]...))
	return nil
}

// Solid returns height rows of width pixels all set to px.
func Solid(width, height int, px ...byte) [][]byte {
	return Generate(width, height, len(px), func(x, y, c int) byte { return px[c] })
}

// Generate builds rows whose samples come from f(x, y, channel).
func Generate(width, height, channels int, f func(x, y, c int) byte) [][]byte {
	rows := make([][]byte, height)
	for y := range rows {
		row := make([]byte, width*channels)
		for x := 0; x < width; x++ {
			for c := 0; c < channels; c++ {
				row[x*channels+c] = f(x, y, c)
			}
		}
		rows[y] = row
	}
	return rows
}
