package scanline

import "fmt"

// Source holds the bookkeeping shared by Reader implementations: the
// descriptor, the sticky status and the count of rows handed out. Embed it
// to get Descriptor and Err.
type Source struct {
	desc   Descriptor
	status Status
	rows   int
}

// Open validates d and adopts it. On failure the descriptor falls back to
// 1x1x1 and the range error is recorded.
func (s *Source) Open(d Descriptor) error {
	if code := d.Check(); code != CodeOK {
		return s.FailOpen(code, fmt.Errorf("descriptor %s", d))
	}
	s.desc = d
	return nil
}

// FailOpen records a failure detected while opening the stream.
func (s *Source) FailOpen(code Code, cause error) error {
	s.desc = fallback
	return s.status.Fail(code, cause)
}

// Descriptor returns the stream geometry; it is always a legal value.
func (s *Source) Descriptor() Descriptor {
	if s.desc.Width == 0 {
		return fallback
	}
	return s.desc
}

// Err returns the sticky status of the stream.
func (s *Source) Err() error { return s.status.Err() }

// Next enforces the per-call contract of ReadRow and reports whether the
// caller should decode into row. When it returns false, row has been
// zero-filled and Err holds the reason.
func (s *Source) Next(row []byte) bool {
	d := s.Descriptor()
	if len(row) < d.RowBytes() {
		panic(fmt.Sprintf("scanline: row buffer of %d bytes, need %d", len(row), d.RowBytes()))
	}
	if s.rows >= d.Height {
		panic(fmt.Sprintf("scanline: read past row %d of %d", s.rows, d.Height))
	}
	s.rows++
	if !s.status.OK() {
		clear(row[:d.RowBytes()])
		return false
	}
	return true
}

// Last reports whether the most recent row handed out was the final one.
func (s *Source) Last() bool { return s.rows >= s.Descriptor().Height }

// FailRow records a decode failure, blanks row and returns the error.
func (s *Source) FailRow(row []byte, cause error) error {
	clear(row[:s.Descriptor().RowBytes()])
	return s.status.Fail(CodeDecode, cause)
}

// Sink holds the bookkeeping shared by Writer implementations.
type Sink struct {
	desc   Descriptor
	status Status
	rows   int
}

// NewSink returns bookkeeping for an output of geometry d. An illegal
// descriptor is a caller bug and panics.
func NewSink(d Descriptor) Sink {
	if code := d.Check(); code != CodeOK {
		panic(fmt.Sprintf("scanline: writer descriptor %s: %s", d, code))
	}
	return Sink{desc: d}
}

// Descriptor returns the declared output geometry.
func (s *Sink) Descriptor() Descriptor { return s.desc }

// Next enforces the per-call contract of WriteRow and reports whether the
// caller should encode row.
func (s *Sink) Next(row []byte) bool {
	if len(row) < s.desc.RowBytes() {
		panic(fmt.Sprintf("scanline: row buffer of %d bytes, need %d", len(row), s.desc.RowBytes()))
	}
	if s.rows >= s.desc.Height {
		panic(fmt.Sprintf("scanline: write past row %d of %d", s.rows, s.desc.Height))
	}
	s.rows++
	return s.status.OK()
}

// Rows returns the number of rows accepted so far.
func (s *Sink) Rows() int { return s.rows }

// Last reports whether the most recent row accepted was the final one.
func (s *Sink) Last() bool { return s.rows >= s.desc.Height }

// Fail records an output failure and returns the error.
func (s *Sink) Fail(cause error) error { return s.status.Fail(CodeEncode, cause) }

// Err returns the sticky status of the output.
func (s *Sink) Err() error { return s.status.Err() }
