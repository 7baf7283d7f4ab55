package codec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/AnyUserName/boxshrink/internal/scanline"
)

// PNM streams binary graymaps (P5) and pixmaps (P6) with maxval 255.
type PNM struct{}

func (PNM) Name() string         { return "pnm" }
func (PNM) Extensions() []string { return []string{"pnm", "pgm", "ppm"} }

func (PNM) Match(magic []byte) bool {
	return len(magic) >= 3 && magic[0] == 'P' && (magic[1] == '5' || magic[1] == '6') && isSpace(magic[2])
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}

type pnmReader struct {
	scanline.Source
	br *bufio.Reader
}

func (PNM) NewReader(r io.Reader) scanline.Reader {
	pr := &pnmReader{br: bufio.NewReader(r)}
	d, code, err := pr.header()
	if err != nil {
		pr.FailOpen(code, err)
		return pr
	}
	pr.Open(d)
	return pr
}

// token returns the next header field, skipping whitespace and comments.
// The single whitespace byte ending the field is consumed.
func (pr *pnmReader) token() (string, error) {
	var tok []byte
	for {
		b, err := pr.br.ReadByte()
		if err != nil {
			if err == io.EOF && len(tok) > 0 {
				return string(tok), nil
			}
			return "", err
		}
		switch {
		case b == '#' && len(tok) == 0:
			if _, err := pr.br.ReadString('\n'); err != nil {
				return "", err
			}
		case isSpace(b):
			if len(tok) > 0 {
				return string(tok), nil
			}
		default:
			tok = append(tok, b)
			if len(tok) > 16 {
				return "", errors.New("pnm: header field too long")
			}
		}
	}
}

func (pr *pnmReader) header() (scanline.Descriptor, scanline.Code, error) {
	var d scanline.Descriptor
	magic, err := pr.token()
	if err != nil {
		return d, scanline.CodeHeader, fmt.Errorf("pnm: %w", err)
	}
	switch magic {
	case "P5":
		d.Channels = 1
	case "P6":
		d.Channels = 3
	default:
		return d, scanline.CodeHeader, fmt.Errorf("pnm: unsupported magic %q", magic)
	}

	var vals [3]int
	for i := range vals {
		tok, err := pr.token()
		if err != nil {
			return d, scanline.CodeHeader, fmt.Errorf("pnm: %w", err)
		}
		v, err := strconv.Atoi(tok)
		if err != nil || v < 0 {
			return d, scanline.CodeHeader, fmt.Errorf("pnm: bad header field %q", tok)
		}
		vals[i] = v
	}
	if vals[2] != 255 {
		return d, scanline.CodeHeader, fmt.Errorf("pnm: maxval %d", vals[2])
	}
	d.Width, d.Height = vals[0], vals[1]
	if code := d.Check(); code != scanline.CodeOK {
		return d, code, fmt.Errorf("pnm: descriptor %s", d)
	}
	return d, scanline.CodeOK, nil
}

func (pr *pnmReader) ReadRow(row []byte) error {
	if !pr.Next(row) {
		return pr.Err()
	}
	if _, err := io.ReadFull(pr.br, row[:pr.Descriptor().RowBytes()]); err != nil {
		return pr.FailRow(row, fmt.Errorf("pnm: %w", err))
	}
	return nil
}

type pnmWriter struct {
	scanline.Sink
	bw *bufio.Writer
}

// NewWriter ignores quality.
func (PNM) NewWriter(w io.Writer, d scanline.Descriptor, _ int) scanline.Writer {
	return &pnmWriter{Sink: scanline.NewSink(d), bw: bufio.NewWriter(w)}
}

func (pw *pnmWriter) WriteRow(row []byte) error {
	if !pw.Next(row) {
		return pw.Err()
	}
	d := pw.Descriptor()
	if pw.Rows() == 1 {
		magic := 5
		if d.Channels == 3 {
			magic = 6
		}
		if _, err := fmt.Fprintf(pw.bw, "P%d\n%d %d\n255\n", magic, d.Width, d.Height); err != nil {
			return pw.Fail(err)
		}
	}
	if _, err := pw.bw.Write(row[:d.RowBytes()]); err != nil {
		return pw.Fail(err)
	}
	if pw.Last() {
		if err := pw.bw.Flush(); err != nil {
			return pw.Fail(err)
		}
	}
	return nil
}
