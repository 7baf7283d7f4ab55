package shrink

import (
	"bytes"
	"errors"
	"testing"

	"github.com/AnyUserName/boxshrink/internal/scanline"
	"github.com/AnyUserName/boxshrink/internal/scanline/scanlinetest"
)

// reference reduces a whole in-memory image the slow way: every output
// sample averages factor*factor input samples with coordinates clamped to
// the image, which is what edge extension amounts to.
func reference(rows [][]byte, d scanline.Descriptor, factor int) [][]byte {
	ow, oh := OutputSize(d.Width, d.Height, factor)
	ch := d.Channels
	out := make([][]byte, oh)
	for oy := range out {
		line := make([]byte, ow*ch)
		for ox := 0; ox < ow; ox++ {
			for c := 0; c < ch; c++ {
				sum := 0
				for j := 0; j < factor; j++ {
					y := min(oy*factor+j, d.Height-1)
					for i := 0; i < factor; i++ {
						x := min(ox*factor+i, d.Width-1)
						sum += int(rows[y][x*ch+c])
					}
				}
				line[ox*ch+c] = byte(sum / (factor * factor))
			}
		}
		out[oy] = line
	}
	return out
}

// pattern is a deterministic, non-uniform test image.
func pattern(d scanline.Descriptor) [][]byte {
	return scanlinetest.Generate(d.Width, d.Height, d.Channels, func(x, y, c int) byte {
		return byte((x*37 + y*91 + c*53 + x*y) % 256)
	})
}

func reduceRows(t *testing.T, d scanline.Descriptor, rows [][]byte, opts Options) *scanlinetest.Recorder {
	t.Helper()
	var rec scanlinetest.Recorder
	if err := Reduce(scanlinetest.NewReader(d, rows), rec.Open, opts); err != nil {
		t.Fatalf("reduce %s by %d: %v", d, opts.Factor, err)
	}
	if !rec.Finished() {
		t.Fatalf("reduce %s by %d: wrote %d of %d rows", d, opts.Factor, len(rec.Rows), rec.Desc.Height)
	}
	return &rec
}

func equalRows(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func TestOutputSizePaddingInvariant(t *testing.T) {
	for s := 1; s <= MaxShrink; s++ {
		for in := 1; in <= 70; in++ {
			w, h := OutputSize(in, in+3, s)
			if w*s < in || w*s-in >= s {
				t.Errorf("s=%d in=%d: out_w=%d breaks padding invariant", s, in, w)
			}
			if h*s < in+3 || h*s-(in+3) >= s {
				t.Errorf("s=%d in=%d: out_h=%d breaks padding invariant", s, in+3, h)
			}
		}
	}
}

func TestOutputSizeExamples(t *testing.T) {
	tests := []struct {
		w, h, s      int
		wantW, wantH int
	}{
		{256, 128, 4, 64, 32},
		{10, 10, 4, 3, 3},
		{1, 1, 16, 1, 1},
		{17, 16, 16, 2, 1},
		{7, 5, 1, 7, 5},
		{scanline.MaxDim, scanline.MaxDim, 16, 2000, 2000},
	}
	for _, tt := range tests {
		w, h := OutputSize(tt.w, tt.h, tt.s)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("OutputSize(%d, %d, %d) = %dx%d, want %dx%d", tt.w, tt.h, tt.s, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestBoundsCheck(t *testing.T) {
	tests := []struct {
		name   string
		bounds Bounds
		w, h   int
		ok     bool
	}{
		{"unconstrained", Bounds{}, 5000, 4000, true},
		{"long at limit", Bounds{MaxLong: 64}, 64, 32, true},
		{"long over", Bounds{MaxLong: 63}, 64, 32, false},
		{"long uses height", Bounds{MaxLong: 50}, 32, 64, false},
		{"short at limit", Bounds{MaxShort: 32}, 64, 32, true},
		{"short over", Bounds{MaxShort: 31}, 64, 32, false},
		{"short uses width", Bounds{MaxShort: 31}, 32, 64, false},
		{"square", Bounds{MaxLong: 40, MaxShort: 40}, 40, 40, true},
		{"width over", Bounds{MaxWidth: 10}, 11, 1, false},
		{"height over", Bounds{MaxHeight: 10}, 1, 11, false},
		{"pixels at limit", Bounds{MaxPixels: 2048}, 64, 32, true},
		{"pixels over", Bounds{MaxPixels: 2047}, 64, 32, false},
		{"pixels wide", Bounds{MaxPixels: 1 << 29}, 32000, 32000, false},
		{"all hold", Bounds{MaxLong: 64, MaxShort: 32, MaxWidth: 64, MaxHeight: 32, MaxPixels: 2048}, 64, 32, true},
		{"one fails", Bounds{MaxLong: 64, MaxShort: 32, MaxWidth: 64, MaxHeight: 31, MaxPixels: 2048}, 64, 32, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bounds.Check(tt.w, tt.h)
			if tt.ok && err != nil {
				t.Fatalf("got %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrBoundsViolated) {
				t.Fatalf("got %v, want ErrBoundsViolated", err)
			}
		})
	}
}

func TestBoundsNegativePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("negative bound did not panic")
		}
	}()
	_ = Bounds{MaxWidth: -1}.Check(1, 1)
}

func TestPadRow(t *testing.T) {
	gray := []byte{1, 2, 3, 0, 0, 0}
	padRow(gray, 3, 3, 1)
	if want := []byte{1, 2, 3, 3, 3, 3}; !bytes.Equal(gray, want) {
		t.Errorf("gray: got %v, want %v", gray, want)
	}

	rgb := []byte{1, 2, 3, 4, 5, 6, 0, 0, 0, 0, 0, 0}
	padRow(rgb, 2, 2, 3)
	if want := []byte{1, 2, 3, 4, 5, 6, 4, 5, 6, 4, 5, 6}; !bytes.Equal(rgb, want) {
		t.Errorf("rgb: got %v, want %v", rgb, want)
	}

	none := []byte{9, 8}
	padRow(none, 2, 0, 1)
	if want := []byte{9, 8}; !bytes.Equal(none, want) {
		t.Errorf("no pad: got %v, want %v", none, want)
	}
}

func TestMixSolidBlockAveragesExactly(t *testing.T) {
	colors := [][]byte{{0}, {1}, {128}, {255}, {7, 200, 33}, {255, 0, 254}}
	for _, px := range colors {
		for s := 2; s <= MaxShrink; s++ {
			ch := len(px)
			acc := newAccumulator(1, ch, s)
			row := bytes.Repeat(px, s)
			for i := 0; i < s; i++ {
				acc.mix(row)
			}
			out := make([]byte, ch)
			acc.emit(out)
			if !bytes.Equal(out, px) {
				t.Errorf("s=%d color %v: got %v", s, px, out)
			}
		}
	}
}

func TestMixGroupsColumns(t *testing.T) {
	acc := newAccumulator(3, 1, 2)
	acc.mix([]byte{1, 2, 10, 20, 100, 200})
	want := []uint16{3, 30, 300}
	for i, v := range acc.sums {
		if v != want[i] {
			t.Fatalf("sums: got %v, want %v", acc.sums, want)
		}
	}
	acc.reset()
	for _, v := range acc.sums {
		if v != 0 {
			t.Fatalf("reset left %v", acc.sums)
		}
	}
}

func TestAccumulatorMaxFactorWhite(t *testing.T) {
	const s = MaxShrink
	acc := newAccumulator(4, 3, s)
	row := bytes.Repeat([]byte{255}, 4*s*3)
	for i := 0; i < s; i++ {
		acc.mix(row)
	}
	for i, v := range acc.sums {
		if v != 16*16*255 {
			t.Fatalf("sum[%d] = %d, want %d", i, v, 16*16*255)
		}
	}
	out := make([]byte, len(acc.sums))
	acc.emit(out)
	for i, v := range out {
		if v != 255 {
			t.Fatalf("out[%d] = %d, want 255", i, v)
		}
	}
}

func TestEmitClamps(t *testing.T) {
	acc := newAccumulator(2, 1, 1)
	acc.sums[0] = 65535
	acc.sums[1] = 254
	out := make([]byte, 2)
	acc.emit(out)
	if out[0] != 255 || out[1] != 254 {
		t.Fatalf("got %v, want [255 254]", out)
	}
}

func TestReduceIdentityLaw(t *testing.T) {
	for _, d := range []scanline.Descriptor{
		{Width: 1, Height: 1, Channels: 1},
		{Width: 13, Height: 7, Channels: 1},
		{Width: 9, Height: 11, Channels: 3},
	} {
		rows := pattern(d)

		fast := reduceRows(t, d, rows, Options{Factor: 1, Quality: 90})
		if !equalRows(fast.Rows, rows) {
			t.Errorf("%s: identity path changed pixels", d)
		}

		// The general path must agree at factor 1 too.
		var general scanlinetest.Recorder
		err := newReducer(d, d, 1).run(scanlinetest.NewReader(d, rows), general.Open(d, 90))
		if err != nil {
			t.Fatalf("%s: general path: %v", d, err)
		}
		if !equalRows(general.Rows, rows) {
			t.Errorf("%s: general path at factor 1 changed pixels", d)
		}
	}
}

func TestReduceMatchesReference(t *testing.T) {
	sizes := [][2]int{{1, 1}, {2, 3}, {10, 10}, {17, 5}, {33, 31}, {64, 64}}
	for _, ch := range []int{1, 3} {
		for _, sz := range sizes {
			for _, s := range []int{2, 3, 4, 7, 16} {
				d := scanline.Descriptor{Width: sz[0], Height: sz[1], Channels: ch}
				rows := pattern(d)
				rec := reduceRows(t, d, rows, Options{Factor: s, Quality: 75})
				if want := reference(rows, d, s); !equalRows(rec.Rows, want) {
					t.Errorf("%s by %d: output differs from reference", d, s)
				}
			}
		}
	}
}

func TestReduceUniformGray(t *testing.T) {
	d := scanline.Descriptor{Width: 256, Height: 128, Channels: 1}
	rec := reduceRows(t, d, scanlinetest.Solid(256, 128, 128), Options{Factor: 4, Quality: 90})

	want := scanline.Descriptor{Width: 64, Height: 32, Channels: 1}
	if rec.Desc != want {
		t.Fatalf("output descriptor: got %s, want %s", rec.Desc, want)
	}
	if rec.Quality != 90 {
		t.Errorf("quality: got %d, want 90", rec.Quality)
	}
	for y, row := range rec.Rows {
		for x, v := range row {
			if v != 128 {
				t.Fatalf("pixel (%d,%d) = %d, want 128", x, y, v)
			}
		}
	}
}

func TestReduceEdgeDuplication(t *testing.T) {
	// 10x10 RGB: the last column is pure red, the last row pure green,
	// blue is constant everywhere.
	d := scanline.Descriptor{Width: 10, Height: 10, Channels: 3}
	rows := scanlinetest.Generate(10, 10, 3, func(x, y, c int) byte {
		switch {
		case c == 0 && x == 9:
			return 255
		case c == 1 && y == 9:
			return 255
		case c == 2:
			return 40
		}
		return 0
	})
	rec := reduceRows(t, d, rows, Options{Factor: 4, Quality: 90})
	if rec.Desc.Width != 3 || rec.Desc.Height != 3 {
		t.Fatalf("output: got %s, want 3x3x3", rec.Desc)
	}

	// The last output column covers input columns 8, 9 and two copies of 9:
	// 3 of 4 columns are red, so 12*255/16 = 191. The last output row
	// likewise covers rows 8, 9, 9, 9.
	for oy := 0; oy < 3; oy++ {
		for ox := 0; ox < 3; ox++ {
			px := rec.Rows[oy][ox*3 : ox*3+3]
			wantR, wantG := byte(0), byte(0)
			if ox == 2 {
				wantR = 191
			}
			if oy == 2 {
				wantG = 191
			}
			if px[0] != wantR || px[1] != wantG || px[2] != 40 {
				t.Errorf("pixel (%d,%d) = %v, want [%d %d 40]", ox, oy, px, wantR, wantG)
			}
		}
	}
}

func TestReduceBoundsViolationWritesNothing(t *testing.T) {
	d := scanline.Descriptor{Width: 256, Height: 128, Channels: 1}
	rows := scanlinetest.Solid(256, 128, 10)

	src := scanlinetest.NewReader(d, rows)
	var rec scanlinetest.Recorder
	err := Reduce(src, rec.Open, Options{Factor: 4, Quality: 90, Bounds: &Bounds{MaxPixels: 64*32 - 1}})
	if !errors.Is(err, ErrBoundsViolated) {
		t.Fatalf("got %v, want ErrBoundsViolated", err)
	}
	if rec.Opened || src.Reads != 0 {
		t.Fatalf("bounds violation opened output=%v, read %d rows", rec.Opened, src.Reads)
	}

	rec2 := reduceRows(t, d, rows, Options{Factor: 4, Quality: 90, Bounds: &Bounds{MaxPixels: 64 * 32}})
	if len(rec2.Rows) != 32 {
		t.Fatalf("at the bound: wrote %d rows, want 32", len(rec2.Rows))
	}
}

func TestReduceOpenFailure(t *testing.T) {
	var rec scanlinetest.Recorder
	err := Reduce(scanlinetest.NewFailedReader(scanline.CodeHeader), rec.Open, Options{Factor: 2, Quality: 90})
	if !errors.Is(err, scanline.CodeHeader) {
		t.Fatalf("got %v, want CodeHeader", err)
	}
	if rec.Opened {
		t.Fatal("output opened after source failed to open")
	}
}

func TestReduceReadFailureStops(t *testing.T) {
	d := scanline.Descriptor{Width: 8, Height: 16, Channels: 1}
	src := scanlinetest.NewReader(d, scanlinetest.Solid(8, 16, 50)).FailAt(5)
	var rec scanlinetest.Recorder
	err := Reduce(src, rec.Open, Options{Factor: 4, Quality: 90})
	if !errors.Is(err, scanline.CodeDecode) {
		t.Fatalf("got %v, want CodeDecode", err)
	}
	if src.Reads != 6 {
		t.Errorf("reads: got %d, want 6", src.Reads)
	}
	if len(rec.Rows) != 1 {
		t.Errorf("rows written: got %d, want 1", len(rec.Rows))
	}
	if !errors.Is(src.Err(), scanline.CodeDecode) {
		t.Errorf("source status not sticky: %v", src.Err())
	}
}

func TestReduceIdentityReadFailure(t *testing.T) {
	d := scanline.Descriptor{Width: 4, Height: 4, Channels: 3}
	src := scanlinetest.NewReader(d, scanlinetest.Solid(4, 4, 1, 2, 3)).FailAt(2)
	var rec scanlinetest.Recorder
	err := Reduce(src, rec.Open, Options{Factor: 1, Quality: 90})
	if !errors.Is(err, scanline.CodeDecode) {
		t.Fatalf("got %v, want CodeDecode", err)
	}
	if len(rec.Rows) != 2 {
		t.Errorf("rows written: got %d, want 2", len(rec.Rows))
	}
}

func TestReduceWriteFailure(t *testing.T) {
	d := scanline.Descriptor{Width: 8, Height: 8, Channels: 1}
	rec := scanlinetest.Recorder{FailAt: 2}
	err := Reduce(scanlinetest.NewReader(d, scanlinetest.Solid(8, 8, 1)), rec.Open, Options{Factor: 2, Quality: 90})
	if !errors.Is(err, scanline.CodeEncode) {
		t.Fatalf("got %v, want CodeEncode", err)
	}
}

func TestReduceContractViolationsPanic(t *testing.T) {
	d := scanline.Descriptor{Width: 2, Height: 2, Channels: 1}
	tests := []struct {
		name string
		opts Options
	}{
		{"factor zero", Options{Factor: 0, Quality: 90}},
		{"factor too large", Options{Factor: MaxShrink + 1, Quality: 90}},
		{"quality negative", Options{Factor: 2, Quality: -1}},
		{"quality too large", Options{Factor: 2, Quality: 101}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatal("expected panic")
				}
			}()
			var rec scanlinetest.Recorder
			_ = Reduce(scanlinetest.NewReader(d, scanlinetest.Solid(2, 2, 0)), rec.Open, tt.opts)
		})
	}
}
