package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AnyUserName/boxshrink/internal/codec"
	"github.com/AnyUserName/boxshrink/internal/hasher"
	"github.com/AnyUserName/boxshrink/internal/shrink"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 100, 255})
		}
	}
	writeFile(t, path, func(f *os.File) error { return png.Encode(f, img) })
}

func writeGIF(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewPaletted(image.Rect(0, 0, w, h), color.Palette{color.White, color.Black})
	writeFile(t, path, func(f *os.File) error { return gif.Encode(f, img, nil) })
}

func writeFile(t *testing.T, path string, enc func(*os.File) error) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := enc(f); err != nil {
		t.Fatal(err)
	}
}

func TestScanImages(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 2, 2)
	writePNG(t, filepath.Join(dir, "sub", "b.PNG"), 2, 2)
	writePNG(t, filepath.Join(dir, ".hidden", "c.png"), 2, 2)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)

	sources, err := ScanImages(dir, codec.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 2 {
		t.Fatalf("sources: got %d, want 2: %+v", len(sources), sources)
	}
	if sources[0].Key != "a" || sources[1].Key != "sub/b" {
		t.Errorf("keys: got %q, %q", sources[0].Key, sources[1].Key)
	}
	if sources[1].Format != "png" || sources[1].RelPath != "sub/b.PNG" {
		t.Errorf("source: got %+v", sources[1])
	}
}

func TestRunReducesAndNamesByContent(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writePNG(t, filepath.Join(in, "banner.png"), 30, 17)
	writePNG(t, filepath.Join(in, "cards", "one.png"), 8, 8)
	writeGIF(t, filepath.Join(in, "anim.gif"), 9, 9)

	p := New(Config{
		InputDir:    in,
		OutputDir:   out,
		ProfileName: "test",
		Options:     shrink.Options{Factor: 4, Quality: 50},
		Workers:     2,
	})
	m, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(m.Assets) != 3 {
		t.Fatalf("assets: got %d, want 3", len(m.Assets))
	}
	if m.Factor != 4 || m.BuildInfo == nil || m.BuildInfo.Workers != 2 {
		t.Errorf("manifest parameters: factor=%d build_info=%+v", m.Factor, m.BuildInfo)
	}

	a := m.Assets["banner"]
	if a.Output.Width != 8 || a.Output.Height != 5 || a.Output.Format != "png" {
		t.Errorf("banner output: got %+v", a.Output)
	}
	if !strings.HasPrefix(a.Path, "banner.8x5.") || !strings.HasSuffix(a.Path, ".png") {
		t.Errorf("banner path: got %q", a.Path)
	}

	data, err := os.ReadFile(filepath.Join(out, a.Path))
	if err != nil {
		t.Fatal(err)
	}
	if got := hasher.ContentHash(data, hasher.HexLen); got != a.Hash {
		t.Errorf("hash: manifest %s, file %s", a.Hash, got)
	}
	if int64(len(data)) != a.Output.Size {
		t.Errorf("size: manifest %d, file %d", a.Output.Size, len(data))
	}
	cfg, err := png.DecodeConfig(strings.NewReader(string(data)))
	if err != nil || cfg.Width != 8 || cfg.Height != 5 {
		t.Errorf("output decodes as %+v (%v)", cfg, err)
	}

	if got := m.Assets["cards/one"].Path; !strings.HasPrefix(got, "cards/one.2x2.") {
		t.Errorf("nested path: got %q", got)
	}
	// GIF has no encoder, so the output falls back to PNG.
	if got := m.Assets["anim"]; got.Input.Format != "gif" || got.Output.Format != "png" {
		t.Errorf("gif asset: got %+v", got)
	}

	temps, _ := filepath.Glob(filepath.Join(out, ".boxshrink-*"))
	if len(temps) != 0 {
		t.Errorf("temp files left behind: %v", temps)
	}
}

func TestRunSkipsBoundsViolations(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writePNG(t, filepath.Join(in, "small.png"), 8, 8)
	writePNG(t, filepath.Join(in, "wide.png"), 64, 8)

	p := New(Config{
		InputDir:  in,
		OutputDir: out,
		Options:   shrink.Options{Factor: 2, Quality: 90, Bounds: &shrink.Bounds{MaxLong: 16}},
		Format:    "pnm",
	})
	m, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Assets["small"]; !ok || len(m.Assets) != 1 {
		t.Fatalf("assets: got %v", m.Assets)
	}
	if len(m.Stats.Skipped) != 1 || m.Stats.Skipped[0].Key != "wide" {
		t.Fatalf("skipped: got %+v", m.Stats.Skipped)
	}
	if !strings.Contains(m.Stats.Skipped[0].Reason, shrink.ErrBoundsViolated.Error()) {
		t.Errorf("reason: got %q", m.Stats.Skipped[0].Reason)
	}
	if m.Bounds == nil || m.Bounds.MaxLong != 16 {
		t.Errorf("bounds: got %+v", m.Bounds)
	}
	if got := m.Assets["small"].Path; !strings.HasSuffix(got, ".pnm") {
		t.Errorf("format override: got %q", got)
	}
}

func TestRunFailures(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	os.WriteFile(filepath.Join(in, "broken.png"), []byte("\x89PNG\r\n\x1a\ngarbage"), 0o644)

	opts := shrink.Options{Factor: 2, Quality: 90}
	_, err := New(Config{InputDir: in, OutputDir: out, Options: opts}).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "all 1 images failed") {
		t.Errorf("all failed: got %v", err)
	}

	_, err = New(Config{InputDir: t.TempDir(), OutputDir: out, Options: opts}).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "no images found") {
		t.Errorf("empty dir: got %v", err)
	}

	writePNG(t, filepath.Join(in, "ok.png"), 4, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(Config{InputDir: in, OutputDir: out, Options: opts}).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: got %v", err)
	}
}

func TestRowBufferKB(t *testing.T) {
	// 1000 RGB pixels by 4: 1000*3 padded + 250*3*2 acc + 250*3 out = 5250 bytes.
	if got := rowBufferKB(1000, 3, 4); got != 6 {
		t.Errorf("got %d KB, want 6", got)
	}
}
