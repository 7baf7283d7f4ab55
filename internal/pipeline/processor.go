package pipeline

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/AnyUserName/boxshrink/internal/codec"
	"github.com/AnyUserName/boxshrink/internal/hasher"
	"github.com/AnyUserName/boxshrink/internal/manifest"
	"github.com/AnyUserName/boxshrink/internal/shrink"
)

// processResult holds the result of processing a single source image.
type processResult struct {
	key     string
	asset   manifest.Asset
	err     error
	skipped bool // bounds rejected the output size
}

// processImage reduces one source image into the output directory. The
// encoded stream goes to a temp file while being hashed, then is renamed
// to its content-addressed name.
func processImage(src Source, cfg Config, reg *codec.Registry) processResult {
	result := processResult{key: src.Key}

	f, err := os.Open(src.AbsPath)
	if err != nil {
		result.err = fmt.Errorf("open %s: %w", src.RelPath, err)
		return result
	}
	defer f.Close()

	br := bufio.NewReader(f)
	dec, err := reg.Sniff(br)
	if err != nil {
		result.err = fmt.Errorf("%s: %w", src.RelPath, err)
		return result
	}
	r := dec.NewReader(br)
	if err := r.Err(); err != nil {
		result.err = fmt.Errorf("%s: %w", src.RelPath, err)
		return result
	}
	in := r.Descriptor()

	opts := cfg.Options
	out, err := shrink.Resolve(in, opts.Factor, opts.Bounds)
	if errors.Is(err, shrink.ErrBoundsViolated) {
		result.err = err
		result.skipped = true
		return result
	}

	enc, err := reg.OutputFor(cfg.Format, dec.Name())
	if err != nil {
		result.err = fmt.Errorf("%s: %w", src.RelPath, err)
		return result
	}

	keyDir := filepath.Dir(src.Key)
	outDir := filepath.Join(cfg.OutputDir, filepath.FromSlash(keyDir))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		result.err = fmt.Errorf("create %s: %w", outDir, err)
		return result
	}

	tmp, err := os.CreateTemp(outDir, ".boxshrink-*")
	if err != nil {
		result.err = fmt.Errorf("create temp file: %w", err)
		return result
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	hw := hasher.NewWriter(tmp)
	if err := shrink.Reduce(r, codec.Opener(enc, hw), opts); err != nil {
		result.err = fmt.Errorf("%s: %w", src.RelPath, err)
		return result
	}
	if err := tmp.Close(); err != nil {
		result.err = fmt.Errorf("close %s: %w", tmp.Name(), err)
		return result
	}

	hash := hw.Sum(hasher.HexLen)
	fileName := fmt.Sprintf("%s.%dx%d.%s.%s",
		filepath.Base(src.Key), out.Width, out.Height, hash[:8], enc.Extensions()[0])
	relPath := filepath.ToSlash(filepath.Join(keyDir, fileName))
	if err := os.Rename(tmp.Name(), filepath.Join(cfg.OutputDir, filepath.FromSlash(relPath))); err != nil {
		result.err = fmt.Errorf("write %s: %w", relPath, err)
		return result
	}
	committed = true

	log.WithFields(logrus.Fields{
		"key":    src.Key,
		"in":     in.String(),
		"out":    out.String(),
		"format": enc.Name(),
	}).Debug("reduced")

	result.asset = manifest.Asset{
		Input: manifest.Image{
			Width: in.Width, Height: in.Height, Channels: in.Channels,
			Format: dec.Name(), Size: src.Size,
		},
		Output: manifest.Image{
			Width: out.Width, Height: out.Height, Channels: out.Channels,
			Format: enc.Name(), Size: hw.Size(),
		},
		Hash: hash,
		Path: relPath,
	}
	return result
}

// rowBufferKB estimates the engine's working set for an image of width
// pixels: padded input row, uint16 accumulator and output row.
func rowBufferKB(width, channels, factor int) int {
	outW, _ := shrink.OutputSize(width, 1, factor)
	n := outW*factor*channels + outW*channels*2 + outW*channels
	return (n + 1023) / 1024
}
