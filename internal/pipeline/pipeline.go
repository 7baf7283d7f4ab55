package pipeline

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/AnyUserName/boxshrink/internal/codec"
	"github.com/AnyUserName/boxshrink/internal/logger"
	"github.com/AnyUserName/boxshrink/internal/manifest"
	"github.com/AnyUserName/boxshrink/internal/shrink"
)

var log = logger.Log

// Config holds all parameters for a build pipeline run.
type Config struct {
	InputDir    string
	OutputDir   string
	ProfileName string
	Options     shrink.Options
	Format      string // output format; empty keeps the input format
	Workers     int
	Progress    bool // draw a progress bar on stderr
}

// Pipeline orchestrates batch reduction.
type Pipeline struct {
	cfg      Config
	registry *codec.Registry
}

// New creates a configured pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Pipeline{
		cfg:      cfg,
		registry: codec.NewRegistry(),
	}
}

// Run reduces every image under the input directory and returns the
// manifest. Images whose output would exceed the bounds are recorded as
// skipped. Run fails only when every image fails or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) (*manifest.Manifest, error) {
	log.Infof("%s", p.registry.String())

	// Step 1: Scan for images.
	sources, err := ScanImages(p.cfg.InputDir, p.registry)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no images found in %s", p.cfg.InputDir)
	}
	log.Infof("found %d images", len(sources))

	var bar *progressbar.ProgressBar
	if p.cfg.Progress {
		bar = progressbar.NewOptions(len(sources),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("reducing"),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionClearOnFinish())
	}

	// Step 2: Process images in parallel.
	results := make([]processResult, len(sources))
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.cfg.Workers)
	seen := make(map[string]string, len(sources))

	for i, src := range sources {
		if prev, dup := seen[src.Key]; dup {
			results[i] = processResult{
				key: src.Key,
				err: fmt.Errorf("%s: key %q already used by %s", src.RelPath, src.Key, prev),
			}
			continue
		}
		seen[src.Key] = src.RelPath

		wg.Add(1)
		go func(idx int, s Source) {
			defer wg.Done()
			select {
			case sem <- struct{}{}: // acquire
			case <-ctx.Done():
				results[idx] = processResult{key: s.Key, err: ctx.Err()}
				return
			}
			defer func() { <-sem }() // release

			if err := ctx.Err(); err != nil {
				results[idx] = processResult{key: s.Key, err: err}
				return
			}
			log.Debugf("processing: %s", s.Key)
			results[idx] = processImage(s, p.cfg, p.registry)
			if bar != nil {
				bar.Add(1)
			}
		}(i, src)
	}
	wg.Wait()
	if bar != nil {
		bar.Finish()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 3: Collect results into manifest.
	m := manifest.New(p.cfg.ProfileName)
	m.Factor = p.cfg.Options.Factor
	m.Quality = p.cfg.Options.Quality
	if b := p.cfg.Options.Bounds; b != nil && !b.IsZero() {
		m.Bounds = &manifest.Bounds{
			MaxLong:   b.MaxLong,
			MaxShort:  b.MaxShort,
			MaxWidth:  b.MaxWidth,
			MaxHeight: b.MaxHeight,
			MaxPixels: b.MaxPixels,
		}
	}

	var failed, rowKB int
	for _, r := range results {
		switch {
		case r.skipped:
			log.Warnf("skip: %s: %v", r.key, r.err)
			m.Stats.Skipped = append(m.Stats.Skipped, manifest.Skipped{Key: r.key, Reason: r.err.Error()})
		case r.err != nil:
			log.Errorf("%v", r.err)
			failed++
		default:
			m.Assets[r.key] = r.asset
			rowKB = max(rowKB, rowBufferKB(r.asset.Input.Width, r.asset.Input.Channels, m.Factor))
		}
	}

	// Report errors but don't fail the entire build for partial failures.
	if failed == len(sources) {
		return nil, fmt.Errorf("all %d images failed to process", failed)
	}
	if failed > 0 {
		log.Warnf("%d of %d images had errors", failed, len(sources))
	}

	m.BuildInfo = &manifest.BuildInfo{
		Workers:     p.cfg.Workers,
		RowBufferKB: rowKB,
	}
	m.ComputeStats()
	return m, nil
}
