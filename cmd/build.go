package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/boxshrink/internal/manifest"
	"github.com/AnyUserName/boxshrink/internal/pipeline"
	"github.com/AnyUserName/boxshrink/internal/profile"
	"github.com/AnyUserName/boxshrink/internal/shrink"
)

var (
	buildOutDir     string
	buildProfile    string
	buildWorkers    int
	buildFactor     int
	buildQuality    int
	buildFormat     string
	buildNoProgress bool
	buildBounds     boundFlags
)

var buildCmd = &cobra.Command{
	Use:   "build <input_dir>",
	Short: "Reduce every image in a directory and write a manifest",
	Long: `Scans input directory for readable images (png, jpg, jpeg, pgm, ppm,
pnm, gif, bmp, tif, tiff, webp), reduces each one with the profile's factor
and writes it to the output directory together with a manifest file.

Images whose reduced size would exceed the bounds are skipped and listed in
the manifest. Output filenames are content-addressed: <key>.<w>x<h>.<hash>.ext`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildOutDir, "out", "o", "./boxshrink_out", "output directory")
	buildCmd.Flags().StringVarP(&buildProfile, "profile", "p", profile.Default, "processing profile")
	buildCmd.Flags().IntVarP(&buildWorkers, "workers", "w", 0, "parallel workers (0 = NumCPU)")
	buildCmd.Flags().IntVarP(&buildFactor, "factor", "f", 0, "reduction factor 1-16 (0 = profile default)")
	buildCmd.Flags().IntVarP(&buildQuality, "quality", "q", -1, "quality 0-100 (-1 = profile default)")
	buildCmd.Flags().StringVar(&buildFormat, "format", "", "output format (default: profile, else input format)")
	buildCmd.Flags().BoolVar(&buildNoProgress, "no-progress", false, "disable the progress bar")
	buildBounds.register(buildCmd)
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	inputDir := args[0]
	start := time.Now()

	// Resolve absolute paths.
	absInput, err := filepath.Abs(inputDir)
	if err != nil {
		return fmt.Errorf("resolve input path: %w", err)
	}
	absOutput, err := filepath.Abs(buildOutDir)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	// Load profile.
	prof, err := lookupProfile(buildProfile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("factor") {
		if buildFactor < 1 || buildFactor > shrink.MaxShrink {
			return errFactorRange
		}
		prof.Factor = buildFactor
	}
	if cmd.Flags().Changed("quality") {
		if buildQuality < 0 || buildQuality > 100 {
			return errQualityRange
		}
		prof.Quality = buildQuality
	}
	if buildFormat != "" {
		prof.Format = buildFormat
	}
	opts := prof.Options()
	if opts.Bounds, err = buildBounds.apply(cmd, prof.Bounds); err != nil {
		return err
	}

	log.Infof("input:   %s", absInput)
	log.Infof("output:  %s", absOutput)
	log.Infof("profile: %s (factor=%d, quality=%d, format=%q)", prof.Name, prof.Factor, prof.Quality, prof.Format)

	// Create output dir.
	if err := os.MkdirAll(absOutput, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	// Run pipeline.
	p := pipeline.New(pipeline.Config{
		InputDir:    absInput,
		OutputDir:   absOutput,
		ProfileName: prof.Name,
		Options:     opts,
		Format:      prof.Format,
		Workers:     buildWorkers,
		Progress:    !buildNoProgress,
	})

	m, err := p.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	// Write manifest.
	manifestPath := filepath.Join(absOutput, manifest.FileName)
	if err := manifest.WriteJSON(m, manifestPath); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	printBuildReport(m, time.Since(start))
	return nil
}

func printBuildReport(m *manifest.Manifest, elapsed time.Duration) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════╗")
	fmt.Println("║            boxshrink build complete              ║")
	fmt.Println("╚══════════════════════════════════════════════════╝")
	fmt.Println()

	stats := m.Stats
	fmt.Printf("  Assets:      %d\n", stats.TotalAssets)
	fmt.Printf("  Factor:      1/%d  (quality %d)\n", m.Factor, m.Quality)
	fmt.Printf("  Input size:  %s\n", formatBytes(stats.TotalInputBytes))
	fmt.Printf("  Output size: %s\n", formatBytes(stats.TotalOutputBytes))
	if stats.TotalInputBytes > 0 {
		ratio := float64(stats.TotalOutputBytes) / float64(stats.TotalInputBytes) * 100
		fmt.Printf("  Ratio:       %.1f%% of original\n", ratio)
	}
	if n := len(stats.Skipped); n > 0 {
		fmt.Printf("  Skipped:     %d (output exceeds bounds)\n", n)
	}
	fmt.Printf("  Time:        %s\n", elapsed.Round(time.Millisecond))

	if m.BuildInfo != nil {
		fmt.Printf("  Workers:     %d  (rows ≈ %d KB each)\n", m.BuildInfo.Workers, m.BuildInfo.RowBufferKB)
	}
	fmt.Println()

	// Top 10 heaviest assets.
	if len(m.Assets) > 0 {
		keys := sortedBySize(m.Assets)
		n := min(len(keys), 10)
		fmt.Printf("  Top %d heaviest (original → reduced):\n", n)
		for _, key := range keys[:n] {
			a := m.Assets[key]
			saved := float64(0)
			if a.Input.Size > 0 {
				saved = (1 - float64(a.Output.Size)/float64(a.Input.Size)) * 100
			}
			fmt.Printf("    %-40s %9s → %-9s %8s  (−%.0f%%)\n",
				truncKey(key, 40),
				dimString(a.Input),
				dimString(a.Output),
				formatBytes(a.Output.Size),
				saved,
			)
		}
		fmt.Println()
	}

	fmt.Printf("  Formats:     %s\n", strings.Join(outputFormats(m), ", "))
	fmt.Println()

	data, _ := json.Marshal(m)
	fmt.Printf("  Manifest:    %s (%s)\n", manifest.FileName, formatBytes(int64(len(data))))
	fmt.Println()
}

// sortedBySize returns asset keys by descending input size.
func sortedBySize(assets map[string]manifest.Asset) []string {
	keys := make([]string, 0, len(assets))
	for k := range assets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := assets[keys[i]].Input.Size, assets[keys[j]].Input.Size
		if a != b {
			return a > b
		}
		return keys[i] < keys[j]
	})
	return keys
}

func outputFormats(m *manifest.Manifest) []string {
	set := map[string]bool{}
	for _, a := range m.Assets {
		set[a.Output.Format] = true
	}
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func dimString(img manifest.Image) string {
	return fmt.Sprintf("%dx%d", img.Width, img.Height)
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func truncKey(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max+3:]
}
