package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/boxshrink/internal/manifest"
)

var statsCmd = &cobra.Command{
	Use:   "stats <out_dir_or_manifest>",
	Short: "Display statistics for a built output directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(_ *cobra.Command, args []string) error {
	path, err := manifestPath(args[0])
	if err != nil {
		return err
	}
	m, err := manifest.ReadJSON(path)
	if err != nil {
		return err
	}
	printStats(m)
	return nil
}

// manifestPath accepts either an output directory or the manifest itself.
func manifestPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return filepath.Join(path, manifest.FileName), nil
	}
	return path, nil
}

func printStats(m *manifest.Manifest) {
	fmt.Println()
	fmt.Printf("  Manifest version: %d\n", m.Version)
	fmt.Printf("  Generated:        %s\n", m.GeneratedAt)
	fmt.Printf("  Profile:          %s (factor %d, quality %d)\n", m.Profile, m.Factor, m.Quality)
	if b := m.Bounds; b != nil {
		fmt.Printf("  Bounds:           long=%d short=%d width=%d height=%d pixels=%d\n",
			b.MaxLong, b.MaxShort, b.MaxWidth, b.MaxHeight, b.MaxPixels)
	}
	if m.BuildInfo != nil {
		poolKB := m.BuildInfo.Workers * m.BuildInfo.RowBufferKB
		fmt.Printf("  Workers:          %d\n", m.BuildInfo.Workers)
		fmt.Printf("  Row buffers:      %d × %d KB ≈ %d KB\n",
			m.BuildInfo.Workers, m.BuildInfo.RowBufferKB, poolKB)
	}
	fmt.Println()

	s := m.Stats
	fmt.Printf("  Total assets:     %d\n", s.TotalAssets)
	fmt.Printf("  Input size:       %s\n", formatBytes(s.TotalInputBytes))
	fmt.Printf("  Output size:      %s\n", formatBytes(s.TotalOutputBytes))
	if s.TotalInputBytes > 0 {
		ratio := float64(s.TotalOutputBytes) / float64(s.TotalInputBytes) * 100
		fmt.Printf("  Compression:      %.1f%% of original\n", ratio)
	}
	fmt.Println()

	// Per-format breakdown.
	type formatStat struct {
		count int
		bytes int64
	}
	formats := map[string]formatStat{}
	for _, a := range m.Assets {
		fs := formats[a.Output.Format]
		fs.count++
		fs.bytes += a.Output.Size
		formats[a.Output.Format] = fs
	}
	fmt.Println("  Format breakdown:")
	for _, f := range outputFormats(m) {
		fs := formats[f]
		fmt.Printf("    %-6s  %4d files  %s\n", f, fs.count, formatBytes(fs.bytes))
	}
	fmt.Println()

	// Channel breakdown.
	channels := map[int]int{}
	for _, a := range m.Assets {
		channels[a.Output.Channels]++
	}
	var chans []int
	for c := range channels {
		chans = append(chans, c)
	}
	sort.Ints(chans)
	fmt.Println("  Channel breakdown:")
	for _, c := range chans {
		name := "color"
		if c == 1 {
			name = "gray"
		}
		fmt.Printf("    %-6s  %4d assets\n", name, channels[c])
	}

	if len(s.Skipped) > 0 {
		fmt.Println()
		fmt.Printf("  Skipped (%d):\n", len(s.Skipped))
		for _, sk := range s.Skipped {
			fmt.Printf("    ⚠ %s: %s\n", sk.Key, sk.Reason)
		}
	}
	fmt.Println()
}
