package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/boxshrink/internal/hasher"
	"github.com/AnyUserName/boxshrink/internal/manifest"
	"github.com/AnyUserName/boxshrink/internal/shrink"
)

var validateCmd = &cobra.Command{
	Use:   "validate <out_dir_or_manifest>",
	Short: "Validate a manifest and check referenced files exist and match",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(_ *cobra.Command, args []string) error {
	path, err := manifestPath(args[0])
	if err != nil {
		return err
	}
	m, err := manifest.ReadJSON(path)
	if err != nil {
		return err
	}

	errs := validateManifest(m, filepath.Dir(path))
	if len(errs) == 0 {
		fmt.Println("  ✓ Manifest is valid")
		fmt.Printf("  ✓ %d assets, all files present and matching\n", m.Stats.TotalAssets)
		return nil
	}

	fmt.Printf("  ✗ Manifest has %d error(s):\n", len(errs))
	for _, e := range errs {
		fmt.Printf("    • %s\n", e)
	}
	return fmt.Errorf("validation failed with %d errors", len(errs))
}

func validateManifest(m *manifest.Manifest, baseDir string) []string {
	var errs []string

	if m.Version != manifest.SupportedManifestVersion {
		errs = append(errs, fmt.Sprintf("unsupported manifest version: %d", m.Version))
	}
	if m.Factor < 1 || m.Factor > shrink.MaxShrink {
		errs = append(errs, fmt.Sprintf("factor %d out of range", m.Factor))
	}

	seenPaths := map[string]string{}
	for key, a := range m.Assets {
		if a.Input.Width <= 0 || a.Input.Height <= 0 {
			errs = append(errs, fmt.Sprintf("asset %q: invalid input dimensions %dx%d",
				key, a.Input.Width, a.Input.Height))
			continue
		}

		// Output size must follow from the input and factor.
		if m.Factor >= 1 && m.Factor <= shrink.MaxShrink {
			w, h := shrink.OutputSize(a.Input.Width, a.Input.Height, m.Factor)
			if a.Output.Width != w || a.Output.Height != h {
				errs = append(errs, fmt.Sprintf("asset %q: output %dx%d, want %dx%d",
					key, a.Output.Width, a.Output.Height, w, h))
			}
		}
		if a.Output.Channels != a.Input.Channels {
			errs = append(errs, fmt.Sprintf("asset %q: channels changed %d -> %d",
				key, a.Input.Channels, a.Output.Channels))
		}
		if a.Output.Format == "" {
			errs = append(errs, fmt.Sprintf("asset %q: empty output format", key))
		}
		if a.Hash == "" {
			errs = append(errs, fmt.Sprintf("asset %q: missing hash", key))
		}
		if a.Path == "" {
			errs = append(errs, fmt.Sprintf("asset %q: missing path", key))
			continue
		}
		if prev, dup := seenPaths[a.Path]; dup {
			errs = append(errs, fmt.Sprintf("asset %q: path %q already used by %q", key, a.Path, prev))
		}
		seenPaths[a.Path] = key

		if err := checkFile(filepath.Join(baseDir, filepath.FromSlash(a.Path)), a); err != "" {
			errs = append(errs, fmt.Sprintf("asset %q: %s", key, err))
		}
	}

	// Verify stats consistency.
	if m.Stats.TotalAssets != len(m.Assets) {
		errs = append(errs, fmt.Sprintf("stats.total_assets mismatch: %d != %d", m.Stats.TotalAssets, len(m.Assets)))
	}
	for _, sk := range m.Stats.Skipped {
		if _, ok := m.Assets[sk.Key]; ok {
			errs = append(errs, fmt.Sprintf("asset %q is both built and skipped", sk.Key))
		}
	}

	return errs
}

// checkFile compares the file on disk with the asset's recorded size and
// hash. It returns an empty string when they match.
func checkFile(path string, a manifest.Asset) string {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Sprintf("file not found: %s", a.Path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err.Error()
	}
	if a.Output.Size > 0 && info.Size() != a.Output.Size {
		return fmt.Sprintf("size mismatch: manifest=%d, disk=%d", a.Output.Size, info.Size())
	}
	if a.Hash == "" {
		return ""
	}
	sum, err := hasher.ContentHashReader(f, len(a.Hash))
	if err != nil {
		return fmt.Sprintf("read %s: %v", a.Path, err)
	}
	if sum != a.Hash {
		return fmt.Sprintf("hash mismatch: manifest=%s, disk=%s", a.Hash, sum)
	}
	return ""
}
