package pipeline

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AnyUserName/boxshrink/internal/codec"
)

// Source represents a discovered image file.
type Source struct {
	// AbsPath is the absolute path to the file on disk.
	AbsPath string
	// RelPath is the path relative to the input directory.
	RelPath string
	// Key is the asset key (relpath without extension).
	Key string
	// Format is the format registered for the file extension.
	Format string
	// Size is the file size in bytes.
	Size int64
}

// ScanImages walks the input directory and returns every file whose
// extension some decoder in reg handles, sorted by key.
func ScanImages(inputDir string, reg *codec.Registry) ([]Source, error) {
	var sources []Source

	err := filepath.Walk(inputDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			// Skip hidden directories.
			if strings.HasPrefix(info.Name(), ".") && path != inputDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || !reg.Readable(path) {
			return nil
		}

		relPath, err := filepath.Rel(inputDir, path)
		if err != nil {
			return err
		}

		// Key: relative path without extension, using forward slashes.
		key := filepath.ToSlash(strings.TrimSuffix(relPath, filepath.Ext(relPath)))

		sources = append(sources, Source{
			AbsPath: path,
			RelPath: filepath.ToSlash(relPath),
			Key:     key,
			Format:  reg.ForPath(path).Name(),
			Size:    info.Size(),
		})
		return nil
	})

	sort.Slice(sources, func(i, j int) bool { return sources[i].Key < sources[j].Key })
	return sources, err
}
