package manifest

// Manifest is the top-level output of a boxshrink build.
type Manifest struct {
	Version     int              `json:"version"`
	GeneratedAt string           `json:"generated_at"`
	Profile     string           `json:"profile"`
	Factor      int              `json:"factor"`
	Quality     int              `json:"quality"`
	Bounds      *Bounds          `json:"bounds,omitempty"`
	BuildInfo   *BuildInfo       `json:"build_info,omitempty"`
	Assets      map[string]Asset `json:"assets"`
	Stats       Stats            `json:"stats"`
}

// Bounds mirrors the output limits a build ran with. Zero fields are
// unconstrained.
type Bounds struct {
	MaxLong   int   `json:"max_long,omitempty"`
	MaxShort  int   `json:"max_short,omitempty"`
	MaxWidth  int   `json:"max_width,omitempty"`
	MaxHeight int   `json:"max_height,omitempty"`
	MaxPixels int64 `json:"max_pixels,omitempty"`
}

// BuildInfo captures build-time parameters for diagnostics.
type BuildInfo struct {
	Workers int `json:"workers"`
	// RowBufferKB is the largest per-image working set: input row,
	// padded row and accumulator.
	RowBufferKB int `json:"row_buffer_kb"`
}

// Asset describes one source image and its reduced output.
type Asset struct {
	Input  Image  `json:"input"`
	Output Image  `json:"output"`
	Hash   string `json:"hash"` // first 16 hex chars of xxhash64
	Path   string `json:"path"` // relative to the manifest
}

// Image is one side of a reduction.
type Image struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Channels int    `json:"channels"`
	Format   string `json:"format"`
	Size     int64  `json:"size"` // bytes on disk
}

// Skipped records an asset left out of the build.
type Skipped struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Stats aggregates build metrics.
type Stats struct {
	TotalInputBytes  int64     `json:"total_input_bytes"`
	TotalOutputBytes int64     `json:"total_output_bytes"`
	TotalAssets      int       `json:"total_assets"`
	Skipped          []Skipped `json:"skipped,omitempty"`
}

// SupportedManifestVersion is the current schema version.
const SupportedManifestVersion = 1

// FileName is the manifest's name inside an output directory.
const FileName = "boxshrink.manifest.json"
