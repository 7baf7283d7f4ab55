package profile

import (
	"sort"

	"github.com/AnyUserName/boxshrink/internal/shrink"
)

// Profile bundles reduction parameters for a common target.
type Profile struct {
	Name    string
	Factor  int    // reduction factor 1-16
	Quality int    // encoding quality 0-100
	Format  string // output format; empty keeps the input format
	Bounds  shrink.Bounds
}

// Default is the profile a batch build uses when none is named.
const Default = "half"

// Built-in profiles.
var profiles = map[string]Profile{
	"thumb": {
		Name:    "thumb",
		Factor:  8,
		Quality: 75,
		Format:  "jpeg",
		Bounds:  shrink.Bounds{MaxLong: 640},
	},
	"preview": {
		Name:    "preview",
		Factor:  4,
		Quality: 82,
		Bounds:  shrink.Bounds{MaxLong: 2048},
	},
	"half": {
		Name:    "half",
		Factor:  2,
		Quality: 90,
	},
	"archive": {
		Name:    "archive",
		Factor:  1,
		Quality: 100,
		Format:  "png",
	},
}

// Lookup returns the named profile and whether it exists.
func Lookup(name string) (Profile, bool) {
	p, ok := profiles[name]
	return p, ok
}

// Names lists the built-in profiles alphabetically.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Options converts p into engine options. The returned Bounds pointer is
// nil when p sets no bound.
func (p Profile) Options() shrink.Options {
	opts := shrink.Options{Factor: p.Factor, Quality: p.Quality}
	if !p.Bounds.IsZero() {
		b := p.Bounds
		opts.Bounds = &b
	}
	return opts
}
