package codec

import (
	"bufio"
	"fmt"
	"path/filepath"
	"strings"
)

// sniffLen is how many leading bytes Sniff inspects.
const sniffLen = 16

// Registry holds the known formats and resolves them by name, file
// extension or content.
type Registry struct {
	formats []Format
	byName  map[string]Format
	byExt   map[string]Format
}

// NewRegistry returns a registry with every built-in format.
func NewRegistry() *Registry {
	r := &Registry{
		byName: make(map[string]Format),
		byExt:  make(map[string]Format),
	}

	// Streaming formats first so their extensions win.
	all := []Format{
		PNG{},
		JPEG{},
		PNM{},
		decodedGIF,
		decodedBMP,
		decodedTIFF,
		decodedWebP,
	}
	for _, f := range all {
		r.Register(f)
	}
	return r
}

// Register adds f. A later format does not replace an earlier one's
// name or extensions.
func (r *Registry) Register(f Format) {
	r.formats = append(r.formats, f)
	if _, ok := r.byName[f.Name()]; !ok {
		r.byName[f.Name()] = f
	}
	for _, ext := range f.Extensions() {
		if _, ok := r.byExt[ext]; !ok {
			r.byExt[ext] = f
		}
	}
}

// Get returns the format called name, or nil.
func (r *Registry) Get(name string) Format {
	name = strings.ToLower(name)
	if f, ok := r.byName[name]; ok {
		return f
	}
	// Accept an extension as a name ("jpg", "pgm").
	return r.byExt[name]
}

// ForPath returns the format registered for the extension of path, or nil.
func (r *Registry) ForPath(path string) Format {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return r.byExt[ext]
}

// Sniff identifies the format of the stream behind br without consuming it.
func (r *Registry) Sniff(br *bufio.Reader) (Decoder, error) {
	magic, err := br.Peek(sniffLen)
	if len(magic) == 0 {
		if err == nil {
			err = fmt.Errorf("empty input")
		}
		return nil, fmt.Errorf("sniff: %w", err)
	}
	for _, f := range r.formats {
		if dec, ok := f.(Decoder); ok && f.Match(magic) {
			return dec, nil
		}
	}
	return nil, fmt.Errorf("sniff: unrecognized image format")
}

// Decoder returns the readable format called name.
func (r *Registry) Decoder(name string) (Decoder, error) {
	dec, ok := r.Get(name).(Decoder)
	if !ok {
		return nil, fmt.Errorf("no decoder for format %q", name)
	}
	return dec, nil
}

// Encoder returns the writable format called name.
func (r *Registry) Encoder(name string) (Encoder, error) {
	enc, ok := r.Get(name).(Encoder)
	if !ok {
		return nil, fmt.Errorf("no encoder for format %q", name)
	}
	return enc, nil
}

// fallbackOutput is written when the input format cannot be.
const fallbackOutput = "png"

// OutputFor resolves the encoder for a stream read as input: requested
// when set, otherwise the input format itself, otherwise PNG.
func (r *Registry) OutputFor(requested, input string) (Encoder, error) {
	if requested != "" {
		return r.Encoder(requested)
	}
	if enc, ok := r.Get(input).(Encoder); ok {
		return enc, nil
	}
	return r.Encoder(fallbackOutput)
}

// Readable reports whether path has an extension some decoder handles.
func (r *Registry) Readable(path string) bool {
	_, ok := r.ForPath(path).(Decoder)
	return ok
}

// Available returns the format names in priority order, marking which
// directions each supports.
func (r *Registry) Available() []string {
	var result []string
	for _, f := range r.formats {
		mode := ""
		if _, ok := f.(Decoder); ok {
			mode += "r"
		}
		if _, ok := f.(Encoder); ok {
			mode += "w"
		}
		result = append(result, fmt.Sprintf("%s(%s)", f.Name(), mode))
	}
	return result
}

// String returns a summary of available formats.
func (r *Registry) String() string {
	avail := r.Available()
	if len(avail) == 0 {
		return "no formats available"
	}
	return fmt.Sprintf("formats: %s", strings.Join(avail, ", "))
}
