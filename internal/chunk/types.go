// Package chunk splits design-library files into bounded, ordered
// semantic units for embedding.
//
// Each file format is scanned for structural boundaries (semantic HTML
// elements, CSS at-rules, JS export boundaries, SFC blocks) and the
// resulting units are greedily accumulated into chunks near the target
// size. The split is pure and deterministic: identical input and
// options always yield identical chunks.
package chunk

// Chunk is a bounded, ordered slice of a file's text.
type Chunk struct {
	// Text is the chunk content.
	Text string
	// Index is the zero-based position within the file. Stable and
	// contiguous: re-chunking identical content yields identical
	// indices.
	Index int
	// Total is the number of chunks produced for the file.
	Total int
	// SectionKind names the dominant structural unit in the chunk
	// (header, section, media-query, component, fragment, ...).
	SectionKind string
}

// Options controls chunk sizing.
type Options struct {
	// TargetChars is the preferred chunk length. Units are accumulated
	// until the running length reaches this value.
	TargetChars int
	// MaxChars is the hard upper bound. A single structural unit longer
	// than this is force-split.
	MaxChars int
	// MinChars drops trailing fragments shorter than this, unless the
	// fragment is the file's only chunk.
	MinChars int
}

// DefaultOptions returns the standard sizing used by the indexer.
func DefaultOptions() Options {
	return Options{
		TargetChars: 1000,
		MaxChars:    2000,
		MinChars:    100,
	}
}

// unit is a structurally meaningful span of file text, the input to
// chunk accumulation.
type unit struct {
	text string
	kind string
}
