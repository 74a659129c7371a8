// Package scanner discovers indexable files in a design library.
// It walks the library root, filters by extension and skip lists, and
// attaches metadata (framework, repo, component category) used for
// search filtering later.
package scanner

import "time"

// FileInfo contains metadata about a discovered file.
type FileInfo struct {
	Path      string    // Relative path to the library root
	AbsPath   string    // Absolute path
	Extension string    // Lowercased extension including the dot
	Size      int64     // File size in bytes
	ModTime   time.Time // Last modification time
	SHA256    string    // Content hash, used for change detection
	Framework string    // html, react, nextjs, astro, vue, svelte, css, ...
	RepoName  string    // Parent repo name when under example-websites/
	Category  string    // Component category (hero, footer, ...) if detectable
}

// ScanOptions configures the scanner behavior.
type ScanOptions struct {
	// RootDir is the library root directory to scan.
	RootDir string

	// IncludeExtensions lists extensions to index (with leading dot).
	// Empty means all extensions.
	IncludeExtensions []string

	// ExcludeDirs lists directory names that are never traversed.
	ExcludeDirs []string

	// ExcludeNames lists exact file names that are never indexed.
	ExcludeNames []string

	// MaxFileSize is the maximum file size in bytes (0 = 500KB default).
	MaxFileSize int64

	// FollowSymlinks enables following symbolic links (default: false).
	FollowSymlinks bool
}

// ScanResult is returned from the scanner channel.
type ScanResult struct {
	File  *FileInfo
	Error error
}

// DefaultMaxFileSize is the default maximum file size (500KB).
// Larger files are almost always bundles or vendored assets.
const DefaultMaxFileSize = 500 * 1024
