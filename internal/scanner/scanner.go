package scanner

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Scanner discovers indexable files in a library directory.
type Scanner struct{}

// New creates a new Scanner instance.
func New() *Scanner {
	return &Scanner{}
}

// Scan discovers all indexable files under the library root.
// It returns a channel of ScanResult that streams files as they are
// discovered. The channel is closed when scanning is complete.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) (<-chan ScanResult, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}

	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", absRoot)
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	results := make(chan ScanResult, 64)

	go func() {
		defer close(results)
		s.scan(ctx, absRoot, opts, maxFileSize, results)
	}()

	return results, nil
}

// scan performs the directory traversal.
func (s *Scanner) scan(ctx context.Context, absRoot string, opts *ScanOptions, maxFileSize int64, results chan<- ScanResult) {
	excludeDirs := toSet(opts.ExcludeDirs)
	excludeNames := toSet(opts.ExcludeNames)
	includeExts := toSet(opts.IncludeExtensions)

	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil // Skip entries we can't access
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}

		if d.IsDir() {
			if relPath != "." && excludeDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}

		name := d.Name()
		if excludeNames[name] {
			return nil
		}

		ext := fileExtension(name)
		if ext == ".min.js" || ext == ".min.css" {
			return nil
		}
		if len(includeExts) > 0 && !includeExts[ext] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() == 0 || info.Size() > maxFileSize {
			return nil
		}

		if isBinaryFile(path) {
			return nil
		}

		hash, err := hashFile(path)
		if err != nil {
			// Unreadable between stat and open; treat as gone
			return nil
		}

		relPath = filepath.ToSlash(relPath)
		fileInfo := &FileInfo{
			Path:      relPath,
			AbsPath:   path,
			Extension: ext,
			Size:      info.Size(),
			ModTime:   info.ModTime(),
			SHA256:    hash,
			Framework: DetectFramework(relPath, ext),
			RepoName:  DetectRepoName(relPath),
			Category:  DetectCategory(relPath),
		}

		select {
		case results <- ScanResult{File: fileInfo}:
		case <-ctx.Done():
			return ctx.Err()
		}

		return nil
	})

	if err != nil && err != context.Canceled {
		select {
		case results <- ScanResult{Error: err}:
		case <-ctx.Done():
		}
	}
}

// hashFile computes the SHA256 hash of a file's contents.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// isBinaryFile checks whether a file looks binary by sniffing the
// first 512 bytes for NUL.
func isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false
	}
	return bytes.IndexByte(buf[:n], 0) != -1
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
