// Package store persists embedded chunks. Vectors live in an HNSW
// graph for similarity search, chunk text and metadata live in SQLite,
// and both are addressed by the same chunk ID so the two stay in step.
package store

import (
	"context"
	"fmt"
)

// Meta carries the searchable metadata attached to a chunk.
type Meta struct {
	Framework string
	RepoName  string
	Category  string
	Section   string
	Extension string
	SHA256    string
}

// Record is one embedded chunk ready for storage.
type Record struct {
	Path       string
	ChunkIndex int
	Text       string
	Vector     []float32
	Meta       Meta
}

// ID returns the chunk's storage key, stable across runs.
func (r Record) ID() string {
	return ChunkID(r.Path, r.ChunkIndex)
}

// ChunkID builds the storage key for a chunk of a file.
func ChunkID(path string, index int) string {
	return fmt.Sprintf("%s::%d", path, index)
}

// Filter narrows search results by metadata. Empty fields match
// everything.
type Filter struct {
	Framework string
	Category  string
	RepoName  string
}

// Matches reports whether meta satisfies the filter.
func (f Filter) Matches(meta Meta) bool {
	if f.Framework != "" && meta.Framework != f.Framework {
		return false
	}
	if f.Category != "" && meta.Category != f.Category {
		return false
	}
	if f.RepoName != "" && meta.RepoName != f.RepoName {
		return false
	}
	return true
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// SearchResult is one similarity hit.
type SearchResult struct {
	Path       string
	ChunkIndex int
	Text       string
	Score      float32
	Meta       Meta
}

// Stats summarizes store contents.
type Stats struct {
	Chunks      int            `json:"chunks"`
	Files       int            `json:"files"`
	Dimensions  int            `json:"dimensions"`
	Frameworks  map[string]int `json:"frameworks"`
	Categories  map[string]int `json:"categories"`
	GraphNodes  int            `json:"graph_nodes"`
	GraphOrphan int            `json:"graph_orphans"`
}

// Store is the persistence interface the indexing engine depends on.
type Store interface {
	// UpsertBatch replaces the chunks of each path covered by the
	// batch. All existing chunks of a path are removed before its
	// new chunks are inserted, so a file that shrank never leaves
	// stale chunks behind.
	UpsertBatch(ctx context.Context, records []Record) error

	// DeleteByPath removes every chunk of a file.
	DeleteByPath(ctx context.Context, path string) error

	// Search returns up to k chunks nearest to the query vector that
	// satisfy the filter.
	Search(ctx context.Context, query []float32, k int, filter Filter) ([]SearchResult, error)

	// CountByPath returns the number of stored chunks for a file.
	CountByPath(ctx context.Context, path string) (int, error)

	// Stats summarizes the store.
	Stats(ctx context.Context) (Stats, error)

	// Save flushes the vector index to disk.
	Save() error

	// Reset removes all stored data.
	Reset(ctx context.Context) error

	Close() error
}
