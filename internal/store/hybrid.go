package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	ierr "github.com/designtools/libindex/internal/errors"
)

const (
	vectorIndexFile = "vectors.hnsw"
	metaDBFile      = "chunks.db"
)

// HybridConfig configures the hybrid store.
type HybridConfig struct {
	// Dir is the directory holding the index files. Empty means
	// fully in-memory, for tests.
	Dir        string
	Dimensions int
	M          int
	EfSearch   int
}

// HybridStore pairs the HNSW vector index with the SQLite metadata
// database. Both are keyed by chunk ID, and every mutation touches
// the metadata first so vectors never reference missing chunks.
type HybridStore struct {
	mu      sync.Mutex
	vectors *VectorIndex
	meta    *metaDB
	config  HybridConfig
	closed  bool
}

var _ Store = (*HybridStore)(nil)

// Open opens or creates the hybrid store in cfg.Dir. An existing
// vector index on disk is loaded; a missing one starts empty.
func Open(cfg HybridConfig) (*HybridStore, error) {
	var metaPath string
	if cfg.Dir != "" {
		metaPath = filepath.Join(cfg.Dir, metaDBFile)
	}

	meta, err := openMetaDB(metaPath)
	if err != nil {
		return nil, err
	}

	vectors := NewVectorIndex(VectorIndexConfig{
		Dimensions: cfg.Dimensions,
		M:          cfg.M,
		EfSearch:   cfg.EfSearch,
	})

	if cfg.Dir != "" {
		indexPath := filepath.Join(cfg.Dir, vectorIndexFile)
		if fileExists(indexPath) && fileExists(indexPath+".meta") {
			if err := vectors.Load(indexPath); err != nil {
				_ = meta.close()
				return nil, err
			}
		}
	}

	return &HybridStore{
		vectors: vectors,
		meta:    meta,
		config:  cfg,
	}, nil
}

// UpsertBatch replaces the chunks of each path in the batch.
func (s *HybridStore) UpsertBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ierr.New(ierr.ErrCodeStoreWrite, "store is closed", nil)
	}

	// Collect the paths this batch covers, preserving first-seen
	// order, and the old chunk IDs to drop from the vector index.
	seen := make(map[string]bool)
	var paths []string
	for _, r := range records {
		if !seen[r.Path] {
			seen[r.Path] = true
			paths = append(paths, r.Path)
		}
	}

	var staleIDs []string
	for _, path := range paths {
		ids, err := s.meta.idsForPath(ctx, path)
		if err != nil {
			return err
		}
		staleIDs = append(staleIDs, ids...)
	}

	if err := s.meta.replacePaths(ctx, paths, records); err != nil {
		return err
	}

	s.vectors.Delete(staleIDs)
	for _, r := range records {
		if err := s.vectors.Add(r.ID(), r.Vector); err != nil {
			return err
		}
	}
	return nil
}

// DeleteByPath removes every chunk of a file from both stores.
func (s *HybridStore) DeleteByPath(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ierr.New(ierr.ErrCodeStoreWrite, "store is closed", nil)
	}

	ids, err := s.meta.deletePath(ctx, path)
	if err != nil {
		return err
	}
	s.vectors.Delete(ids)
	return nil
}

// Search returns up to k chunks nearest the query, filtered by
// metadata. With a filter the graph is over-queried so enough
// candidates survive filtering.
func (s *HybridStore) Search(ctx context.Context, query []float32, k int, filter Filter) ([]SearchResult, error) {
	if k <= 0 {
		return nil, ierr.New(ierr.ErrCodeInvalidQuery, "result count must be positive", nil)
	}

	fetch := k
	if !filter.IsZero() {
		fetch = k * 4
	}

	hits, err := s.vectors.Search(query, fetch)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, k)
	for _, hit := range hits {
		row, found, err := s.meta.get(ctx, hit.ID)
		if err != nil {
			return nil, err
		}
		if !found || !filter.Matches(row.Meta) {
			continue
		}
		results = append(results, SearchResult{
			Path:       row.Path,
			ChunkIndex: row.ChunkIndex,
			Text:       row.Text,
			Score:      hit.Score,
			Meta:       row.Meta,
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// CountByPath returns the number of stored chunks for a file.
func (s *HybridStore) CountByPath(ctx context.Context, path string) (int, error) {
	return s.meta.countByPath(ctx, path)
}

// Stats summarizes the store contents.
func (s *HybridStore) Stats(ctx context.Context) (Stats, error) {
	stats, err := s.meta.stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats.Dimensions = s.config.Dimensions
	stats.GraphNodes = s.vectors.GraphLen()
	stats.GraphOrphan = stats.GraphNodes - s.vectors.Len()
	return stats, nil
}

// Save flushes the vector index to disk. The SQLite side is durable
// on commit and needs no flush.
func (s *HybridStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ierr.New(ierr.ErrCodeStoreWrite, "store is closed", nil)
	}
	if s.config.Dir == "" {
		return nil
	}
	return s.vectors.Save(filepath.Join(s.config.Dir, vectorIndexFile))
}

// Reset removes all stored data.
func (s *HybridStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ierr.New(ierr.ErrCodeStoreWrite, "store is closed", nil)
	}
	if err := s.meta.reset(ctx); err != nil {
		return err
	}
	s.vectors.Reset()
	return nil
}

// Close releases resources.
func (s *HybridStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.meta.close()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
