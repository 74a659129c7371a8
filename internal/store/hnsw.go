package store

import (
	"bufio"
	"encoding/gob"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	ierr "github.com/designtools/libindex/internal/errors"
)

// VectorIndexConfig configures the HNSW graph.
type VectorIndexConfig struct {
	Dimensions int
	M          int
	EfSearch   int
}

// vectorHit is a raw similarity match from the graph.
type vectorHit struct {
	ID    string
	Score float32
}

// VectorIndex is an in-memory HNSW graph with string chunk IDs,
// persisted to disk with gob-encoded ID mappings alongside the graph.
// Deletion is lazy: removed IDs are dropped from the mappings while
// their nodes stay in the graph, because coder/hnsw misbehaves when
// the last node is deleted.
type VectorIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorIndexConfig

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

// vectorIndexMetadata is the persisted ID mapping state.
type vectorIndexMetadata struct {
	IDMap   map[string]uint64
	NextKey uint64
	Config  VectorIndexConfig
}

// NewVectorIndex creates an empty index.
func NewVectorIndex(cfg VectorIndexConfig) *VectorIndex {
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 64
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &VectorIndex{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// Add inserts or replaces one vector.
func (v *VectorIndex) Add(id string, vector []float32) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.config.Dimensions > 0 && len(vector) != v.config.Dimensions {
		return ierr.New(ierr.ErrCodeDimensionMismatch,
			"vector dimensions do not match index", nil).
			WithDetail("id", id)
	}

	if existingKey, exists := v.idMap[id]; exists {
		delete(v.keyMap, existingKey)
		delete(v.idMap, id)
	}

	key := v.nextKey
	v.nextKey++

	vec := make([]float32, len(vector))
	copy(vec, vector)
	normalizeInPlace(vec)

	v.graph.Add(hnsw.MakeNode(key, vec))
	v.idMap[id] = key
	v.keyMap[key] = id
	return nil
}

// Delete removes IDs from the index.
func (v *VectorIndex) Delete(ids []string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, id := range ids {
		if key, exists := v.idMap[id]; exists {
			delete(v.keyMap, key)
			delete(v.idMap, id)
		}
	}
}

// Search returns up to k nearest IDs with similarity scores.
// Lazy-deleted nodes may surface from the graph and are skipped, so
// the graph is over-queried to compensate.
func (v *VectorIndex) Search(query []float32, k int) ([]vectorHit, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.config.Dimensions > 0 && len(query) != v.config.Dimensions {
		return nil, ierr.New(ierr.ErrCodeDimensionMismatch,
			"query dimensions do not match index", nil)
	}
	if len(v.idMap) == 0 {
		return nil, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	normalizeInPlace(q)

	orphans := v.graph.Len() - len(v.idMap)
	nodes := v.graph.Search(q, k+orphans)

	hits := make([]vectorHit, 0, k)
	for _, node := range nodes {
		id, live := v.keyMap[node.Key]
		if !live {
			continue
		}
		distance := v.graph.Distance(q, node.Value)
		hits = append(hits, vectorHit{
			ID:    id,
			Score: 1.0 - distance/2.0,
		})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// Len returns the number of live vectors.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.idMap)
}

// GraphLen returns the total node count including lazy-deleted orphans.
func (v *VectorIndex) GraphLen() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.graph.Len()
}

// Reset drops all vectors.
func (v *VectorIndex) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = v.config.M
	graph.EfSearch = v.config.EfSearch
	graph.Ml = 0.25

	v.graph = graph
	v.idMap = make(map[string]uint64)
	v.keyMap = make(map[uint64]string)
	v.nextKey = 0
}

// Save persists the graph and ID mappings atomically via temp files.
func (v *VectorIndex) Save(path string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ierr.New(ierr.ErrCodeStoreWrite, "failed to create index directory", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return ierr.New(ierr.ErrCodeStoreWrite, "failed to create index file", err)
	}
	if err := v.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return ierr.New(ierr.ErrCodeStoreWrite, "failed to export graph", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return ierr.New(ierr.ErrCodeStoreWrite, "failed to close index file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return ierr.New(ierr.ErrCodeStoreWrite, "failed to rename index file", err)
	}

	return v.saveMetadata(path + ".meta")
}

func (v *VectorIndex) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return ierr.New(ierr.ErrCodeStoreWrite, "failed to create metadata file", err)
	}

	meta := vectorIndexMetadata{
		IDMap:   v.idMap,
		NextKey: v.nextKey,
		Config:  v.config,
	}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return ierr.New(ierr.ErrCodeStoreWrite, "failed to encode index metadata", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return ierr.New(ierr.ErrCodeStoreWrite, "failed to close metadata file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return ierr.New(ierr.ErrCodeStoreWrite, "failed to rename metadata file", err)
	}
	return nil
}

// Load restores the graph and mappings from disk.
func (v *VectorIndex) Load(path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return ierr.New(ierr.ErrCodeStoreCorrupt, "failed to open index metadata", err)
	}
	var meta vectorIndexMetadata
	decodeErr := gob.NewDecoder(metaFile).Decode(&meta)
	_ = metaFile.Close()
	if decodeErr != nil {
		return ierr.New(ierr.ErrCodeStoreCorrupt, "failed to decode index metadata", decodeErr)
	}

	file, err := os.Open(path)
	if err != nil {
		return ierr.New(ierr.ErrCodeStoreCorrupt, "failed to open index file", err)
	}
	defer func() { _ = file.Close() }()

	// coder/hnsw Import needs an io.ByteReader
	if err := v.graph.Import(bufio.NewReader(file)); err != nil {
		return ierr.New(ierr.ErrCodeStoreCorrupt, "failed to import graph", err)
	}

	v.idMap = meta.IDMap
	v.nextKey = meta.NextKey
	v.config = meta.Config
	v.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range meta.IDMap {
		v.keyMap[key] = id
	}
	return nil
}

// normalizeInPlace scales a vector to unit length.
func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
