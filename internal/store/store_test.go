package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryStore(t *testing.T) *HybridStore {
	t.Helper()
	s, err := Open(HybridConfig{Dimensions: 3})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(path string, index int, vec []float32) Record {
	return Record{
		Path:       path,
		ChunkIndex: index,
		Text:       "chunk text",
		Vector:     vec,
		Meta: Meta{
			Framework: "react",
			Category:  "hero",
			Extension: ".jsx",
		},
	}
}

func TestHybridStore_UpsertAndSearch(t *testing.T) {
	// Given a store with two files
	s := newMemoryStore(t)
	ctx := context.Background()

	err := s.UpsertBatch(ctx, []Record{
		record("a/hero.jsx", 0, []float32{1, 0, 0}),
		record("b/footer.jsx", 0, []float32{0, 1, 0}),
	})
	require.NoError(t, err)

	// When searching near the first vector
	results, err := s.Search(ctx, []float32{0.9, 0.1, 0}, 1, Filter{})

	// Then the nearest chunk comes back with its metadata
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a/hero.jsx", results[0].Path)
	assert.Equal(t, "react", results[0].Meta.Framework)
	assert.Greater(t, results[0].Score, float32(0.9))
}

func TestHybridStore_UpsertReplacesAllChunksOfPath(t *testing.T) {
	// Given a file indexed with three chunks
	s := newMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertBatch(ctx, []Record{
		record("a/page.html", 0, []float32{1, 0, 0}),
		record("a/page.html", 1, []float32{0, 1, 0}),
		record("a/page.html", 2, []float32{0, 0, 1}),
	}))

	// When the file shrinks to one chunk
	require.NoError(t, s.UpsertBatch(ctx, []Record{
		record("a/page.html", 0, []float32{1, 0, 0}),
	}))

	// Then no stale chunks remain
	count, err := s.CountByPath(ctx, "a/page.html")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := s.Search(ctx, []float32{0, 0, 1}, 10, Filter{})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, 2, r.ChunkIndex, "stale chunk surfaced in search")
	}
}

func TestHybridStore_DeleteByPath(t *testing.T) {
	// Given two indexed files
	s := newMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertBatch(ctx, []Record{
		record("a/hero.jsx", 0, []float32{1, 0, 0}),
		record("b/footer.jsx", 0, []float32{0, 1, 0}),
	}))

	// When one is deleted
	require.NoError(t, s.DeleteByPath(ctx, "a/hero.jsx"))

	// Then it is gone from counts and search
	count, err := s.CountByPath(ctx, "a/hero.jsx")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	results, err := s.Search(ctx, []float32{1, 0, 0}, 10, Filter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b/footer.jsx", results[0].Path)
}

func TestHybridStore_SearchWithFilter(t *testing.T) {
	// Given chunks from different frameworks at similar vectors
	s := newMemoryStore(t)
	ctx := context.Background()

	reactRec := record("a/hero.jsx", 0, []float32{1, 0, 0})
	vueRec := record("b/hero.vue", 0, []float32{0.99, 0.1, 0})
	vueRec.Meta.Framework = "vue"
	require.NoError(t, s.UpsertBatch(ctx, []Record{reactRec, vueRec}))

	// When searching with a framework filter
	results, err := s.Search(ctx, []float32{1, 0, 0}, 5, Filter{Framework: "vue"})

	// Then only matching chunks are returned
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b/hero.vue", results[0].Path)
}

func TestHybridStore_SearchEmptyStore(t *testing.T) {
	s := newMemoryStore(t)

	results, err := s.Search(context.Background(), []float32{1, 0, 0}, 5, Filter{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHybridStore_SearchRejectsBadK(t *testing.T) {
	s := newMemoryStore(t)

	_, err := s.Search(context.Background(), []float32{1, 0, 0}, 0, Filter{})
	require.Error(t, err)
}

func TestHybridStore_SearchRejectsWrongDimensions(t *testing.T) {
	s := newMemoryStore(t)
	require.NoError(t, s.UpsertBatch(context.Background(), []Record{
		record("a/hero.jsx", 0, []float32{1, 0, 0}),
	}))

	_, err := s.Search(context.Background(), []float32{1, 0}, 5, Filter{})
	require.Error(t, err)
}

func TestHybridStore_Stats(t *testing.T) {
	// Given two files with three chunks total
	s := newMemoryStore(t)
	ctx := context.Background()

	vueRec := record("b/hero.vue", 0, []float32{0, 1, 0})
	vueRec.Meta.Framework = "vue"
	require.NoError(t, s.UpsertBatch(ctx, []Record{
		record("a/hero.jsx", 0, []float32{1, 0, 0}),
		record("a/hero.jsx", 1, []float32{0, 0, 1}),
		vueRec,
	}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Chunks)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 3, stats.Dimensions)
	assert.Equal(t, 2, stats.Frameworks["react"])
	assert.Equal(t, 1, stats.Frameworks["vue"])
}

func TestHybridStore_Reset(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertBatch(ctx, []Record{
		record("a/hero.jsx", 0, []float32{1, 0, 0}),
	}))
	require.NoError(t, s.Reset(ctx))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Chunks)

	results, err := s.Search(ctx, []float32{1, 0, 0}, 5, Filter{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHybridStore_SaveAndReload(t *testing.T) {
	// Given a persisted store
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(HybridConfig{Dir: dir, Dimensions: 3})
	require.NoError(t, err)
	require.NoError(t, s.UpsertBatch(ctx, []Record{
		record("a/hero.jsx", 0, []float32{1, 0, 0}),
		record("b/footer.jsx", 0, []float32{0, 1, 0}),
	}))
	require.NoError(t, s.Save())
	require.NoError(t, s.Close())

	// When reopening the same directory
	reopened, err := Open(HybridConfig{Dir: dir, Dimensions: 3})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	// Then the data survived
	count, err := reopened.CountByPath(ctx, "a/hero.jsx")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := reopened.Search(ctx, []float32{1, 0, 0}, 1, Filter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a/hero.jsx", results[0].Path)
}

func TestVectorIndex_LazyDeleteSkipsOrphans(t *testing.T) {
	// Given an index where half the vectors were deleted
	idx := NewVectorIndex(VectorIndexConfig{Dimensions: 3})
	require.NoError(t, idx.Add("a::0", []float32{1, 0, 0}))
	require.NoError(t, idx.Add("b::0", []float32{0.9, 0.1, 0}))
	idx.Delete([]string{"a::0"})

	// When searching near the deleted vector
	hits, err := idx.Search([]float32{1, 0, 0}, 2)

	// Then only the live vector surfaces
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b::0", hits[0].ID)
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, 2, idx.GraphLen())
}

func TestVectorIndex_AddReplacesExisting(t *testing.T) {
	idx := NewVectorIndex(VectorIndexConfig{Dimensions: 3})
	require.NoError(t, idx.Add("a::0", []float32{1, 0, 0}))
	require.NoError(t, idx.Add("a::0", []float32{0, 1, 0}))

	hits, err := idx.Search([]float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a::0", hits[0].ID)
	assert.Equal(t, 1, idx.Len())
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "a/hero.jsx::2", ChunkID("a/hero.jsx", 2))
}

func TestFilterMatches(t *testing.T) {
	meta := Meta{Framework: "react", Category: "hero", RepoName: "shadcn-landing"}

	assert.True(t, Filter{}.Matches(meta))
	assert.True(t, Filter{Framework: "react"}.Matches(meta))
	assert.True(t, Filter{Framework: "react", Category: "hero"}.Matches(meta))
	assert.False(t, Filter{Framework: "vue"}.Matches(meta))
	assert.False(t, Filter{Category: "footer"}.Matches(meta))
	assert.False(t, Filter{RepoName: "other"}.Matches(meta))
}
