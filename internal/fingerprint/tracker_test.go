package fingerprint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierr "github.com/designtools/libindex/internal/errors"
)

func TestTracker_LoadMissingStateIsEmpty(t *testing.T) {
	// Given: a fresh state directory
	tr := NewTracker(t.TempDir())

	// When: loading
	require.NoError(t, tr.Load())
	defer tr.Close()

	// Then: everything needs processing
	assert.Equal(t, 0, tr.Len())
	assert.True(t, tr.ShouldProcess("a.html", "hash1"))
}

func TestTracker_CommitThenSkip(t *testing.T) {
	tr := NewTracker(t.TempDir())
	require.NoError(t, tr.Load())
	defer tr.Close()

	tr.Commit("components/hero.html", "hash1")

	assert.False(t, tr.ShouldProcess("components/hero.html", "hash1"))
	assert.True(t, tr.ShouldProcess("components/hero.html", "hash2"))
	assert.True(t, tr.ShouldProcess("other.html", "hash1"))
}

func TestTracker_SaveAndReload(t *testing.T) {
	dir := t.TempDir()

	tr := NewTracker(dir)
	require.NoError(t, tr.Load())
	tr.Commit("a.html", "h1")
	tr.Commit("b.css", "h2")
	require.NoError(t, tr.Save())
	require.NoError(t, tr.Close())

	// A second run sees the committed state
	tr2 := NewTracker(dir)
	require.NoError(t, tr2.Load())
	defer tr2.Close()

	assert.Equal(t, 2, tr2.Len())
	assert.False(t, tr2.ShouldProcess("a.html", "h1"))
	assert.False(t, tr2.ShouldProcess("b.css", "h2"))
}

func TestTracker_LoadCorruptStateIsFatal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fingerprints.json"), []byte("{not json"), 0o644))

	tr := NewTracker(dir)
	err := tr.Load()
	defer tr.Close()

	require.Error(t, err)
	var ie *ierr.IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, ierr.ErrCodeStateCorrupt, ie.Code)
	assert.True(t, ierr.IsFatal(err))
}

func TestTracker_ForgetRemovesPath(t *testing.T) {
	tr := NewTracker(t.TempDir())
	require.NoError(t, tr.Load())
	defer tr.Close()

	tr.Commit("gone.html", "h1")
	tr.Forget("gone.html")

	assert.True(t, tr.ShouldProcess("gone.html", "h1"))
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_StaleFindsDeletedFiles(t *testing.T) {
	tr := NewTracker(t.TempDir())
	require.NoError(t, tr.Load())
	defer tr.Close()

	tr.Commit("kept.html", "h1")
	tr.Commit("deleted.html", "h2")
	tr.Commit("also-deleted.css", "h3")

	seen := map[string]bool{"kept.html": true}
	stale := tr.Stale(seen)

	assert.Equal(t, []string{"also-deleted.css", "deleted.html"}, stale)
}

func TestTracker_SaveIsAtomic(t *testing.T) {
	dir := t.TempDir()

	tr := NewTracker(dir)
	require.NoError(t, tr.Load())
	tr.Commit("a.html", "h1")
	require.NoError(t, tr.Save())
	require.NoError(t, tr.Close())

	// No temp files left behind after a successful save
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "fingerprints.json")
	for _, n := range names {
		assert.NotContains(t, n, ".tmp-")
	}
}

func TestTracker_PathsSorted(t *testing.T) {
	tr := NewTracker(t.TempDir())
	require.NoError(t, tr.Load())
	defer tr.Close()

	tr.Commit("z.html", "h")
	tr.Commit("a.html", "h")
	tr.Commit("m.css", "h")

	assert.Equal(t, []string{"a.html", "m.css", "z.html"}, tr.Paths())
}
