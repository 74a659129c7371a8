package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1000, cfg.Chunking.TargetChars)
	assert.Equal(t, 2000, cfg.Chunking.MaxChars)
	assert.Equal(t, 100, cfg.Chunking.MinChars)

	assert.Equal(t, "http://localhost:11434", cfg.Embeddings.OllamaHost)
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)
	assert.Equal(t, 60*time.Second, cfg.EmbedTimeout())
	assert.Equal(t, 2*time.Second, cfg.WatchDebounce())

	assert.Equal(t, 2, cfg.Autotune.DefaultWorkers)
	assert.Equal(t, 1, cfg.Autotune.MinWorkers)
	assert.Equal(t, 3, cfg.Autotune.MaxWorkers)

	assert.Equal(t, 100, cfg.Indexing.BatchSize)
	assert.Equal(t, 25, cfg.Indexing.LogEveryNFiles)

	assert.Contains(t, cfg.Discovery.ExcludeDirs, "node_modules")
	assert.Contains(t, cfg.Discovery.ExcludeDirs, ".libindex")
	assert.Contains(t, cfg.Discovery.ExcludeNames, "package-lock.json")
	assert.Equal(t, 500, cfg.Discovery.MaxFileSizeKB)
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Given: a library root with no config file
	dir := t.TempDir()

	// When: loading
	cfg, err := Load(dir)

	// Then: defaults apply
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Paths.LibraryRoot)
	assert.Equal(t, 1000, cfg.Chunking.TargetChars)
}

func TestLoad_ProjectConfigOverrides(t *testing.T) {
	// Given: a library root with a .libindex.yaml
	dir := t.TempDir()
	content := `
chunking:
  target_chars: 800
embeddings:
  model: mxbai-embed-large
autotune:
  max_workers: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".libindex.yaml"), []byte(content), 0o644))

	// When: loading
	cfg, err := Load(dir)

	// Then: file values override defaults, rest stays
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Chunking.TargetChars)
	assert.Equal(t, 2000, cfg.Chunking.MaxChars)
	assert.Equal(t, "mxbai-embed-large", cfg.Embeddings.Model)
	assert.Equal(t, 4, cfg.Autotune.MaxWorkers)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	content := "embeddings:\n  model: from-file\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".libindex.yaml"), []byte(content), 0o644))

	t.Setenv("LIBINDEX_EMBEDDINGS_MODEL", "from-env")
	t.Setenv("LIBINDEX_MAX_WORKERS", "5")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Embeddings.Model)
	assert.Equal(t, 5, cfg.Autotune.MaxWorkers)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".libindex.yaml"), []byte("chunking: [not a map"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty library root", func(c *Config) { c.Paths.LibraryRoot = "" }},
		{"zero target chars", func(c *Config) { c.Chunking.TargetChars = 0 }},
		{"max below target", func(c *Config) { c.Chunking.MaxChars = 500 }},
		{"min above target", func(c *Config) { c.Chunking.MinChars = 5000 }},
		{"zero min workers", func(c *Config) { c.Autotune.MinWorkers = 0 }},
		{"max below min workers", func(c *Config) { c.Autotune.MinWorkers = 3; c.Autotune.MaxWorkers = 2 }},
		{"default outside range", func(c *Config) { c.Autotune.DefaultWorkers = 10 }},
		{"zero batch size", func(c *Config) { c.Indexing.BatchSize = 0 }},
		{"unparseable embed timeout", func(c *Config) { c.Embeddings.Timeout = "soon" }},
		{"unparseable debounce", func(c *Config) { c.Watch.Debounce = "-1" }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestStateDir_DefaultsUnderLibraryRoot(t *testing.T) {
	cfg := NewConfig()
	cfg.Paths.LibraryRoot = "/library"

	assert.Equal(t, filepath.Join("/library", ".libindex"), cfg.StateDir())

	cfg.Paths.StateDir = "/elsewhere/state"
	assert.Equal(t, "/elsewhere/state", cfg.StateDir())
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := NewConfig()
	cfg.Chunking.TargetChars = 1234
	require.NoError(t, cfg.WriteYAML(path))

	loaded := NewConfig()
	require.NoError(t, loaded.loadYAML(path))
	assert.Equal(t, 1234, loaded.Chunking.TargetChars)
}
