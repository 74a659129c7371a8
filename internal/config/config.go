// Package config loads and validates indexer configuration.
//
// Configuration is applied in order of increasing precedence: hardcoded
// defaults, then a .libindex.yaml file in the library root, then
// LIBINDEX_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	ierr "github.com/designtools/libindex/internal/errors"
)

// Config represents the complete indexer configuration.
type Config struct {
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Discovery  DiscoveryConfig  `yaml:"discovery" json:"discovery"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Autotune   AutotuneConfig   `yaml:"autotune" json:"autotune"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Indexing   IndexingConfig   `yaml:"indexing" json:"indexing"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	LogLevel   string           `yaml:"log_level" json:"log_level"`
}

// PathsConfig configures filesystem locations.
type PathsConfig struct {
	// LibraryRoot is the root of the design library to index.
	LibraryRoot string `yaml:"library_root" json:"library_root"`
	// StateDir holds fingerprints, the vector store, and run logs.
	// Empty means <library_root>/.libindex.
	StateDir string `yaml:"state_dir" json:"state_dir"`
}

// DiscoveryConfig configures which files are considered indexable.
type DiscoveryConfig struct {
	// IncludeExtensions lists file extensions to index (with leading dot).
	IncludeExtensions []string `yaml:"include_extensions" json:"include_extensions"`
	// ExcludeDirs lists directory names skipped during traversal.
	ExcludeDirs []string `yaml:"exclude_dirs" json:"exclude_dirs"`
	// ExcludeNames lists exact file names never indexed.
	ExcludeNames []string `yaml:"exclude_names" json:"exclude_names"`
	// MaxFileSizeKB skips files larger than this many kilobytes.
	MaxFileSizeKB int `yaml:"max_file_size_kb" json:"max_file_size_kb"`
}

// ChunkingConfig configures chunk sizing.
type ChunkingConfig struct {
	// TargetChars is the preferred chunk length in characters.
	TargetChars int `yaml:"target_chars" json:"target_chars"`
	// MaxChars is the hard upper bound on chunk length.
	MaxChars int `yaml:"max_chars" json:"max_chars"`
	// MinChars drops fragments shorter than this, except when a file
	// yields nothing else.
	MinChars int `yaml:"min_chars" json:"min_chars"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// OllamaHost is the Ollama API endpoint (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// Model is the embedding model name.
	Model string `yaml:"model" json:"model"`
	// Dimensions is the expected vector dimensionality (0 = accept any).
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	// Timeout is the per-request embedding timeout as a duration string
	// (e.g. "60s").
	Timeout string `yaml:"timeout" json:"timeout"`
	// CacheSize is the number of embeddings kept in the in-process LRU
	// cache (0 disables caching).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// AutotuneConfig configures worker count selection.
type AutotuneConfig struct {
	// DefaultWorkers is the starting point before adjustments.
	DefaultWorkers int `yaml:"default_workers" json:"default_workers"`
	// MinWorkers is the floor after adjustments (at least 1).
	MinWorkers int `yaml:"min_workers" json:"min_workers"`
	// MaxWorkers is the ceiling after adjustments.
	MaxWorkers int `yaml:"max_workers" json:"max_workers"`
}

// StoreConfig configures the vector store.
type StoreConfig struct {
	// HNSWM is the HNSW graph connectivity parameter.
	HNSWM int `yaml:"hnsw_m" json:"hnsw_m"`
	// HNSWEfSearch is the HNSW search beam width.
	HNSWEfSearch int `yaml:"hnsw_ef_search" json:"hnsw_ef_search"`
}

// IndexingConfig configures the indexing run itself.
type IndexingConfig struct {
	// BatchSize is the number of records buffered before an upsert.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// LogEveryNFiles controls progress log cadence.
	LogEveryNFiles int `yaml:"log_every_n_files" json:"log_every_n_files"`
	// FileRetries is the number of retries for a file that failed with
	// a transient embedding error.
	FileRetries int `yaml:"file_retries" json:"file_retries"`
}

// WatchConfig configures continuous watch mode.
type WatchConfig struct {
	// Debounce is how long to wait after the last filesystem event
	// before triggering an incremental run, as a duration string.
	Debounce string `yaml:"debounce" json:"debounce"`
}

// defaultIncludeExtensions covers the design-library file formats the
// chunker understands.
var defaultIncludeExtensions = []string{
	".html", ".htm",
	".css", ".scss", ".sass", ".less",
	".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs",
	".vue", ".svelte", ".astro",
	".json", ".md", ".mdx",
}

// defaultExcludeDirs are never traversed.
var defaultExcludeDirs = []string{
	"node_modules", ".git", ".svn", ".hg",
	"dist", "build", "out", ".next", ".nuxt", ".output",
	"coverage", "__pycache__", ".cache", ".libindex",
	"vendor", "bower_components",
}

// defaultExcludeNames are never indexed regardless of location.
var defaultExcludeNames = []string{
	"package-lock.json", "yarn.lock", "pnpm-lock.yaml",
	"bun.lockb", "composer.lock",
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			LibraryRoot: ".",
			StateDir:    "",
		},
		Discovery: DiscoveryConfig{
			IncludeExtensions: defaultIncludeExtensions,
			ExcludeDirs:       defaultExcludeDirs,
			ExcludeNames:      defaultExcludeNames,
			MaxFileSizeKB:     500,
		},
		Chunking: ChunkingConfig{
			TargetChars: 1000,
			MaxChars:    2000,
			MinChars:    100,
		},
		Embeddings: EmbeddingsConfig{
			OllamaHost: "http://localhost:11434",
			Model:      "nomic-embed-text",
			Dimensions: 0,
			Timeout:    "60s",
			CacheSize:  2048,
		},
		Autotune: AutotuneConfig{
			DefaultWorkers: 2,
			MinWorkers:     1,
			MaxWorkers:     3,
		},
		Store: StoreConfig{
			HNSWM:        16,
			HNSWEfSearch: 64,
		},
		Indexing: IndexingConfig{
			BatchSize:      100,
			LogEveryNFiles: 25,
			FileRetries:    2,
		},
		Watch: WatchConfig{
			Debounce: "2s",
		},
		LogLevel: "info",
	}
}

// EmbedTimeout returns the parsed per-request embedding timeout.
// Falls back to 60s if the configured value does not parse.
func (c *Config) EmbedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Embeddings.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// WatchDebounce returns the parsed watch debounce interval.
// Falls back to 2s if the configured value does not parse.
func (c *Config) WatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// StateDir returns the resolved state directory for the configured
// library root.
func (c *Config) StateDir() string {
	if c.Paths.StateDir != "" {
		return c.Paths.StateDir
	}
	return filepath.Join(c.Paths.LibraryRoot, ".libindex")
}

// Load loads configuration for the given library root.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. .libindex.yaml in the library root
//  3. Environment variables (LIBINDEX_*)
func Load(libraryRoot string) (*Config, error) {
	cfg := NewConfig()
	cfg.Paths.LibraryRoot = libraryRoot

	if err := cfg.loadFromFile(libraryRoot); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .libindex.yaml or .libindex.yml.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".libindex.yaml", ".libindex.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	// No config file is fine, defaults apply
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return ierr.New(ierr.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return ierr.New(ierr.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse config file %s", path), err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Paths.LibraryRoot != "" {
		c.Paths.LibraryRoot = other.Paths.LibraryRoot
	}
	if other.Paths.StateDir != "" {
		c.Paths.StateDir = other.Paths.StateDir
	}

	if len(other.Discovery.IncludeExtensions) > 0 {
		c.Discovery.IncludeExtensions = other.Discovery.IncludeExtensions
	}
	if len(other.Discovery.ExcludeDirs) > 0 {
		// Merge with defaults rather than replace
		c.Discovery.ExcludeDirs = append(c.Discovery.ExcludeDirs, other.Discovery.ExcludeDirs...)
	}
	if len(other.Discovery.ExcludeNames) > 0 {
		c.Discovery.ExcludeNames = append(c.Discovery.ExcludeNames, other.Discovery.ExcludeNames...)
	}
	if other.Discovery.MaxFileSizeKB != 0 {
		c.Discovery.MaxFileSizeKB = other.Discovery.MaxFileSizeKB
	}

	if other.Chunking.TargetChars != 0 {
		c.Chunking.TargetChars = other.Chunking.TargetChars
	}
	if other.Chunking.MaxChars != 0 {
		c.Chunking.MaxChars = other.Chunking.MaxChars
	}
	if other.Chunking.MinChars != 0 {
		c.Chunking.MinChars = other.Chunking.MinChars
	}

	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.Timeout != "" {
		c.Embeddings.Timeout = other.Embeddings.Timeout
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.Autotune.DefaultWorkers != 0 {
		c.Autotune.DefaultWorkers = other.Autotune.DefaultWorkers
	}
	if other.Autotune.MinWorkers != 0 {
		c.Autotune.MinWorkers = other.Autotune.MinWorkers
	}
	if other.Autotune.MaxWorkers != 0 {
		c.Autotune.MaxWorkers = other.Autotune.MaxWorkers
	}

	if other.Store.HNSWM != 0 {
		c.Store.HNSWM = other.Store.HNSWM
	}
	if other.Store.HNSWEfSearch != 0 {
		c.Store.HNSWEfSearch = other.Store.HNSWEfSearch
	}

	if other.Indexing.BatchSize != 0 {
		c.Indexing.BatchSize = other.Indexing.BatchSize
	}
	if other.Indexing.LogEveryNFiles != 0 {
		c.Indexing.LogEveryNFiles = other.Indexing.LogEveryNFiles
	}
	if other.Indexing.FileRetries != 0 {
		c.Indexing.FileRetries = other.Indexing.FileRetries
	}

	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}

	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

// applyEnvOverrides applies LIBINDEX_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LIBINDEX_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("LIBINDEX_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("LIBINDEX_EMBED_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Embeddings.Timeout = v
		}
	}
	if v := os.Getenv("LIBINDEX_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LIBINDEX_STATE_DIR"); v != "" {
		c.Paths.StateDir = v
	}
	if v := os.Getenv("LIBINDEX_DEFAULT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Autotune.DefaultWorkers = n
		}
	}
	if v := os.Getenv("LIBINDEX_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Autotune.MaxWorkers = n
		}
	}
	if v := os.Getenv("LIBINDEX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Indexing.BatchSize = n
		}
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Paths.LibraryRoot == "" {
		return ierr.New(ierr.ErrCodeConfigInvalid, "paths.library_root must not be empty", nil)
	}

	if c.Chunking.TargetChars <= 0 {
		return ierr.New(ierr.ErrCodeConfigInvalid,
			fmt.Sprintf("chunking.target_chars must be positive, got %d", c.Chunking.TargetChars), nil)
	}
	if c.Chunking.MaxChars < c.Chunking.TargetChars {
		return ierr.New(ierr.ErrCodeConfigInvalid,
			fmt.Sprintf("chunking.max_chars (%d) must be >= target_chars (%d)",
				c.Chunking.MaxChars, c.Chunking.TargetChars), nil)
	}
	if c.Chunking.MinChars < 0 || c.Chunking.MinChars > c.Chunking.TargetChars {
		return ierr.New(ierr.ErrCodeConfigInvalid,
			fmt.Sprintf("chunking.min_chars must be in [0, target_chars], got %d", c.Chunking.MinChars), nil)
	}

	if c.Autotune.MinWorkers < 1 {
		return ierr.New(ierr.ErrCodeConfigInvalid,
			fmt.Sprintf("autotune.min_workers must be at least 1, got %d", c.Autotune.MinWorkers), nil)
	}
	if c.Autotune.MaxWorkers < c.Autotune.MinWorkers {
		return ierr.New(ierr.ErrCodeConfigInvalid,
			fmt.Sprintf("autotune.max_workers (%d) must be >= min_workers (%d)",
				c.Autotune.MaxWorkers, c.Autotune.MinWorkers), nil)
	}
	if c.Autotune.DefaultWorkers < c.Autotune.MinWorkers || c.Autotune.DefaultWorkers > c.Autotune.MaxWorkers {
		return ierr.New(ierr.ErrCodeConfigInvalid,
			fmt.Sprintf("autotune.default_workers (%d) must be within [min_workers, max_workers]",
				c.Autotune.DefaultWorkers), nil)
	}

	if c.Indexing.BatchSize <= 0 {
		return ierr.New(ierr.ErrCodeConfigInvalid,
			fmt.Sprintf("indexing.batch_size must be positive, got %d", c.Indexing.BatchSize), nil)
	}
	if d, err := time.ParseDuration(c.Embeddings.Timeout); err != nil || d <= 0 {
		return ierr.New(ierr.ErrCodeConfigInvalid,
			fmt.Sprintf("embeddings.timeout must be a positive duration, got %q", c.Embeddings.Timeout), nil)
	}
	if d, err := time.ParseDuration(c.Watch.Debounce); err != nil || d <= 0 {
		return ierr.New(ierr.ErrCodeConfigInvalid,
			fmt.Sprintf("watch.debounce must be a positive duration, got %q", c.Watch.Debounce), nil)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return ierr.New(ierr.ErrCodeConfigInvalid,
			fmt.Sprintf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel), nil)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
