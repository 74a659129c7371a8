// Package index orchestrates the indexing pipeline: discover files,
// chunk, embed, store, and commit fingerprints. A file's fingerprint
// is committed only after its chunks are durably stored, so an
// interrupted run simply reprocesses the in-flight file next time.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/designtools/libindex/internal/autotune"
	"github.com/designtools/libindex/internal/chunk"
	"github.com/designtools/libindex/internal/config"
	"github.com/designtools/libindex/internal/embed"
	ierr "github.com/designtools/libindex/internal/errors"
	"github.com/designtools/libindex/internal/fingerprint"
	"github.com/designtools/libindex/internal/scanner"
	"github.com/designtools/libindex/internal/store"
)

// Mode selects how much of the library a run reprocesses.
type Mode string

const (
	// ModeFull reprocesses every eligible file regardless of
	// fingerprints.
	ModeFull Mode = "full"
	// ModeIncremental skips files whose fingerprint is unchanged.
	ModeIncremental Mode = "incremental"
)

// RunStats summarizes one indexing run.
type RunStats struct {
	Mode           Mode      `json:"mode"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	FilesSeen      int       `json:"files_seen"`
	FilesProcessed int       `json:"files_processed"`
	FilesSkipped   int       `json:"files_skipped"`
	FilesFailed    int       `json:"files_failed"`
	FilesDeleted   int       `json:"files_deleted"`
	ChunksCreated  int       `json:"chunks_created"`
	ChunksStored   int       `json:"chunks_stored"`
	ScanErrors     int       `json:"scan_errors"`
}

// Engine runs the indexing pipeline.
type Engine struct {
	cfg      *config.Config
	scanner  *scanner.Scanner
	embedder embed.Embedder
	store    store.Store
	tracker  *fingerprint.Tracker
	advisor  *autotune.Advisor
	logger   *slog.Logger
}

// New assembles an engine from its collaborators. The tracker must
// already be loaded. A nil logger uses the default.
func New(cfg *config.Config, embedder embed.Embedder, st store.Store, tracker *fingerprint.Tracker, advisor *autotune.Advisor, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		scanner:  scanner.New(),
		embedder: embedder,
		store:    st,
		tracker:  tracker,
		advisor:  advisor,
		logger:   logger,
	}
}

// pendingCommit is a file whose chunks sit in the batch buffer and
// whose fingerprint commit is withheld until the batch is stored.
type pendingCommit struct {
	path        string
	fingerprint string
}

// Run executes one indexing pass. Per-file errors are logged and
// counted but never abort the run; storage failures do.
func (e *Engine) Run(ctx context.Context, mode Mode) (*RunStats, error) {
	stats := &RunStats{Mode: mode, StartedAt: time.Now().UTC()}

	e.logger.Info("index run starting",
		slog.String("mode", string(mode)),
		slog.String("library_root", e.cfg.Paths.LibraryRoot))

	results, err := e.scanner.Scan(ctx, &scanner.ScanOptions{
		RootDir:           e.cfg.Paths.LibraryRoot,
		IncludeExtensions: e.cfg.Discovery.IncludeExtensions,
		ExcludeDirs:       e.cfg.Discovery.ExcludeDirs,
		ExcludeNames:      e.cfg.Discovery.ExcludeNames,
		MaxFileSize:       int64(e.cfg.Discovery.MaxFileSizeKB) * 1024,
	})
	if err != nil {
		return stats, err
	}

	chunkOpts := chunk.Options{
		TargetChars: e.cfg.Chunking.TargetChars,
		MaxChars:    e.cfg.Chunking.MaxChars,
		MinChars:    e.cfg.Chunking.MinChars,
	}
	retryCfg := ierr.DefaultRetryConfig()
	retryCfg.MaxRetries = e.cfg.Indexing.FileRetries

	seen := make(map[string]bool)
	var batch []store.Record
	var pending []pendingCommit

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := e.store.UpsertBatch(ctx, batch); err != nil {
			return err
		}
		for _, p := range pending {
			e.tracker.Commit(p.path, p.fingerprint)
		}
		if err := e.tracker.Save(); err != nil {
			return err
		}
		stats.ChunksStored += len(batch)
		batch = batch[:0]
		pending = pending[:0]
		return nil
	}

	cancelled := false
	for res := range results {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		if res.Error != nil {
			stats.ScanErrors++
			e.logger.Warn("scan error", slog.String("error", res.Error.Error()))
			continue
		}

		file := res.File
		seen[file.Path] = true
		stats.FilesSeen++

		if mode == ModeIncremental && !e.tracker.ShouldProcess(file.Path, file.SHA256) {
			stats.FilesSkipped++
			continue
		}

		var records []store.Record
		err := ierr.Retry(ctx, retryCfg, func() error {
			var perr error
			records, perr = e.processFile(ctx, file, chunkOpts)
			return perr
		})
		if err != nil {
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			stats.FilesFailed++
			e.logger.Warn("file failed, continuing",
				slog.String("path", file.Path),
				slog.String("error", err.Error()))
			continue
		}

		stats.FilesProcessed++
		stats.ChunksCreated += len(records)

		if len(records) == 0 {
			// Whitespace-only file: drop any prior chunks and
			// remember it so the next run skips it.
			if err := e.store.DeleteByPath(ctx, file.Path); err != nil {
				return stats, err
			}
			e.tracker.Commit(file.Path, file.SHA256)
			continue
		}

		batch = append(batch, records...)
		pending = append(pending, pendingCommit{path: file.Path, fingerprint: file.SHA256})

		if e.cfg.Indexing.LogEveryNFiles > 0 && stats.FilesProcessed%e.cfg.Indexing.LogEveryNFiles == 0 {
			e.logger.Info("index progress",
				slog.Int("files_processed", stats.FilesProcessed),
				slog.Int("files_skipped", stats.FilesSkipped),
				slog.Int("files_failed", stats.FilesFailed),
				slog.Int("chunks_created", stats.ChunksCreated))
		}

		if len(batch) >= e.cfg.Indexing.BatchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}

	if mode == ModeIncremental && !cancelled {
		if err := e.cleanupDeleted(ctx, seen, stats); err != nil {
			return stats, err
		}
	}

	if err := e.tracker.Save(); err != nil {
		return stats, err
	}
	if err := e.store.Save(); err != nil {
		return stats, err
	}

	stats.FinishedAt = time.Now().UTC()
	e.writeRunLog(stats)
	e.logger.Info("index run complete",
		slog.String("mode", string(mode)),
		slog.Int("files_seen", stats.FilesSeen),
		slog.Int("files_processed", stats.FilesProcessed),
		slog.Int("files_skipped", stats.FilesSkipped),
		slog.Int("files_failed", stats.FilesFailed),
		slog.Int("files_deleted", stats.FilesDeleted),
		slog.Int("chunks_stored", stats.ChunksStored),
		slog.Duration("duration", stats.FinishedAt.Sub(stats.StartedAt)))

	if cancelled {
		return stats, ctx.Err()
	}
	return stats, nil
}

// processFile chunks one file and embeds its chunks concurrently under
// a worker budget requested fresh from the advisor. Chunks complete in
// any order; records are re-sorted by chunk index before storage.
func (e *Engine) processFile(ctx context.Context, file *scanner.FileInfo, opts chunk.Options) ([]store.Record, error) {
	content, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return nil, ierr.New(ierr.ErrCodeFileUnreadable,
			fmt.Sprintf("cannot read %s", file.Path), err)
	}

	var chunks []chunk.Chunk
	if file.Framework == "config" {
		// Config files are small and meaningful only whole; one chunk
		// keeps package.json or tailwind.config searchable as a unit.
		if text := string(content); strings.TrimSpace(text) != "" {
			chunks = []chunk.Chunk{{Text: text, Index: 0, Total: 1, SectionKind: "config"}}
		}
	} else {
		chunks = chunk.Split(string(content), file.Extension, opts)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	workers := e.advisor.Recommend(
		e.cfg.Autotune.MaxWorkers,
		e.cfg.Autotune.MinWorkers,
		e.cfg.Autotune.DefaultWorkers)

	resultCh := make(chan store.Record, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, c := range chunks {
		g.Go(func() error {
			vec, err := e.embedder.Embed(gctx, embedText(file, c))
			if err != nil {
				return err
			}
			resultCh <- store.Record{
				Path:       file.Path,
				ChunkIndex: c.Index,
				Text:       c.Text,
				Vector:     vec,
				Meta: store.Meta{
					Framework: file.Framework,
					RepoName:  file.RepoName,
					Category:  file.Category,
					Section:   c.SectionKind,
					Extension: file.Extension,
					SHA256:    file.SHA256,
				},
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(resultCh)

	records := make([]store.Record, 0, len(chunks))
	for r := range resultCh {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ChunkIndex < records[j].ChunkIndex
	})
	return records, nil
}

// cleanupDeleted removes chunks of files that vanished from the
// library since the last run.
func (e *Engine) cleanupDeleted(ctx context.Context, seen map[string]bool, stats *RunStats) error {
	stale := e.tracker.Stale(seen)
	if len(stale) == 0 {
		return nil
	}

	e.logger.Info("cleaning up deleted files", slog.Int("count", len(stale)))
	for _, path := range stale {
		if err := e.store.DeleteByPath(ctx, path); err != nil {
			return err
		}
		e.tracker.Forget(path)
		stats.FilesDeleted++
	}
	return nil
}

var frameworkLabels = map[string]string{
	"html":       "HTML/CSS webpage",
	"react":      "React component",
	"nextjs":     "Next.js component",
	"astro":      "Astro component",
	"vue":        "Vue.js component",
	"svelte":     "Svelte component",
	"css":        "CSS stylesheet",
	"typescript": "TypeScript module",
	"javascript": "JavaScript module",
	"config":     "Configuration file",
	"markdown":   "Markdown document",
}

// embedText prepends a contextual prefix so the embedding model knows
// what kind of code the chunk is, which measurably improves retrieval.
func embedText(file *scanner.FileInfo, c chunk.Chunk) string {
	label, ok := frameworkLabels[file.Framework]
	if !ok {
		label = "Web code"
	}

	prefix := label
	if file.RepoName != "" {
		prefix += " from " + file.RepoName + " repository"
	}
	if file.Category != "" {
		prefix += ". " + file.Category + " section"
	}
	if c.SectionKind != "" && c.SectionKind != "fragment" && c.SectionKind != "rules" {
		prefix += ". Section type: " + c.SectionKind
	}
	prefix += ". File: " + file.Path + "."

	return prefix + "\n\n" + c.Text
}
