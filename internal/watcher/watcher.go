// Package watcher reacts to library file changes so the index stays
// current without full rescans. Raw filesystem events are debounced
// into batches; each batch is a cue for one incremental index run.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	ierr "github.com/designtools/libindex/internal/errors"
)

// Op is a coarse file operation.
type Op int

const (
	OpCreate Op = iota
	OpModify
	OpDelete
)

// String returns the operation name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Event is one debounced change in the library tree.
type Event struct {
	Path      string
	Op        Op
	Timestamp time.Time
}

// Options configures the watcher.
type Options struct {
	// Debounce is how long to coalesce events before emitting a batch.
	Debounce time.Duration
	// ExcludeDirs lists directory names never watched.
	ExcludeDirs []string
}

// Watcher watches a library tree and emits debounced event batches.
type Watcher struct {
	root      string
	opts      Options
	fsw       *fsnotify.Watcher
	debouncer *debouncer
	logger    *slog.Logger
	exclude   map[string]bool
}

// New creates a watcher for the library root.
func New(root string, opts Options, logger *slog.Logger) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ierr.New(ierr.ErrCodeInternal, "failed to create file watcher", err)
	}

	exclude := make(map[string]bool, len(opts.ExcludeDirs))
	for _, d := range opts.ExcludeDirs {
		exclude[d] = true
	}

	return &Watcher{
		root:      root,
		opts:      opts,
		fsw:       fsw,
		debouncer: newDebouncer(opts.Debounce),
		logger:    logger,
		exclude:   exclude,
	}, nil
}

// Start watches the tree until the context is cancelled. It registers
// every non-excluded directory, since fsnotify watches are not
// recursive.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}

	go w.loop(ctx)
	return nil
}

// Batches returns the channel of debounced event batches.
func (w *Watcher) Batches() <-chan []Event {
	return w.debouncer.output
}

// Close stops watching and closes the batch channel.
func (w *Watcher) Close() error {
	w.debouncer.stop()
	return w.fsw.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	for _, part := range strings.Split(rel, "/") {
		if w.exclude[part] {
			return
		}
	}

	// New directories must be added to the watch set; their files
	// arrive as separate create events.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.exclude[filepath.Base(event.Name)] {
				if err := w.addTree(event.Name); err != nil {
					w.logger.Warn("cannot watch new directory",
						slog.String("path", rel),
						slog.String("error", err.Error()))
				}
			}
			return
		}
	}

	var op Op
	switch {
	case event.Op.Has(fsnotify.Create):
		op = OpCreate
	case event.Op.Has(fsnotify.Write):
		op = OpModify
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return
	}

	w.debouncer.add(Event{Path: rel, Op: op, Timestamp: time.Now()})
}

// addTree registers dir and all non-excluded subdirectories.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.exclude[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return ierr.New(ierr.ErrCodeInternal, "failed to watch directory", err).
				WithDetail("path", path)
		}
		return nil
	})
}
