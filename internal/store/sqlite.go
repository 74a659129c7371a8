package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	ierr "github.com/designtools/libindex/internal/errors"
)

const chunkSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT PRIMARY KEY,
	path        TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	text        TEXT NOT NULL,
	framework   TEXT NOT NULL DEFAULT '',
	repo_name   TEXT NOT NULL DEFAULT '',
	category    TEXT NOT NULL DEFAULT '',
	section     TEXT NOT NULL DEFAULT '',
	extension   TEXT NOT NULL DEFAULT '',
	sha256      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_chunks_path ON chunks(path);
CREATE INDEX IF NOT EXISTS idx_chunks_framework ON chunks(framework);
CREATE INDEX IF NOT EXISTS idx_chunks_category ON chunks(category);
`

// metaDB stores chunk text and metadata in SQLite, keyed by the same
// chunk IDs the vector index uses.
type metaDB struct {
	db *sql.DB
}

// openMetaDB opens or creates the metadata database. An empty path
// opens an in-memory database for tests.
func openMetaDB(path string) (*metaDB, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, ierr.New(ierr.ErrCodeStoreWrite, "failed to create store directory", err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ierr.New(ierr.ErrCodeStoreWrite, "failed to open metadata database", err)
	}

	// Single writer keeps SQLite lock contention out of the picture
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, ierr.New(ierr.ErrCodeStoreWrite, "failed to configure database", err)
		}
	}

	if _, err := db.Exec(chunkSchema); err != nil {
		_ = db.Close()
		return nil, ierr.New(ierr.ErrCodeStoreWrite, "failed to create schema", err)
	}

	return &metaDB{db: db}, nil
}

// replacePath swaps all chunks of the given paths for the new records
// in one transaction.
func (m *metaDB) replacePaths(ctx context.Context, paths []string, records []Record) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return ierr.New(ierr.ErrCodeStoreWrite, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, path := range paths {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE path = ?`, path); err != nil {
			return ierr.New(ierr.ErrCodeStoreWrite, "failed to delete old chunks", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, path, chunk_index, text, framework, repo_name, category, section, extension, sha256)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return ierr.New(ierr.ErrCodeStoreWrite, "failed to prepare insert", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx, r.ID(), r.Path, r.ChunkIndex, r.Text,
			r.Meta.Framework, r.Meta.RepoName, r.Meta.Category,
			r.Meta.Section, r.Meta.Extension, r.Meta.SHA256)
		if err != nil {
			return ierr.New(ierr.ErrCodeStoreWrite, "failed to insert chunk", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ierr.New(ierr.ErrCodeStoreWrite, "failed to commit batch", err)
	}
	return nil
}

// idsForPath returns the chunk IDs stored for a file.
func (m *metaDB) idsForPath(ctx context.Context, path string) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id FROM chunks WHERE path = ?`, path)
	if err != nil {
		return nil, ierr.New(ierr.ErrCodeStoreWrite, "failed to query chunks", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, ierr.New(ierr.ErrCodeStoreCorrupt, "failed to scan chunk ID", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.New(ierr.ErrCodeStoreCorrupt, "failed to iterate chunks", err)
	}
	return ids, nil
}

// deletePath removes all chunks of a file, returning the removed IDs.
func (m *metaDB) deletePath(ctx context.Context, path string) ([]string, error) {
	ids, err := m.idsForPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if _, err := m.db.ExecContext(ctx, `DELETE FROM chunks WHERE path = ?`, path); err != nil {
		return nil, ierr.New(ierr.ErrCodeStoreWrite, "failed to delete chunks", err)
	}
	return ids, nil
}

// chunkRow is the stored form of a chunk without its vector.
type chunkRow struct {
	Path       string
	ChunkIndex int
	Text       string
	Meta       Meta
}

// get fetches one chunk by ID.
func (m *metaDB) get(ctx context.Context, id string) (chunkRow, bool, error) {
	var row chunkRow
	err := m.db.QueryRowContext(ctx, `
		SELECT path, chunk_index, text, framework, repo_name, category, section, extension, sha256
		FROM chunks WHERE id = ?`, id).
		Scan(&row.Path, &row.ChunkIndex, &row.Text,
			&row.Meta.Framework, &row.Meta.RepoName, &row.Meta.Category,
			&row.Meta.Section, &row.Meta.Extension, &row.Meta.SHA256)
	if err == sql.ErrNoRows {
		return chunkRow{}, false, nil
	}
	if err != nil {
		return chunkRow{}, false, ierr.New(ierr.ErrCodeStoreCorrupt, "failed to read chunk", err)
	}
	return row, true, nil
}

// countByPath returns the chunk count for a file.
func (m *metaDB) countByPath(ctx context.Context, path string) (int, error) {
	var count int
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE path = ?`, path).Scan(&count)
	if err != nil {
		return 0, ierr.New(ierr.ErrCodeStoreCorrupt, "failed to count chunks", err)
	}
	return count, nil
}

// stats aggregates chunk counts by file, framework, and category.
func (m *metaDB) stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		Frameworks: make(map[string]int),
		Categories: make(map[string]int),
	}

	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT path) FROM chunks`).
		Scan(&stats.Chunks, &stats.Files)
	if err != nil {
		return Stats{}, ierr.New(ierr.ErrCodeStoreCorrupt, "failed to aggregate stats", err)
	}

	if err := m.countsInto(ctx, `SELECT framework, COUNT(*) FROM chunks WHERE framework != '' GROUP BY framework`, stats.Frameworks); err != nil {
		return Stats{}, err
	}
	if err := m.countsInto(ctx, `SELECT category, COUNT(*) FROM chunks WHERE category != '' GROUP BY category`, stats.Categories); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (m *metaDB) countsInto(ctx context.Context, query string, out map[string]int) error {
	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return ierr.New(ierr.ErrCodeStoreCorrupt, "failed to aggregate stats", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return ierr.New(ierr.ErrCodeStoreCorrupt, "failed to scan stats row", err)
		}
		out[key] = count
	}
	return rows.Err()
}

// reset drops all chunks.
func (m *metaDB) reset(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return ierr.New(ierr.ErrCodeStoreWrite, "failed to clear chunks", err)
	}
	return nil
}

func (m *metaDB) close() error {
	return m.db.Close()
}
