// Package store persists the most recent scan result in SQLite so a later
// export can run without rescanning.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/hyperifyio/svgscout/internal/asset"
)

// Schema holds one scan row and its assets in discovery order.
const Schema = `
CREATE TABLE IF NOT EXISTS scans (
    id         INTEGER PRIMARY KEY CHECK(id = 1),
    page_url   TEXT NOT NULL DEFAULT '',
    page_title TEXT NOT NULL DEFAULT '',
    scanned_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS assets (
    position   INTEGER PRIMARY KEY,
    id         TEXT NOT NULL,
    content    TEXT NOT NULL,
    source     TEXT NOT NULL,
    source_url TEXT NOT NULL DEFAULT '',
    width      REAL NOT NULL,
    height     REAL NOT NULL,
    file_size  INTEGER NOT NULL,
    name       TEXT NOT NULL DEFAULT ''
);
`

// ErrNoScan is returned by LastScan before anything was saved.
var ErrNoScan = errors.New("store: no scan saved")

// Scan is a saved result set.
type Scan struct {
	PageURL   string
	PageTitle string
	ScannedAt time.Time
	Items     []asset.Asset
}

// Store wraps the database handle.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path and applies the schema.
// ":memory:" is accepted for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and
	// serializes writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// SaveScan replaces the stored result set with items.
func (s *Store) SaveScan(ctx context.Context, pageURL, pageTitle string, items []asset.Asset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM assets`); err != nil {
		return fmt.Errorf("store: clear assets: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO scans (id, page_url, page_title, scanned_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET page_url = excluded.page_url, page_title = excluded.page_title, scanned_at = excluded.scanned_at`,
		pageURL, pageTitle, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("store: save scan: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO assets (position, id, content, source, source_url, width, height, file_size, name)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare: %w", err)
	}
	defer stmt.Close()
	for i, a := range items {
		if _, err := stmt.ExecContext(ctx, i, a.ID, a.Content, string(a.Source), a.SourceURL,
			a.Dimensions.Width, a.Dimensions.Height, a.FileSize, a.Name); err != nil {
			return fmt.Errorf("store: save asset %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	log.Debug().Str("url", pageURL).Int("assets", len(items)).Msg("scan saved")
	return nil
}

// LastScan returns the stored result set.
func (s *Store) LastScan(ctx context.Context) (Scan, error) {
	var (
		out Scan
		ms  int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT page_url, page_title, scanned_at FROM scans WHERE id = 1`).
		Scan(&out.PageURL, &out.PageTitle, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return Scan{}, ErrNoScan
	}
	if err != nil {
		return Scan{}, fmt.Errorf("store: load scan: %w", err)
	}
	out.ScannedAt = time.UnixMilli(ms).UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, source, source_url, width, height, file_size, name FROM assets ORDER BY position`)
	if err != nil {
		return Scan{}, fmt.Errorf("store: load assets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			a   asset.Asset
			src string
		)
		if err := rows.Scan(&a.ID, &a.Content, &src, &a.SourceURL, &a.Dimensions.Width, &a.Dimensions.Height, &a.FileSize, &a.Name); err != nil {
			return Scan{}, fmt.Errorf("store: scan asset: %w", err)
		}
		a.Source = asset.Source(src)
		out.Items = append(out.Items, a)
	}
	if err := rows.Err(); err != nil {
		return Scan{}, fmt.Errorf("store: load assets: %w", err)
	}
	return out, nil
}
