package database

import (
	"database/sql"
	"errors"
	"fmt"

	"pouch-go/internal/database/migrations"
	"pouch-go/internal/pouch"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements the pouch.Store interface using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	path  string
	clock pouch.Clock
	ids   pouch.IDGenerator
}

var _ pouch.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the store at path and applies pending
// migrations. path can be a file path or ":memory:" for an ephemeral store.
// clock and ids may be nil, selecting the real implementations.
func NewSQLiteStore(path string, clock pouch.Clock, ids pouch.IDGenerator) (*SQLiteStore, error) {
	if clock == nil {
		clock = pouch.RealClock{}
	}
	if ids == nil {
		ids = pouch.UUIDGenerator{}
	}

	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}

	return &SQLiteStore{db: db, path: path, clock: clock, ids: ids}, nil
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the store relies on. Exported for tools and tests that need a matching
// connection. path can be a file path or ":memory:".
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; collapse the pool so
	// every query sees the same one.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	return db, nil
}

// Category operations

func (s *SQLiteStore) PutCategory(rec *pouch.CategoryRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO categories (name, asset_count, fetched_count, completed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			asset_count = excluded.asset_count,
			fetched_count = excluded.fetched_count,
			completed_at = excluded.completed_at`,
		rec.Name, rec.AssetCount, rec.FetchedCount, rec.CompletedAt)
	if err != nil {
		return fmt.Errorf("upserting category %s: %w", rec.Name, err)
	}
	return nil
}

func (s *SQLiteStore) GetCategory(name string) (*pouch.CategoryRecord, error) {
	var rec pouch.CategoryRecord
	err := s.db.QueryRow(`
		SELECT name, asset_count, fetched_count, completed_at
		FROM categories WHERE name = ?`, name).
		Scan(&rec.Name, &rec.AssetCount, &rec.FetchedCount, &rec.CompletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding category %s: %w", name, err)
	}
	return &rec, nil
}

func (s *SQLiteStore) ListCategories() ([]*pouch.CategoryRecord, error) {
	rows, err := s.db.Query(`
		SELECT name, asset_count, fetched_count, completed_at
		FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var recs []*pouch.CategoryRecord
	for rows.Next() {
		var rec pouch.CategoryRecord
		if err := rows.Scan(&rec.Name, &rec.AssetCount, &rec.FetchedCount, &rec.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

func (s *SQLiteStore) ClearCategories() error {
	if _, err := s.db.Exec(`DELETE FROM categories`); err != nil {
		return fmt.Errorf("clearing categories: %w", err)
	}
	return nil
}

// Asset operations

func (s *SQLiteStore) PutAsset(rec *pouch.AssetRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO assets (content_id, category, role, url, size, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_id, role) DO UPDATE SET
			category = excluded.category,
			url = excluded.url,
			size = excluded.size,
			fetched_at = excluded.fetched_at`,
		rec.ContentID, rec.Category, rec.Role, rec.URL, rec.Size, rec.FetchedAt)
	if err != nil {
		return fmt.Errorf("upserting asset %s/%s: %w", rec.ContentID, rec.Role, err)
	}
	return nil
}

func (s *SQLiteStore) GetAsset(contentID, role string) (*pouch.AssetRecord, error) {
	var rec pouch.AssetRecord
	err := s.db.QueryRow(`
		SELECT content_id, category, role, url, size, fetched_at
		FROM assets WHERE content_id = ? AND role = ?`, contentID, role).
		Scan(&rec.ContentID, &rec.Category, &rec.Role, &rec.URL, &rec.Size, &rec.FetchedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding asset %s/%s: %w", contentID, role, err)
	}
	return &rec, nil
}

func (s *SQLiteStore) ListAssets(category string) ([]*pouch.AssetRecord, error) {
	query := `
		SELECT content_id, category, role, url, size, fetched_at
		FROM assets ORDER BY content_id, role`
	args := []any{}
	if category != "" {
		query = `
		SELECT content_id, category, role, url, size, fetched_at
		FROM assets WHERE category = ? ORDER BY content_id, role`
		args = append(args, category)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing assets: %w", err)
	}
	defer rows.Close()

	var recs []*pouch.AssetRecord
	for rows.Next() {
		var rec pouch.AssetRecord
		if err := rows.Scan(&rec.ContentID, &rec.Category, &rec.Role, &rec.URL, &rec.Size, &rec.FetchedAt); err != nil {
			return nil, fmt.Errorf("scanning asset: %w", err)
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

func (s *SQLiteStore) ClearAssets() error {
	if _, err := s.db.Exec(`DELETE FROM assets`); err != nil {
		return fmt.Errorf("clearing assets: %w", err)
	}
	return nil
}

// Meta operations

func (s *SQLiteStore) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil // Unset
		}
		return "", fmt.Errorf("reading meta %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) SetMeta(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("writing meta %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteMeta(key string) error {
	if _, err := s.db.Exec(`DELETE FROM meta WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting meta %s: %w", key, err)
	}
	return nil
}

// Sync run operations

func (s *SQLiteStore) CreateSyncRun(operation, parameters string) (*pouch.SyncRun, error) {
	run := &pouch.SyncRun{
		ID:         s.ids.New(),
		Operation:  operation,
		Parameters: parameters,
		Status:     "started",
		StartedAt:  s.clock.Now().UTC(),
	}
	_, err := s.db.Exec(`
		INSERT INTO sync_runs (id, operation, parameters, status, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Operation, run.Parameters, run.Status, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("creating sync run: %w", err)
	}
	return run, nil
}

func (s *SQLiteStore) SetSyncRunParameters(id, parameters string) error {
	res, err := s.db.Exec(`
		UPDATE sync_runs SET parameters = ? WHERE id = ?`, parameters, id)
	if err != nil {
		return fmt.Errorf("updating sync run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating sync run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("no sync run with id %s", id)
	}
	return nil
}

func (s *SQLiteStore) FinishSyncRun(id, status string, fetched, failed int) error {
	res, err := s.db.Exec(`
		UPDATE sync_runs SET status = ?, fetched = ?, failed = ?, finished_at = ? WHERE id = ?`,
		status, fetched, failed, s.clock.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("finishing sync run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing sync run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("no sync run with id %s", id)
	}
	return nil
}

func (s *SQLiteStore) ListSyncRuns(limit int) ([]*pouch.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, operation, parameters, status, fetched, failed, started_at, finished_at
		FROM sync_runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*pouch.SyncRun
	for rows.Next() {
		var run pouch.SyncRun
		var finished sql.NullTime
		if err := rows.Scan(&run.ID, &run.Operation, &run.Parameters, &run.Status, &run.Fetched, &run.Failed, &run.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// CheckMigrations verifies that the database schema is up to date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.Status(s.db)
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
