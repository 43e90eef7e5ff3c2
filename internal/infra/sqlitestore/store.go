// Package sqlitestore is the embedded durable engine for queued scans.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"scanq/internal/domain"
	"scanq/internal/ports"
	"sync"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const (
	// FileName is the database file created inside the data directory.
	FileName = "scanq.db"

	createTable = `CREATE TABLE IF NOT EXISTS queued_scans (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		payload    BLOB    NOT NULL,
		created_at INTEGER NOT NULL,
		attempts   INTEGER NOT NULL DEFAULT 0
	);`
)

var (
	_ ports.RecordStore     = (*Store)(nil)
	_ ports.AttemptRecorder = (*Store)(nil)
	_ ports.Opener          = (*Store)(nil)
)

// Store keeps queued scans in a single SQLite table. The database is opened
// on first use and stays open until Close.
type Store struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

func New(dataDir string) *Store {
	return &Store{path: filepath.Join(dataDir, FileName)}
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Open creates the data directory, database and table if needed. Repeated
// calls reuse the open handle.
func (s *Store) Open(ctx context.Context) error {
	_, err := s.handle(ctx)
	return err
}

func (s *Store) handle(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data directory: %w", domain.ErrStoreUnavailable, err)
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %w", domain.ErrStoreUnavailable, err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA synchronous=NORMAL;", createTable} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: init sqlite: %w", domain.ErrStoreUnavailable, err)
		}
	}

	log.Ctx(ctx).Debug().Str("path", s.path).Msg("sqlite record store opened")
	s.db = db
	return db, nil
}

func (s *Store) Add(ctx context.Context, rec domain.QueuedScan) (int64, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return 0, err
	}

	var res sql.Result
	if rec.ID == 0 {
		res, err = db.ExecContext(ctx,
			`INSERT INTO queued_scans (payload, created_at, attempts) VALUES (?, ?, ?)`,
			[]byte(rec.Payload), rec.CreatedAt, rec.Attempts)
	} else {
		res, err = db.ExecContext(ctx,
			`INSERT OR IGNORE INTO queued_scans (id, payload, created_at, attempts) VALUES (?, ?, ?, ?)`,
			rec.ID, []byte(rec.Payload), rec.CreatedAt, rec.Attempts)
	}
	if err != nil {
		return 0, fmt.Errorf("insert queued scan: %w", err)
	}

	if rec.ID != 0 {
		if n, _ := res.RowsAffected(); n == 0 {
			return 0, domain.ErrDuplicateID
		}
		return rec.ID, nil
	}
	return res.LastInsertId()
}

func (s *Store) GetAll(ctx context.Context) ([]domain.QueuedScan, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, payload, created_at, attempts FROM queued_scans ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list queued scans: %w", err)
	}
	defer rows.Close()

	out := []domain.QueuedScan{}
	for rows.Next() {
		var (
			rec     domain.QueuedScan
			payload []byte
		)
		if err := rows.Scan(&rec.ID, &payload, &rec.CreatedAt, &rec.Attempts); err != nil {
			return nil, fmt.Errorf("scan queued scan: %w", err)
		}
		rec.Payload = payload
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM queued_scans WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("delete queued scan %d: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *Store) Count(ctx context.Context) (int, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM queued_scans`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count queued scans: %w", err)
	}
	return n, nil
}

func (s *Store) SetAttempts(ctx context.Context, id int64, attempts int) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `UPDATE queued_scans SET attempts = ? WHERE id = ?`, attempts, id)
	if err != nil {
		return fmt.Errorf("update attempts: %w", err)
	}
	return nil
}

// Close releases the database handle. A later call reopens it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}
