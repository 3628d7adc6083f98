package termstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/FocuswithJustin/MapLabeler/core/errors"
	"github.com/FocuswithJustin/MapLabeler/core/renderings"
	"github.com/FocuswithJustin/MapLabeler/core/sqlite"
	"github.com/FocuswithJustin/MapLabeler/internal/logging"
)

// Schema creates the term tables. It is safe to run more than once.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS term_renderings (
		term_id    TEXT PRIMARY KEY,
		renderings TEXT NOT NULL DEFAULT '',
		is_guessed INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS term_denials (
		term_id TEXT NOT NULL REFERENCES term_renderings(term_id) ON DELETE CASCADE,
		ref     TEXT NOT NULL,
		PRIMARY KEY (term_id, ref)
	)`,
}

// SQLiteStore is a Store in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	ownsDB bool
}

// NewSQLiteStore uses db, creating the term tables when needed. The caller
// keeps ownership of db.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if err := sqlite.Migrate(ctx, db, Schema); err != nil {
		return nil, fmt.Errorf("term store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// OpenSQLiteStore opens the database at path and creates the term tables
// when needed. Close releases the database.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, apperrors.NewIO("open", path, err)
	}
	db.SetMaxOpenConns(1)
	s, err := NewSQLiteStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// OpenSQLiteStoreReadOnly opens the database at path without writing to
// it. The term tables must already exist.
func OpenSQLiteStoreReadOnly(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, apperrors.NewIO("open", path, err)
	}
	var n int
	err = db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'term_renderings'`).Scan(&n)
	if err != nil {
		db.Close()
		return nil, apperrors.NewIO("open", path, err)
	}
	if n == 0 {
		db.Close()
		return nil, apperrors.NewNotFound("term tables", path)
	}
	return &SQLiteStore{db: db, ownsDB: true}, nil
}

// DB returns the underlying database.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database if the store opened it.
func (s *SQLiteStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, termID string) (*renderings.Entry, error) {
	var (
		text    string
		guessed bool
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT renderings, is_guessed FROM term_renderings WHERE term_id = ?", termID).
		Scan(&text, &guessed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(termID)
	}
	if err != nil {
		return nil, fmt.Errorf("get term %s: %w", termID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT ref FROM term_denials WHERE term_id = ? ORDER BY ref", termID)
	if err != nil {
		return nil, fmt.Errorf("get denials of %s: %w", termID, err)
	}
	defer rows.Close()

	var denials []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("scan denial of %s: %w", termID, err)
		}
		denials = append(denials, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return renderings.NewEntry(text, guessed, denials...), nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, termID string, entry *renderings.Entry) error {
	if err := validateID(termID); err != nil {
		return err
	}
	if entry == nil {
		return apperrors.NewValidation("entry", "must not be nil")
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO term_renderings (term_id, renderings, is_guessed) VALUES (?, ?, ?)
			 ON CONFLICT(term_id) DO UPDATE SET renderings = excluded.renderings, is_guessed = excluded.is_guessed`,
			termID, entry.Renderings, entry.IsGuessed); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM term_denials WHERE term_id = ?", termID); err != nil {
			return err
		}
		for _, ref := range entry.DenialList() {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO term_denials (term_id, ref) VALUES (?, ?)", termID, ref); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("put term %s: %w", termID, err)
	}
	logging.StoreEvent("put", termID, "store", "sqlite")
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, termID string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM term_denials WHERE term_id = ?", termID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM term_renderings WHERE term_id = ?", termID)
		if err != nil {
			return err
		}
		return requireRow(res, termID)
	})
	if err != nil {
		return err
	}
	logging.StoreEvent("delete", termID, "store", "sqlite")
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT term_id FROM term_renderings ORDER BY term_id")
	if err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetDenied implements Store.
func (s *SQLiteStore) SetDenied(ctx context.Context, termID, ref string, denied bool) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := existsTx(ctx, tx, termID); err != nil {
			return err
		}
		var err error
		if denied {
			_, err = tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO term_denials (term_id, ref) VALUES (?, ?)", termID, ref)
		} else {
			_, err = tx.ExecContext(ctx,
				"DELETE FROM term_denials WHERE term_id = ? AND ref = ?", termID, ref)
		}
		return err
	})
	if err != nil {
		return err
	}
	logging.StoreEvent("set_denied", termID, "store", "sqlite", "ref", ref, "denied", denied)
	return nil
}

// Approve implements Store.
func (s *SQLiteStore) Approve(ctx context.Context, termID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE term_renderings SET is_guessed = 0 WHERE term_id = ?", termID)
	if err != nil {
		return fmt.Errorf("approve term %s: %w", termID, err)
	}
	if err := requireRow(res, termID); err != nil {
		return err
	}
	logging.StoreEvent("approve", termID, "store", "sqlite")
	return nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func existsTx(ctx context.Context, tx *sql.Tx, termID string) error {
	var one int
	err := tx.QueryRowContext(ctx,
		"SELECT 1 FROM term_renderings WHERE term_id = ?", termID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(termID)
	}
	return err
}

func requireRow(res sql.Result, termID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(termID)
	}
	return nil
}
