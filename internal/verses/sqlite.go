package verses

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/FocuswithJustin/MapLabeler/core/sqlite"
)

// Schema creates the verse table.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS verses (
		ref  TEXT PRIMARY KEY,
		text TEXT NOT NULL
	)`,
}

// SQLiteProvider reads verse text from a SQLite table.
type SQLiteProvider struct {
	db *sql.DB
}

// NewSQLiteProvider uses db, creating the verse table when needed.
func NewSQLiteProvider(ctx context.Context, db *sql.DB) (*SQLiteProvider, error) {
	if err := sqlite.Migrate(ctx, db, Schema); err != nil {
		return nil, fmt.Errorf("verse provider: %w", err)
	}
	return &SQLiteProvider{db: db}, nil
}

// NewReadOnlySQLiteProvider uses db as it is, for databases opened
// read-only.
func NewReadOnlySQLiteProvider(db *sql.DB) *SQLiteProvider {
	return &SQLiteProvider{db: db}
}

// Verses implements Provider.
func (p *SQLiteProvider) Verses(ctx context.Context, refs []string) (map[string]string, error) {
	stmt, err := p.db.PrepareContext(ctx, "SELECT text FROM verses WHERE ref = ?")
	if err != nil {
		return nil, fmt.Errorf("prepare verse query: %w", err)
	}
	defer stmt.Close()

	out := make(map[string]string, len(refs))
	for _, r := range refs {
		var text string
		err := stmt.QueryRowContext(ctx, Key(r)).Scan(&text)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read verse %s: %w", r, err)
		}
		if text != "" {
			out[r] = text
		}
	}
	return out, nil
}

// Put stores the text of one verse. An empty text removes the verse.
func (p *SQLiteProvider) Put(ctx context.Context, reference, text string) error {
	return p.PutMany(ctx, map[string]string{reference: text})
}

// PutMany stores many verses in one transaction and returns after all or
// none are written.
func (p *SQLiteProvider) PutMany(ctx context.Context, texts map[string]string) error {
	refs := make([]string, 0, len(texts))
	for r := range texts {
		refs = append(refs, r)
	}
	sort.Strings(refs)

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, r := range refs {
		text := Clean(texts[r])
		if text == "" {
			_, err = tx.ExecContext(ctx, "DELETE FROM verses WHERE ref = ?", Key(r))
		} else {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO verses (ref, text) VALUES (?, ?)
				 ON CONFLICT(ref) DO UPDATE SET text = excluded.text`, Key(r), text)
		}
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("write verse %s: %w", r, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of stored verses.
func (p *SQLiteProvider) Count(ctx context.Context) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM verses").Scan(&n)
	return n, err
}
