package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"PaperDigest/internal/ports"
)

const seenTable = "seen_items"

// SQLiteSeenStore persists processed identifiers into a SQLite table.
type SQLiteSeenStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.SeenStore = (*SQLiteSeenStore)(nil)

// OpenSQLiteSeenStore opens (or creates) the database at path and ensures the schema.
func OpenSQLiteSeenStore(ctx context.Context, path string) (*SQLiteSeenStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	store := NewSQLiteSeenStore(db)
	if err := store.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteSeenStore wires an already opened sql.DB.
func NewSQLiteSeenStore(db *sql.DB) *SQLiteSeenStore {
	return &SQLiteSeenStore{db: db, now: time.Now}
}

func (s *SQLiteSeenStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+seenTable+` (
		id      TEXT PRIMARY KEY,
		seen_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create %s: %w", seenTable, err)
	}
	return nil
}

// Load returns every stored identifier.
func (s *SQLiteSeenStore) Load(ctx context.Context) (map[string]struct{}, error) {
	query, args, err := sq.Select("id").From(seenTable).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query seen: %w", err)
	}

	result := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan id: %w", err)
		}
		result[id] = struct{}{}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

// MarkSeen inserts id; an existing row is left untouched.
func (s *SQLiteSeenStore) MarkSeen(ctx context.Context, id string) error {
	query, args, err := sq.Insert(seenTable).
		Options("OR IGNORE").
		Columns("id", "seen_at").
		Values(id, s.now().UTC().Format(time.RFC3339)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert seen %s: %w", id, err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteSeenStore) Close() error {
	return s.db.Close()
}
