// Package postgres backs the tabular store with PostgreSQL over a pgx
// connection pool. Storage layout mirrors the sqlite backend: rows are
// JSON-encoded string arrays keyed by (table, position).
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"finbot/internal/tabular"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS sheet_tables (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sheet_rows (
    table_id BIGINT NOT NULL REFERENCES sheet_tables(id) ON DELETE CASCADE,
    pos INTEGER NOT NULL,
    cells JSONB NOT NULL,
    PRIMARY KEY (table_id, pos) DEFERRABLE INITIALLY DEFERRED
);
`

type Store struct {
	pool *pgxpool.Pool
}

var _ tabular.Store = (*Store)(nil)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT name FROM sheet_tables ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *Store) OpenTable(ctx context.Context, name string) (tabular.Table, error) {
	var id int64
	err := s.pool.QueryRow(ctx, "SELECT id FROM sheet_tables WHERE name = $1", name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%q: %w", name, tabular.ErrTableNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open table %q: %w", name, err)
	}
	return &table{store: s, id: id, name: name}, nil
}

func (s *Store) CreateTable(ctx context.Context, name string, _, _ int) (tabular.Table, error) {
	if _, err := s.pool.Exec(ctx,
		"INSERT INTO sheet_tables (name) VALUES ($1) ON CONFLICT (name) DO NOTHING", name); err != nil {
		return nil, fmt.Errorf("create table %q: %w", name, err)
	}
	return s.OpenTable(ctx, name)
}

func (s *Store) RenameTable(ctx context.Context, oldName, newName string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE sheet_tables SET name = $1 WHERE name = $2", newName, oldName)
	if err != nil {
		return fmt.Errorf("rename table %q: %w", oldName, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%q: %w", oldName, tabular.ErrTableNotFound)
	}
	return nil
}

type table struct {
	store *Store
	id    int64
	name  string
}

func (t *table) Name() string { return t.name }

func (t *table) ReadAll(ctx context.Context) ([][]string, error) {
	rows, err := t.store.pool.Query(ctx,
		"SELECT cells FROM sheet_rows WHERE table_id = $1 ORDER BY pos", t.id)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", t.name, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var encoded []byte
		if err := rows.Scan(&encoded); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var cells []string
		if err := json.Unmarshal(encoded, &cells); err != nil {
			return nil, fmt.Errorf("decode row in %s: %w", t.name, err)
		}
		out = append(out, cells)
	}
	return out, rows.Err()
}

func (t *table) AppendRow(ctx context.Context, cells []string) (int, error) {
	encoded, err := json.Marshal(cells)
	if err != nil {
		return 0, fmt.Errorf("encode row: %w", err)
	}

	tx, err := t.store.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	var pos int
	err = tx.QueryRow(ctx,
		"SELECT COALESCE(MAX(pos), 0) + 1 FROM sheet_rows WHERE table_id = $1", t.id).Scan(&pos)
	if err != nil {
		return 0, fmt.Errorf("next position in %s: %w", t.name, err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO sheet_rows (table_id, pos, cells) VALUES ($1, $2, $3)",
		t.id, pos, encoded); err != nil {
		return 0, fmt.Errorf("append to %s: %w", t.name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	return pos, nil
}

func (t *table) UpdateCells(ctx context.Context, updates []tabular.CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := t.store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, u := range updates {
		if u.Row < 1 || u.Col < 1 {
			return fmt.Errorf("invalid cell address (%d,%d)", u.Row, u.Col)
		}
		var encoded []byte
		var cells []string
		err := tx.QueryRow(ctx,
			"SELECT cells FROM sheet_rows WHERE table_id = $1 AND pos = $2", t.id, u.Row).Scan(&encoded)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// Cell writes may land past the current row count, like a sheet.
		case err != nil:
			return fmt.Errorf("read row %d in %s: %w", u.Row, t.name, err)
		default:
			if err := json.Unmarshal(encoded, &cells); err != nil {
				return fmt.Errorf("decode row %d in %s: %w", u.Row, t.name, err)
			}
		}
		for len(cells) < u.Col {
			cells = append(cells, "")
		}
		cells[u.Col-1] = u.Value

		out, err := json.Marshal(cells)
		if err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO sheet_rows (table_id, pos, cells) VALUES ($1, $2, $3)
			 ON CONFLICT (table_id, pos) DO UPDATE SET cells = EXCLUDED.cells`,
			t.id, u.Row, out); err != nil {
			return fmt.Errorf("write row %d in %s: %w", u.Row, t.name, err)
		}
	}
	return tx.Commit(ctx)
}

func (t *table) DeleteRow(ctx context.Context, row int) error {
	if row < 1 {
		return fmt.Errorf("row %d out of range", row)
	}
	tx, err := t.store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		"DELETE FROM sheet_rows WHERE table_id = $1 AND pos = $2", t.id, row)
	if err != nil {
		return fmt.Errorf("delete row %d in %s: %w", row, t.name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("row %d out of range", row)
	}

	// The primary key is deferred, so one statement can shift every later
	// row up without a transient collision.
	if _, err := tx.Exec(ctx,
		"UPDATE sheet_rows SET pos = pos - 1 WHERE table_id = $1 AND pos > $2", t.id, row); err != nil {
		return fmt.Errorf("shift rows in %s: %w", t.name, err)
	}
	return tx.Commit(ctx)
}
