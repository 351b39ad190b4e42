// Package sqlite backs the tabular store with a local SQLite file. Rows are
// stored as JSON-encoded string arrays keyed by (table, position), so the
// spreadsheet semantics (1-based positions, shifts on delete) carry over.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"finbot/internal/tabular"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

var _ tabular.Store = (*Store)(nil)

func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM sheet_tables ORDER BY id")
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
	err := s.db.QueryRowContext(ctx, "SELECT id FROM sheet_tables WHERE name = ?", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%q: %w", name, tabular.ErrTableNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open table %q: %w", name, err)
	}
	return &table{store: s, id: id, name: name}, nil
}

func (s *Store) CreateTable(ctx context.Context, name string, _, _ int) (tabular.Table, error) {
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO sheet_tables (name) VALUES (?) ON CONFLICT(name) DO NOTHING", name); err != nil {
		return nil, fmt.Errorf("create table %q: %w", name, err)
	}
	return s.OpenTable(ctx, name)
}

func (s *Store) RenameTable(ctx context.Context, oldName, newName string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sheet_tables SET name = ? WHERE name = ?", newName, oldName)
	if err != nil {
		return fmt.Errorf("rename table %q: %w", oldName, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rename table %q: %w", oldName, err)
	}
	if n == 0 {
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
	rows, err := t.store.db.QueryContext(ctx,
		"SELECT cells FROM sheet_rows WHERE table_id = ? ORDER BY pos", t.id)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", t.name, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var cells []string
		if err := json.Unmarshal([]byte(encoded), &cells); err != nil {
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

	tx, err := t.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var pos int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(pos), 0) + 1 FROM sheet_rows WHERE table_id = ?", t.id).Scan(&pos)
	if err != nil {
		return 0, fmt.Errorf("next position in %s: %w", t.name, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO sheet_rows (table_id, pos, cells) VALUES (?, ?, ?)",
		t.id, pos, string(encoded)); err != nil {
		return 0, fmt.Errorf("append to %s: %w", t.name, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	return pos, nil
}

func (t *table) UpdateCells(ctx context.Context, updates []tabular.CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := t.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	for _, u := range updates {
		if u.Row < 1 || u.Col < 1 {
			return fmt.Errorf("invalid cell address (%d,%d)", u.Row, u.Col)
		}
		var encoded string
		var cells []string
		err := tx.QueryRowContext(ctx,
			"SELECT cells FROM sheet_rows WHERE table_id = ? AND pos = ?", t.id, u.Row).Scan(&encoded)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// Cell writes may land past the current row count, like a sheet.
		case err != nil:
			return fmt.Errorf("read row %d in %s: %w", u.Row, t.name, err)
		default:
			if err := json.Unmarshal([]byte(encoded), &cells); err != nil {
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
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sheet_rows (table_id, pos, cells) VALUES (?, ?, ?)
			 ON CONFLICT(table_id, pos) DO UPDATE SET cells = excluded.cells`,
			t.id, u.Row, string(out)); err != nil {
			return fmt.Errorf("write row %d in %s: %w", u.Row, t.name, err)
		}
	}
	return tx.Commit()
}

func (t *table) DeleteRow(ctx context.Context, row int) error {
	if row < 1 {
		return fmt.Errorf("row %d out of range", row)
	}
	tx, err := t.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM sheet_rows WHERE table_id = ? AND pos = ?", t.id, row)
	if err != nil {
		return fmt.Errorf("delete row %d in %s: %w", row, t.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete row %d in %s: %w", row, t.name, err)
	}
	if n == 0 {
		return fmt.Errorf("row %d out of range", row)
	}

	// Shift later rows up one by one, ascending, so the freed position is
	// always available and the primary key never collides.
	rows, err := tx.QueryContext(ctx,
		"SELECT pos FROM sheet_rows WHERE table_id = ? AND pos > ? ORDER BY pos", t.id, row)
	if err != nil {
		return fmt.Errorf("list shifted rows in %s: %w", t.name, err)
	}
	var positions []int
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list shifted rows in %s: %w", t.name, err)
	}

	for _, p := range positions {
		if _, err := tx.ExecContext(ctx,
			"UPDATE sheet_rows SET pos = ? WHERE table_id = ? AND pos = ?",
			p-1, t.id, p); err != nil {
			return fmt.Errorf("shift row %d in %s: %w", p, t.name, err)
		}
	}
	return tx.Commit()
}
