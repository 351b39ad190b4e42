// Package memory provides an in-memory tabular store used in tests and as
// the default local backend.
package memory

import (
	"context"
	"fmt"
	"sync"

	"finbot/internal/tabular"
)

type Store struct {
	mu     sync.Mutex
	tables map[string]*table
	order  []string
}

type table struct {
	store *Store
	name  string
	rows  [][]string
}

var _ tabular.Store = (*Store)(nil)

func New() *Store {
	return &Store{tables: map[string]*table{}}
}

func (s *Store) ListTables(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...), nil
}

func (s *Store) OpenTable(_ context.Context, name string) (tabular.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, tabular.ErrTableNotFound)
	}
	return t, nil
}

func (s *Store) CreateTable(_ context.Context, name string, _, _ int) (tabular.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[name]; ok {
		return t, nil
	}
	t := &table{store: s, name: name}
	s.tables[name] = t
	s.order = append(s.order, name)
	return t, nil
}

func (s *Store) RenameTable(_ context.Context, oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[oldName]
	if !ok {
		return fmt.Errorf("%q: %w", oldName, tabular.ErrTableNotFound)
	}
	delete(s.tables, oldName)
	t.name = newName
	s.tables[newName] = t
	for i, n := range s.order {
		if n == oldName {
			s.order[i] = newName
		}
	}
	return nil
}

func (t *table) Name() string { return t.name }

func (t *table) ReadAll(_ context.Context) ([][]string, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	out := make([][]string, len(t.rows))
	for i, row := range t.rows {
		out[i] = append([]string(nil), row...)
	}
	return out, nil
}

func (t *table) AppendRow(_ context.Context, cells []string) (int, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.rows = append(t.rows, append([]string(nil), cells...))
	return len(t.rows), nil
}

func (t *table) UpdateCells(_ context.Context, updates []tabular.CellUpdate) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, u := range updates {
		if u.Row < 1 || u.Col < 1 {
			return fmt.Errorf("invalid cell address (%d,%d)", u.Row, u.Col)
		}
		for len(t.rows) < u.Row {
			t.rows = append(t.rows, nil)
		}
		row := t.rows[u.Row-1]
		for len(row) < u.Col {
			row = append(row, "")
		}
		row[u.Col-1] = u.Value
		t.rows[u.Row-1] = row
	}
	return nil
}

func (t *table) DeleteRow(_ context.Context, row int) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if row < 1 || row > len(t.rows) {
		return fmt.Errorf("row %d out of range", row)
	}
	t.rows = append(t.rows[:row-1], t.rows[row:]...)
	return nil
}
