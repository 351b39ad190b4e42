package memory

import (
	"context"
	"errors"
	"testing"

	"finbot/internal/tabular"
)

func TestCreateOpenList(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.OpenTable(ctx, "missing"); !errors.Is(err, tabular.ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}

	if _, err := s.CreateTable(ctx, "user_1", 100, 9); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateTable(ctx, "budgets", 100, 5); err != nil {
		t.Fatal(err)
	}

	names, err := s.ListTables(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "user_1" || names[1] != "budgets" {
		t.Fatalf("ListTables = %v", names)
	}
}

func TestAppendUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	tbl, _ := s.CreateTable(ctx, "user_1", 0, 0)

	pos, err := tbl.AppendRow(ctx, []string{"a", "b"})
	if err != nil || pos != 1 {
		t.Fatalf("append = %d, %v", pos, err)
	}
	pos, _ = tbl.AppendRow(ctx, []string{"c", "d"})
	if pos != 2 {
		t.Fatalf("second append = %d", pos)
	}

	// Batch update, including a column past the current row width.
	err = tbl.UpdateCells(ctx, []tabular.CellUpdate{
		{Row: 1, Col: 2, Value: "B"},
		{Row: 2, Col: 4, Value: "x"},
	})
	if err != nil {
		t.Fatal(err)
	}
	rows, _ := tbl.ReadAll(ctx)
	if rows[0][1] != "B" || rows[1][3] != "x" {
		t.Fatalf("rows = %v", rows)
	}

	if err := tbl.DeleteRow(ctx, 1); err != nil {
		t.Fatal(err)
	}
	rows, _ = tbl.ReadAll(ctx)
	if len(rows) != 1 || rows[0][0] != "c" {
		t.Fatalf("after delete rows = %v", rows)
	}
	if err := tbl.DeleteRow(ctx, 5); err == nil {
		t.Fatal("expected out of range error")
	}
}

func TestRename(t *testing.T) {
	ctx := context.Background()
	s := New()
	tbl, _ := s.CreateTable(ctx, "olena", 0, 0)
	if _, err := tbl.AppendRow(ctx, []string{"keep"}); err != nil {
		t.Fatal(err)
	}

	if err := s.RenameTable(ctx, "olena", "user_42"); err != nil {
		t.Fatal(err)
	}
	got, err := s.OpenTable(ctx, "user_42")
	if err != nil {
		t.Fatal(err)
	}
	rows, _ := got.ReadAll(ctx)
	if len(rows) != 1 || rows[0][0] != "keep" {
		t.Fatalf("data lost on rename: %v", rows)
	}
	if _, err := s.OpenTable(ctx, "olena"); !errors.Is(err, tabular.ErrTableNotFound) {
		t.Fatalf("old name still resolves: %v", err)
	}
	if err := s.RenameTable(ctx, "ghost", "x"); !errors.Is(err, tabular.ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}
}
