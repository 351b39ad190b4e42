package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"finbot/internal/tabular"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "finbot.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateOpenRename(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.OpenTable(ctx, "user_1"); !errors.Is(err, tabular.ErrTableNotFound) {
		t.Fatalf("open missing table err = %v, want ErrTableNotFound", err)
	}
	if _, err := store.CreateTable(ctx, "user_1", 100, 18); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	// Creating again opens the same table.
	if _, err := store.CreateTable(ctx, "user_1", 100, 18); err != nil {
		t.Fatalf("idempotent create: %v", err)
	}

	if err := store.RenameTable(ctx, "user_1", "user_2"); err != nil {
		t.Fatalf("RenameTable: %v", err)
	}
	if _, err := store.OpenTable(ctx, "user_1"); !errors.Is(err, tabular.ErrTableNotFound) {
		t.Errorf("old name still opens, err = %v", err)
	}
	if _, err := store.OpenTable(ctx, "user_2"); err != nil {
		t.Errorf("new name does not open: %v", err)
	}
	if err := store.RenameTable(ctx, "ghost", "x"); !errors.Is(err, tabular.ErrTableNotFound) {
		t.Errorf("rename of missing table err = %v", err)
	}

	names, err := store.ListTables(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "user_2" {
		t.Errorf("ListTables = %v, want [user_2]", names)
	}
}

func TestRowRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tbl, err := store.CreateTable(ctx, "user_1", 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	pos, err := tbl.AppendRow(ctx, []string{"date", "amount"})
	if err != nil {
		t.Fatal(err)
	}
	if pos != 1 {
		t.Errorf("first append pos = %d, want 1", pos)
	}
	pos, err = tbl.AppendRow(ctx, []string{"2024-01-01", "10.00"})
	if err != nil {
		t.Fatal(err)
	}
	if pos != 2 {
		t.Errorf("second append pos = %d, want 2", pos)
	}

	rows, err := tbl.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1][1] != "10.00" {
		t.Errorf("ReadAll = %v", rows)
	}
}

func TestUpdateCellsWidensRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tbl, _ := store.CreateTable(ctx, "user_1", 0, 0)

	if _, err := tbl.AppendRow(ctx, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	err := tbl.UpdateCells(ctx, []tabular.CellUpdate{
		{Row: 1, Col: 3, Value: "c"},
		{Row: 2, Col: 1, Value: "next"}, // row beyond current count
	})
	if err != nil {
		t.Fatalf("UpdateCells: %v", err)
	}

	rows, _ := tbl.ReadAll(ctx)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if len(rows[0]) != 3 || rows[0][2] != "c" || rows[0][0] != "a" {
		t.Errorf("widened row = %v", rows[0])
	}
	if rows[1][0] != "next" {
		t.Errorf("new row = %v", rows[1])
	}
}

func TestDeleteRowShiftsPositions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tbl, _ := store.CreateTable(ctx, "user_1", 0, 0)

	for _, v := range []string{"one", "two", "three", "four"} {
		if _, err := tbl.AppendRow(ctx, []string{v}); err != nil {
			t.Fatal(err)
		}
	}
	if err := tbl.DeleteRow(ctx, 2); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}

	rows, _ := tbl.ReadAll(ctx)
	want := []string{"one", "three", "four"}
	if len(rows) != len(want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
	for i := range want {
		if rows[i][0] != want[i] {
			t.Errorf("rows[%d] = %v, want %q", i, rows[i], want[i])
		}
	}

	// Appending lands right after the last surviving row.
	pos, err := tbl.AppendRow(ctx, []string{"five"})
	if err != nil {
		t.Fatal(err)
	}
	if pos != 4 {
		t.Errorf("append after delete pos = %d, want 4", pos)
	}

	if err := tbl.DeleteRow(ctx, 99); err == nil {
		t.Error("delete of missing row should fail")
	}
}
