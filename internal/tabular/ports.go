// Package tabular defines the narrow port to the remote tabular store the
// ledger runs on. Implementations live in the subpackages (google, memory,
// sqlite, postgres) so the algorithms above never touch a concrete client.
package tabular

import (
	"context"
	"errors"
)

// ErrTableNotFound is returned by OpenTable and RenameTable when the named
// table does not exist.
var ErrTableNotFound = errors.New("table not found")

// CellUpdate addresses one cell write. Rows and columns are 1-based,
// spreadsheet style.
type CellUpdate struct {
	Row   int
	Col   int
	Value string
}

// Store is the connection-level surface: table lifecycle and lookup.
type Store interface {
	// ListTables returns all table names in the backing document.
	ListTables(ctx context.Context) ([]string, error)

	// OpenTable returns a handle to an existing table.
	OpenTable(ctx context.Context, name string) (Table, error)

	// CreateTable creates an empty table sized for the given grid.
	CreateTable(ctx context.Context, name string, rows, cols int) (Table, error)

	// RenameTable renames an existing table, preserving its data.
	RenameTable(ctx context.Context, oldName, newName string) error
}

// Table is one logical grid of cells. All row positions are 1-based and
// physical: deleting a row shifts every later row up by one.
type Table interface {
	Name() string

	// ReadAll returns every row, header included. Trailing empty cells may
	// be absent; callers must tolerate short rows.
	ReadAll(ctx context.Context) ([][]string, error)

	// AppendRow appends one row and returns its 1-based position.
	AppendRow(ctx context.Context, cells []string) (int, error)

	// UpdateCells applies all updates in a single batched call.
	UpdateCells(ctx context.Context, updates []CellUpdate) error

	// DeleteRow removes the physical row at the given position.
	DeleteRow(ctx context.Context, row int) error
}
