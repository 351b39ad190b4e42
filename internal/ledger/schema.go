package ledger

import (
	"context"
	"strconv"
	"strings"

	"finbot/internal/core"
	"finbot/internal/dates"
	"finbot/internal/tabular"
)

// Column names of the unified per-user ledger table. Transactions and goals
// share one physical table; record_type discriminates, and its absence on a
// legacy row means transaction.
const (
	colDate            = "date"
	colUserID          = "user_id"
	colAmount          = "amount"
	colCategory        = "category"
	colNote            = "note"
	colNickname        = "nickname"
	colBalance         = "balance"
	colCurrency        = "currency"
	colIsSubscription  = "Is_Subscription"
	colSubscriptionName = "subscription_name"
	colSubscriptionDue  = "subscription_due_date"
	colRecordType      = "record_type"
	colGoalName        = "goal_name"
	colTargetAmount    = "target_amount"
	colCurrentAmount   = "current_amount"
	colDeadline        = "deadline"
	colCompleted       = "completed"
	colCreatedDate     = "created_date"
)

var requiredColumns = []string{
	colDate, colUserID, colAmount, colCategory, colNote,
	colNickname, colBalance, colCurrency, colIsSubscription,
	colSubscriptionName, colSubscriptionDue, colRecordType,
	colGoalName, colTargetAmount, colCurrentAmount,
	colDeadline, colCompleted, colCreatedDate,
}

// header is the decoded first row of a table. Column order is whatever the
// table has grown into; indexes are 1-based for cell addressing.
type header struct {
	names []string
	index map[string]int
}

func newHeader(names []string) header {
	h := header{names: names, index: make(map[string]int, len(names))}
	for i, name := range names {
		name = strings.TrimSpace(name)
		if _, dup := h.index[name]; name == "" || dup {
			continue
		}
		h.index[name] = i + 1
	}
	return h
}

// col returns the 1-based column index for a name.
func (h header) col(name string) (int, bool) {
	i, ok := h.index[name]
	return i, ok
}

// missing lists wanted columns absent from the header, in want order.
func (h header) missing(want []string) []string {
	var out []string
	for _, name := range want {
		if _, ok := h.index[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// ensureHeader widens the header row by appending any wanted columns that
// are absent. Existing columns are never reordered or removed, so legacy
// data keeps its positions. Idempotent and safe to call before every write.
func ensureHeader(ctx context.Context, tbl tabular.Table, rows [][]string, want []string) (header, bool, error) {
	var names []string
	if len(rows) > 0 {
		names = append([]string(nil), rows[0]...)
	}
	h := newHeader(names)
	missing := h.missing(want)
	if len(missing) == 0 {
		return h, false, nil
	}

	updates := make([]tabular.CellUpdate, 0, len(missing))
	next := len(names) + 1
	for _, name := range missing {
		updates = append(updates, tabular.CellUpdate{Row: 1, Col: next, Value: name})
		names = append(names, name)
		next++
	}
	if err := tbl.UpdateCells(ctx, updates); err != nil {
		return header{}, false, storeErr("widen header", err)
	}
	return newHeader(names), true, nil
}

// cell returns the raw cell under the named column, tolerating short rows.
func (h header) cell(row []string, name string) string {
	i, ok := h.index[name]
	if !ok || i > len(row) {
		return ""
	}
	return strings.TrimSpace(row[i-1])
}

// rowKind discriminates a decoded row. Empty record_type means transaction
// (rows written before the column existed).
func (h header) rowKind(row []string) core.RecordKind {
	k := core.RecordKind(h.cell(row, colRecordType))
	if k == "" {
		return core.KindTransaction
	}
	return k
}

// encode places field values at their header-derived positions, leaving
// unspecified columns blank.
func (h header) encode(fields map[string]string) []string {
	row := make([]string, len(h.names))
	for name, value := range fields {
		if i, ok := h.index[name]; ok {
			row[i-1] = value
		}
	}
	return row
}

func (h header) decodeTransaction(row []string, pos int) core.Transaction {
	ts, _ := dates.Parse(h.cell(row, colDate))
	userID, _ := strconv.ParseInt(h.cell(row, colUserID), 10, 64)
	amount, _ := core.ParseMoney(h.cell(row, colAmount))
	balance, _ := core.ParseMoney(h.cell(row, colBalance))
	currency := h.cell(row, colCurrency)
	if currency == "" {
		currency = core.DefaultCurrency
	}
	return core.Transaction{
		Row:              pos,
		Timestamp:        ts,
		UserID:           userID,
		Amount:           amount,
		Category:         h.cell(row, colCategory),
		Note:             h.cell(row, colNote),
		Nickname:         h.cell(row, colNickname),
		Balance:          balance,
		Currency:         currency,
		IsSubscription:   core.ParseBool(h.cell(row, colIsSubscription)),
		SubscriptionName: h.cell(row, colSubscriptionName),
		SubscriptionDue:  h.cell(row, colSubscriptionDue),
	}
}

func (h header) decodeGoal(row []string, pos int) core.Goal {
	target, _ := core.ParseMoney(h.cell(row, colTargetAmount))
	current, _ := core.ParseMoney(h.cell(row, colCurrentAmount))
	deadline := h.cell(row, colDeadline)
	if deadline == "" {
		deadline = core.NoDeadline
	}
	return core.Goal{
		Row:       pos,
		Name:      h.cell(row, colGoalName),
		Target:    target,
		Current:   current,
		Deadline:  deadline,
		Completed: core.ParseBool(h.cell(row, colCompleted)),
		Created:   h.cell(row, colCreatedDate),
	}
}
