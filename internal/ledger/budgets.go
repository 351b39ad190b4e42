package ledger

import (
	"context"
	"fmt"
	"time"

	"finbot/internal/core"
	"finbot/internal/dates"
	"finbot/internal/log"
	"finbot/internal/tabular"
)

// Fixed budgets table layout.
const (
	colBudgetAmount = "budget_amount"
	colCurrentSpent = "current_spent"
	colPeriod       = "period"
)

var budgetColumns = []string{
	colNickname, colCategory, colBudgetAmount, colCurrentSpent, colPeriod,
}

func (h header) decodeBudget(row []string, pos int) core.Budget {
	limit, _ := core.ParseMoney(h.cell(row, colBudgetAmount))
	spent, _ := core.ParseMoney(h.cell(row, colCurrentSpent))
	return core.Budget{
		Row:      pos,
		Nickname: h.cell(row, colNickname),
		Category: h.cell(row, colCategory),
		Limit:    limit,
		Spent:    spent,
		Period:   core.ParsePeriod(h.cell(row, colPeriod)),
	}
}

// periodWindow maps a budget period onto the statistics window its
// consumption is measured over.
func periodWindow(p core.BudgetPeriod) dates.Period {
	switch p {
	case core.Weekly:
		return dates.Named("7days")
	case core.Yearly:
		return dates.Named("year")
	default:
		return dates.Named("month")
	}
}

// SetCategoryBudget inserts or replaces the user's limit for one category.
// The stored accumulator resets on replace; consumption is recomputed from
// transactions on every read anyway.
func (s *Service) SetCategoryBudget(ctx context.Context, user core.User, budget core.Budget) error {
	budget.Nickname = user.DisplayName()
	if budget.Period == "" {
		budget.Period = core.Monthly
	}
	if err := budget.Validate(); err != nil {
		return err
	}

	unlock := s.locks.lock(TableBudgets)
	defer unlock()

	tbl, h, rows, err := s.openFixed(ctx, TableBudgets, budgetColumns)
	if err != nil {
		return err
	}

	fields := map[string]string{
		colNickname:     budget.Nickname,
		colCategory:     budget.Category,
		colBudgetAmount: budget.Limit.String(),
		colCurrentSpent: core.Money{}.String(),
		colPeriod:       string(budget.Period),
	}

	if row, ok := findBudgetRow(h, rows, budget.Nickname, budget.Category); ok {
		return s.writeBudgetRow(ctx, tbl, h, row, fields, "Updated budget", budget.Category)
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	pos, err := tbl.AppendRow(opCtx, h.encode(fields))
	if err != nil {
		return storeErr("append budget", err)
	}
	s.invalidate(TableBudgets)
	s.log.InfoContext(ctx, "Added budget",
		log.FieldTable, TableBudgets, log.FieldCategory, budget.Category, log.FieldRow, pos)
	return nil
}

func (s *Service) writeBudgetRow(ctx context.Context, tbl tabular.Table, h header, row int, fields map[string]string, msg, category string) error {
	updates := make([]tabular.CellUpdate, 0, len(fields))
	for name, value := range fields {
		if col, ok := h.col(name); ok {
			updates = append(updates, tabular.CellUpdate{Row: row, Col: col, Value: value})
		}
	}
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := tbl.UpdateCells(opCtx, updates); err != nil {
		return storeErr("update budget", err)
	}
	s.invalidate(TableBudgets)
	s.log.InfoContext(ctx, msg,
		log.FieldTable, TableBudgets, log.FieldCategory, category, log.FieldRow, row)
	return nil
}

// Budgets returns the user's budgets with consumption recomputed from the
// current period's expense transactions. A stale stored accumulator is
// patched back in the same pass.
func (s *Service) Budgets(ctx context.Context, user core.User) ([]core.Budget, error) {
	txs, err := s.ListTransactions(ctx, user)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(TableBudgets)
	defer unlock()

	tbl, h, rows, err := s.openFixed(ctx, TableBudgets, budgetColumns)
	if err != nil {
		return nil, err
	}

	nickname := user.DisplayName()
	now := s.now()
	var out []core.Budget
	var fixes []tabular.CellUpdate
	spentCol, _ := h.col(colCurrentSpent)

	for i, row := range rows {
		if i == 0 {
			continue
		}
		b := h.decodeBudget(row, i+1)
		if b.Nickname != nickname || b.Category == "" {
			continue
		}
		spent := categorySpend(txs, b.Category, periodWindow(b.Period), now)
		if spent != b.Spent && spentCol > 0 {
			fixes = append(fixes, tabular.CellUpdate{Row: b.Row, Col: spentCol, Value: spent.String()})
		}
		b.Spent = spent
		out = append(out, b)
	}

	if len(fixes) > 0 {
		opCtx, cancel := s.opCtx(ctx)
		defer cancel()
		if err := tbl.UpdateCells(opCtx, fixes); err != nil {
			return nil, storeErr("reconcile budgets", err)
		}
		s.invalidate(TableBudgets)
		s.log.InfoContext(ctx, "Reconciled budget accumulators",
			log.FieldTable, TableBudgets, log.FieldCount, len(fixes))
	}
	return out, nil
}

// DeleteBudget removes the user's limit for one category.
func (s *Service) DeleteBudget(ctx context.Context, user core.User, category string) error {
	unlock := s.locks.lock(TableBudgets)
	defer unlock()

	tbl, h, rows, err := s.openFixed(ctx, TableBudgets, budgetColumns)
	if err != nil {
		return err
	}
	row, ok := findBudgetRow(h, rows, user.DisplayName(), category)
	if !ok {
		return fmt.Errorf("%q: %w", category, ErrBudgetNotFound)
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := tbl.DeleteRow(opCtx, row); err != nil {
		return storeErr("delete budget", err)
	}
	s.invalidate(TableBudgets)
	s.log.InfoContext(ctx, "Deleted budget",
		log.FieldTable, TableBudgets, log.FieldCategory, category, log.FieldRow, row)
	return nil
}

func findBudgetRow(h header, rows [][]string, nickname, category string) (int, bool) {
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if h.cell(row, colNickname) == nickname && h.cell(row, colCategory) == category {
			return i + 1, true
		}
	}
	return 0, false
}

// categorySpend sums the expense magnitude of one category inside a period.
func categorySpend(txs []core.Transaction, category string, window dates.Period, now time.Time) core.Money {
	var total core.Money
	for _, tx := range txs {
		if tx.Category != category || !tx.Amount.IsExpense() {
			continue
		}
		if !window.Contains(tx.Timestamp, now) {
			continue
		}
		total = total.Add(tx.Amount.Abs())
	}
	return total
}
