package ledger

import (
	"context"

	"finbot/internal/core"
	"finbot/internal/log"
	"finbot/internal/tabular"
)

// lastBalance returns the running balance and currency carried by the most
// recent transaction row, or the zero balance in the default currency when
// only the bootstrap row exists.
func lastBalance(h header, rows [][]string) (core.Money, string) {
	txs := transactions(h, rows)
	if len(txs) == 0 {
		return core.Money{}, core.DefaultCurrency
	}
	last := txs[len(txs)-1]
	return last.Balance, last.Currency
}

// CurrentBalance returns the user's balance and currency from the last
// transaction row.
func (s *Service) CurrentBalance(ctx context.Context, user core.User) (core.Money, string, error) {
	unlock := s.locks.lock(user.SheetTitle())
	defer unlock()

	_, h, rows, err := s.openUserTable(ctx, user)
	if err != nil {
		return core.Money{}, "", err
	}
	balance, currency := lastBalance(h, rows)
	return balance, currency, nil
}

// Recalculate rebuilds every stored running balance from a clean prefix-sum
// pass over the transaction rows in physical order. Idempotent; required
// after any mutation that invalidates the last-row shortcut.
func (s *Service) Recalculate(ctx context.Context, user core.User) error {
	unlock := s.locks.lock(user.SheetTitle())
	defer unlock()

	tbl, _, _, err := s.openUserTable(ctx, user)
	if err != nil {
		return err
	}
	return s.recalc(ctx, tbl)
}

// recalc assumes the caller holds the table lock.
func (s *Service) recalc(ctx context.Context, tbl tabular.Table) error {
	h, rows, err := s.loadTable(ctx, tbl, requiredColumns)
	if err != nil {
		return err
	}
	balanceCol, ok := h.col(colBalance)
	if !ok {
		// loadTable just widened the header; cannot happen.
		return storeErr("recalculate "+tbl.Name(), ErrUnknownField)
	}

	var running core.Money
	var updates []tabular.CellUpdate
	for _, tx := range transactions(h, rows) {
		running = running.Add(tx.Amount)
		if tx.Balance == running {
			continue
		}
		updates = append(updates, tabular.CellUpdate{
			Row:   tx.Row,
			Col:   balanceCol,
			Value: running.String(),
		})
	}
	if len(updates) == 0 {
		return nil
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := tbl.UpdateCells(opCtx, updates); err != nil {
		return storeErr("recalculate "+tbl.Name(), err)
	}
	s.invalidate(tbl.Name())
	s.log.InfoContext(ctx, "Recalculated running balance",
		log.FieldOperation, log.OpRecalc,
		log.FieldTable, tbl.Name(),
		log.FieldCount, len(updates),
		log.FieldBalance, running.Kopecks)
	return nil
}
