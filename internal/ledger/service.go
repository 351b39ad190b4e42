// Package ledger maintains the per-user append-only record of monetary
// events on top of the tabular store: transactions and goals in one table
// per user, budgets, custom categories and reminder subscribers in fixed
// shared tables, and the denormalized running balance.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"finbot/internal/cache"
	"finbot/internal/core"
	"finbot/internal/dates"
	"finbot/internal/log"
	"finbot/internal/tabular"
)

// Fixed table names sharing the document with per-user ledgers.
const (
	TableBudgets    = "budgets"
	TableCategories = "custom_categories"
	TableReminders  = "reminder_settings"
	TableFeedback   = "feedback_and_suggestions"

	legacyGoalsTable  = "goals"
	legacyGoalsPrefix = "goals_"
)

// reservedTables never hold a user ledger and are skipped by sweeps.
var reservedTables = map[string]struct{}{
	TableBudgets:    {},
	TableCategories: {},
	TableReminders:  {},
	TableFeedback:   {},
	"Sheet1":        {},
}

const (
	scanCacheSize       = 64
	scanCacheTTL        = 30 * time.Second
	defaultStoreTimeout = 15 * time.Second
)

// Service is the ledger engine. One instance serves all users over a single
// store connection; per-table mutexes serialize mutations.
type Service struct {
	store tabular.Store
	log   *log.Logger
	scans *cache.LRUCache[[][]string]
	locks *keyedMutex

	migrated sync.Map // table title -> struct{}, legacy goal migration ran

	now     func() time.Time
	timeout time.Duration
}

// NewTransaction carries the caller-supplied fields of a transaction append.
// A zero Timestamp means "now".
type NewTransaction struct {
	Amount           core.Money
	Category         string
	Note             string
	IsSubscription   bool
	SubscriptionName string
	SubscriptionDue  string
	Timestamp        time.Time
}

// New builds the ledger engine. A non-positive storeTimeout falls back to
// the default.
func New(store tabular.Store, logger *log.Logger, storeTimeout time.Duration) *Service {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &Service{
		store:   store,
		log:     logger.WithComponent(log.ComponentLedger),
		scans:   cache.NewLRUCache[[][]string](scanCacheSize, scanCacheTTL),
		locks:   newKeyedMutex(),
		now:     time.Now,
		timeout: storeTimeout,
	}
}

// opCtx bounds every remote call; a hung store surfaces as
// ErrStoreUnavailable instead of blocking the handler.
func (s *Service) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// readTable returns every row of the table, via the scan cache.
func (s *Service) readTable(ctx context.Context, tbl tabular.Table) ([][]string, error) {
	if rows, ok := s.scans.Get(tbl.Name()); ok {
		return rows, nil
	}
	rows, err := tbl.ReadAll(ctx)
	if err != nil {
		return nil, storeErr("read table "+tbl.Name(), err)
	}
	s.scans.Set(tbl.Name(), rows)
	return rows, nil
}

func (s *Service) invalidate(name string) {
	s.scans.Delete(name)
}

// openUserTable loads an existing user table together with its (widened)
// header and rows.
func (s *Service) openUserTable(ctx context.Context, user core.User) (tabular.Table, header, [][]string, error) {
	tbl, err := s.resolveTable(ctx, user)
	if err != nil {
		return nil, header{}, nil, err
	}
	h, rows, err := s.loadTable(ctx, tbl, requiredColumns)
	return tbl, h, rows, err
}

// loadTable reads the table and heals the header against the wanted column
// set (SchemaDrift is widened away, never errored).
func (s *Service) loadTable(ctx context.Context, tbl tabular.Table, want []string) (header, [][]string, error) {
	rows, err := s.readTable(ctx, tbl)
	if err != nil {
		return header{}, nil, err
	}
	h, widened, err := ensureHeader(ctx, tbl, rows, want)
	if err != nil {
		return header{}, nil, err
	}
	if widened {
		s.invalidate(tbl.Name())
		if len(rows) == 0 {
			rows = [][]string{h.names}
		} else {
			// The slice may be shared with the scan cache and concurrent
			// readers; patch the header on a copy.
			patched := make([][]string, len(rows))
			copy(patched, rows)
			patched[0] = h.names
			rows = patched
		}
		s.log.InfoContext(ctx, "Widened table header",
			log.FieldTable, tbl.Name(), log.FieldCount, len(h.names))
	}
	return h, rows, nil
}

// resolveTable returns the user's ledger table, renaming a legacy-titled
// table if one exists, or creating a fresh one with the bootstrap row.
func (s *Service) resolveTable(ctx context.Context, user core.User) (tabular.Table, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	title := user.SheetTitle()
	tbl, err := s.store.OpenTable(ctx, title)
	if err == nil {
		return tbl, nil
	}
	if !errors.Is(err, tabular.ErrTableNotFound) {
		return nil, storeErr("open table "+title, err)
	}

	// Migration path: users were previously keyed by username.
	for _, legacy := range user.LegacyTitles() {
		_, err := s.store.OpenTable(ctx, legacy)
		if errors.Is(err, tabular.ErrTableNotFound) {
			continue
		}
		if err != nil {
			return nil, storeErr("open table "+legacy, err)
		}
		if err := s.store.RenameTable(ctx, legacy, title); err != nil {
			return nil, storeErr("rename table "+legacy, err)
		}
		s.invalidate(legacy)
		s.log.InfoContext(ctx, "Migrated legacy table",
			log.FieldOperation, log.OpMigrate, log.FieldTable, title, "legacy_title", legacy)
		tbl, err := s.store.OpenTable(ctx, title)
		if err != nil {
			return nil, storeErr("open table "+title, err)
		}
		return tbl, nil
	}

	return s.createTable(ctx, user, title)
}

func (s *Service) createTable(ctx context.Context, user core.User, title string) (tabular.Table, error) {
	tbl, err := s.store.CreateTable(ctx, title, 1000, len(requiredColumns))
	if err != nil {
		return nil, storeErr("create table "+title, err)
	}
	if _, err := tbl.AppendRow(ctx, requiredColumns); err != nil {
		return nil, storeErr("write header "+title, err)
	}
	// Bootstrap row: balance lookups never run against an empty table.
	h := newHeader(requiredColumns)
	bootstrap := h.encode(map[string]string{
		colDate:           dates.Initial,
		colUserID:         strconv.FormatInt(user.ID, 10),
		colAmount:         "0",
		colCategory:       dates.Initial,
		colNote:           dates.Initial,
		colNickname:       user.DisplayName(),
		colBalance:        "0.00",
		colCurrency:       core.DefaultCurrency,
		colIsSubscription: core.FormatBool(false),
		colRecordType:     string(core.KindTransaction),
	})
	if _, err := tbl.AppendRow(ctx, bootstrap); err != nil {
		return nil, storeErr("write bootstrap row "+title, err)
	}
	s.invalidate(title)
	s.log.InfoContext(ctx, "Created ledger table",
		log.FieldTable, title, log.FieldUserID, user.ID)
	return tbl, nil
}

// transactions decodes the transaction-kind rows in physical order, tagged
// with their current positions. The bootstrap row is skipped.
func transactions(h header, rows [][]string) []core.Transaction {
	var out []core.Transaction
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if h.rowKind(row) != core.KindTransaction {
			continue
		}
		if h.cell(row, colDate) == dates.Initial {
			continue
		}
		out = append(out, h.decodeTransaction(row, i+1))
	}
	return out
}

// goals decodes the goal-kind rows in physical order.
func goals(h header, rows [][]string) []core.Goal {
	var out []core.Goal
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if h.rowKind(row) != core.KindGoal {
			continue
		}
		out = append(out, h.decodeGoal(row, i+1))
	}
	return out
}

// AppendTransaction appends one monetary event and extends the running
// balance incrementally. Returns the new row's 1-based position.
func (s *Service) AppendTransaction(ctx context.Context, user core.User, tx NewTransaction) (int, error) {
	unlock := s.locks.lock(user.SheetTitle())
	defer unlock()

	tbl, h, rows, err := s.openUserTable(ctx, user)
	if err != nil {
		return 0, err
	}
	return s.appendTx(ctx, tbl, h, rows, user.ID, user.DisplayName(), tx)
}

// AppendTransactionIn appends into an already-resolved table title. Used by
// the renewal sweep, which iterates physical tables rather than users.
func (s *Service) AppendTransactionIn(ctx context.Context, title string, userID int64, tx NewTransaction) (int, error) {
	unlock := s.locks.lock(title)
	defer unlock()

	tbl, h, rows, err := s.openTitled(ctx, title)
	if err != nil {
		return 0, err
	}
	return s.appendTx(ctx, tbl, h, rows, userID, title, tx)
}

func (s *Service) appendTx(ctx context.Context, tbl tabular.Table, h header, rows [][]string, userID int64, nickname string, tx NewTransaction) (int, error) {
	if err := (core.Transaction{Amount: tx.Amount, Note: tx.Note}).Validate(); err != nil {
		return 0, err
	}
	category := tx.Category
	if category == "" {
		category = core.DefaultCategory
	}
	ts := tx.Timestamp
	if ts.IsZero() {
		ts = s.now().UTC()
	}

	balance, currency := lastBalance(h, rows)
	newBalance := balance.Add(tx.Amount)

	fields := map[string]string{
		colDate:           ts.UTC().Format(time.RFC3339),
		colUserID:         strconv.FormatInt(userID, 10),
		colAmount:         tx.Amount.String(),
		colCategory:       category,
		colNote:           tx.Note,
		colNickname:       nickname,
		colBalance:        newBalance.String(),
		colCurrency:       currency,
		colIsSubscription: core.FormatBool(tx.IsSubscription),
		colRecordType:     string(core.KindTransaction),
	}
	if tx.SubscriptionName != "" {
		fields[colSubscriptionName] = tx.SubscriptionName
	}
	if tx.SubscriptionDue != "" {
		fields[colSubscriptionDue] = tx.SubscriptionDue
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	pos, err := tbl.AppendRow(ctx, h.encode(fields))
	if err != nil {
		return 0, storeErr("append row "+tbl.Name(), err)
	}
	s.invalidate(tbl.Name())
	s.log.InfoContext(ctx, "Appended transaction",
		log.FieldOperation, log.OpAppend,
		log.FieldTable, tbl.Name(),
		log.FieldRow, pos,
		log.FieldAmount, tx.Amount.Kopecks,
		log.FieldBalance, newBalance.Kopecks,
		log.FieldCategory, category)
	return pos, nil
}

// ListTransactions returns every transaction row of the user's ledger in
// physical order.
func (s *Service) ListTransactions(ctx context.Context, user core.User) ([]core.Transaction, error) {
	_, h, rows, err := s.openUserTable(ctx, user)
	if err != nil {
		return nil, err
	}
	return transactions(h, rows), nil
}

// TransactionsIn lists the transaction rows of an explicit table title.
func (s *Service) TransactionsIn(ctx context.Context, title string) ([]core.Transaction, error) {
	_, h, rows, err := s.openTitled(ctx, title)
	if err != nil {
		return nil, err
	}
	return transactions(h, rows), nil
}

// UpdateTransactionFields batch-writes the named columns of one transaction
// row in a single remote call. Editing the amount invalidates later running
// balances, so it triggers a full recalculation.
func (s *Service) UpdateTransactionFields(ctx context.Context, user core.User, row int, fields map[string]string) error {
	unlock := s.locks.lock(user.SheetTitle())
	defer unlock()

	tbl, h, rows, err := s.openUserTable(ctx, user)
	if err != nil {
		return err
	}
	return s.updateFields(ctx, tbl, h, rows, row, fields)
}

// UpdateFieldsIn is UpdateTransactionFields for an explicit table title.
func (s *Service) UpdateFieldsIn(ctx context.Context, title string, row int, fields map[string]string) error {
	unlock := s.locks.lock(title)
	defer unlock()

	tbl, h, rows, err := s.openTitled(ctx, title)
	if err != nil {
		return err
	}
	return s.updateFields(ctx, tbl, h, rows, row, fields)
}

func (s *Service) updateFields(ctx context.Context, tbl tabular.Table, h header, rows [][]string, row int, fields map[string]string) error {
	if row <= 1 || row > len(rows) {
		return fmt.Errorf("row %d: %w", row, ErrRowNotFound)
	}
	updates := make([]tabular.CellUpdate, 0, len(fields))
	amountChanged := false
	for name, value := range fields {
		col, ok := h.col(name)
		if !ok {
			return fmt.Errorf("%q: %w", name, ErrUnknownField)
		}
		if name == colAmount {
			amountChanged = true
		}
		updates = append(updates, tabular.CellUpdate{Row: row, Col: col, Value: value})
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := tbl.UpdateCells(opCtx, updates); err != nil {
		return storeErr("update row "+tbl.Name(), err)
	}
	s.invalidate(tbl.Name())
	s.log.InfoContext(ctx, "Updated row fields",
		log.FieldOperation, log.OpUpdate,
		log.FieldTable, tbl.Name(), log.FieldRow, row, log.FieldCount, len(updates))

	if amountChanged {
		return s.recalc(ctx, tbl)
	}
	return nil
}

// DeleteTransaction removes the physical row. Positions of later rows shift
// and the last-row balance shortcut no longer holds, so the running balance
// is rebuilt.
func (s *Service) DeleteTransaction(ctx context.Context, user core.User, row int) error {
	unlock := s.locks.lock(user.SheetTitle())
	defer unlock()

	tbl, h, rows, err := s.openUserTable(ctx, user)
	if err != nil {
		return err
	}
	if row <= 1 || row > len(rows) {
		return fmt.Errorf("row %d: %w", row, ErrRowNotFound)
	}
	if h.rowKind(rows[row-1]) != core.KindTransaction {
		return fmt.Errorf("row %d is not a transaction: %w", row, ErrRowNotFound)
	}

	opCtx, cancel := s.opCtx(ctx)
	if err := tbl.DeleteRow(opCtx, row); err != nil {
		cancel()
		return storeErr("delete row "+tbl.Name(), err)
	}
	cancel()
	s.invalidate(tbl.Name())
	s.log.InfoContext(ctx, "Deleted transaction",
		log.FieldOperation, log.OpDelete,
		log.FieldTable, tbl.Name(), log.FieldRow, row)

	return s.recalc(ctx, tbl)
}

// openTitled opens an existing table by exact title and heals its header.
func (s *Service) openTitled(ctx context.Context, title string) (tabular.Table, header, [][]string, error) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	tbl, err := s.store.OpenTable(opCtx, title)
	if err != nil {
		if errors.Is(err, tabular.ErrTableNotFound) {
			return nil, header{}, nil, fmt.Errorf("%q: %w", title, tabular.ErrTableNotFound)
		}
		return nil, header{}, nil, storeErr("open table "+title, err)
	}
	h, rows, err := s.loadTable(ctx, tbl, requiredColumns)
	return tbl, h, rows, err
}

// openFixed opens one of the shared fixed tables, creating it with its
// header on first use.
func (s *Service) openFixed(ctx context.Context, title string, columns []string) (tabular.Table, header, [][]string, error) {
	opCtx, cancel := s.opCtx(ctx)
	tbl, err := s.store.OpenTable(opCtx, title)
	if errors.Is(err, tabular.ErrTableNotFound) {
		tbl, err = s.store.CreateTable(opCtx, title, 100, len(columns))
		if err == nil {
			_, err = tbl.AppendRow(opCtx, columns)
			s.invalidate(title)
		}
	}
	cancel()
	if err != nil {
		return nil, header{}, nil, storeErr("open table "+title, err)
	}
	h, rows, err := s.loadTable(ctx, tbl, columns)
	return tbl, h, rows, err
}

// UserTables lists every table that holds a user ledger (reserved and
// legacy goal tables excluded). The renewal sweep iterates this set.
func (s *Service) UserTables(ctx context.Context) ([]string, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	names, err := s.store.ListTables(ctx)
	if err != nil {
		return nil, storeErr("list tables", err)
	}
	var out []string
	for _, name := range names {
		if _, reserved := reservedTables[name]; reserved {
			continue
		}
		if name == legacyGoalsTable || len(name) > len(legacyGoalsPrefix) && name[:len(legacyGoalsPrefix)] == legacyGoalsPrefix {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}
