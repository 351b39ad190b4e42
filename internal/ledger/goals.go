package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finbot/internal/core"
	"finbot/internal/log"
	"finbot/internal/tabular"
)

// GoalUpdate names the mutable goal fields. Nil pointers leave the stored
// value untouched.
type GoalUpdate struct {
	Rename    *string
	Target    *core.Money
	Deadline  *string
	Completed *bool
}

// Goals lists the user's savings goals in physical order, migrating any
// legacy goal tables into the unified ledger first.
func (s *Service) Goals(ctx context.Context, user core.User) ([]core.Goal, error) {
	unlock := s.locks.lock(user.SheetTitle())
	defer unlock()

	tbl, h, rows, err := s.openUserTable(ctx, user)
	if err != nil {
		return nil, err
	}
	if rows, err = s.migrateLegacyGoals(ctx, user, tbl, h, rows); err != nil {
		return nil, err
	}
	return goals(h, rows), nil
}

// AddGoal appends a goal row. Goal names are unique per user; a duplicate
// name is rejected before insert.
func (s *Service) AddGoal(ctx context.Context, user core.User, goal core.Goal) error {
	if err := goal.Validate(); err != nil {
		return err
	}
	unlock := s.locks.lock(user.SheetTitle())
	defer unlock()

	tbl, h, rows, err := s.openUserTable(ctx, user)
	if err != nil {
		return err
	}
	if rows, err = s.migrateLegacyGoals(ctx, user, tbl, h, rows); err != nil {
		return err
	}
	for _, g := range goals(h, rows) {
		if g.Name == goal.Name {
			return fmt.Errorf("%q: %w", goal.Name, ErrGoalExists)
		}
	}
	return s.appendGoal(ctx, tbl, h, goal)
}

func (s *Service) appendGoal(ctx context.Context, tbl tabular.Table, h header, goal core.Goal) error {
	deadline := strings.TrimSpace(goal.Deadline)
	if deadline == "" {
		deadline = core.NoDeadline
	}
	created := goal.Created
	if created == "" {
		created = s.now().UTC().Format("2006-01-02")
	}
	fields := map[string]string{
		colRecordType:    string(core.KindGoal),
		colGoalName:      goal.Name,
		colTargetAmount:  goal.Target.String(),
		colCurrentAmount: goal.Current.String(),
		colDeadline:      deadline,
		colCompleted:     core.FormatBool(goal.Completed),
		colCreatedDate:   created,
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	pos, err := tbl.AppendRow(opCtx, h.encode(fields))
	if err != nil {
		return storeErr("append goal "+tbl.Name(), err)
	}
	s.invalidate(tbl.Name())
	s.log.InfoContext(ctx, "Added goal",
		log.FieldTable, tbl.Name(), log.FieldGoal, goal.Name, log.FieldRow, pos)
	return nil
}

// UpdateGoalProgress sets the accumulated amount and completion flag of the
// named goal.
func (s *Service) UpdateGoalProgress(ctx context.Context, user core.User, name string, newAmount core.Money, completed bool) error {
	return s.updateGoal(ctx, user, name, map[string]string{
		colCurrentAmount: newAmount.String(),
		colCompleted:     core.FormatBool(completed),
	})
}

// UpdateGoalDetails applies a partial edit to the named goal.
func (s *Service) UpdateGoalDetails(ctx context.Context, user core.User, name string, update GoalUpdate) error {
	fields := map[string]string{}
	if update.Rename != nil {
		fields[colGoalName] = *update.Rename
	}
	if update.Target != nil {
		fields[colTargetAmount] = update.Target.String()
	}
	if update.Deadline != nil {
		deadline := strings.TrimSpace(*update.Deadline)
		if deadline == "" {
			deadline = core.NoDeadline
		}
		fields[colDeadline] = deadline
	}
	if update.Completed != nil {
		fields[colCompleted] = core.FormatBool(*update.Completed)
	}
	if len(fields) == 0 {
		return nil
	}
	return s.updateGoal(ctx, user, name, fields)
}

func (s *Service) updateGoal(ctx context.Context, user core.User, name string, fields map[string]string) error {
	unlock := s.locks.lock(user.SheetTitle())
	defer unlock()

	tbl, h, rows, err := s.openUserTable(ctx, user)
	if err != nil {
		return err
	}
	if rows, err = s.migrateLegacyGoals(ctx, user, tbl, h, rows); err != nil {
		return err
	}
	goal, err := findGoal(h, rows, name)
	if err != nil {
		return err
	}

	updates := make([]tabular.CellUpdate, 0, len(fields))
	for col, value := range fields {
		idx, ok := h.col(col)
		if !ok {
			return fmt.Errorf("%q: %w", col, ErrUnknownField)
		}
		updates = append(updates, tabular.CellUpdate{Row: goal.Row, Col: idx, Value: value})
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := tbl.UpdateCells(opCtx, updates); err != nil {
		return storeErr("update goal "+tbl.Name(), err)
	}
	s.invalidate(tbl.Name())
	s.log.InfoContext(ctx, "Updated goal",
		log.FieldTable, tbl.Name(), log.FieldGoal, name, log.FieldRow, goal.Row)
	return nil
}

// DeleteGoal removes the named goal's row.
func (s *Service) DeleteGoal(ctx context.Context, user core.User, name string) error {
	unlock := s.locks.lock(user.SheetTitle())
	defer unlock()

	tbl, h, rows, err := s.openUserTable(ctx, user)
	if err != nil {
		return err
	}
	goal, err := findGoal(h, rows, name)
	if err != nil {
		return err
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := tbl.DeleteRow(opCtx, goal.Row); err != nil {
		return storeErr("delete goal "+tbl.Name(), err)
	}
	s.invalidate(tbl.Name())
	s.log.InfoContext(ctx, "Deleted goal",
		log.FieldTable, tbl.Name(), log.FieldGoal, name, log.FieldRow, goal.Row)
	return nil
}

// findGoal resolves a goal by exact, case-sensitive name.
func findGoal(h header, rows [][]string, name string) (core.Goal, error) {
	for _, g := range goals(h, rows) {
		if g.Name == name {
			return g, nil
		}
	}
	return core.Goal{}, fmt.Errorf("%q: %w", name, ErrGoalNotFound)
}

// migrateLegacyGoals copies goals from the older layouts (a global "goals"
// table and per-user "goals_<title>" tables) into the unified ledger, then
// clears the legacy source. At-least-once safe: a goal is copied only if the
// destination has no goal with the same name, so a retry after a failed
// cleanup cannot duplicate. Runs once per table per process.
func (s *Service) migrateLegacyGoals(ctx context.Context, user core.User, tbl tabular.Table, h header, rows [][]string) ([][]string, error) {
	title := tbl.Name()
	if _, done := s.migrated.Load(title); done {
		return rows, nil
	}

	existing := map[string]struct{}{}
	for _, g := range goals(h, rows) {
		existing[g.Name] = struct{}{}
	}

	titles := append([]string{user.SheetTitle()}, user.LegacyTitles()...)
	copied := 0
	for _, t := range titles {
		n, err := s.migrateGoalTable(ctx, tbl, h, legacyGoalsPrefix+t, "", existing)
		if err != nil {
			return nil, err
		}
		copied += n
	}
	// Global single-table layout: rows are scoped by nickname.
	for _, owner := range append([]string{user.DisplayName()}, user.LegacyTitles()...) {
		n, err := s.migrateGoalTable(ctx, tbl, h, legacyGoalsTable, owner, existing)
		if err != nil {
			return nil, err
		}
		copied += n
	}

	s.migrated.Store(title, struct{}{})
	if copied == 0 {
		return rows, nil
	}
	s.log.InfoContext(ctx, "Migrated legacy goals",
		log.FieldOperation, log.OpMigrate, log.FieldTable, title, log.FieldCount, copied)
	return s.readTable(ctx, tbl)
}

// migrateGoalTable copies matching goals out of one legacy table and deletes
// the copied source rows (bottom-up, positions shift on delete). owner
// filters rows of the shared global table; empty matches every row.
func (s *Service) migrateGoalTable(ctx context.Context, dst tabular.Table, dstHeader header, srcName, owner string, existing map[string]struct{}) (int, error) {
	opCtx, cancel := s.opCtx(ctx)
	src, err := s.store.OpenTable(opCtx, srcName)
	cancel()
	if errors.Is(err, tabular.ErrTableNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, storeErr("open table "+srcName, err)
	}

	srcRows, err := s.readTable(ctx, src)
	if err != nil {
		return 0, err
	}
	if len(srcRows) == 0 {
		return 0, nil
	}
	srcHeader := newHeader(srcRows[0])

	copied := 0
	var consumed []int
	for i, row := range srcRows {
		if i == 0 {
			continue
		}
		if owner != "" && srcHeader.cell(row, colNickname) != owner {
			continue
		}
		goal := srcHeader.decodeGoal(row, i+1)
		if goal.Name == "" {
			continue
		}
		consumed = append(consumed, i+1)
		if _, dup := existing[goal.Name]; dup {
			continue // already migrated on an earlier, partially failed pass
		}
		if err := s.appendGoal(ctx, dst, dstHeader, goal); err != nil {
			return copied, err
		}
		existing[goal.Name] = struct{}{}
		copied++
	}

	// Clear the legacy source last; a failure here leaves rows behind for
	// the next pass, which the duplicate check absorbs.
	for i := len(consumed) - 1; i >= 0; i-- {
		opCtx, cancel := s.opCtx(ctx)
		err := src.DeleteRow(opCtx, consumed[i])
		cancel()
		if err != nil {
			s.log.WarnContext(ctx, "Failed to clear legacy goal row",
				log.FieldTable, srcName, log.FieldRow, consumed[i], log.FieldError, err)
			break
		}
	}
	s.invalidate(srcName)
	return copied, nil
}
