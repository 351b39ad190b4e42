package ledger

import (
	"context"
	"fmt"

	"finbot/internal/core"
	"finbot/internal/log"
)

// Fixed custom_categories table layout.
const (
	colCategoryName = "category_name"
	colEmoji        = "emoji"
	colIsExpense    = "is_expense"
)

var categoryColumns = []string{
	colNickname, colCategoryName, colEmoji, colIsExpense,
}

func (h header) decodeCategory(row []string, pos int) core.CustomCategory {
	return core.CustomCategory{
		Row:       pos,
		Nickname:  h.cell(row, colNickname),
		Name:      h.cell(row, colCategoryName),
		Emoji:     h.cell(row, colEmoji),
		IsExpense: core.ParseBool(h.cell(row, colIsExpense)),
	}
}

// CustomCategories lists the user's own categories, optionally filtered to
// one direction when expenseOnly is non-nil.
func (s *Service) CustomCategories(ctx context.Context, user core.User, expenseOnly *bool) ([]core.CustomCategory, error) {
	_, h, rows, err := s.openFixed(ctx, TableCategories, categoryColumns)
	if err != nil {
		return nil, err
	}
	nickname := user.DisplayName()
	var out []core.CustomCategory
	for i, row := range rows {
		if i == 0 {
			continue
		}
		c := h.decodeCategory(row, i+1)
		if c.Nickname != nickname || c.Name == "" {
			continue
		}
		if expenseOnly != nil && c.IsExpense != *expenseOnly {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// AddCustomCategory appends a category. Names are unique per user and
// direction.
func (s *Service) AddCustomCategory(ctx context.Context, user core.User, cat core.CustomCategory) error {
	if cat.Name == "" {
		return core.ErrEmptyCategory
	}
	cat.Nickname = user.DisplayName()

	unlock := s.locks.lock(TableCategories)
	defer unlock()

	tbl, h, rows, err := s.openFixed(ctx, TableCategories, categoryColumns)
	if err != nil {
		return err
	}
	if _, ok := findCategoryRow(h, rows, cat.Nickname, cat.Name, cat.IsExpense); ok {
		return fmt.Errorf("%q: %w", cat.Name, ErrCategoryExists)
	}

	fields := map[string]string{
		colNickname:     cat.Nickname,
		colCategoryName: cat.Name,
		colEmoji:        cat.Emoji,
		colIsExpense:    core.FormatBool(cat.IsExpense),
	}
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	pos, err := tbl.AppendRow(opCtx, h.encode(fields))
	if err != nil {
		return storeErr("append category", err)
	}
	s.invalidate(TableCategories)
	s.log.InfoContext(ctx, "Added custom category",
		log.FieldTable, TableCategories, log.FieldCategory, cat.Name, log.FieldRow, pos)
	return nil
}

// DeleteCustomCategory removes the user's category of the given name and
// direction.
func (s *Service) DeleteCustomCategory(ctx context.Context, user core.User, name string, isExpense bool) error {
	unlock := s.locks.lock(TableCategories)
	defer unlock()

	tbl, h, rows, err := s.openFixed(ctx, TableCategories, categoryColumns)
	if err != nil {
		return err
	}
	row, ok := findCategoryRow(h, rows, user.DisplayName(), name, isExpense)
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrCategoryNotFound)
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := tbl.DeleteRow(opCtx, row); err != nil {
		return storeErr("delete category", err)
	}
	s.invalidate(TableCategories)
	s.log.InfoContext(ctx, "Deleted custom category",
		log.FieldTable, TableCategories, log.FieldCategory, name, log.FieldRow, row)
	return nil
}

func findCategoryRow(h header, rows [][]string, nickname, name string, isExpense bool) (int, bool) {
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if h.cell(row, colNickname) == nickname &&
			h.cell(row, colCategoryName) == name &&
			core.ParseBool(h.cell(row, colIsExpense)) == isExpense {
			return i + 1, true
		}
	}
	return 0, false
}
