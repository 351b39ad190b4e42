package ledger

import (
	"context"
	"strconv"

	"finbot/internal/log"
)

// Fixed reminder_settings table layout.
const colStatus = "status"

var reminderColumns = []string{colUserID, colStatus}

const reminderEnabled = "enabled"

// EnableReminders subscribes the user to daily reminders. Idempotent.
func (s *Service) EnableReminders(ctx context.Context, userID int64) error {
	unlock := s.locks.lock(TableReminders)
	defer unlock()

	tbl, h, rows, err := s.openFixed(ctx, TableReminders, reminderColumns)
	if err != nil {
		return err
	}
	if _, ok := findReminderRow(h, rows, userID); ok {
		return nil
	}

	fields := map[string]string{
		colUserID: strconv.FormatInt(userID, 10),
		colStatus: reminderEnabled,
	}
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	if _, err := tbl.AppendRow(opCtx, h.encode(fields)); err != nil {
		return storeErr("append reminder setting", err)
	}
	s.invalidate(TableReminders)
	s.log.InfoContext(ctx, "Enabled reminders",
		log.FieldTable, TableReminders, log.FieldUserID, userID)
	return nil
}

// DisableReminders unsubscribes the user. Missing subscription is not an
// error.
func (s *Service) DisableReminders(ctx context.Context, userID int64) error {
	unlock := s.locks.lock(TableReminders)
	defer unlock()

	tbl, h, rows, err := s.openFixed(ctx, TableReminders, reminderColumns)
	if err != nil {
		return err
	}
	row, ok := findReminderRow(h, rows, userID)
	if !ok {
		return nil
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := tbl.DeleteRow(opCtx, row); err != nil {
		return storeErr("delete reminder setting", err)
	}
	s.invalidate(TableReminders)
	s.log.InfoContext(ctx, "Disabled reminders",
		log.FieldTable, TableReminders, log.FieldUserID, userID)
	return nil
}

// ReminderUsers lists the IDs of every subscribed user.
func (s *Service) ReminderUsers(ctx context.Context) ([]int64, error) {
	_, h, rows, err := s.openFixed(ctx, TableReminders, reminderColumns)
	if err != nil {
		return nil, err
	}
	var out []int64
	for i, row := range rows {
		if i == 0 {
			continue
		}
		id, err := strconv.ParseInt(h.cell(row, colUserID), 10, 64)
		if err != nil || id == 0 {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func findReminderRow(h header, rows [][]string, userID int64) (int, bool) {
	want := strconv.FormatInt(userID, 10)
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if h.cell(row, colUserID) == want {
			return i + 1, true
		}
	}
	return 0, false
}
