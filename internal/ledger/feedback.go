package ledger

import (
	"context"
	"time"

	"finbot/internal/log"
)

// Fixed feedback_and_suggestions table layout.
const (
	colTimestamp = "timestamp"
	colUsername  = "username"
	colFeedback  = "feedback"
)

var feedbackColumns = []string{colTimestamp, colUsername, colFeedback}

// AppendFeedback records one free-text feedback entry.
func (s *Service) AppendFeedback(ctx context.Context, username, text string) error {
	unlock := s.locks.lock(TableFeedback)
	defer unlock()

	tbl, h, _, err := s.openFixed(ctx, TableFeedback, feedbackColumns)
	if err != nil {
		return err
	}

	fields := map[string]string{
		colTimestamp: s.now().UTC().Format(time.RFC3339),
		colUsername:  username,
		colFeedback:  text,
	}
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	if _, err := tbl.AppendRow(opCtx, h.encode(fields)); err != nil {
		return storeErr("append feedback", err)
	}
	s.invalidate(TableFeedback)
	s.log.InfoContext(ctx, "Recorded feedback", log.FieldTable, TableFeedback)
	return nil
}
