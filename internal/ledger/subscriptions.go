package ledger

import (
	"context"

	"finbot/internal/core"
)

// ListSubscriptions returns the user's subscription-flagged transaction
// rows in physical order. Each row is its own subscription; the latest row
// per name carries the next due date.
func (s *Service) ListSubscriptions(ctx context.Context, user core.User) ([]core.Transaction, error) {
	txs, err := s.ListTransactions(ctx, user)
	if err != nil {
		return nil, err
	}
	return subscriptionsOf(txs), nil
}

// SubscriptionsIn lists subscription rows of an explicit table title. The
// renewal sweep uses this while iterating physical tables.
func (s *Service) SubscriptionsIn(ctx context.Context, title string) ([]core.Transaction, error) {
	txs, err := s.TransactionsIn(ctx, title)
	if err != nil {
		return nil, err
	}
	return subscriptionsOf(txs), nil
}

// AdvanceSubscriptionDue rewrites the due date cell of one subscription row.
// The amount is untouched, so no recalculation happens.
func (s *Service) AdvanceSubscriptionDue(ctx context.Context, title string, row int, due string) error {
	return s.UpdateFieldsIn(ctx, title, row, map[string]string{colSubscriptionDue: due})
}

func subscriptionsOf(txs []core.Transaction) []core.Transaction {
	var out []core.Transaction
	for _, tx := range txs {
		if tx.IsSubscription {
			out = append(out, tx)
		}
	}
	return out
}
