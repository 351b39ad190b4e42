package services

import (
	"context"
	"fmt"
	"time"

	"finbot/internal/core"
	"finbot/internal/dates"
	"finbot/internal/ledger"
	"finbot/internal/stats"
)

// GoalProgress is one goal's state in an analysis payload.
type GoalProgress struct {
	Name     string
	Target   core.Money
	Current  core.Money
	Percent  float64
	Deadline string
}

// BudgetUsage is one budget's state in an analysis payload.
type BudgetUsage struct {
	Category string
	Limit    core.Money
	Spent    core.Money
	Percent  float64
	Status   stats.BudgetStatus
}

// AnalysisPayload is the structured input for the financial-analysis prompt.
// Text generation happens elsewhere; this is only the numbers.
type AnalysisPayload struct {
	UserID   int64
	Report   stats.Report
	Balance  core.Money
	Currency string

	// SubscriptionMonthlyCost is the summed magnitude of all active
	// subscription amounts.
	SubscriptionMonthlyCost core.Money

	Goals   []GoalProgress
	Budgets []BudgetUsage
}

// AnalysisService assembles analysis payloads from ledger state.
type AnalysisService struct {
	ledger *ledger.Service
	now    func() time.Time
}

func NewAnalysisService(ldg *ledger.Service) *AnalysisService {
	return &AnalysisService{ledger: ldg, now: time.Now}
}

// Build aggregates the user's period report, balance, subscription load,
// goal progress and budget usage into one payload.
func (a *AnalysisService) Build(ctx context.Context, user core.User, period dates.Period) (AnalysisPayload, error) {
	txs, err := a.ledger.ListTransactions(ctx, user)
	if err != nil {
		return AnalysisPayload{}, fmt.Errorf("list transactions: %w", err)
	}
	balance, currency, err := a.ledger.CurrentBalance(ctx, user)
	if err != nil {
		return AnalysisPayload{}, fmt.Errorf("current balance: %w", err)
	}
	goals, err := a.ledger.Goals(ctx, user)
	if err != nil {
		return AnalysisPayload{}, fmt.Errorf("list goals: %w", err)
	}
	budgets, err := a.ledger.Budgets(ctx, user)
	if err != nil {
		return AnalysisPayload{}, fmt.Errorf("list budgets: %w", err)
	}

	now := a.now()
	payload := AnalysisPayload{
		UserID:   user.ID,
		Report:   stats.Build(txs, period, now),
		Balance:  balance,
		Currency: currency,
	}

	for _, tx := range txs {
		if tx.IsSubscription {
			payload.SubscriptionMonthlyCost = payload.SubscriptionMonthlyCost.Add(tx.Amount.Abs())
		}
	}

	for _, g := range goals {
		p := GoalProgress{
			Name:     g.Name,
			Target:   g.Target,
			Current:  g.Current,
			Deadline: g.Deadline,
		}
		if g.Target.Kopecks > 0 {
			p.Percent = float64(g.Current.Kopecks) / float64(g.Target.Kopecks) * 100
		}
		payload.Goals = append(payload.Goals, p)
	}

	for _, b := range budgets {
		percent := stats.UsagePercent(b.Spent, b.Limit)
		payload.Budgets = append(payload.Budgets, BudgetUsage{
			Category: b.Category,
			Limit:    b.Limit,
			Spent:    b.Spent,
			Percent:  percent,
			Status:   stats.Grade(percent),
		})
	}

	return payload, nil
}
