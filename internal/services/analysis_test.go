package services

import (
	"context"
	"testing"
	"time"

	"finbot/internal/core"
	"finbot/internal/dates"
	"finbot/internal/ledger"
	"finbot/internal/stats"
	"finbot/internal/tabular/memory"
)

func TestAnalysisPayload(t *testing.T) {
	// Real wall-clock timestamps: the budget window resolves against the
	// current month inside the ledger service.
	now := time.Now().UTC()
	ldg := ledger.New(memory.New(), testLogger(), 0)
	svc := NewAnalysisService(ldg)

	ctx := context.Background()
	user := core.User{ID: 40, Username: "hanna"}

	appends := []ledger.NewTransaction{
		{Amount: core.Money{Kopecks: 2000000}, Category: "Зарплата", Timestamp: now},
		{Amount: core.Money{Kopecks: -500000}, Category: "food", Timestamp: now},
		{Amount: core.Money{Kopecks: -19900}, Category: "Підписки", IsSubscription: true,
			SubscriptionName: "Netflix", SubscriptionDue: "15.07.2024", Timestamp: now},
	}
	for _, tx := range appends {
		if _, err := ldg.AppendTransaction(ctx, user, tx); err != nil {
			t.Fatal(err)
		}
	}
	if err := ldg.AddGoal(ctx, user, core.Goal{Name: "laptop", Target: core.Money{Kopecks: 400000}}); err != nil {
		t.Fatal(err)
	}
	if err := ldg.UpdateGoalProgress(ctx, user, "laptop", core.Money{Kopecks: 100000}, false); err != nil {
		t.Fatal(err)
	}
	if err := ldg.SetCategoryBudget(ctx, user, core.Budget{Category: "food", Limit: core.Money{Kopecks: 1000000}}); err != nil {
		t.Fatal(err)
	}

	payload, err := svc.Build(ctx, user, dates.Named("month"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if payload.Balance != (core.Money{Kopecks: 1480100}) {
		t.Errorf("balance = %v, want 14801.00", payload.Balance)
	}
	if payload.Report.Income != (core.Money{Kopecks: 2000000}) {
		t.Errorf("income = %v, want 20000.00", payload.Report.Income)
	}
	if payload.SubscriptionMonthlyCost != (core.Money{Kopecks: 19900}) {
		t.Errorf("subscription cost = %v, want 199.00", payload.SubscriptionMonthlyCost)
	}

	if len(payload.Goals) != 1 || payload.Goals[0].Percent != 25 {
		t.Errorf("goals = %+v, want laptop at 25%%", payload.Goals)
	}
	if len(payload.Budgets) != 1 {
		t.Fatalf("budgets = %+v, want one", payload.Budgets)
	}
	b := payload.Budgets[0]
	if b.Spent != (core.Money{Kopecks: 500000}) || b.Percent != 50 || b.Status != stats.BudgetOK {
		t.Errorf("budget usage = %+v, want 50%% ok", b)
	}
}
