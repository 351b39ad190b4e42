package stats

import (
	"testing"
	"time"

	"finbot/internal/core"
	"finbot/internal/dates"
)

var now = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

func kopecks(units int64) core.Money {
	return core.Money{Kopecks: units * 100}
}

func tx(units int64, category string, ts time.Time) core.Transaction {
	return core.Transaction{Amount: kopecks(units), Category: category, Timestamp: ts}
}

func TestFilterSkipsUndatedRows(t *testing.T) {
	txs := []core.Transaction{
		tx(-10, "food", now),
		{Amount: kopecks(-20), Category: "food"}, // zero timestamp
		tx(-30, "food", now.AddDate(-1, 0, 0)),
	}
	got := Filter(txs, dates.Named("month"), now)
	if len(got) != 1 || got[0].Amount != kopecks(-10) {
		t.Errorf("Filter = %+v, want only the dated in-period row", got)
	}
}

func TestBuildTotalsAndSavingsRate(t *testing.T) {
	txs := []core.Transaction{
		tx(1000, "", now),
		tx(-300, "food", now),
		tx(-200, "transport", now),
	}
	r := Build(txs, dates.Named("month"), now)

	if r.Income != kopecks(1000) {
		t.Errorf("income = %v, want %v", r.Income, kopecks(1000))
	}
	if r.Expense != kopecks(500) {
		t.Errorf("expense = %v, want %v", r.Expense, kopecks(500))
	}
	if r.SavingsRate == nil || *r.SavingsRate != 50 {
		t.Errorf("savings rate = %v, want 50", r.SavingsRate)
	}
	if r.Count != 3 {
		t.Errorf("count = %d, want 3", r.Count)
	}
}

func TestBuildNoIncomeNilSavingsRate(t *testing.T) {
	r := Build([]core.Transaction{tx(-100, "food", now)}, dates.Named("month"), now)
	if r.SavingsRate != nil {
		t.Errorf("savings rate = %v, want nil without income", *r.SavingsRate)
	}
}

func TestBreakdownFoldsIntoOther(t *testing.T) {
	txs := []core.Transaction{
		tx(-600, "a", now),
		tx(-500, "b", now),
		tx(-400, "c", now),
		tx(-300, "d", now),
		tx(-200, "e", now),
		tx(-90, "f", now),
		tx(-10, "g", now),
	}
	r := Build(txs, dates.Named("month"), now)

	if len(r.Categories) != 6 {
		t.Fatalf("buckets = %d, want top 5 + folded", len(r.Categories))
	}
	last := r.Categories[len(r.Categories)-1]
	if last.Name != OtherBucket || last.Total != kopecks(100) {
		t.Errorf("folded bucket = %+v, want {%s %v}", last, OtherBucket, kopecks(100))
	}

	var sum core.Money
	for _, c := range r.Categories {
		sum = sum.Add(c.Total)
	}
	if sum != r.Expense {
		t.Errorf("bucket sum %v != expense total %v", sum, r.Expense)
	}
}

func TestBreakdownMergesExistingOther(t *testing.T) {
	txs := []core.Transaction{
		tx(-600, OtherBucket, now),
		tx(-500, "b", now),
		tx(-400, "c", now),
		tx(-300, "d", now),
		tx(-200, "e", now),
		tx(-50, "f", now),
	}
	r := Build(txs, dates.Named("month"), now)

	if len(r.Categories) != 5 {
		t.Fatalf("buckets = %d, want 5 with merged fold", len(r.Categories))
	}
	if r.Categories[0].Name != OtherBucket || r.Categories[0].Total != kopecks(650) {
		t.Errorf("merged bucket = %+v, want {%s %v}", r.Categories[0], OtherBucket, kopecks(650))
	}
}

func TestDailyAndMonthlyAverages(t *testing.T) {
	start := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.June, 10, 23, 59, 59, 0, time.UTC)
	txs := []core.Transaction{tx(-900, "food", start.AddDate(0, 0, 2))}

	// The range touches 10 calendar days, both endpoints included.
	r := Build(txs, dates.Range(start, end), now)
	if r.DailyAverage != kopecks(90) {
		t.Errorf("daily average = %v, want %v", r.DailyAverage, kopecks(90))
	}
	if r.MonthlyAverage != kopecks(2700) {
		t.Errorf("monthly average = %v, want %v", r.MonthlyAverage, kopecks(2700))
	}
}

func TestGradeThresholds(t *testing.T) {
	cases := []struct {
		percent float64
		want    BudgetStatus
	}{
		{0, BudgetOK},
		{69.9, BudgetOK},
		{70, BudgetWarning},
		{89.9, BudgetWarning},
		{90, BudgetCritical},
		{150, BudgetCritical},
	}
	for _, tc := range cases {
		if got := Grade(tc.percent); got != tc.want {
			t.Errorf("Grade(%v) = %s, want %s", tc.percent, got, tc.want)
		}
	}
}

func TestBudgetWarningAtSeventyFivePercent(t *testing.T) {
	limit := kopecks(1000)
	spent := kopecks(750)
	percent := UsagePercent(spent, limit)
	if percent != 75 {
		t.Errorf("usage = %v, want 75", percent)
	}
	if Grade(percent) != BudgetWarning {
		t.Errorf("Grade(75) = %s, want warning", Grade(percent))
	}
}

func TestCrossedDetectsBandEntry(t *testing.T) {
	limit := kopecks(1000)
	cases := []struct {
		name          string
		before, after core.Money
		want          BudgetStatus
		crossed       bool
	}{
		{"into warning", kopecks(600), kopecks(750), BudgetWarning, true},
		{"within warning", kopecks(750), kopecks(800), BudgetWarning, false},
		{"into critical", kopecks(800), kopecks(950), BudgetCritical, true},
		{"stays ok", kopecks(100), kopecks(200), BudgetOK, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, crossed := Crossed(tc.before, tc.after, limit)
			if status != tc.want || crossed != tc.crossed {
				t.Errorf("Crossed(%v to %v) = %s %v, want %s %v",
					tc.before, tc.after, status, crossed, tc.want, tc.crossed)
			}
		})
	}
}
