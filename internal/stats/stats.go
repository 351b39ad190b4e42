// Package stats aggregates ledger transactions over named or explicit time
// periods. All money math stays in integer kopecks so bucket sums match
// totals exactly.
package stats

import (
	"sort"
	"time"

	"finbot/internal/core"
	"finbot/internal/dates"
)

// OtherBucket is the category name expense leftovers fold into, and the
// default category of uncategorized rows.
const OtherBucket = core.DefaultCategory

// topCategories caps the per-category breakdown before folding.
const topCategories = 5

// BudgetStatus grades budget consumption.
type BudgetStatus string

const (
	BudgetOK       BudgetStatus = "ok"
	BudgetWarning  BudgetStatus = "warning"
	BudgetCritical BudgetStatus = "critical"
)

// CategoryTotal is one expense bucket of a report.
type CategoryTotal struct {
	Name  string
	Total core.Money // magnitude
}

// Report is the aggregate view of one period.
type Report struct {
	Period  dates.Period
	Count   int
	Income  core.Money // sum of positive amounts
	Expense core.Money // magnitude of negative amounts

	// Categories holds the top expense buckets plus a folded remainder
	// bucket; totals sum exactly to Expense.
	Categories []CategoryTotal

	// SavingsRate is (income-expense)/income in percent, nil when there is
	// no income to relate to.
	SavingsRate *float64

	DailyAverage   core.Money
	MonthlyAverage core.Money
}

// Filter returns the transactions whose timestamps fall inside the period
// resolved at now. Rows without a parseable date carry a zero timestamp and
// are skipped.
func Filter(txs []core.Transaction, period dates.Period, now time.Time) []core.Transaction {
	var out []core.Transaction
	for _, tx := range txs {
		if tx.Timestamp.IsZero() {
			continue
		}
		if period.Contains(tx.Timestamp, now) {
			out = append(out, tx)
		}
	}
	return out
}

// Build aggregates the given transactions over the period.
func Build(txs []core.Transaction, period dates.Period, now time.Time) Report {
	inside := Filter(txs, period, now)

	r := Report{Period: period, Count: len(inside)}
	byCategory := map[string]core.Money{}
	for _, tx := range inside {
		if tx.Amount.IsIncome() {
			r.Income = r.Income.Add(tx.Amount)
			continue
		}
		spent := tx.Amount.Abs()
		r.Expense = r.Expense.Add(spent)
		name := tx.Category
		if name == "" {
			name = OtherBucket
		}
		byCategory[name] = byCategory[name].Add(spent)
	}

	r.Categories = breakdown(byCategory)
	if r.Income.IsIncome() {
		rate := float64(r.Income.Kopecks-r.Expense.Kopecks) / float64(r.Income.Kopecks) * 100
		r.SavingsRate = &rate
	}

	days := int64(period.Days(now))
	r.DailyAverage = core.Money{Kopecks: r.Expense.Kopecks / days}
	r.MonthlyAverage = core.Money{Kopecks: r.DailyAverage.Kopecks * 30}
	return r
}

// breakdown sorts the expense buckets, keeps the top ones and folds the rest
// into OtherBucket. The fold merges with an existing bucket of that name, so
// totals stay exact.
func breakdown(byCategory map[string]core.Money) []CategoryTotal {
	all := make([]CategoryTotal, 0, len(byCategory))
	for name, total := range byCategory {
		all = append(all, CategoryTotal{Name: name, Total: total})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Total.Kopecks != all[j].Total.Kopecks {
			return all[i].Total.Kopecks > all[j].Total.Kopecks
		}
		return all[i].Name < all[j].Name
	})

	if len(all) <= topCategories {
		return all
	}

	top := all[:topCategories:topCategories]
	var rest core.Money
	for _, c := range all[topCategories:] {
		rest = rest.Add(c.Total)
	}
	for i := range top {
		if top[i].Name == OtherBucket {
			top[i].Total = top[i].Total.Add(rest)
			return top
		}
	}
	return append(top, CategoryTotal{Name: OtherBucket, Total: rest})
}

// UsagePercent is spent/limit in percent; 0 for a non-positive limit.
func UsagePercent(spent, limit core.Money) float64 {
	if limit.Kopecks <= 0 {
		return 0
	}
	return float64(spent.Kopecks) / float64(limit.Kopecks) * 100
}

// Grade maps a usage percentage to its status band.
func Grade(percent float64) BudgetStatus {
	switch {
	case percent >= 90:
		return BudgetCritical
	case percent >= 70:
		return BudgetWarning
	default:
		return BudgetOK
	}
}

// Crossed reports the new status when an expense moves consumption from
// before to after, and whether that entered a worse band. Callers alert only
// on crossings, not on every expense inside a band.
func Crossed(before, after, limit core.Money) (BudgetStatus, bool) {
	prev := Grade(UsagePercent(before, limit))
	next := Grade(UsagePercent(after, limit))
	return next, severity(next) > severity(prev)
}

func severity(s BudgetStatus) int {
	switch s {
	case BudgetCritical:
		return 2
	case BudgetWarning:
		return 1
	default:
		return 0
	}
}
