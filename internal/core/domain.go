package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Monthly BudgetPeriod = "monthly"
	Weekly  BudgetPeriod = "weekly"
	Yearly  BudgetPeriod = "yearly"
)

const (
	KindTransaction RecordKind = "transaction"
	KindGoal        RecordKind = "goal"
)

const (
	DefaultCurrency = "UAH"
	DefaultCategory = "Інше"

	// NoDeadline is the stored sentinel for goals without a target date.
	NoDeadline = "no deadline"
)

type (
	BudgetPeriod string

	RecordKind string

	// User identifies a ledger owner. The stable sheet title is derived from
	// the numeric ID; the username only matters for legacy table lookup.
	User struct {
		ID       int64
		Username string
	}

	// Transaction is one monetary event in a user ledger. Balance is the
	// denormalized running balance stored alongside the row.
	Transaction struct {
		Row              int // 1-based physical row, 0 before first store
		Timestamp        time.Time
		UserID           int64
		Amount           Money
		Category         string
		Note             string
		Nickname         string
		Balance          Money
		Currency         string
		IsSubscription   bool
		SubscriptionName string
		SubscriptionDue  string
	}

	// Goal is a savings goal sharing the user ledger table with transactions.
	Goal struct {
		Row       int
		Name      string
		Target    Money
		Current   Money
		Deadline  string // ISO date or NoDeadline
		Completed bool
		Created   string
	}

	// Budget is a per-category spending limit. Spent mirrors the stored
	// accumulator column; authoritative consumption is recomputed from
	// transactions at query time.
	Budget struct {
		Row      int
		Nickname string
		Category string
		Limit    Money
		Spent    Money
		Period   BudgetPeriod
	}

	CustomCategory struct {
		Row       int
		Nickname  string
		Name      string
		Emoji     string
		IsExpense bool
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyGoalName = errors.New("empty goal name")
	ErrEmptyCategory = errors.New("empty category")
	ErrInvalidTarget = errors.New("goal target must be positive")
)

// SheetTitle returns the stable per-user table name.
func (u User) SheetTitle() string {
	return fmt.Sprintf("user_%d", u.ID)
}

// LegacyTitles lists older table names this user may still be stored under,
// in lookup order.
func (u User) LegacyTitles() []string {
	candidates := []string{strings.TrimSpace(u.Username), "anonymous"}
	seen := map[string]struct{}{}
	var out []string
	for _, t := range candidates {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// DisplayName returns the name written into stored rows.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.Username); name != "" {
		return name
	}
	return u.SheetTitle()
}

// Valid reports whether k names a known record kind.
func (k RecordKind) Valid() bool {
	switch k {
	case KindTransaction, KindGoal:
		return true
	default:
		return false
	}
}

// ParsePeriod normalizes free-text period names from stored rows.
// Unknown or empty values default to monthly.
func ParsePeriod(s string) BudgetPeriod {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weekly":
		return Weekly
	case "yearly":
		return Yearly
	default:
		return Monthly
	}
}

// ParseBool normalizes the string-typed boolean flags found in stored cells.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// FormatBool renders a boolean the way the sheet stores it.
func FormatBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (t Transaction) Validate() error {
	if t.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if len(t.Note) > 200 {
		return errors.New("note too long (max 200 characters)")
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyGoalName
	}
	if len(g.Name) > 100 {
		return errors.New("goal name too long (max 100 characters)")
	}
	if g.Target.Kopecks <= 0 {
		return ErrInvalidTarget
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if b.Limit.Kopecks <= 0 {
		return ErrInvalidAmount
	}
	switch b.Period {
	case Monthly, Weekly, Yearly:
		return nil
	default:
		return fmt.Errorf("invalid budget period: %s", b.Period)
	}
}
