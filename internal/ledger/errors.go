package ledger

import "errors"

var (
	// ErrStoreUnavailable marks any failure talking to the backing store.
	// Callers must not treat it as an empty ledger.
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrGoalNotFound     = errors.New("goal not found")
	ErrGoalExists       = errors.New("goal already exists")
	ErrBudgetNotFound   = errors.New("budget not found")
	ErrCategoryExists   = errors.New("category already exists")
	ErrCategoryNotFound = errors.New("category not found")
	ErrRowNotFound      = errors.New("row not found")
	ErrUnknownField     = errors.New("unknown column name")
)

// StoreError wraps a remote-store failure with the operation that hit it.
// errors.Is(err, ErrStoreUnavailable) matches it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "store unavailable: " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
