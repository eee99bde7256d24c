// Package quota enforces the monthly post retrieval cap of the X API
// free tier. The persisted ledger lives in the archive; this package
// owns the month keying and the cap arithmetic.
package quota

import (
	"context"
	"errors"
	"time"

	"github.com/fieldsite/fieldsite/internal/archive"
)

// ErrCapReached signals that the current month's retrieval budget is
// exhausted.
var ErrCapReached = errors.New("monthly post cap reached")

// UsageStore is the slice of the archive the ledger needs.
type UsageStore interface {
	UsageFor(ctx context.Context, month string) (archive.Usage, error)
	AddUsage(ctx context.Context, month string, n, cap int) error
}

// MonthKey returns the UTC ledger key for t, e.g. "2026-08". A month
// rollover therefore starts a fresh budget automatically.
func MonthKey(t time.Time) string { return t.UTC().Format("2006-01") }

// Ledger tracks retrieval usage against a monthly cap.
type Ledger struct {
	store UsageStore
	cap   int
	now   func() time.Time
}

// NewLedger creates a ledger with the given monthly cap.
func NewLedger(store UsageStore, cap int) *Ledger {
	return &Ledger{store: store, cap: cap, now: time.Now}
}

// Cap returns the monthly cap.
func (l *Ledger) Cap() int { return l.cap }

// Month returns the current ledger month key.
func (l *Ledger) Month() string { return MonthKey(l.now()) }

// Remaining returns how many posts may still be retrieved this month.
func (l *Ledger) Remaining(ctx context.Context) (int, error) {
	u, err := l.store.UsageFor(ctx, l.Month())
	if err != nil {
		return 0, err
	}
	remaining := l.cap - u.Retrieved
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Charge records n retrieved posts against the current month. Charging
// past the cap is allowed; the cap gates the next run, not the rows
// already fetched.
func (l *Ledger) Charge(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	return l.store.AddUsage(ctx, l.Month(), n, l.cap)
}
