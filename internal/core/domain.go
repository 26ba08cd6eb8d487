package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Expense Kind = "Expense"
	Income  Kind = "Income"
)

type (
	// Kind classifies a transaction. It is a closed enumeration; free-form
	// strings are normalized once at the boundary via ParseKind.
	Kind string

	Date struct {
		time.Time
	}

	// Money is a signed amount in cents. Negative cents mean money spent.
	Money struct {
		Cents int64
	}

	// Transaction is a single ledger record. The amount sign is the source
	// of truth for aggregation: amount < 0 iff Kind == Expense, amount >= 0
	// iff Kind == Income. Normalize re-establishes that invariant.
	Transaction struct {
		Date        Date
		Category    string
		Description string
		Amount      Money
		Kind        Kind
	}
)

var (
	ErrEmptyName         = errors.New("empty category name")
	ErrDuplicateCategory = errors.New("duplicate category")
	ErrInvalidRow        = errors.New("invalid transaction row")
	ErrIndexOutOfRange   = errors.New("position out of range")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidDate       = errors.New("invalid date")
)

// ParseKind normalizes a free-form type string. Anything starting with "i"
// (case-insensitively) is Income, everything else is Expense.
func ParseKind(s string) Kind {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "i") {
		return Income
	}
	return Expense
}

func (k Kind) IsValid() bool {
	return k == Expense || k == Income
}

func (k Kind) String() string {
	return string(k)
}

// NewDate creates a Date from year, month, day at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"02 Jan 2006",
}

// ParseDate parses a calendar date, preferring ISO 8601.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	return Date{}, ErrInvalidDate
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String formats the date as ISO 8601 (YYYY-MM-DD).
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// Abs returns the magnitude of the amount.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

// Neg returns the amount as a non-positive value.
func (m Money) Neg() Money {
	return Money{Cents: -m.Abs().Cents}
}

// Normalize re-derives the amount sign from the kind: Expense amounts become
// negative, Income amounts non-negative. The kind itself is folded onto the
// closed enumeration first, so a Transaction built from raw input always
// satisfies the sign invariant afterwards.
func (t *Transaction) Normalize() {
	if !t.Kind.IsValid() {
		t.Kind = ParseKind(string(t.Kind))
	}
	// Zero amounts fall on the Income side of the invariant.
	if t.Amount.Cents == 0 {
		t.Kind = Income
		return
	}
	if t.Kind == Expense {
		t.Amount = t.Amount.Neg()
	} else {
		t.Amount = t.Amount.Abs()
	}
}

// Consistent reports whether the sign invariant holds. A zero amount counts
// as Income.
func (t Transaction) Consistent() bool {
	if t.Kind == Expense {
		return t.Amount.Cents < 0
	}
	return t.Kind == Income && t.Amount.Cents >= 0
}

// Validate checks the fields every mutation path must agree on: a non-zero
// date, a non-blank category and a valid kind. Amounts are never invalid
// here; sign handling is Normalize's job.
func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return errors.Join(ErrInvalidRow, err)
	}
	if strings.TrimSpace(t.Category) == "" {
		return errors.Join(ErrInvalidRow, errors.New("blank category"))
	}
	if !t.Kind.IsValid() {
		return errors.Join(ErrInvalidRow, errors.New("unknown kind "+string(t.Kind)))
	}
	return nil
}
