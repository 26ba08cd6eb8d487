package csvio

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"tally/internal/core"
)

func TestParseResolvesColumnsCaseInsensitively(t *testing.T) {
	in := "DATE,category,Description,AMOUNT,type\n2025-02-01,Groceries,weekly shop,-42.50,Expense\n"
	ts, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ts) != 1 {
		t.Fatalf("rows = %d", len(ts))
	}
	got := ts[0]
	if got.Date.String() != "2025-02-01" || got.Category != "Groceries" || got.Amount.Cents != -4250 || got.Kind != core.Expense {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestParseShuffledColumns(t *testing.T) {
	in := "Type,Amount,Description,Category,Date\nincome,1000,salary,Salary,2025-01-31\n"
	ts, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ts[0].Kind != core.Income || ts[0].Amount.Cents != 100000 || ts[0].Category != "Salary" {
		t.Fatalf("unexpected row: %+v", ts[0])
	}
}

func TestParseStripsByteOrderMark(t *testing.T) {
	in := "\uFEFFDate,Category,Description,Amount,Type\n2025-02-01,Groceries,weekly shop,-42.50,Expense\n"
	ts, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ts) != 1 || ts[0].Date.String() != "2025-02-01" {
		t.Fatalf("BOM-prefixed header not resolved: %+v", ts)
	}
}

func TestParseMissingColumns(t *testing.T) {
	in := "Date,Category,Amount,Type\n2025-01-01,A,1,Expense\n"
	if _, err := Parse(strings.NewReader(in)); !errors.Is(err, ErrMissingColumns) {
		t.Fatalf("expected ErrMissingColumns, got %v", err)
	}
}

func TestParseSignReconciliation(t *testing.T) {
	cases := []struct {
		amount, kind string
		wantCents    int64
		wantKind     core.Kind
	}{
		{"200", "expense", -20000, core.Expense},
		{"-200", "expense", -20000, core.Expense},
		{"-150", "income", 15000, core.Income},
		{"150", "Income", 15000, core.Income},
		{"150", "inc", 15000, core.Income},
		{"150", "credit", -15000, core.Expense}, // not "i"-prefixed
	}
	for _, tc := range cases {
		in := "Date,Category,Description,Amount,Type\n2025-01-01,Cat,d," + tc.amount + "," + tc.kind + "\n"
		ts, err := Parse(strings.NewReader(in))
		if err != nil {
			t.Fatalf("%s/%s: %v", tc.amount, tc.kind, err)
		}
		if ts[0].Amount.Cents != tc.wantCents || ts[0].Kind != tc.wantKind {
			t.Fatalf("%s/%s: got %d %q, want %d %q", tc.amount, tc.kind, ts[0].Amount.Cents, ts[0].Kind, tc.wantCents, tc.wantKind)
		}
		if !ts[0].Consistent() {
			t.Fatalf("%s/%s: invariant broken after import", tc.amount, tc.kind)
		}
	}
}

func TestParseAmountDefaultsToZero(t *testing.T) {
	in := "Date,Category,Description,Amount,Type\n2025-01-01,Cat,d,n/a,income\n"
	ts, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ts[0].Amount.Cents != 0 {
		t.Fatalf("expected 0 cents, got %d", ts[0].Amount.Cents)
	}
}

func TestParseBlankDescriptionBecomesDash(t *testing.T) {
	in := "Date,Category,Description,Amount,Type\n2025-01-01,Cat,,1.00,expense\n"
	ts, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ts[0].Description != "-" {
		t.Fatalf("description = %q", ts[0].Description)
	}
}

func TestParseRejectsWholeImport(t *testing.T) {
	// Bad date on the second data row: nothing is returned.
	in := "Date,Category,Description,Amount,Type\n" +
		"2025-01-01,Cat,d,1.00,expense\n" +
		"not-a-date,Cat,d,1.00,expense\n"
	_, err := Parse(strings.NewReader(in))
	if !errors.Is(err, ErrUnparsableDate) {
		t.Fatalf("expected ErrUnparsableDate, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("error should name the line: %v", err)
	}

	// Blank category is just as fatal.
	in = "Date,Category,Description,Amount,Type\n2025-01-01, ,d,1.00,expense\n"
	if _, err := Parse(strings.NewReader(in)); !errors.Is(err, core.ErrInvalidRow) {
		t.Fatalf("expected ErrInvalidRow, got %v", err)
	}
}

func TestParseEmptyInput(t *testing.T) {
	if _, err := Parse(strings.NewReader("")); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	// Header only: valid, zero rows.
	ts, err := Parse(strings.NewReader("Date,Category,Description,Amount,Type\n"))
	if err != nil || len(ts) != 0 {
		t.Fatalf("header-only: ts=%v err=%v", ts, err)
	}
}

func TestSerializeFixedColumns(t *testing.T) {
	ts := []core.Transaction{
		{Date: core.NewDate(2025, 3, 2), Category: "Groceries", Description: "weekly shop", Amount: core.Money{Cents: -4250}, Kind: core.Expense},
	}
	var buf bytes.Buffer
	if err := Serialize(&buf, ts); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "Date,Category,Description,Amount,Type" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "2025-03-02,Groceries,weekly shop,-42.50,Expense" {
		t.Fatalf("row = %q", lines[1])
	}
}

func TestRoundTrip(t *testing.T) {
	orig := []core.Transaction{
		{Date: core.NewDate(2025, 1, 31), Category: "Salary", Description: "january", Amount: core.Money{Cents: 250000}, Kind: core.Income},
		{Date: core.NewDate(2025, 2, 1), Category: "Groceries", Description: "-", Amount: core.Money{Cents: -4299}, Kind: core.Expense},
		{Date: core.NewDate(2025, 2, 3), Category: "Dining Out", Description: "pizza, drinks", Amount: core.Money{Cents: -1850}, Kind: core.Expense},
	}
	var buf bytes.Buffer
	if err := Serialize(&buf, orig); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := Parse(&buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != len(orig) {
		t.Fatalf("rows = %d", len(got))
	}
	for i := range orig {
		if got[i] != orig[i] {
			t.Fatalf("row %d: got %+v, want %+v", i, got[i], orig[i])
		}
	}
}
