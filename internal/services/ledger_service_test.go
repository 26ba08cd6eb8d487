package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/store/memory"
)

type capturePublisher struct {
	events []*amqp.LedgerEventMessage
	fail   bool
}

func (p *capturePublisher) PublishLedgerEvent(_ context.Context, msg *amqp.LedgerEventMessage) error {
	if p.fail {
		return errors.New("broker down")
	}
	p.events = append(p.events, msg)
	return nil
}

func newTestService(pub EventPublisher) *LedgerService {
	st := memory.New([]string{"Groceries", "Transport"}, []string{"Salary"})
	return NewLedgerService(st, pub)
}

func validExpense(desc string, cents int64) core.Transaction {
	return core.Transaction{
		Date:        core.NewDate(2025, 5, 10),
		Category:    "Groceries",
		Description: desc,
		Amount:      core.Money{Cents: cents},
		Kind:        core.Expense,
	}
}

func TestAddTransactionNormalizesAndPublishes(t *testing.T) {
	pub := &capturePublisher{}
	svc := newTestService(pub)
	ctx := context.Background()

	tx := validExpense("coffee", 350) // positive amount, expense kind
	if err := svc.AddTransaction(ctx, "sid", tx); err != nil {
		t.Fatalf("add: %v", err)
	}

	ts, err := svc.Transactions(ctx, "sid")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ts) != 1 || ts[0].Amount.Cents != -350 {
		t.Fatalf("sign not reconciled: %+v", ts)
	}

	if len(pub.events) != 1 || pub.events[0].Op != amqp.OpTransactionAdded {
		t.Fatalf("events = %+v", pub.events)
	}
	if pub.events[0].SessionID != "sid" || pub.events[0].Count != 1 {
		t.Fatalf("event fields wrong: %+v", pub.events[0])
	}
}

func TestAddTransactionRejectsInvalid(t *testing.T) {
	svc := newTestService(nil)

	bad := validExpense("x", -100)
	bad.Category = "  "
	err := svc.AddTransaction(context.Background(), "sid", bad)
	if !errors.Is(err, core.ErrInvalidRow) {
		t.Fatalf("expected ErrInvalidRow, got %v", err)
	}
	ts, _ := svc.Transactions(context.Background(), "sid")
	if len(ts) != 0 {
		t.Fatalf("invalid row was stored: %v", ts)
	}
}

func TestAddTransactionRegistersUnseenCategory(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	tx := validExpense("vet", -9000)
	tx.Category = "Pet Care"
	if err := svc.AddTransaction(ctx, "sid", tx); err != nil {
		t.Fatalf("add: %v", err)
	}
	cats, _ := svc.Categories(ctx, "sid", core.Expense)
	if cats[len(cats)-1] != "Pet Care" {
		t.Fatalf("category not registered: %v", cats)
	}
}

func TestEditAndDeletePublishEvents(t *testing.T) {
	pub := &capturePublisher{}
	svc := newTestService(pub)
	ctx := context.Background()

	_ = svc.AddTransaction(ctx, "sid", validExpense("a", -100))
	_ = svc.AddTransaction(ctx, "sid", validExpense("b", -200))

	edited := validExpense("b2", -250)
	if err := svc.EditTransaction(ctx, "sid", 0, edited); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if err := svc.DeleteTransaction(ctx, "sid", 1); err != nil {
		t.Fatalf("delete: %v", err)
	}

	ts, _ := svc.Transactions(ctx, "sid")
	if len(ts) != 1 || ts[0].Description != "b2" {
		t.Fatalf("unexpected ledger: %v", ts)
	}

	ops := []string{}
	for _, e := range pub.events {
		ops = append(ops, e.Op)
	}
	want := []string{amqp.OpTransactionAdded, amqp.OpTransactionAdded, amqp.OpTransactionEdited, amqp.OpTransactionDeleted}
	if len(ops) != len(want) {
		t.Fatalf("ops = %v", ops)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("ops = %v, want %v", ops, want)
		}
	}
}

func TestDeleteOutOfRange(t *testing.T) {
	svc := newTestService(nil)
	err := svc.DeleteTransaction(context.Background(), "sid", 0)
	if !errors.Is(err, core.ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestPublisherFailureDoesNotFailRequest(t *testing.T) {
	svc := newTestService(&capturePublisher{fail: true})
	if err := svc.AddTransaction(context.Background(), "sid", validExpense("a", -100)); err != nil {
		t.Fatalf("add should survive publish failure: %v", err)
	}
}

func TestImportCSVReplaceAndAppend(t *testing.T) {
	pub := &capturePublisher{}
	svc := newTestService(pub)
	ctx := context.Background()

	_ = svc.AddTransaction(ctx, "sid", validExpense("old", -100))

	csv := "date,category,description,amount,type\n" +
		"2025-01-01,Rent,January,800,expense\n" +
		"2025-01-02,Salary,January pay,2000,income\n"
	n, err := svc.ImportCSV(ctx, "sid", strings.NewReader(csv), true)
	if err != nil || n != 2 {
		t.Fatalf("import: n=%d err=%v", n, err)
	}

	ts, _ := svc.Transactions(ctx, "sid")
	if len(ts) != 2 || ts[0].Description != "January" {
		t.Fatalf("replace did not take: %v", ts)
	}

	// Imported categories get registered under their kind.
	expCats, _ := svc.Categories(ctx, "sid", core.Expense)
	if expCats[len(expCats)-1] != "Rent" {
		t.Fatalf("Rent not registered: %v", expCats)
	}

	n, err = svc.ImportCSV(ctx, "sid", strings.NewReader(csv), false)
	if err != nil || n != 2 {
		t.Fatalf("append import: n=%d err=%v", n, err)
	}
	ts, _ = svc.Transactions(ctx, "sid")
	if len(ts) != 4 || ts[2].Description != "January" {
		t.Fatalf("append order wrong: %v", ts)
	}

	last := pub.events[len(pub.events)-1]
	if last.Op != amqp.OpCSVImported || last.Count != 2 {
		t.Fatalf("import event wrong: %+v", last)
	}
}

func TestImportCSVAtomicRejection(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	_ = svc.AddTransaction(ctx, "sid", validExpense("keep", -100))

	csv := "date,category,description,amount,type\n" +
		"2025-01-01,Rent,ok,800,expense\n" +
		"not-a-date,Rent,bad,800,expense\n"
	_, err := svc.ImportCSV(ctx, "sid", strings.NewReader(csv), true)
	if err == nil {
		t.Fatal("expected import error")
	}

	ts, _ := svc.Transactions(ctx, "sid")
	if len(ts) != 1 || ts[0].Description != "keep" {
		t.Fatalf("failed import mutated ledger: %v", ts)
	}
}

func TestExportCSVRoundTrip(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	_ = svc.AddTransaction(ctx, "sid", validExpense("weekly shop", -4250))

	var buf bytes.Buffer
	if err := svc.ExportCSV(ctx, "sid", &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Date,Category,Description,Amount,Type") {
		t.Fatalf("missing header: %q", out)
	}
	if !strings.Contains(out, "2025-05-10,Groceries,weekly shop,-42.50,Expense") {
		t.Fatalf("missing row: %q", out)
	}

	n, err := svc.ImportCSV(ctx, "other", strings.NewReader(out), true)
	if err != nil || n != 1 {
		t.Fatalf("re-import: n=%d err=%v", n, err)
	}
}

func TestStatistics(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	salary := core.Transaction{
		Date: core.NewDate(2025, 5, 1), Category: "Salary",
		Description: "pay", Amount: core.Money{Cents: 100000}, Kind: core.Income,
	}
	_ = svc.AddTransaction(ctx, "sid", salary)
	_ = svc.AddTransaction(ctx, "sid", validExpense("groceries", -20000))

	snap, err := svc.Statistics(ctx, "sid")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if snap.TotalIncome.Cents != 100000 || snap.TotalExpense.Cents != 20000 || snap.Balance.Cents != 80000 {
		t.Fatalf("snapshot wrong: %+v", snap)
	}
}
