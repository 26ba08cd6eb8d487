package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/csvio"
	"tally/internal/store"
)

// EventPublisher publishes ledger mutation events. *amqp.Client satisfies
// it; a nil publisher disables events.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error
}

// LedgerService orchestrates ledger operations across the session store
// and the AMQP event channel. The store is authoritative; event
// publishing is best-effort and never fails a request.
type LedgerService struct {
	store     store.Store
	publisher EventPublisher
}

func NewLedgerService(st store.Store, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		store:     st,
		publisher: publisher,
	}
}

// Transactions returns the session's ledger, newest first.
func (s *LedgerService) Transactions(ctx context.Context, sessionID string) ([]core.Transaction, error) {
	return s.store.Transactions(ctx, sessionID)
}

// AddTransaction validates a transaction, reconciles its sign with its
// kind, and prepends it to the session's ledger.
func (s *LedgerService) AddTransaction(ctx context.Context, sessionID string, t core.Transaction) error {
	t.Normalize()
	if err := t.Validate(); err != nil {
		return err
	}

	if err := s.store.AddTransaction(ctx, sessionID, t); err != nil {
		return fmt.Errorf("add transaction: %w", err)
	}
	s.ensureCategory(ctx, sessionID, t.Kind, t.Category)

	s.publish(ctx, sessionID, amqp.OpTransactionAdded, 1)
	return nil
}

// EditTransaction replaces the transaction at position with an edited
// copy, after the same validation as AddTransaction.
func (s *LedgerService) EditTransaction(ctx context.Context, sessionID string, position int, t core.Transaction) error {
	t.Normalize()
	if err := t.Validate(); err != nil {
		return err
	}

	if err := s.store.EditTransaction(ctx, sessionID, position, t); err != nil {
		return fmt.Errorf("edit transaction at %d: %w", position, err)
	}
	s.ensureCategory(ctx, sessionID, t.Kind, t.Category)

	s.publish(ctx, sessionID, amqp.OpTransactionEdited, 1)
	return nil
}

// DeleteTransaction removes the transaction at position.
func (s *LedgerService) DeleteTransaction(ctx context.Context, sessionID string, position int) error {
	if err := s.store.DeleteTransaction(ctx, sessionID, position); err != nil {
		return fmt.Errorf("delete transaction at %d: %w", position, err)
	}

	s.publish(ctx, sessionID, amqp.OpTransactionDeleted, 1)
	return nil
}

// Categories lists the session's category names for a kind, in
// registration order.
func (s *LedgerService) Categories(ctx context.Context, sessionID string, kind core.Kind) ([]string, error) {
	return s.store.Categories(ctx, sessionID, kind)
}

// AddCategory registers a new category name under a kind.
func (s *LedgerService) AddCategory(ctx context.Context, sessionID string, kind core.Kind, name string) (string, error) {
	added, err := s.store.AddCategory(ctx, sessionID, kind, name)
	if err != nil {
		return "", err
	}

	s.publish(ctx, sessionID, amqp.OpCategoryAdded, 1)
	return added, nil
}

// Statistics computes totals and the per-category expense breakdown for
// the session's current ledger.
func (s *LedgerService) Statistics(ctx context.Context, sessionID string) (core.Snapshot, error) {
	ts, err := s.store.Transactions(ctx, sessionID)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("load transactions: %w", err)
	}
	return core.Compute(ts), nil
}

// ImportCSV parses r and either replaces the session's ledger or appends
// below it. A single bad row rejects the whole import; nothing is
// written in that case. Categories seen in imported rows are registered
// if new.
func (s *LedgerService) ImportCSV(ctx context.Context, sessionID string, r io.Reader, replace bool) (int, error) {
	ts, err := csvio.Parse(r)
	if err != nil {
		return 0, err
	}

	if replace {
		err = s.store.ReplaceTransactions(ctx, sessionID, ts)
	} else {
		err = s.store.AppendTransactions(ctx, sessionID, ts)
	}
	if err != nil {
		return 0, fmt.Errorf("store imported rows: %w", err)
	}

	for _, t := range ts {
		s.ensureCategory(ctx, sessionID, t.Kind, t.Category)
	}

	s.publish(ctx, sessionID, amqp.OpCSVImported, len(ts))
	return len(ts), nil
}

// ExportCSV writes the session's ledger to w in the import format,
// newest first.
func (s *LedgerService) ExportCSV(ctx context.Context, sessionID string, w io.Writer) error {
	ts, err := s.store.Transactions(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	return csvio.Serialize(w, ts)
}

// DropSession releases all state held for a session.
func (s *LedgerService) DropSession(ctx context.Context, sessionID string) error {
	return s.store.DropSession(ctx, sessionID)
}

// ensureCategory registers a category if the session does not have it
// yet. Already-registered names are fine; real failures are logged and
// swallowed since the transaction write already succeeded.
func (s *LedgerService) ensureCategory(ctx context.Context, sessionID string, kind core.Kind, name string) {
	_, err := s.store.AddCategory(ctx, sessionID, kind, name)
	if err != nil && !errors.Is(err, core.ErrDuplicateCategory) {
		slog.WarnContext(ctx, "Failed to register category",
			"category", name, "kind", string(kind), "error", err)
	}
}

func (s *LedgerService) publish(ctx context.Context, sessionID, op string, count int) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewLedgerEventMessage(sessionID, op, count)
	if err := s.publisher.PublishLedgerEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"op", op, "error", err)
		// Don't fail the request - the store write already succeeded
	}
}
