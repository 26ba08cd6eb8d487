package store

import (
	"context"

	"tally/internal/core"
)

// Ports for session-scoped ledger state. Every operation is keyed by an
// opaque session ID; sessions never observe each other's state. Positions
// follow the ledger's newest-first contiguous indexing.
type (
	LedgerReader interface {
		// Transactions returns the full snapshot in display order.
		Transactions(ctx context.Context, sessionID string) ([]core.Transaction, error)
	}

	LedgerWriter interface {
		// AddTransaction inserts at the front (most-recent-first).
		AddTransaction(ctx context.Context, sessionID string, t core.Transaction) error
		// EditTransaction replaces the record at pos in place.
		EditTransaction(ctx context.Context, sessionID string, pos int, t core.Transaction) error
		// DeleteTransaction removes exactly the record at pos.
		DeleteTransaction(ctx context.Context, sessionID string, pos int) error
		// ReplaceTransactions installs the rows wholesale (import Replace mode).
		ReplaceTransactions(ctx context.Context, sessionID string, ts []core.Transaction) error
		// AppendTransactions concatenates rows after the existing ones
		// (import Append mode).
		AppendTransactions(ctx context.Context, sessionID string, ts []core.Transaction) error
	}

	CategoryReader interface {
		// Categories lists the valid names for a kind, in insertion order.
		Categories(ctx context.Context, sessionID string, k core.Kind) ([]string, error)
	}

	CategoryWriter interface {
		// AddCategory trims and appends a name, returning the stored form.
		// Fails with core.ErrEmptyName or core.ErrDuplicateCategory.
		AddCategory(ctx context.Context, sessionID string, k core.Kind, name string) (string, error)
	}

	SessionDropper interface {
		// DropSession discards all state held for the session.
		DropSession(ctx context.Context, sessionID string) error
	}
)

// Store is the unified backend interface the service layer works against.
type Store interface {
	LedgerReader
	LedgerWriter
	CategoryReader
	CategoryWriter
	SessionDropper
}
