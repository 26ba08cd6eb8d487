// Package sqlite backs session state with a SQLite database. The database
// is ephemeral by design: when no path is configured a temp file is used
// and removed on Close, so nothing outlives the process even though the
// engine itself could persist.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tally/internal/core"
	"tally/internal/store"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db           *sql.DB
	path         string
	ephemeral    bool
	expenseSeeds []string
	incomeSeeds  []string
}

// New opens (or creates) the database at dbPath and runs migrations. An
// empty dbPath creates an ephemeral temp database that Close removes.
func New(dbPath string, expenseSeeds, incomeSeeds []string) (*Repository, error) {
	ephemeral := dbPath == ""
	if ephemeral {
		f, err := os.CreateTemp("", "tally-*.db")
		if err != nil {
			return nil, fmt.Errorf("create temp db: %w", err)
		}
		dbPath = f.Name()
		f.Close()
	} else {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		db:           db,
		path:         dbPath,
		ephemeral:    ephemeral,
		expenseSeeds: expenseSeeds,
		incomeSeeds:  incomeSeeds,
	}, nil
}

func (r *Repository) Close() error {
	var err error
	if r.db != nil {
		err = r.db.Close()
	}
	if r.ephemeral && r.path != "" {
		if rmErr := os.Remove(r.path); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	return err
}

// ensureSession registers the session and seeds its category sets on first
// use. Must run inside tx so a concurrent first request cannot double-seed.
func (r *Repository) ensureSession(ctx context.Context, tx *sql.Tx, sid string) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id) VALUES (?) ON CONFLICT (id) DO NOTHING`, sid)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil // already seeded
	}
	seed := func(k core.Kind, names []string) error {
		for i, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO categories (session_id, kind, name, position)
				 VALUES (?, ?, ?, ?) ON CONFLICT (session_id, kind, name) DO NOTHING`,
				sid, k.String(), name, i); err != nil {
				return fmt.Errorf("seed category %q: %w", name, err)
			}
		}
		return nil
	}
	if err := seed(core.Expense, r.expenseSeeds); err != nil {
		return err
	}
	return seed(core.Income, r.incomeSeeds)
}

func (r *Repository) withTx(ctx context.Context, sid string, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := r.ensureSession(ctx, tx, sid); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repository) Transactions(ctx context.Context, sid string) ([]core.Transaction, error) {
	var out []core.Transaction
	err := r.withTx(ctx, sid, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT tx_date, category, description, amount_cents, kind
			 FROM transactions WHERE session_id = ?
			 ORDER BY seq DESC, id DESC`, sid)
		if err != nil {
			return fmt.Errorf("query transactions: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				t       core.Transaction
				dateStr string
				kindStr string
			)
			if err := rows.Scan(&dateStr, &t.Category, &t.Description, &t.Amount.Cents, &kindStr); err != nil {
				return fmt.Errorf("scan transaction: %w", err)
			}
			d, err := core.ParseDate(dateStr)
			if err != nil {
				return fmt.Errorf("stored date %q: %w", dateStr, err)
			}
			t.Date = d
			t.Kind = core.Kind(kindStr)
			out = append(out, t)
		}
		return rows.Err()
	})
	return out, err
}

// rowIDAt resolves a contiguous newest-first position to a row ID inside tx.
func rowIDAt(ctx context.Context, tx *sql.Tx, sid string, pos int) (int64, error) {
	if pos < 0 {
		return 0, core.ErrIndexOutOfRange
	}
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM transactions WHERE session_id = ?
		 ORDER BY seq DESC, id DESC LIMIT 1 OFFSET ?`, sid, pos).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrIndexOutOfRange
	}
	if err != nil {
		return 0, fmt.Errorf("resolve position %d: %w", pos, err)
	}
	return id, nil
}

func (r *Repository) AddTransaction(ctx context.Context, sid string, t core.Transaction) error {
	return r.withTx(ctx, sid, func(tx *sql.Tx) error {
		var maxSeq sql.NullInt64
		if err := tx.QueryRowContext(ctx,
			`SELECT MAX(seq) FROM transactions WHERE session_id = ?`, sid).Scan(&maxSeq); err != nil {
			return fmt.Errorf("max seq: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (session_id, seq, tx_date, category, description, amount_cents, kind)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sid, maxSeq.Int64+1, t.Date.String(), t.Category, t.Description, t.Amount.Cents, t.Kind.String())
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return nil
	})
}

func (r *Repository) EditTransaction(ctx context.Context, sid string, pos int, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return r.withTx(ctx, sid, func(tx *sql.Tx) error {
		id, err := rowIDAt(ctx, tx, sid, pos)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE transactions
			 SET tx_date = ?, category = ?, description = ?, amount_cents = ?, kind = ?
			 WHERE id = ?`,
			t.Date.String(), t.Category, t.Description, t.Amount.Cents, t.Kind.String(), id)
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		return nil
	})
}

func (r *Repository) DeleteTransaction(ctx context.Context, sid string, pos int) error {
	return r.withTx(ctx, sid, func(tx *sql.Tx) error {
		id, err := rowIDAt(ctx, tx, sid, pos)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		return nil
	})
}

func (r *Repository) ReplaceTransactions(ctx context.Context, sid string, ts []core.Transaction) error {
	return r.withTx(ctx, sid, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM transactions WHERE session_id = ?`, sid); err != nil {
			return fmt.Errorf("clear transactions: %w", err)
		}
		// First row gets the highest seq so slice order stays display order.
		for i, t := range ts {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO transactions (session_id, seq, tx_date, category, description, amount_cents, kind)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				sid, len(ts)-i, t.Date.String(), t.Category, t.Description, t.Amount.Cents, t.Kind.String()); err != nil {
				return fmt.Errorf("insert transaction: %w", err)
			}
		}
		return nil
	})
}

func (r *Repository) AppendTransactions(ctx context.Context, sid string, ts []core.Transaction) error {
	return r.withTx(ctx, sid, func(tx *sql.Tx) error {
		var minSeq sql.NullInt64
		if err := tx.QueryRowContext(ctx,
			`SELECT MIN(seq) FROM transactions WHERE session_id = ?`, sid).Scan(&minSeq); err != nil {
			return fmt.Errorf("min seq: %w", err)
		}
		seq := minSeq.Int64 - 1
		if !minSeq.Valid {
			seq = int64(len(ts))
		}
		for _, t := range ts {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO transactions (session_id, seq, tx_date, category, description, amount_cents, kind)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				sid, seq, t.Date.String(), t.Category, t.Description, t.Amount.Cents, t.Kind.String()); err != nil {
				return fmt.Errorf("insert transaction: %w", err)
			}
			seq--
		}
		return nil
	})
}

func (r *Repository) Categories(ctx context.Context, sid string, k core.Kind) ([]string, error) {
	var out []string
	err := r.withTx(ctx, sid, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT name FROM categories WHERE session_id = ? AND kind = ?
			 ORDER BY position, id`, sid, k.String())
		if err != nil {
			return fmt.Errorf("query categories: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return fmt.Errorf("scan category: %w", err)
			}
			out = append(out, name)
		}
		return rows.Err()
	})
	return out, err
}

func (r *Repository) AddCategory(ctx context.Context, sid string, k core.Kind, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", core.ErrEmptyName
	}
	err := r.withTx(ctx, sid, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM categories WHERE session_id = ? AND kind = ? AND name = ?`,
			sid, k.String(), name).Scan(&exists)
		if err == nil {
			return core.ErrDuplicateCategory
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check category: %w", err)
		}
		var maxPos sql.NullInt64
		if err := tx.QueryRowContext(ctx,
			`SELECT MAX(position) FROM categories WHERE session_id = ? AND kind = ?`,
			sid, k.String()).Scan(&maxPos); err != nil {
			return fmt.Errorf("max position: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (session_id, kind, name, position) VALUES (?, ?, ?, ?)`,
			sid, k.String(), name, maxPos.Int64+1); err != nil {
			return fmt.Errorf("insert category: %w", err)
		}
		return nil
	})
	if err != nil {
		return name, err
	}
	return name, nil
}

func (r *Repository) DropSession(ctx context.Context, sid string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	// Children are deleted explicitly: the foreign_keys pragma is set per
	// connection and the pool may hand out one that missed it.
	for _, q := range []string{
		`DELETE FROM transactions WHERE session_id = ?`,
		`DELETE FROM categories WHERE session_id = ?`,
		`DELETE FROM sessions WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, sid); err != nil {
			return fmt.Errorf("drop session: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drop session: %w", err)
	}
	slog.DebugContext(ctx, "Session state dropped", "session_id", sid)
	return nil
}

var _ store.Store = (*Repository)(nil)
