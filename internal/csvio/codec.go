// Package csvio parses and serializes ledgers in the five-column CSV
// interchange format: Date, Category, Description, Amount, Type.
//
// Import is deliberately tolerant where the source file's conventions
// differ from the ledger's: column names match case-insensitively, the type
// column accepts anything ("income", "inc", "i" map to Income, the rest to
// Expense), an unparsable amount becomes 0, and the amount sign is
// reconciled against the type so every decoded transaction satisfies the
// sign invariant no matter which convention the file used. A row that fails
// harder than that (bad date, blank category) rejects the whole import:
// decoding is all-or-nothing so a half-read file can never be merged.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"tally/internal/core"
)

var (
	ErrMissingColumns  = errors.New("missing required columns")
	ErrUnparsableDate  = errors.New("unparsable date")
	ErrEmptyInput      = errors.New("empty csv input")
)

// Header is the fixed export column order.
var Header = []string{"Date", "Category", "Description", "Amount", "Type"}

// columns maps resolved header positions for the five logical columns.
type columns struct {
	date, category, description, amount, kind int
}

func resolveColumns(header []string) (columns, error) {
	c := columns{date: -1, category: -1, description: -1, amount: -1, kind: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))) {
		case "date":
			c.date = i
		case "category":
			c.category = i
		case "description":
			c.description = i
		case "amount":
			c.amount = i
		case "type":
			c.kind = i
		}
	}
	if c.date < 0 || c.category < 0 || c.description < 0 || c.amount < 0 || c.kind < 0 {
		return c, ErrMissingColumns
	}
	return c, nil
}

// Parse decodes the whole input into normalized transactions. It never
// mutates a ledger or registry; the caller decides the merge policy.
func Parse(r io.Reader) ([]core.Transaction, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var out []core.Transaction
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		t, err := decodeRow(record, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func decodeRow(record []string, cols columns) (core.Transaction, error) {
	date, err := core.ParseDate(record[cols.date])
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %q", ErrUnparsableDate, record[cols.date])
	}

	category := strings.TrimSpace(record[cols.category])
	if category == "" {
		return core.Transaction{}, fmt.Errorf("%w: blank category", core.ErrInvalidRow)
	}

	description := strings.TrimSpace(record[cols.description])
	if description == "" {
		// Manual entry stores "-" for an empty description; imports match.
		description = "-"
	}

	// Unparsable amounts default to 0 rather than failing the row.
	cents, err := core.ParseAmountToCents(record[cols.amount])
	if err != nil {
		cents = 0
	}

	t := core.Transaction{
		Date:        date,
		Category:    category,
		Description: description,
		Amount:      core.Money{Cents: cents},
		Kind:        core.ParseKind(record[cols.kind]),
	}
	// Sign reconciliation: the file may carry positive expenses or negative
	// incomes; the stored sign always follows the kind.
	t.Normalize()
	return t, nil
}

// Serialize writes the transactions as CSV in the fixed column order, ISO
// dates, amounts keeping their stored sign.
func Serialize(w io.Writer, ts []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range ts {
		record := []string{
			t.Date.String(),
			t.Category,
			t.Description,
			t.Amount.String(),
			t.Kind.String(),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
