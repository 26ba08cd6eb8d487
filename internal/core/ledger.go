package core

// Ledger is the ordered collection of transactions for one session.
//
// Ordering policy: Add prepends, so index 0 is always the most recently
// added record and the display order is newest-first. Edit and Delete take
// contiguous 0..n-1 positions into that view; positions are interpreted
// against the sequence as it is at call time, never against stale or sparse
// indices.
type Ledger struct {
	items []Transaction
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Add inserts the transaction at the front (most-recent-first). The caller
// is expected to have normalized the amount sign already.
func (l *Ledger) Add(t Transaction) {
	l.items = append([]Transaction{t}, l.items...)
}

// Append concatenates transactions after the existing rows, preserving
// their relative order. Used by the CSV append merge mode.
func (l *Ledger) Append(ts ...Transaction) {
	l.items = append(l.items, ts...)
}

// Replace discards the current contents and installs the given rows.
func (l *Ledger) Replace(ts []Transaction) {
	l.items = append([]Transaction(nil), ts...)
}

// Edit validates the updated row and replaces the record at pos in place.
func (l *Ledger) Edit(pos int, t Transaction) error {
	if pos < 0 || pos >= len(l.items) {
		return ErrIndexOutOfRange
	}
	if err := t.Validate(); err != nil {
		return err
	}
	l.items[pos] = t
	return nil
}

// Delete removes exactly the record at pos, keeping the remaining rows in
// their relative order.
func (l *Ledger) Delete(pos int) error {
	if pos < 0 || pos >= len(l.items) {
		return ErrIndexOutOfRange
	}
	l.items = append(l.items[:pos], l.items[pos+1:]...)
	return nil
}

// All returns a snapshot copy of the ledger in display order.
func (l *Ledger) All() []Transaction {
	out := make([]Transaction, len(l.items))
	copy(out, l.items)
	return out
}

func (l *Ledger) Len() int {
	return len(l.items)
}
