package core

// CategoryAmount is an amount aggregated under a category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// Snapshot holds the derived figures for a ledger. It is recomputed from
// the full transaction list on every query; nothing here is cached.
type Snapshot struct {
	TotalIncome  Money
	TotalExpense Money // reported as a non-negative magnitude
	Balance      Money
	// ExpenseByCategory maps category name to the absolute expense sum.
	// Only categories with at least one expense transaction appear.
	ExpenseByCategory map[string]Money
}

// Compute derives the statistics snapshot from a ledger snapshot. An empty
// input yields all-zero totals and an empty category map.
func Compute(ts []Transaction) Snapshot {
	s := Snapshot{ExpenseByCategory: make(map[string]Money)}
	for _, t := range ts {
		switch t.Kind {
		case Income:
			s.TotalIncome.Cents += t.Amount.Cents
		case Expense:
			abs := t.Amount.Abs().Cents
			s.TotalExpense.Cents += abs
			cur := s.ExpenseByCategory[t.Category]
			cur.Cents += abs
			s.ExpenseByCategory[t.Category] = cur
		}
	}
	s.Balance.Cents = s.TotalIncome.Cents - s.TotalExpense.Cents
	return s
}
