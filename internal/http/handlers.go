package http

import (
	"log/slog"
	"net/http"
	"sort"

	"tally/internal/core"
)

// txRow is the template view of one ledger row.
type txRow struct {
	Position    int
	Date        string
	Category    string
	Description string
	Amount      string
	Kind        string
}

func rowsFromTransactions(ts []core.Transaction) []txRow {
	rows := make([]txRow, 0, len(ts))
	for i, t := range ts {
		rows = append(rows, txRow{
			Position:    i,
			Date:        t.Date.Format("2006-01-02"),
			Category:    t.Category,
			Description: t.Description,
			Amount:      core.FormatCents(t.Amount.Cents),
			Kind:        string(t.Kind),
		})
	}
	return rows
}

// categoryRow is one line of the expense breakdown.
type categoryRow struct {
	Name   string
	Amount string
}

// statsView is the template view of a statistics snapshot.
type statsView struct {
	TotalIncome     string
	TotalExpense    string
	Balance         string
	BalanceNegative bool
	Expenses        []categoryRow
}

func statsFromSnapshot(snap core.Snapshot) statsView {
	view := statsView{
		TotalIncome:     core.FormatCents(snap.TotalIncome.Cents),
		TotalExpense:    core.FormatCents(snap.TotalExpense.Cents),
		Balance:         core.FormatCents(snap.Balance.Cents),
		BalanceNegative: snap.Balance.Cents < 0,
	}
	type entry struct {
		name  string
		cents int64
	}
	entries := make([]entry, 0, len(snap.ExpenseByCategory))
	for name, amount := range snap.ExpenseByCategory {
		entries = append(entries, entry{name: name, cents: amount.Cents})
	}
	// Biggest spend first, name as tiebreaker.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].cents != entries[j].cents {
			return entries[i].cents > entries[j].cents
		}
		return entries[i].name < entries[j].name
	})
	for _, e := range entries {
		view.Expenses = append(view.Expenses, categoryRow{
			Name:   e.name,
			Amount: core.FormatCents(e.cents),
		})
	}
	return view
}

// render executes a template, falling back to a 500 when templates are
// missing or broken.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "error", err, "template", name)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	sid := sessionID(r)

	expenseCats, err := s.ledger.Categories(r.Context(), sid, core.Expense)
	if err != nil {
		slog.ErrorContext(r.Context(), "Category list error", "error", err)
	}
	incomeCats, err := s.ledger.Categories(r.Context(), sid, core.Income)
	if err != nil {
		slog.ErrorContext(r.Context(), "Category list error", "error", err)
	}
	ts, err := s.ledger.Transactions(r.Context(), sid)
	if err != nil {
		slog.ErrorContext(r.Context(), "Transaction list error", "error", err)
	}
	snap, err := s.ledger.Statistics(r.Context(), sid)
	if err != nil {
		slog.ErrorContext(r.Context(), "Statistics error", "error", err)
	}

	data := struct {
		Today             string
		ExpenseCategories []string
		IncomeCategories  []string
		Rows              []txRow
		Stats             statsView
	}{
		Today:             core.Today().Format("2006-01-02"),
		ExpenseCategories: expenseCats,
		IncomeCategories:  incomeCats,
		Rows:              rowsFromTransactions(ts),
		Stats:             statsFromSnapshot(snap),
	}

	s.render(w, r, "index.html", data)
}

// handleCategoryOptions renders the <option> list for a kind, so the
// form can swap category choices when the kind selector changes.
func (s *Server) handleCategoryOptions(w http.ResponseWriter, r *http.Request) {
	kind := core.ParseKind(r.URL.Query().Get("kind"))
	cats, err := s.ledger.Categories(r.Context(), sessionID(r), kind)
	if err != nil {
		slog.ErrorContext(r.Context(), "Category list error", "error", err)
		InternalServerError("Could not load categories").Write(w)
		return
	}
	s.render(w, r, "category_options.html", struct{ Categories []string }{cats})
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	kind := core.ParseKind(sanitizeInput(r.Form.Get("kind")))
	name := sanitizeInput(r.Form.Get("name"))

	added, err := s.ledger.AddCategory(r.Context(), sessionID(r), kind, name)
	if err != nil {
		errorResponseFor(err).Write(w)
		return
	}

	slog.InfoContext(r.Context(), "Category added",
		"category", added,
		"kind", string(kind),
		"component", "category_handler")

	NewHTMXResponse().
		TriggerCategoriesChanged().
		TriggerFormReset().
		TriggerSuccessNotification("Category added: " + added).
		Write(w)
}
