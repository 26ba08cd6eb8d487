package http

import (
	"log/slog"
	"net/http"
)

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	t, resp := transactionFromForm(r)
	if resp != nil {
		resp.Write(w)
		return
	}

	if err := s.ledger.AddTransaction(r.Context(), sessionID(r), t); err != nil {
		errorResponseFor(err).Write(w)
		return
	}

	slog.InfoContext(r.Context(), "Transaction added",
		"category", t.Category,
		"kind", string(t.Kind),
		"amount_cents", t.Amount.Cents,
		"component", "transaction_handler",
		"operation", "add")

	NewHTMXResponse().
		TriggerLedgerChanged().
		TriggerFormReset().
		TriggerSuccessNotification("Transaction recorded").
		Write(w)
}

func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	pos, err := parsePosition(r.Form.Get("position"))
	if err != nil {
		BadRequestError("Invalid position").Write(w)
		return
	}

	t, resp := transactionFromForm(r)
	if resp != nil {
		resp.Write(w)
		return
	}

	if err := s.ledger.EditTransaction(r.Context(), sessionID(r), pos, t); err != nil {
		errorResponseFor(err).Write(w)
		return
	}

	slog.InfoContext(r.Context(), "Transaction edited",
		"position", pos,
		"category", t.Category,
		"component", "transaction_handler",
		"operation", "edit")

	NewHTMXResponse().
		TriggerLedgerChanged().
		TriggerSuccessNotification("Transaction updated").
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}

	// Position comes from the form for POST and the query for DELETE.
	posStr := r.URL.Query().Get("position")
	if r.Method == http.MethodPost {
		if resp := ParseFormOrFail(r); resp != nil {
			resp.Write(w)
			return
		}
		if v := r.Form.Get("position"); v != "" {
			posStr = v
		}
	}
	pos, err := parsePosition(posStr)
	if err != nil {
		BadRequestError("Invalid position").Write(w)
		return
	}

	if err := s.ledger.DeleteTransaction(r.Context(), sessionID(r), pos); err != nil {
		errorResponseFor(err).Write(w)
		return
	}

	slog.InfoContext(r.Context(), "Transaction deleted",
		"position", pos,
		"component", "transaction_handler",
		"operation", "delete")

	NewHTMXResponse().
		TriggerLedgerChanged().
		TriggerSuccessNotification("Transaction deleted").
		Write(w)
}

// handleLedgerPartial renders the ledger table rows, newest first.
func (s *Server) handleLedgerPartial(w http.ResponseWriter, r *http.Request) {
	ts, err := s.ledger.Transactions(r.Context(), sessionID(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "Transaction list error", "error", err)
		InternalServerError("Could not load ledger").Write(w)
		return
	}
	s.render(w, r, "ledger.html", struct{ Rows []txRow }{rowsFromTransactions(ts)})
}

// handleStatsPartial renders totals and the expense breakdown.
func (s *Server) handleStatsPartial(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ledger.Statistics(r.Context(), sessionID(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "Statistics error", "error", err)
		InternalServerError("Could not compute statistics").Write(w)
		return
	}
	s.render(w, r, "stats.html", statsFromSnapshot(snap))
}
