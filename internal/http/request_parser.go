// This file implements utilities for parsing and validating HTTP request
// data shared across handlers: method guards, form parsing, and the
// transaction form used by both the create and edit endpoints.

package http

import (
	"net/http"
	"strings"

	"tally/internal/core"
)

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// RequireDeleteOrPOST is a convenience function for DELETE/POST handlers.
func RequireDeleteOrPOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodDelete, http.MethodPost)
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}

// transactionFromForm builds a transaction from the standard form fields
// (date, category, description, amount, kind). The date defaults to
// today; the amount keeps the user's sign and is reconciled with the
// kind later by Normalize.
func transactionFromForm(r *http.Request) (core.Transaction, *HTMXResponseBuilder) {
	kind := core.ParseKind(sanitizeInput(r.Form.Get("kind")))

	date := core.Today()
	if v := strings.TrimSpace(r.Form.Get("date")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.Transaction{}, UnprocessableEntityError("Invalid date")
		}
		date = d
	}

	amountStr := strings.TrimSpace(r.Form.Get("amount"))
	cents, err := core.ParseAmountToCents(amountStr)
	if err != nil {
		return core.Transaction{}, UnprocessableEntityError("Invalid amount")
	}

	desc := sanitizeInput(r.Form.Get("description"))
	if desc == "" {
		desc = "-"
	}

	t := core.Transaction{
		Date:        date,
		Category:    sanitizeInput(r.Form.Get("category")),
		Description: desc,
		Amount:      core.Money{Cents: cents},
		Kind:        kind,
	}
	return t, nil
}
