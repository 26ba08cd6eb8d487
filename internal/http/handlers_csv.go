package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"tally/internal/csvio"
)

// maxImportBytes caps uploaded CSV size.
const maxImportBytes = 5 << 20

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		BadRequestError("Invalid upload").Write(w)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		BadRequestError("Missing CSV file").Write(w)
		return
	}
	defer file.Close()

	mode := sanitizeInput(r.FormValue("mode"))
	if mode == "" {
		mode = "replace"
	}
	if mode != "replace" && mode != "append" {
		BadRequestError("Mode must be replace or append").Write(w)
		return
	}

	n, err := s.ledger.ImportCSV(r.Context(), sessionID(r), file, mode == "replace")
	if err != nil {
		slog.WarnContext(r.Context(), "CSV import rejected",
			"error", err,
			"filename", header.Filename,
			"import_mode", mode)
		switch {
		case errors.Is(err, csvio.ErrMissingColumns):
			UnprocessableEntityError("CSV is missing required columns (date, category, description, amount, type)").Write(w)
		case errors.Is(err, csvio.ErrEmptyInput):
			UnprocessableEntityError("CSV file is empty").Write(w)
		default:
			UnprocessableEntityError("Import rejected: " + err.Error()).Write(w)
		}
		return
	}

	slog.InfoContext(r.Context(), "CSV imported",
		"rows", n,
		"filename", header.Filename,
		"import_mode", mode,
		"component", "csv_handler",
		"operation", "import")

	NewHTMXResponse().
		TriggerLedgerChanged().
		TriggerCategoriesChanged().
		TriggerSuccessNotification(fmt.Sprintf("Imported %d rows", n)).
		Write(w)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="tally-export.csv"`)

	if err := s.ledger.ExportCSV(r.Context(), sessionID(r), w); err != nil {
		// Headers are gone at this point; log and give up on the body.
		slog.ErrorContext(r.Context(), "CSV export failed", "error", err)
	}
}
