package http

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tally/internal/core"
)

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// parsePosition parses a ledger position (0-based, newest first).
func parsePosition(s string) (int, error) {
	pos, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || pos < 0 {
		return 0, fmt.Errorf("invalid position %q", s)
	}
	return pos, nil
}

// errorResponseFor maps domain errors to the right HTTP response.
func errorResponseFor(err error) *HTMXResponseBuilder {
	switch {
	case errors.Is(err, core.ErrIndexOutOfRange):
		return NotFoundError("No transaction at that position")
	case errors.Is(err, core.ErrDuplicateCategory):
		return ConflictError("Category already exists")
	case errors.Is(err, core.ErrEmptyName):
		return UnprocessableEntityError("Category name cannot be empty")
	case errors.Is(err, core.ErrInvalidRow):
		return UnprocessableEntityError("Invalid transaction: " + err.Error())
	default:
		return InternalServerError("Something went wrong")
	}
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
