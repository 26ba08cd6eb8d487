package amqp

import (
	"encoding/json"
	"time"
)

// Ledger mutation operations carried in event messages.
const (
	OpTransactionAdded   = "transaction:added"
	OpTransactionEdited  = "transaction:edited"
	OpTransactionDeleted = "transaction:deleted"
	OpCategoryAdded      = "category:added"
	OpCSVImported        = "csv:imported"
)

// LedgerEventMessage is a lightweight audit record for a session mutation.
// It carries no transaction payload, only what happened and how many rows
// were involved; consumers that need more must not exist by design, since
// session state never leaves the process.
type LedgerEventMessage struct {
	SessionID string    `json:"session_id"`
	Op        string    `json:"op"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEventMessage creates an event for op touching count rows.
func NewLedgerEventMessage(sessionID, op string, count int) *LedgerEventMessage {
	return &LedgerEventMessage{
		SessionID: sessionID,
		Op:        op,
		Count:     count,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes.
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
