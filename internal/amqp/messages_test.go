package amqp

import (
	"testing"
	"time"
)

func TestNewLedgerEventMessage(t *testing.T) {
	before := time.Now()
	msg := NewLedgerEventMessage("sid-1", OpCSVImported, 42)

	if msg.SessionID != "sid-1" || msg.Op != OpCSVImported || msg.Count != 42 {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Timestamp.Before(before) {
		t.Errorf("timestamp not set: %v", msg.Timestamp)
	}
}

func TestLedgerEventMessageJSONRoundTrip(t *testing.T) {
	msg := NewLedgerEventMessage("sid-2", OpTransactionDeleted, 1)

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	got, err := LedgerEventMessageFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if got.SessionID != msg.SessionID || got.Op != msg.Op || got.Count != msg.Count {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, msg)
	}
}

func TestLedgerEventMessageFromJSONInvalid(t *testing.T) {
	if _, err := LedgerEventMessageFromJSON([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
