package amqp

import "testing"

func TestExpenseCreatedMessageRoundTrip(t *testing.T) {
	msg := NewExpenseCreatedMessage(42, "k-42")
	if msg.Timestamp.IsZero() {
		t.Fatal("NewExpenseCreatedMessage left Timestamp zero")
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	got, err := ExpenseCreatedMessageFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if got.ID != 42 || got.IdempotencyKey != "k-42" {
		t.Fatalf("round trip = %+v", got)
	}
	if !got.Timestamp.Equal(msg.Timestamp) {
		t.Fatalf("Timestamp = %v, want %v", got.Timestamp, msg.Timestamp)
	}
}

func TestExpenseCreatedMessageFromJSONInvalid(t *testing.T) {
	if _, err := ExpenseCreatedMessageFromJSON([]byte("{broken")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
