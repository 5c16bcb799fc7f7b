package amqp

import (
	"encoding/json"
	"time"
)

// ExpenseCreatedMessage announces a newly stored expense. It carries
// only identifiers; the worker reads the full row from the database so
// the queue never holds stale payloads.
type ExpenseCreatedMessage struct {
	ID             int64     `json:"id"`
	IdempotencyKey string    `json:"idempotencyKey"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewExpenseCreatedMessage(id int64, idempotencyKey string) *ExpenseCreatedMessage {
	return &ExpenseCreatedMessage{
		ID:             id,
		IdempotencyKey: idempotencyKey,
		Timestamp:      time.Now(),
	}
}

func (m *ExpenseCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseCreatedMessageFromJSON(data []byte) (*ExpenseCreatedMessage, error) {
	var msg ExpenseCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
