package client

import (
	"sync"

	"github.com/google/uuid"
)

// KeyManager hands out one idempotency key per distinct payload. As
// long as the payload does not change, retries reuse the same key, so
// the server can collapse them into a single expense. A new payload
// rotates the key.
type KeyManager struct {
	mu          sync.Mutex
	lastPayload string
	lastKey     string
}

func NewKeyManager() *KeyManager {
	return &KeyManager{}
}

// KeyFor returns the key to send with payload. payload must be a
// canonical encoding: two calls with the same content must pass the
// same bytes.
func (m *KeyManager) KeyFor(payload string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if payload == m.lastPayload && m.lastKey != "" {
		return m.lastKey
	}
	m.lastPayload = payload
	m.lastKey = uuid.NewString()
	return m.lastKey
}

// Clear forgets the current key. Call it after a confirmed success so
// an identical future submission counts as a new expense.
func (m *KeyManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPayload = ""
	m.lastKey = ""
}
