package anchor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Memory is an in-process ledger for tests and local development. It
// honors the append-only contract: a fingerprint, once submitted, is
// there forever.
type Memory struct {
	mu   sync.RWMutex
	refs map[string]string // fingerprint -> anchor reference
}

func NewMemory() *Memory {
	return &Memory{refs: make(map[string]string)}
}

// Submit records the fingerprint and returns a deterministic reference
// so retried submissions of the same fingerprint return the same ref.
func (m *Memory) Submit(_ context.Context, fingerprint string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ref, ok := m.refs[fingerprint]; ok {
		return ref, nil
	}
	ref := referenceFor(fingerprint)
	m.refs[fingerprint] = ref
	return ref, nil
}

func (m *Memory) Exists(_ context.Context, fingerprint string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.refs[fingerprint]
	return ok, nil
}

// referenceFor derives a transaction-style reference from the
// fingerprint. Deterministic on purpose: anchoring is idempotent.
func referenceFor(fingerprint string) string {
	sum := sha256.Sum256([]byte("certledger.anchor:" + fingerprint))
	return "0x" + hex.EncodeToString(sum[:])
}
