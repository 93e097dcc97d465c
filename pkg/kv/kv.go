// Package kv provides the device-local key-value storage used by the local
// adapter, the settings fallback and the migration flag.
//
// Values are opaque strings (JSON in practice). There are no transactions:
// each Set replaces one key entirely.
package kv

import (
	"errors"
	"regexp"
	"sync"
)

// ErrInvalidKey is returned for keys that cannot be stored.
var ErrInvalidKey = errors.New("invalid key")

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Store is a string-keyed get/set storage.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// ChangeOp describes what happened to a key.
type ChangeOp string

const (
	OpSet    ChangeOp = "set"
	OpDelete ChangeOp = "delete"
)

// Change is emitted by watchable stores when a key changes outside this
// process.
type Change struct {
	Key string
	Op  ChangeOp
}

// ValidKey reports whether key can be stored by every Store implementation.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// MemoryStore is an in-process Store. It is safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	if !ValidKey(key) {
		return ErrInvalidKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Keys returns the stored keys (tests and introspection).
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}
