package storage

import (
	"sync"
	"time"
)

// MapStorage is a thread-safe key-value storage with lazy expiration
type MapStorage struct {
	data    map[string]string // key - value
	expires map[string]int64  // key - expires time nanoseconds
	mu      sync.RWMutex
}

// NewMapStorage creates a new instance of MapStorage
func NewMapStorage() *MapStorage {
	return &MapStorage{
		data:    make(map[string]string),
		expires: make(map[string]int64),
	}
}

// Get returns the value and true if the key is found. Otherwise, "", false
func (m *MapStorage) Get(key string) (string, bool) {
	m.mu.RLock()
	exp, hasExp := m.expires[key]
	val, ok := m.data[key]
	m.mu.RUnlock()

	if !ok {
		return "", false
	}

	if hasExp && time.Now().UnixNano() > exp {
		if m.evictExpired(key) {
			return "", false
		}
		return m.Get(key)
	}

	return val, true
}

// evictExpired deletes key if it is still expired once the write lock is held.
// It returns false when the key was rewritten in the meantime
func (m *MapStorage) evictExpired(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, hasExp := m.expires[key]
	if _, ok := m.data[key]; !ok {
		return true
	}
	if hasExp && time.Now().UnixNano() > exp {
		delete(m.data, key)
		delete(m.expires, key)
		return true
	}
	return false
}

// Set writes the value based on the options. Returns true if recording has been performed
func (m *MapStorage) Set(key, value string, options SetOptions) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.data[key]
	if exists {
		exp, hasExp := m.expires[key]

		// key exists but is expired, clean it up now so logic below treats it as new
		if hasExp && time.Now().UnixNano() > exp {
			delete(m.data, key)
			delete(m.expires, key)
			exists = false
		}
	}

	if options.NX && exists {
		return false
	}

	if options.XX && !exists {
		return false
	}

	m.data[key] = value

	switch {
	case options.KeepTTL:
		// existing TTL is retained, a fresh key has none to keep
	case options.TTL > 0:
		m.expires[key] = time.Now().Add(options.TTL).UnixNano()
	default:
		delete(m.expires, key)
	}

	return true
}

// Delete deletes the key. Returns true if the key existed and was deleted
func (m *MapStorage) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[key]; !ok {
		return false
	}

	exp, hasExp := m.expires[key]
	delete(m.data, key)
	delete(m.expires, key)

	// an expired key was already gone for clients
	return !hasExp || time.Now().UnixNano() <= exp
}

// Exists reports whether the key is present and not expired
func (m *MapStorage) Exists(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Expiry returns the remaining lifetime and status as ExpiryStatus
func (m *MapStorage) Expiry(key string) (time.Duration, ExpiryStatus) {
	m.mu.RLock()
	_, ok := m.data[key]
	exp, hasExp := m.expires[key]
	m.mu.RUnlock()

	// key does not exist
	if !ok {
		return 0, ExpNotFound
	}

	// key without TTL
	if !hasExp {
		return 0, ExpNoTimeout
	}

	now := time.Now().UnixNano()
	if now > exp {
		if m.evictExpired(key) {
			return 0, ExpNotFound
		}
		return m.Expiry(key)
	}

	return time.Duration(exp - now), ExpActive
}

// DeleteExpired randomly selects a limit of keys and delete if his TTL has expired
func (m *MapStorage) DeleteExpired(limit int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.expires) == 0 || limit <= 0 {
		return 0.0
	}

	checked := 0
	expired := 0
	now := time.Now().UnixNano()

	// go map iteration order is random
	for key, expTime := range m.expires {
		checked++
		if now > expTime {
			delete(m.data, key)
			delete(m.expires, key)
			expired++
		}

		if checked >= limit {
			break
		}
	}

	return float64(expired) / float64(checked)
}
