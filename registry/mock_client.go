package registry

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ruteri/anyone-dns-service/cryptoutils"
)

// MockRegistryClient provides a simple in-memory implementation of the
// RegistryReader interface for testing purposes without requiring a blockchain connection.
// Records are keyed by token id exactly as the on-chain registry keys them.
type MockRegistryClient struct {
	mutex   sync.RWMutex
	records map[string]map[string]string // token id (decimal) -> key -> value
	errors  map[string]error             // token id (decimal) -> error returned for it
	delay   time.Duration

	calls         int
	inFlight      int
	maxConcurrent int
}

// NewMockRegistryClient creates a new mock registry client with no records.
func NewMockRegistryClient() *MockRegistryClient {
	return &MockRegistryClient{
		records: make(map[string]map[string]string),
		errors:  make(map[string]error),
	}
}

// SetRecord stores value under key for the token id of domain.
func (m *MockRegistryClient) SetRecord(domain, key, value string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	id := cryptoutils.TokenID(domain).String()
	if m.records[id] == nil {
		m.records[id] = make(map[string]string)
	}
	m.records[id][key] = value
}

// SetError makes every lookup of domain fail with err. A nil err clears it.
func (m *MockRegistryClient) SetError(domain string, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	id := cryptoutils.TokenID(domain).String()
	if err == nil {
		delete(m.errors, id)
		return
	}
	m.errors[id] = err
}

// SetDelay makes every lookup take at least d, or until the context is done.
func (m *MockRegistryClient) SetDelay(d time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.delay = d
}

// Calls returns the number of GetMany calls served so far.
func (m *MockRegistryClient) Calls() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.calls
}

// MaxConcurrent returns the highest number of simultaneous GetMany calls observed.
func (m *MockRegistryClient) MaxConcurrent() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.maxConcurrent
}

// GetMany returns the stored values for keys, with empty strings for unknown keys.
func (m *MockRegistryClient) GetMany(ctx context.Context, keys []string, tokenID *big.Int) ([]string, error) {
	m.mutex.Lock()
	m.calls++
	m.inFlight++
	if m.inFlight > m.maxConcurrent {
		m.maxConcurrent = m.inFlight
	}
	delay := m.delay
	m.mutex.Unlock()

	defer func() {
		m.mutex.Lock()
		m.inFlight--
		m.mutex.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	id := tokenID.String()
	if err, ok := m.errors[id]; ok {
		return nil, err
	}

	values := make([]string, len(keys))
	for i, key := range keys {
		values[i] = m.records[id][key]
	}
	return values, nil
}
