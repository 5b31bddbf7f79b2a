// Package security provides credential tracking, log redaction, rate
// limiting, audit logging and request body validation.
package security

import (
	"maps"
	"slices"
	"sync"
)

// Credential names registered by the upstream modules.
const (
	CredentialConcentrateKey = "concentrate_api_key"
	CredentialTMDBKey        = "tmdb_api_key"
	CredentialGatewayToken   = "gateway_bearer_token"
)

// CredentialStore holds the secrets modules read from configuration.
// Watchers are told about every change so the Redactor never lags behind.
type CredentialStore struct {
	mu       sync.RWMutex
	creds    map[string]string
	watchers []func()
}

// NewCredentialStore returns an empty store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{creds: map[string]string{}}
}

// Set records value under name. Empty values and rewrites of the same
// value are ignored.
func (s *CredentialStore) Set(name, value string) {
	if value == "" {
		return
	}
	s.mu.Lock()
	if s.creds[name] == value {
		s.mu.Unlock()
		return
	}
	s.creds[name] = value
	watchers := slices.Clone(s.watchers)
	s.mu.Unlock()

	for _, fn := range watchers {
		fn()
	}
}

// Watch registers fn to run after each change. fn must not call Set.
func (s *CredentialStore) Watch(fn func()) {
	s.mu.Lock()
	s.watchers = append(s.watchers, fn)
	s.mu.Unlock()
}

// Get returns the value stored under name.
func (s *CredentialStore) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.creds[name]
	return v, ok
}

// Names returns the stored credential names, sorted.
func (s *CredentialStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.creds))
}

// Values returns the stored secrets ordered by name.
func (s *CredentialStore) Values() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	values := make([]string, 0, len(s.creds))
	for _, name := range slices.Sorted(maps.Keys(s.creds)) {
		values = append(values, s.creds[name])
	}
	return values
}

// Len is the number of stored credentials.
func (s *CredentialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.creds)
}
