// Package crontest provides doubles for the cron jobs' dependencies.
package crontest

import (
	"sync"
	"time"

	"github.com/flemzord/cinechat/internal/cron"
)

// MockRunCanceller records every CancelStale call. Stale, when set,
// decides how many runs each call reports as cancelled.
type MockRunCanceller struct {
	Stale func(maxAge time.Duration) int

	mu   sync.Mutex
	ages []time.Duration
}

var _ cron.RunCanceller = (*MockRunCanceller)(nil)

func (m *MockRunCanceller) CancelStale(maxAge time.Duration) int {
	m.mu.Lock()
	m.ages = append(m.ages, maxAge)
	m.mu.Unlock()
	if m.Stale == nil {
		return 0
	}
	return m.Stale(maxAge)
}

// Ages returns the maxAge of each call so far, oldest first.
func (m *MockRunCanceller) Ages() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.ages...)
}
