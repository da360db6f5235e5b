package health

import (
	"sort"
	"sync"
	"time"
)

// Status describes the most recent probe result for one upstream.
type Status struct {
	Upstream  string    `json:"upstream"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// StatusStore is a concurrency-safe record of the latest probe result
// per upstream.
type StatusStore struct {
	mu   sync.RWMutex
	data map[string]Status
}

func NewStatusStore() *StatusStore {
	return &StatusStore{data: make(map[string]Status)}
}

// Set replaces the recorded status for the status's upstream.
func (s *StatusStore) Set(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[st.Upstream] = st
}

// Get returns the recorded status for an upstream, if any.
func (s *StatusStore) Get(upstream string) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[upstream]
	return st, ok
}

// All returns the recorded statuses sorted by upstream name.
func (s *StatusStore) All() []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]Status, 0, len(s.data))
	for _, st := range s.data {
		statuses = append(statuses, st)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Upstream < statuses[j].Upstream
	})
	return statuses
}
