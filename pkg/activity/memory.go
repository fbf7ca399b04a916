package activity

import (
	"context"
	"sync"
)

// MemorySink keeps outcomes in memory. Err, when set, is returned from every
// Write.
type MemorySink struct {
	mu       sync.Mutex
	outcomes []Outcome
	Err      error
}

func (s *MemorySink) Write(ctx context.Context, o Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.outcomes = append(s.outcomes, o)
	return nil
}

func (s *MemorySink) Outcomes() []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Outcome(nil), s.outcomes...)
}

func (s *MemorySink) Close() error { return nil }
