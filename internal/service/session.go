package service

import (
	"sync"

	"github.com/arturoeanton/go-codebase-assistant/internal/domain"
	"github.com/arturoeanton/go-codebase-assistant/internal/port"
)

// Session owns the active vector index and its status.
// Every replacement bumps the generation so dependents can tell their
// cached state is stale.
type Session struct {
	mu         sync.RWMutex
	index      port.VectorIndex
	status     domain.IndexStatus
	generation uint64
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{}
}

// Index returns the active index, or nil when nothing is indexed.
func (s *Session) Index() port.VectorIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Status returns a copy of the current status.
func (s *Session) Status() domain.IndexStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Generation returns the replacement counter.
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Snapshot returns index and generation read together.
func (s *Session) Snapshot() (port.VectorIndex, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index, s.generation
}

// Replace swaps in a new index and status.
func (s *Session) Replace(idx port.VectorIndex, status domain.IndexStatus) {
	s.mu.Lock()
	s.index = idx
	s.status = status
	s.generation++
	s.mu.Unlock()
}

// Reset forgets the index.
func (s *Session) Reset() {
	s.mu.Lock()
	s.index = nil
	s.status = domain.IndexStatus{}
	s.generation++
	s.mu.Unlock()
}
