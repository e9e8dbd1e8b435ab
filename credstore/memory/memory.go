// Package memory provides an in-memory implementation of the session.Store
// interface. This implementation is primarily intended for testing and
// development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/threatalytics/threatalytics-go/pkg/session"
)

// Store implements session.Store using process memory.
type Store struct {
	mu          sync.RWMutex
	bundle      *session.Bundle
	refreshTime time.Time
}

// New creates a new in-memory credential store.
func New() *Store {
	return &Store{}
}

// Read implements session.Store.
func (s *Store) Read(ctx context.Context) (session.Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.bundle == nil {
		return session.Bundle{}, nil
	}
	return *s.bundle, nil
}

// Write implements session.Store.
func (s *Store) Write(ctx context.Context, bundle session.Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to prevent external mutations
	stored := bundle
	s.bundle = &stored
	return nil
}

// Clear implements session.Store.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bundle = nil
	s.refreshTime = time.Time{}
	return nil
}

// ReadRefreshTime implements session.Store.
func (s *Store) ReadRefreshTime(ctx context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.refreshTime, nil
}

// WriteRefreshTime implements session.Store.
func (s *Store) WriteRefreshTime(ctx context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshTime = t
	return nil
}
