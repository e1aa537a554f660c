package store

import (
	"context"
	"sync"

	"github.com/spec-kit/token-service/internal/domain"
	"github.com/spec-kit/token-service/pkg/util"
)

// MemoryStore keeps token records in process memory. Used by tests and the
// memory driver for local development.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*domain.TokenRecord
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*domain.TokenRecord)}
}

// Put stores a copy of the record under the token key.
func (s *MemoryStore) Put(_ context.Context, tok string, record *domain.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[tok]; ok {
		return resolveExisting(tok, existing, record)
	}
	s.records[tok] = copyRecord(record)
	return nil
}

// Get returns a copy of the stored record.
func (s *MemoryStore) Get(_ context.Context, tok string) (*domain.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[tok]
	if !ok {
		return nil, util.NewNotFound("token", nil)
	}
	return copyRecord(record), nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func copyRecord(record *domain.TokenRecord) *domain.TokenRecord {
	out := &domain.TokenRecord{
		Subject:    record.Subject,
		Attributes: record.Attributes.Clone(),
		IssuedAt:   record.IssuedAt,
	}
	if record.ExpiresAt != nil {
		expiresAt := *record.ExpiresAt
		out.ExpiresAt = &expiresAt
	}
	if record.Metadata != nil {
		out.Metadata = make(map[string]string, len(record.Metadata))
		for k, v := range record.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
