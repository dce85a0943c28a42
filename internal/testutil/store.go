package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/dtroode/gcal-connect/internal/model"
)

var _ model.TokenStore = (*MemoryTokenStore)(nil)

// MemoryTokenStore is an in-memory model.TokenStore for scenario tests.
type MemoryTokenStore struct {
	mu      sync.Mutex
	records map[string]model.OAuthTokenRecord
	now     func() time.Time
}

func NewMemoryTokenStore(now func() time.Time) *MemoryTokenStore {
	return &MemoryTokenStore{records: make(map[string]model.OAuthTokenRecord), now: now}
}

func (s *MemoryTokenStore) Upsert(_ context.Context, record model.OAuthTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.UpdatedAt = s.now()
	s.records[record.UserID] = record
	return nil
}

func (s *MemoryTokenStore) Get(_ context.Context, userID string) (model.OAuthTokenRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	return rec, ok, nil
}

func (s *MemoryTokenStore) UpdateAccessToken(_ context.Context, userID, accessToken string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return model.ErrNotFound
	}
	rec.AccessToken = accessToken
	rec.TokenExpiry = expiry
	rec.UpdatedAt = s.now()
	s.records[userID] = rec
	return nil
}

func (s *MemoryTokenStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	return nil
}

// Len returns the number of stored records.
func (s *MemoryTokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
