package credentials

import (
	"context"
	"sync"
	"time"

	"github.com/scp-platform/supplier-console/pkg/model"
)

// MemoryStore keeps credentials in process memory. Tests get an isolated
// instance per case; the console uses it when no redis is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
	user    *model.UserIdentity
	now     func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]string),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context) (model.Credential, bool) {
	s.mu.RLock()
	access := s.entries[AccessKey]
	refresh := s.entries[RefreshKey]
	s.mu.RUnlock()

	if access == "" || looksExpired(access, s.now()) {
		return model.Credential{}, false
	}
	return model.Credential{Access: access, Refresh: refresh}, true
}

func (s *MemoryStore) Refresh(_ context.Context) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.entries[RefreshKey]
	return r, r != ""
}

func (s *MemoryStore) Present(_ context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[AccessKey] != ""
}

func (s *MemoryStore) Set(_ context.Context, access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[AccessKey] = access
	if refresh != "" {
		s.entries[RefreshKey] = refresh
	}
}

func (s *MemoryStore) Clear(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, AccessKey)
	delete(s.entries, RefreshKey)
	s.user = nil
}

func (s *MemoryStore) User(_ context.Context) (*model.UserIdentity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil, false
	}
	u := *s.user
	return &u, true
}

func (s *MemoryStore) SetUser(_ context.Context, user model.UserIdentity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &user
}
