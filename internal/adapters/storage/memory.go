package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process BlobStore used by the offline CLI and tests.
// Objects live in a map and URLs use a fake scheme that Fetch understands.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates a new in-memory blob store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Upload stores content under key
func (s *MemoryStore) Upload(ctx context.Context, key string, content []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(content))
	copy(buf, content)
	s.objects[key] = buf
	return nil
}

// SignedURL returns a synthetic URL for the object
func (s *MemoryStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[key]; !ok {
		return "", fmt.Errorf("object not found: %s", key)
	}
	return "memory://" + key, nil
}

// PublicURL returns a synthetic URL for the object
func (s *MemoryStore) PublicURL(key string) string {
	return "memory://" + key
}

// Fetch retrieves object bytes by the synthetic URL
func (s *MemoryStore) Fetch(ctx context.Context, url string) ([]byte, error) {
	key := strings.TrimPrefix(url, "memory://")
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	buf := make([]byte, len(content))
	copy(buf, content)
	return buf, nil
}

// Remove deletes the object
func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}
