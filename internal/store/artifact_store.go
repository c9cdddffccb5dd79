package store

import (
	"context"
	"sync"
)

// MemoryArtifactStore keeps artifacts in process memory. Used when no
// object storage is configured.
type MemoryArtifactStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{blobs: make(map[string][]byte)}
}

func (s *MemoryArtifactStore) Save(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	s.blobs[key] = append([]byte(nil), data...)
	s.mu.Unlock()
	return nil
}

func (s *MemoryArtifactStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}
