package store

import (
	"context"
	"sync"
)

// memoryStore keeps documents for the life of the process. It backs the
// "none" driver so publishing still works without persistence.
type memoryStore struct {
	mu   sync.Mutex
	docs map[string]Document
}

// NewMemory returns a backend that forgets everything on exit.
func NewMemory() Backend {
	return &memoryStore{docs: map[string]Document{}}
}

func (s *memoryStore) Load(_ context.Context, server string) (Raw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw := Raw{}
	for k, v := range s.docs[server] {
		raw[k] = int64(v)
	}
	return raw, nil
}

func (s *memoryStore) Save(_ context.Context, server string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[server] = doc.Clone()
	return nil
}

func (s *memoryStore) Close() error { return nil }
