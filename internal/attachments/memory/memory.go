package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"famledger/internal/attachments"
)

// Blob is an uploaded attachment held in process.
type Blob struct {
	ContentType string
	Data        []byte
}

// Store keeps attachments in memory. URLs use the memory:// scheme and are
// only meaningful to this process.
type Store struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

var _ attachments.Store = (*Store)(nil)

func New() *Store {
	return &Store{blobs: make(map[string]Blob)}
}

func (s *Store) Put(_ context.Context, key, contentType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read attachment %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; ok {
		return "", fmt.Errorf("attachment %s already exists", key)
	}
	s.blobs[key] = Blob{ContentType: contentType, Data: data}
	return "memory://" + key, nil
}

func (s *Store) Get(key string) (Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[key]
	return b, ok
}
