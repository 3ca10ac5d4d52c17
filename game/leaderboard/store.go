package leaderboard

import (
	"context"
	"errors"
	"sync"
)

// ErrBlobNotFound is returned by a BlobStore when no blob exists for a key
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore persists opaque string blobs by key
type BlobStore interface {
	// LoadBlob returns the blob stored under key, or ErrBlobNotFound
	LoadBlob(ctx context.Context, key string) (string, error)

	// SaveBlob replaces the blob stored under key
	SaveBlob(ctx context.Context, key, blob string) error
}

// MemoryBlobStore keeps blobs in memory. It is useful for tests and for
// servers that do not need the leaderboard to survive a restart.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]string
}

// NewMemoryBlobStore creates an empty in-memory store
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string]string)}
}

// LoadBlob returns the blob stored under key or ErrBlobNotFound
func (m *MemoryBlobStore) LoadBlob(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.blobs[key]
	if !ok {
		return "", ErrBlobNotFound
	}
	return blob, nil
}

// SaveBlob stores blob under key, replacing any previous value
func (m *MemoryBlobStore) SaveBlob(_ context.Context, key, blob string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = blob
	return nil
}
