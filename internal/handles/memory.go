package handles

import (
	"context"
	"fmt"
	"sync"
)

type memoryEntry struct {
	data        []byte
	contentType string
}

// MemoryRegistry keeps handle bytes in process memory.
type MemoryRegistry struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[string]memoryEntry),
	}
}

func (r *MemoryRegistry) Create(ctx context.Context, data []byte, contentType string) (Handle, error) {
	if len(data) == 0 {
		return Handle{}, fmt.Errorf("cannot create handle for empty data")
	}
	token := newToken()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[token] = memoryEntry{data: data, contentType: contentType}
	return Handle{Token: token, ContentType: contentType, Size: len(data)}, nil
}

func (r *MemoryRegistry) Consume(ctx context.Context, token string) ([]byte, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[token]
	if !ok {
		return nil, "", ErrHandleNotFound
	}
	delete(r.entries, token)
	return entry.data, entry.contentType, nil
}

func (r *MemoryRegistry) Release(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, token)
	return nil
}

func (r *MemoryRegistry) Outstanding(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries), nil
}

func (r *MemoryRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.entries)
	return nil
}
