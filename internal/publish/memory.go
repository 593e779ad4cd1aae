package publish

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"eventphoto/internal/photo"
)

// MemoryPublisher keeps published objects in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryPublisher struct {
	name    string
	objects map[string][]byte
	mu      sync.RWMutex
}

// NewMemoryPublisher creates a new in-memory publisher with the given name.
func NewMemoryPublisher(name string) *MemoryPublisher {
	return &MemoryPublisher{
		name:    name,
		objects: make(map[string][]byte),
	}
}

func (m *MemoryPublisher) Name() string {
	return m.name
}

// PutObject stores the content of r under key.
func (m *MemoryPublisher) PutObject(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

// Object returns the stored content for key.
func (m *MemoryPublisher) Object(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	return data, ok
}

// Keys returns all stored keys in sorted order.
func (m *MemoryPublisher) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidateSetup always succeeds for the in-memory publisher.
func (m *MemoryPublisher) ValidateSetup(ctx context.Context) error {
	return nil
}

// Compile-time check that MemoryPublisher implements photo.Publisher interface
var _ photo.Publisher = (*MemoryPublisher)(nil)
