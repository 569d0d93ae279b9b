package blobstore

import (
	"context"
	"os"
	"sync"
)

// MemoryMirror is an in-memory Mirror for tests.
type MemoryMirror struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemoryMirror creates an empty in-memory mirror.
func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{objects: make(map[string][]byte)}
}

// Pull copies the stored object into localPath.
func (m *MemoryMirror) Pull(ctx context.Context, name, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	data, ok := m.objects[name]
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return os.WriteFile(localPath, data, 0644)
}

// Push stores a copy of the file at localPath.
func (m *MemoryMirror) Push(ctx context.Context, name, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.objects[name] = data
	m.mu.Unlock()
	return nil
}

// Object returns the stored bytes for name.
func (m *MemoryMirror) Object(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[name]
	return data, ok
}
