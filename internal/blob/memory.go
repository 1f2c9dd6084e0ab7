package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// Memory keeps blobs in process memory. It backs tests and single-node setups
// that run without MongoDB.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string
}

// NewMemory creates an empty in-memory store.
func NewMemory(baseURL string) *Memory {
	return &Memory{objects: make(map[string][]byte), baseURL: baseURL}
}

func (m *Memory) Upload(_ context.Context, objectPath string, r io.Reader, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}
	m.mu.Lock()
	m.objects[objectPath] = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) PublicURL(objectPath string) string {
	return publicURL(m.baseURL, objectPath)
}

func (m *Memory) Remove(_ context.Context, objectPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[objectPath]; !ok {
		return ErrNotFound
	}
	delete(m.objects, objectPath)
	return nil
}

func (m *Memory) Open(_ context.Context, objectPath string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.objects[objectPath]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	_, err := io.Copy(w, bytes.NewReader(data))
	return err
}

// Len reports how many objects are stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
