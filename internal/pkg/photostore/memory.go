package photostore

import (
	"context"
	"strings"
	"sync"
)

// Memory keeps photos in process. Used for local development and tests.
type Memory struct {
	base string

	mu      sync.Mutex
	objects map[string][]byte
	// FailDelete, when set, is returned by Delete.
	FailDelete error
	// FailUpload, when set, is returned by Upload.
	FailUpload error
}

func NewMemory(base string) *Memory {
	return &Memory{base: strings.TrimSuffix(base, "/"), objects: make(map[string][]byte)}
}

func (m *Memory) Upload(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpload != nil {
		return Object{}, m.FailUpload
	}
	m.objects[key] = append([]byte(nil), data...)
	return Object{URL: m.base + "/" + escapeKey(key), Key: key}, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete != nil {
		return m.FailDelete
	}
	delete(m.objects, key)
	return nil
}

// Has reports whether key is stored.
func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// Len is the number of stored objects.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
