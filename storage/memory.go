package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
)

// MemoryUploader keeps objects in memory. It is used when no bucket is
// configured for local runs and in tests.
type MemoryUploader struct {
	BaseURL string

	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryUploader(baseURL string) *MemoryUploader {
	return &MemoryUploader{BaseURL: baseURL, objects: make(map[string][]byte)}
}

func (m *MemoryUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	sum := md5.Sum(data)

	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()

	return &UploadResult{Key: key, Location: m.GetPublicURL(key), ETag: hex.EncodeToString(sum[:])}, nil
}

func (m *MemoryUploader) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryUploader) GetPublicURL(key string) string {
	return publicURL(m.BaseURL, key)
}

// Object returns a stored object's bytes.
func (m *MemoryUploader) Object(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	return data, ok
}
