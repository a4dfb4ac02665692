package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps objects in process. Used when no S3 endpoint is configured.
type MemoryStore struct {
	mu      sync.Mutex
	baseURL string
	buckets map[string]bool // name -> public
	objects map[string][]byte
}

func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://"
	}
	return &MemoryStore{baseURL: baseURL, buckets: map[string]bool{}, objects: map[string][]byte{}}
}

func (m *MemoryStore) ListBuckets(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.buckets))
	for n := range m.buckets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) CreateBucket(_ context.Context, name string, public bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[name] = public
	return nil
}

func (m *MemoryStore) Upload(_ context.Context, bucket, path string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		return "", fmt.Errorf("bucket %s does not exist", bucket)
	}
	m.objects[bucket+"/"+path] = append([]byte(nil), data...)
	return PublicURL(m.baseURL, bucket, path), nil
}

// Object returns a stored object.
func (m *MemoryStore) Object(bucket, path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[bucket+"/"+path]
	return b, ok
}
