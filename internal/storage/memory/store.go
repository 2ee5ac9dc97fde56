// Package memory keeps uploaded scans in process memory.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"scanorder/internal/domain"
	"scanorder/internal/port"
)

// Store implements port.ObjectStorage with a map keyed by bucket and key.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ port.ObjectStorage = (*Store)(nil)

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{objects: make(map[string][]byte)}
}

func (s *Store) Upload(ctx context.Context, input port.UploadInput) (*port.UploadOutput, error) {
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUploadFailed, err)
	}
	loc := objectKey(input.Bucket, input.Key)

	s.mu.Lock()
	s.objects[loc] = data
	s.mu.Unlock()
	return &port.UploadOutput{Location: "mem://" + loc}, nil
}

func (s *Store) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.objects[objectKey(bucket, key)]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("scan %s: %w", key, domain.ErrNotFound)
	}
	return bytes.Clone(data), nil
}

func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	s.mu.Lock()
	delete(s.objects, objectKey(bucket, key))
	s.mu.Unlock()
	return nil
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}
