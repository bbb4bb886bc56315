// Package memory keeps artifact content in process memory. It backs local
// development and tests.
package memory

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"qdesign-backend/application/ports"
	apperrors "qdesign-backend/pkg/errors"
)

const refScheme = "mem://"

type object struct {
	data        []byte
	contentType string
}

// Store is an in-memory ports.BlobStore
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
}

// NewStore creates an empty blob store
func NewStore() *Store {
	return &Store{objects: make(map[string]object)}
}

// Put stores content under key
func (s *Store) Put(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	if key == "" {
		return "", apperrors.NewValidation("blob key is required")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", apperrors.NewInternal("failed to read artifact content", err)
	}

	s.mu.Lock()
	s.objects[key] = object{data: data, contentType: contentType}
	s.mu.Unlock()
	return refScheme + key, nil
}

// Get opens stored content
func (s *Store) Get(ctx context.Context, ref string) (io.ReadCloser, ports.BlobObject, error) {
	key := trimRef(ref)

	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ports.BlobObject{}, apperrors.NewNotFound("artifact content not found")
	}

	info := ports.BlobObject{Key: key, ContentType: obj.contentType, Size: int64(len(obj.data))}
	return io.NopCloser(bytes.NewReader(obj.data)), info, nil
}

// Delete removes stored content
func (s *Store) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	delete(s.objects, trimRef(ref))
	s.mu.Unlock()
	return nil
}

// Len reports how many objects are stored
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func trimRef(ref string) string {
	return strings.TrimPrefix(ref, refScheme)
}
