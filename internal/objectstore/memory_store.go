package objectstore

import (
	"context"
	"fmt"
	"sync"
)

type MemoryStore struct {
	mu      sync.RWMutex
	data    map[string]Object
	baseURL string
}

func NewMemoryStore(publicBaseURL string) *MemoryStore {
	return &MemoryStore{
		data:    make(map[string]Object),
		baseURL: publicBaseURL,
	}
}

func (s *MemoryStore) Put(_ context.Context, key, contentType string, content []byte) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = Object{
		Key:         key,
		ContentType: contentType,
		Content:     append([]byte(nil), content...),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Object, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	obj.Content = append([]byte(nil), obj.Content...)
	return &obj, nil
}

func (s *MemoryStore) URL(_ context.Context, key string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("store is nil")
	}
	key, err := normalizeKey(key)
	if err != nil {
		return "", err
	}
	return publicURL(s.baseURL, key), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
