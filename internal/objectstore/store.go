// Package objectstore persists uploaded resources and hands out locators
// for them.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Object is one stored blob.
type Object struct {
	Key         string
	ContentType string
	Content     []byte
}

// Store defines operations for persisting uploaded objects.
type Store interface {
	Put(ctx context.Context, key, contentType string, content []byte) error
	Get(ctx context.Context, key string) (*Object, error)
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

var ErrNotFound = errors.New("object not found")

func normalizeKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("key is required")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("key %q must not contain '..'", key)
	}
	return key, nil
}

// publicURL joins a base URL and key. An empty base yields a host-relative
// path served by the gateway.
func publicURL(base, key string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = "/objects"
	}
	return base + "/" + key
}
