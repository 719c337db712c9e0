package objectstore

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type CacheConfig struct {
	BlobTTL        time.Duration
	BlobMaxEntries int
	// BlobMaxObjectBytes skips caching objects larger than this.
	BlobMaxObjectBytes int

	URLTTL        time.Duration
	URLMaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		BlobTTL:            5 * time.Minute,
		BlobMaxEntries:     256,
		BlobMaxObjectBytes: 4 * 1024 * 1024, // 4MiB
		URLTTL:             5 * time.Minute,
		URLMaxEntries:      1024,
	}
}

type MetricsSnapshot struct {
	BlobHits       uint64
	BlobMisses     uint64
	URLHits        uint64
	URLMisses      uint64
	OriginReads    uint64
	OriginWrites   uint64
	OriginReadErr  uint64
	OriginWriteErr uint64
}

type Metrics struct {
	blobHits       atomic.Uint64
	blobMisses     atomic.Uint64
	urlHits        atomic.Uint64
	urlMisses      atomic.Uint64
	originReads    atomic.Uint64
	originWrites   atomic.Uint64
	originReadErr  atomic.Uint64
	originWriteErr atomic.Uint64
}

func (m *Metrics) snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		BlobHits:       m.blobHits.Load(),
		BlobMisses:     m.blobMisses.Load(),
		URLHits:        m.urlHits.Load(),
		URLMisses:      m.urlMisses.Load(),
		OriginReads:    m.originReads.Load(),
		OriginWrites:   m.originWrites.Load(),
		OriginReadErr:  m.originReadErr.Load(),
		OriginWriteErr: m.originWriteErr.Load(),
	}
}

// CachedStore fronts an origin Store with expiring LRU caches for object
// bodies and locators.
type CachedStore struct {
	origin Store

	maxObjectBytes int
	blobCache      *expirable.LRU[string, Object]
	urlCache       *expirable.LRU[string, string]
	metrics        Metrics
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	def := DefaultCacheConfig()
	if cfg.BlobTTL <= 0 {
		cfg.BlobTTL = def.BlobTTL
	}
	if cfg.BlobMaxEntries <= 0 {
		cfg.BlobMaxEntries = def.BlobMaxEntries
	}
	if cfg.BlobMaxObjectBytes < 0 {
		cfg.BlobMaxObjectBytes = def.BlobMaxObjectBytes
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = def.URLTTL
	}
	if cfg.URLMaxEntries <= 0 {
		cfg.URLMaxEntries = def.URLMaxEntries
	}

	return &CachedStore{
		origin:         origin,
		maxObjectBytes: cfg.BlobMaxObjectBytes,
		blobCache:      expirable.NewLRU[string, Object](cfg.BlobMaxEntries, nil, cfg.BlobTTL),
		urlCache:       expirable.NewLRU[string, string](cfg.URLMaxEntries, nil, cfg.URLTTL),
	}
}

func (s *CachedStore) Put(ctx context.Context, key, contentType string, content []byte) error {
	s.metrics.originWrites.Add(1)
	if err := s.origin.Put(ctx, key, contentType, content); err != nil {
		s.metrics.originWriteErr.Add(1)
		return err
	}
	k := cacheKey(key)
	s.remember(Object{Key: k, ContentType: contentType, Content: append([]byte(nil), content...)})
	s.urlCache.Remove(k)
	return nil
}

func (s *CachedStore) Get(ctx context.Context, key string) (*Object, error) {
	k := cacheKey(key)
	if obj, ok := s.blobCache.Get(k); ok {
		s.metrics.blobHits.Add(1)
		obj.Content = append([]byte(nil), obj.Content...)
		return &obj, nil
	}
	s.metrics.blobMisses.Add(1)
	s.metrics.originReads.Add(1)

	obj, err := s.origin.Get(ctx, key)
	if err != nil {
		s.metrics.originReadErr.Add(1)
		return nil, err
	}
	cached := *obj
	cached.Key = k
	cached.Content = append([]byte(nil), obj.Content...)
	s.remember(cached)
	return obj, nil
}

func (s *CachedStore) URL(ctx context.Context, key string) (string, error) {
	k := cacheKey(key)
	if cached, ok := s.urlCache.Get(k); ok {
		s.metrics.urlHits.Add(1)
		return cached, nil
	}
	s.metrics.urlMisses.Add(1)
	s.metrics.originReads.Add(1)

	url, err := s.origin.URL(ctx, key)
	if err != nil {
		s.metrics.originReadErr.Add(1)
		return "", err
	}
	if strings.TrimSpace(url) != "" {
		s.urlCache.Add(k, url)
	}
	return url, nil
}

func (s *CachedStore) Delete(ctx context.Context, key string) error {
	s.metrics.originWrites.Add(1)
	if err := s.origin.Delete(ctx, key); err != nil {
		s.metrics.originWriteErr.Add(1)
		return err
	}
	k := cacheKey(key)
	s.blobCache.Remove(k)
	s.urlCache.Remove(k)
	return nil
}

func (s *CachedStore) remember(obj Object) {
	if s.maxObjectBytes > 0 && len(obj.Content) > s.maxObjectBytes {
		s.blobCache.Remove(obj.Key)
		return
	}
	s.blobCache.Add(obj.Key, obj)
}

func cacheKey(key string) string {
	return strings.TrimLeft(strings.TrimSpace(key), "/")
}

func (s *CachedStore) Metrics() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{}
	}
	return s.metrics.snapshot()
}
