// Package session keeps active editor contexts in memory and writes their
// documents back through the document repository.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"mentioneditor/internal/editor"
	docrepo "mentioneditor/internal/gateway/repository/document"
	"mentioneditor/internal/mention"
	"mentioneditor/internal/upload"
)

const (
	saveTimeout = 5 * time.Second
	// earlyAbortTTL bounds how long an abort for a not yet registered
	// upload is remembered.
	earlyAbortTTL     = time.Minute
	earlyAbortEntries = 1024
)

type Manager struct {
	store   docrepo.Store
	feed    mention.Feed
	uploads *upload.Factory

	openMu sync.Mutex
	active *lru.Cache[string, *editor.Context]

	inflightMu  sync.Mutex
	inflight    map[string]*upload.Adapter
	earlyAborts *expirable.LRU[string, struct{}]
}

func NewManager(store docrepo.Store, feed mention.Feed, uploads *upload.Factory, cacheSize int) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("document store is nil")
	}
	if cacheSize <= 0 {
		cacheSize = 256
	}
	m := &Manager{
		store:       store,
		feed:        feed,
		uploads:     uploads,
		inflight:    make(map[string]*upload.Adapter),
		earlyAborts: expirable.NewLRU[string, struct{}](earlyAbortEntries, nil, earlyAbortTTL),
	}
	cache, err := lru.NewWithEvict[string, *editor.Context](cacheSize, func(_ string, c *editor.Context) {
		m.persist(c.Snapshot())
	})
	if err != nil {
		return nil, fmt.Errorf("init session cache: %w", err)
	}
	m.active = cache
	return m, nil
}

func (m *Manager) Feed() mention.Feed { return m.feed }

// Open returns the active context for id, loading it from the store or
// starting an empty document when none exists yet.
func (m *Manager) Open(ctx context.Context, id string) (*editor.Context, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("document id is required")
	}
	m.openMu.Lock()
	defer m.openMu.Unlock()
	if c, ok := m.active.Get(id); ok {
		return c, nil
	}

	opts := editor.Options{
		Feed:     m.feed,
		Uploads:  m.uploads,
		OnChange: m.persist,
	}
	rec, err := m.store.Load(ctx, id)
	var c *editor.Context
	switch {
	case errors.Is(err, docrepo.ErrNotFound):
		c = editor.New(id, nil, opts)
	case err != nil:
		return nil, fmt.Errorf("load document %s: %w", id, err)
	default:
		opts.BaseVersion = rec.Version
		c, err = editor.FromHTML(id, rec.HTML, opts)
		if err != nil {
			return nil, err
		}
	}
	m.active.Add(id, c)
	return c, nil
}

func (m *Manager) persist(snap editor.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	err := m.store.Save(ctx, docrepo.Record{
		ID:      snap.ID,
		HTML:    snap.HTML,
		Version: snap.Version,
	})
	if err != nil {
		log.Printf("session: save document %s v%d failed: %v", snap.ID, snap.Version, err)
	}
}

// Flush writes every active document back to the store.
func (m *Manager) Flush() {
	for _, c := range m.active.Values() {
		m.persist(c.Snapshot())
	}
}

// Track registers an in-flight adapter so it can be aborted by ID. It
// reports false when another upload already holds the ID. An abort that
// arrived for the ID before registration is applied immediately.
func (m *Manager) Track(a *upload.Adapter) bool {
	id := a.ID()
	m.inflightMu.Lock()
	if _, dup := m.inflight[id]; dup {
		m.inflightMu.Unlock()
		return false
	}
	m.inflight[id] = a
	_, early := m.earlyAborts.Get(id)
	if early {
		m.earlyAborts.Remove(id)
	}
	m.inflightMu.Unlock()
	if early {
		a.Abort()
	}
	return true
}

func (m *Manager) Untrack(uploadID string) {
	m.inflightMu.Lock()
	delete(m.inflight, uploadID)
	m.inflightMu.Unlock()
}

// Abort cancels a tracked upload. It reports whether the ID was in flight;
// an unknown ID is remembered briefly so an upload registering it later
// starts out aborted.
func (m *Manager) Abort(uploadID string) bool {
	uploadID = strings.TrimSpace(uploadID)
	m.inflightMu.Lock()
	a, ok := m.inflight[uploadID]
	if !ok && uploadID != "" {
		m.earlyAborts.Add(uploadID, struct{}{})
	}
	m.inflightMu.Unlock()
	if !ok {
		return false
	}
	a.Abort()
	return true
}

// AbortAll cancels every tracked upload, used on shutdown.
func (m *Manager) AbortAll() {
	m.inflightMu.Lock()
	pending := make([]*upload.Adapter, 0, len(m.inflight))
	for _, a := range m.inflight {
		pending = append(pending, a)
	}
	m.inflightMu.Unlock()
	for _, a := range pending {
		a.Abort()
	}
}
