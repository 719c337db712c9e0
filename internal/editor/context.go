// Package editor binds a document, the mention guard and the upload
// factory into one explicitly passed editing context.
package editor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"mentioneditor/internal/document"
	"mentioneditor/internal/mention"
	"mentioneditor/internal/mention/markup"
	"mentioneditor/internal/upload"
)

// Options configures a Context.
type Options struct {
	Feed    mention.Feed
	Uploads *upload.Factory
	// BaseVersion offsets reported versions, e.g. by a persisted record's.
	BaseVersion uint64
	// OnChange runs after every committed change, outside the context lock.
	OnChange func(Snapshot)
}

// Snapshot is a read-only view of a context's document.
type Snapshot struct {
	ID       string             `json:"id"`
	HTML     string             `json:"html"`
	Text     string             `json:"text"`
	Caret    int                `json:"caret"`
	Length   int                `json:"length"`
	Version  uint64             `json:"version"`
	Mentions []document.Mention `json:"mentions"`
}

// Context owns one document and serializes every operation on it.
type Context struct {
	id    string
	opts  Options
	guard *mention.Guard

	mu  sync.Mutex
	doc *document.Document
}

func New(id string, doc *document.Document, opts Options) *Context {
	if doc == nil {
		doc = document.New()
	}
	if opts.Feed.Marker == "" {
		opts.Feed = mention.DefaultFeed()
	}
	return &Context{
		id:    id,
		opts:  opts,
		guard: mention.NewGuard(),
		doc:   doc,
	}
}

// FromHTML builds a context from stored editor data.
func FromHTML(id, html string, opts Options) (*Context, error) {
	nodes, err := markup.Upcast(html)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	return New(id, document.New(nodes...), opts), nil
}

func (c *Context) ID() string { return c.id }

func (c *Context) Feed() mention.Feed { return c.opts.Feed }

// KeyDown is the keydown hook. The returned action reports whether the
// guard consumed the key; when it passes through, the default editing
// behaviour is applied here since the document lives on this side.
func (c *Context) KeyDown(intent mention.Intent) mention.Action {
	var act mention.Action
	c.mutate(func(d *document.Document) error {
		act = c.guard.HandleKey(d, intent)
		if !act.Consumed() {
			return defaultKey(d, intent)
		}
		return nil
	})
	return act
}

// defaultKey deletes one unit or steps the caret by one offset.
func defaultKey(d *document.Document, intent mention.Intent) error {
	at := d.Selection().First()
	switch intent {
	case mention.IntentBackspace:
		if at == 0 {
			return nil
		}
		return d.Change(func(w *document.Writer) error {
			return w.DeleteAt(at - 1)
		})
	case mention.IntentDelete:
		return d.Change(func(w *document.Writer) error {
			return w.DeleteAt(at)
		})
	case mention.IntentArrowLeft:
		d.Select(at - 1)
	case mention.IntentArrowRight:
		d.Select(at + 1)
	case mention.IntentOther:
	}
	return nil
}

func (c *Context) SetCaret(offset int) {
	c.mu.Lock()
	c.doc.Select(offset)
	c.mu.Unlock()
}

func (c *Context) InsertText(text string) error {
	return c.mutate(func(d *document.Document) error {
		return d.Change(func(w *document.Writer) error {
			_, err := w.InsertText(d.Selection().First(), text)
			return err
		})
	})
}

// InsertMention inserts the feed item id at the caret followed by a space.
func (c *Context) InsertMention(id string) (document.Mention, error) {
	item, ok := c.opts.Feed.Lookup(id)
	if !ok {
		return document.Mention{}, fmt.Errorf("unknown mention %q", id)
	}
	m := item.Mention("")
	err := c.mutate(func(d *document.Document) error {
		return d.Change(func(w *document.Writer) error {
			at := d.Selection().First()
			n, err := w.InsertMention(at, m)
			if err != nil {
				return err
			}
			end, _ := w.PositionAfter(n)
			_, err = w.InsertText(end, " ")
			return err
		})
	})
	if err != nil {
		return document.Mention{}, err
	}
	return m, nil
}

func (c *Context) Undo() bool {
	var ok bool
	c.mutate(func(d *document.Document) error {
		ok = d.Undo()
		return nil
	})
	return ok
}

func (c *Context) Redo() bool {
	var ok bool
	c.mutate(func(d *document.Document) error {
		ok = d.Redo()
		return nil
	})
	return ok
}

// NewUpload creates an adapter for file through the configured factory.
// An empty id gets a generated one.
func (c *Context) NewUpload(id string, file upload.File) (*upload.Adapter, error) {
	if c.opts.Uploads == nil {
		return nil, fmt.Errorf("uploads are not configured")
	}
	return c.opts.Uploads.NewWithID(id, file), nil
}

// UploadImage runs one adapter and inserts the resolved locator at the
// caret. The document is not touched unless the upload resolves.
func (c *Context) UploadImage(ctx context.Context, a *upload.Adapter, alt string) (upload.Result, error) {
	res, err := a.Upload(ctx)
	if err != nil {
		return upload.Result{}, err
	}
	if err := c.InsertImage(res.Locator, alt); err != nil {
		return upload.Result{}, err
	}
	return res, nil
}

func (c *Context) InsertImage(locator, alt string) error {
	return c.mutate(func(d *document.Document) error {
		return d.Change(func(w *document.Writer) error {
			_, err := w.InsertImage(d.Selection().First(), document.Image{Src: locator, Alt: strings.TrimSpace(alt)})
			return err
		})
	})
}

func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Context) snapshotLocked() Snapshot {
	return Snapshot{
		ID:       c.id,
		HTML:     markup.Downcast(c.doc.Nodes()),
		Text:     c.doc.PlainText(),
		Caret:    c.doc.Selection().First(),
		Length:   c.doc.Len(),
		Version:  c.opts.BaseVersion + c.doc.Version(),
		Mentions: c.doc.Mentions(),
	}
}

// mutate runs fn under the lock and fires OnChange if the version moved.
func (c *Context) mutate(fn func(d *document.Document) error) error {
	c.mu.Lock()
	before := c.doc.Version()
	err := fn(c.doc)
	changed := c.doc.Version() != before
	var snap Snapshot
	if changed && c.opts.OnChange != nil {
		snap = c.snapshotLocked()
	}
	c.mu.Unlock()
	if changed && c.opts.OnChange != nil {
		c.opts.OnChange(snap)
	}
	return err
}
