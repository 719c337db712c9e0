package upload

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"

	"mentioneditor/internal/objectstore"
)

// ObjectTransport stores payloads in an object store under
// {Prefix}/{uuid}{ext} and resolves to the store's locator for that key.
type ObjectTransport struct {
	Store  objectstore.Store
	Prefix string
}

var _ Discarder = (*ObjectTransport)(nil)

func NewObjectTransport(store objectstore.Store, prefix string) *ObjectTransport {
	return &ObjectTransport{Store: store, Prefix: prefix}
}

func (t *ObjectTransport) Send(ctx context.Context, req Request) (Response, error) {
	if t == nil || t.Store == nil {
		return Response{}, fmt.Errorf("object transport store is nil")
	}
	key := t.objectKey(req.Payload)
	if err := t.Store.Put(ctx, key, req.Payload.ContentType, req.Payload.Data); err != nil {
		return Response{}, fmt.Errorf("put %s: %w", key, err)
	}
	req.progress(req.Payload.Size())
	if err := ctx.Err(); err != nil {
		// Abort raced the write; drop the orphan object.
		_ = t.Store.Delete(context.WithoutCancel(ctx), key)
		return Response{}, err
	}
	locator, err := t.Store.URL(ctx, key)
	if err != nil {
		return Response{}, fmt.Errorf("locate %s: %w", key, err)
	}
	return Response{Locator: locator, Ref: key}, nil
}

// Discard deletes the object a Send stored.
func (t *ObjectTransport) Discard(ctx context.Context, resp Response) error {
	if t == nil || t.Store == nil || resp.Ref == "" {
		return nil
	}
	return t.Store.Delete(ctx, resp.Ref)
}

func (t *ObjectTransport) objectKey(p Payload) string {
	ext := strings.ToLower(path.Ext(p.Name))
	if ext == "" {
		if exts, err := mime.ExtensionsByType(p.ContentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	prefix := strings.Trim(strings.TrimSpace(t.Prefix), "/")
	name := uuid.NewString() + ext
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
