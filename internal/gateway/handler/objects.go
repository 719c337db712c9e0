package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"mentioneditor/internal/objectstore"
)

// ObjectHandler serves stored uploads for stores without their own public
// endpoint.
type ObjectHandler struct {
	store objectstore.Store
}

func NewObjectHandler(store objectstore.Store) *ObjectHandler {
	return &ObjectHandler{store: store}
}

func (h *ObjectHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.PathValue("key"))
	if key == "" {
		http.NotFound(w, r)
		return
	}
	obj, err := h.store.Get(r.Context(), key)
	if errors.Is(err, objectstore.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(obj.Content)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Content)))
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	_, _ = w.Write(obj.Content)
}
