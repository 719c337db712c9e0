package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"mentioneditor/internal/gateway/session"
)

// DocumentHandler serves document snapshots and the mention feed.
type DocumentHandler struct {
	sessions *session.Manager
}

func NewDocumentHandler(sessions *session.Manager) *DocumentHandler {
	return &DocumentHandler{sessions: sessions}
}

func (h *DocumentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "document id is required", http.StatusBadRequest)
		return
	}
	c, err := h.sessions.Open(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (h *DocumentHandler) HandleMentions(w http.ResponseWriter, r *http.Request) {
	feed := h.sessions.Feed()
	items := feed.Query(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, map[string]any{
		"marker": feed.Marker,
		"items":  items,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
