package handler

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"mentioneditor/internal/gateway/session"
	"mentioneditor/internal/upload"
)

const (
	uploadFormField = "upload"
	// The client may name the upload so it can abort it while in flight.
	uploadIDField  = "uploadId"
	uploadIDHeader = "X-Upload-Id"
)

// UploadHandler runs one upload adapter per posted file and inserts the
// resulting image into the target document.
type UploadHandler struct {
	sessions *session.Manager
	maxBytes int64
}

func NewUploadHandler(sessions *session.Manager, maxBytes int64) *UploadHandler {
	return &UploadHandler{sessions: sessions, maxBytes: maxBytes}
}

type uploadReply struct {
	Uploaded bool   `json:"uploaded"`
	URL      string `json:"url,omitempty"`
	UploadID string `json:"uploadId,omitempty"`
	Aborted  bool   `json:"aborted,omitempty"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func errorReply(uploadID, msg string) uploadReply {
	out := uploadReply{UploadID: uploadID}
	out.Error = &struct {
		Message string `json:"message"`
	}{Message: msg}
	return out
}

func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	docID := strings.TrimSpace(r.PathValue("id"))
	if docID == "" {
		writeJSON(w, http.StatusBadRequest, errorReply("", "document id is required"))
		return
	}
	if h.maxBytes > 0 {
		// Leave room for multipart framing around the file itself.
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, errorReply("", "invalid multipart body: "+err.Error()))
		return
	}
	files := r.MultipartForm.File[uploadFormField]
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, errorReply("", "form field \"upload\" is required"))
		return
	}

	requestedID, err := clientUploadID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorReply("", err.Error()))
		return
	}

	c, err := h.sessions.Open(r.Context(), docID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorReply("", err.Error()))
		return
	}
	adapter, err := c.NewUpload(requestedID, upload.MultipartFile{Header: files[0]})
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorReply("", err.Error()))
		return
	}
	id := adapter.ID()
	if !h.sessions.Track(adapter) {
		writeJSON(w, http.StatusConflict, errorReply(id, "upload id is already in use"))
		return
	}
	defer h.sessions.Untrack(id)

	res, err := c.UploadImage(r.Context(), adapter, r.FormValue("alt"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, uploadReply{Uploaded: true, URL: res.Locator, UploadID: id})
	case upload.IsAborted(err):
		writeJSON(w, http.StatusConflict, uploadReply{UploadID: id, Aborted: true})
	case errors.Is(err, upload.ErrReadFailure):
		writeJSON(w, http.StatusBadRequest, errorReply(id, err.Error()))
	case errors.Is(err, upload.ErrTransportFailure):
		log.Printf("upload %s for document %s failed: %v", id, docID, err)
		writeJSON(w, http.StatusBadGateway, errorReply(id, err.Error()))
	default:
		log.Printf("upload %s for document %s: %v", id, docID, err)
		writeJSON(w, http.StatusInternalServerError, errorReply(id, err.Error()))
	}
}

func (h *UploadHandler) HandleAbort(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("uploadId"))
	if id == "" {
		http.Error(w, "upload id is required", http.StatusBadRequest)
		return
	}
	if parsed, err := uuid.Parse(id); err == nil {
		id = parsed.String()
	}
	h.sessions.Abort(id)
	w.WriteHeader(http.StatusNoContent)
}

// clientUploadID returns the canonical form of a client-chosen upload ID,
// or "" when none was sent.
func clientUploadID(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.Header.Get(uploadIDHeader))
	if raw == "" {
		raw = strings.TrimSpace(r.FormValue(uploadIDField))
	}
	if raw == "" {
		return "", nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", errors.New("upload id must be a uuid")
	}
	return id.String(), nil
}
