package server

import (
	"net/http"

	"mentioneditor/internal/gateway/handler"
	"mentioneditor/internal/gateway/middleware"
)

func NewMux(
	documentHandler *handler.DocumentHandler,
	uploadHandler *handler.UploadHandler,
	editingHandler *handler.EditingHandler,
	objectHandler *handler.ObjectHandler,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/documents/{id}", documentHandler.HandleGet)
	mux.HandleFunc("GET /api/mentions", documentHandler.HandleMentions)

	mux.HandleFunc("POST /api/documents/{id}/uploads", uploadHandler.HandleUpload)
	mux.HandleFunc("POST /api/uploads/{uploadId}/abort", uploadHandler.HandleAbort)

	mux.HandleFunc("GET /ws/documents/{id}", editingHandler.HandleEditingWS)

	if objectHandler != nil {
		mux.HandleFunc("GET /objects/{key...}", objectHandler.HandleGet)
	}

	return middleware.CORS(mux)
}
