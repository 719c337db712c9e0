package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"mentioneditor/internal/gateway/handler"
	docrepo "mentioneditor/internal/gateway/repository/document"
	"mentioneditor/internal/gateway/session"
	"mentioneditor/internal/mention"
	"mentioneditor/internal/objectstore"
	"mentioneditor/internal/upload"
)

func newTestServer(t *testing.T, transport upload.Transport, objects objectstore.Store) (*httptest.Server, *session.Manager, *docrepo.MemoryStore) {
	t.Helper()
	docs := docrepo.NewMemoryStore()
	sessions, err := session.NewManager(docs, mention.DefaultFeed(), upload.NewFactory(transport, upload.Config{MaxBytes: 1 << 20}), 8)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	mux := NewMux(
		handler.NewDocumentHandler(sessions),
		handler.NewUploadHandler(sessions, 1<<20),
		handler.NewEditingHandler(sessions),
		handler.NewObjectHandler(objects),
	)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, sessions, docs
}

func multipartUpload(t *testing.T, name string, content []byte, fields ...string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("upload", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	fields = append([]string{"alt", "diagram"}, fields...)
	for i := 0; i+1 < len(fields); i += 2 {
		if err := mw.WriteField(fields[i], fields[i+1]); err != nil {
			t.Fatalf("write %s: %v", fields[i], err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &body, mw.FormDataContentType()
}

type uploadResponse struct {
	Uploaded bool   `json:"uploaded"`
	URL      string `json:"url"`
	UploadID string `json:"uploadId"`
	Aborted  bool   `json:"aborted"`
}

func TestUploadStoresObjectAndInsertsImage(t *testing.T) {
	objects := objectstore.NewMemoryStore("")
	srv, _, _ := newTestServer(t, upload.NewObjectTransport(objects, "uploads"), objects)

	body, contentType := multipartUpload(t, "diagram.png", []byte("\x89PNG\r\n\x1a\nrest"))
	resp, err := http.Post(srv.URL+"/api/documents/d1/uploads", contentType, body)
	if err != nil {
		t.Fatalf("post upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("status %d: %s", resp.StatusCode, raw)
	}
	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Uploaded || !strings.HasPrefix(out.URL, "/objects/uploads/") || out.UploadID == "" {
		t.Fatalf("unexpected reply: %+v", out)
	}

	obj, err := http.Get(srv.URL + out.URL)
	if err != nil {
		t.Fatalf("get object: %v", err)
	}
	defer obj.Body.Close()
	raw, _ := io.ReadAll(obj.Body)
	if obj.StatusCode != http.StatusOK || obj.Header.Get("Content-Type") != "image/png" || !bytes.HasPrefix(raw, []byte("\x89PNG")) {
		t.Fatalf("object: status=%d type=%q", obj.StatusCode, obj.Header.Get("Content-Type"))
	}

	doc, err := http.Get(srv.URL + "/api/documents/d1")
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	defer doc.Body.Close()
	var snap struct {
		HTML   string `json:"html"`
		Length int    `json:"length"`
	}
	if err := json.NewDecoder(doc.Body).Decode(&snap); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if !strings.Contains(snap.HTML, `<img src="`+out.URL+`" alt="diagram">`) || snap.Length != 1 {
		t.Fatalf("document not updated: %+v", snap)
	}
}

func TestUploadAbortEndpoint(t *testing.T) {
	started := make(chan string, 1)
	transport := upload.TransportFunc(func(ctx context.Context, req upload.Request) (upload.Response, error) {
		started <- req.UploadID
		<-ctx.Done()
		return upload.Response{}, ctx.Err()
	})
	srv, sessions, _ := newTestServer(t, transport, objectstore.NewMemoryStore(""))

	id := uuid.NewString()
	type result struct {
		status int
		out    uploadResponse
		err    error
	}
	done := make(chan result, 1)
	body, contentType := multipartUpload(t, "a.png", []byte("png"), "uploadId", id)
	go func() {
		resp, err := http.Post(srv.URL+"/api/documents/d2/uploads", contentType, body)
		if err != nil {
			done <- result{err: err}
			return
		}
		defer resp.Body.Close()
		var out uploadResponse
		err = json.NewDecoder(resp.Body).Decode(&out)
		done <- result{status: resp.StatusCode, out: out, err: err}
	}()

	select {
	case got := <-started:
		if got != id {
			t.Fatalf("transport saw upload id %q, client chose %q", got, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("upload never reached the transport")
	}
	resp, err := http.Post(srv.URL+"/api/uploads/"+id+"/abort", "application/json", nil)
	if err != nil {
		t.Fatalf("post abort: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("abort status: %d", resp.StatusCode)
	}

	res := <-done
	if res.err != nil {
		t.Fatalf("upload request: %v", res.err)
	}
	if res.status != http.StatusConflict || !res.out.Aborted || res.out.UploadID != id {
		t.Fatalf("unexpected abort reply: %d %+v", res.status, res.out)
	}
	c, err := sessions.Open(context.Background(), "d2")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if c.Snapshot().Length != 0 {
		t.Fatalf("aborted upload touched the document")
	}
}

func TestUploadAbortedBeforeItArrives(t *testing.T) {
	var sends atomic.Int32
	transport := upload.TransportFunc(func(context.Context, upload.Request) (upload.Response, error) {
		sends.Add(1)
		return upload.Response{Locator: "https://cdn/x.png"}, nil
	})
	srv, _, _ := newTestServer(t, transport, objectstore.NewMemoryStore(""))

	id := uuid.NewString()
	resp, err := http.Post(srv.URL+"/api/uploads/"+id+"/abort", "application/json", nil)
	if err != nil {
		t.Fatalf("post abort: %v", err)
	}
	resp.Body.Close()

	body, contentType := multipartUpload(t, "a.png", []byte("png"))
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/documents/d5/uploads", body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Upload-Id", strings.ToUpper(id))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post upload: %v", err)
	}
	defer resp.Body.Close()
	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusConflict || !out.Aborted || out.UploadID != id {
		t.Fatalf("unexpected reply: %d %+v", resp.StatusCode, out)
	}
	if sends.Load() != 0 {
		t.Fatalf("transport ran for an aborted upload")
	}
}

func TestUploadRejectsMalformedID(t *testing.T) {
	srv, _, _ := newTestServer(t, upload.DataURLTransport{}, objectstore.NewMemoryStore(""))
	body, contentType := multipartUpload(t, "a.png", []byte("png"), "uploadId", "not-a-uuid")
	resp, err := http.Post(srv.URL+"/api/documents/d6/uploads", contentType, body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: %d", resp.StatusCode)
	}
}

func TestUploadRequiresFile(t *testing.T) {
	srv, _, _ := newTestServer(t, upload.DataURLTransport{}, objectstore.NewMemoryStore(""))
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("alt", "x")
	_ = mw.Close()
	resp, err := http.Post(srv.URL+"/api/documents/d3/uploads", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: %d", resp.StatusCode)
	}
}

func TestMentionsQuery(t *testing.T) {
	srv, _, _ := newTestServer(t, upload.DataURLTransport{}, objectstore.NewMemoryStore(""))
	resp, err := http.Get(srv.URL + "/api/mentions?q=cl")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Marker string `json:"marker"`
		Items  []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Marker != "@" || len(out.Items) != 1 || out.Items[0].ID != "@Clare" {
		t.Fatalf("unexpected feed reply: %+v", out)
	}
}

type wsState struct {
	Type    string `json:"type"`
	Handled bool   `json:"handled"`
	Action  string `json:"action"`
	Message string `json:"message"`
	State   *struct {
		Text    string `json:"text"`
		Caret   int    `json:"caret"`
		Version uint64 `json:"version"`
	} `json:"state"`
}

func TestEditingSocketRemovesMentionAtomically(t *testing.T) {
	srv, sessions, docs := newTestServer(t, upload.DataURLTransport{}, objectstore.NewMemoryStore(""))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/documents/d4"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() wsState {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg wsState
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}
	send := func(v map[string]any) wsState {
		t.Helper()
		if err := conn.WriteJSON(v); err != nil {
			t.Fatalf("write: %v", err)
		}
		return read()
	}

	if first := read(); first.Type != "state" || first.State.Text != "" {
		t.Fatalf("initial state: %+v", first)
	}
	send(map[string]any{"type": "insert_text", "text": "hi "})
	msg := send(map[string]any{"type": "insert_mention", "mentionId": "@Alex"})
	if msg.State.Text != "hi @Alex " || msg.State.Caret != 9 {
		t.Fatalf("after mention: %+v", msg.State)
	}
	send(map[string]any{"type": "set_caret", "offset": 8})

	msg = send(map[string]any{"type": "keydown", "keyCode": 8})
	if !msg.Handled || msg.Action != mention.RemoveNodeBefore.String() {
		t.Fatalf("backspace not consumed: %+v", msg)
	}
	if msg.State.Text != "hi  " || msg.State.Caret != 3 {
		t.Fatalf("after backspace: %+v", msg.State)
	}

	msg = send(map[string]any{"type": "keydown", "key": "a"})
	if msg.Handled || msg.Action != mention.PassThrough.String() {
		t.Fatalf("plain key consumed: %+v", msg)
	}

	msg = send(map[string]any{"type": "undo"})
	if !msg.Handled || msg.State.Text != "hi @Alex " {
		t.Fatalf("undo: %+v", msg)
	}

	msg = send(map[string]any{"type": "keydown", "keyCode": 37})
	if msg.Action != mention.MoveCaretBefore.String() || msg.State.Caret != 3 {
		t.Fatalf("arrow left over mention: %+v", msg)
	}
	msg = send(map[string]any{"type": "keydown", "keyCode": 8})
	if msg.Handled || msg.State.Text != "hi@Alex " || msg.State.Caret != 2 {
		t.Fatalf("plain backspace: handled=%v state=%+v", msg.Handled, msg.State)
	}
	msg = send(map[string]any{"type": "set_caret", "offset": 4})
	if msg.State.Caret != 2 {
		t.Fatalf("caret inside mention not snapped: %+v", msg.State)
	}

	if msg = send(map[string]any{"type": "bogus"}); msg.Type != "error" {
		t.Fatalf("expected error reply, got %+v", msg)
	}
	if msg = send(map[string]any{"type": "ping"}); msg.Type != "pong" {
		t.Fatalf("expected pong, got %+v", msg)
	}

	sessions.Flush()
	rec, err := docs.Load(context.Background(), "d4")
	if err != nil {
		t.Fatalf("load persisted: %v", err)
	}
	if !strings.Contains(rec.HTML, `data-mention="@Alex"`) {
		t.Fatalf("persisted html: %s", rec.HTML)
	}
}
