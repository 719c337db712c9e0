package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mentioneditor/internal/gateway/config"
	"mentioneditor/internal/objectstore"
	"mentioneditor/internal/upload"
)

func TestInitInMemoryStores(t *testing.T) {
	cfg := &config.Config{Upload: config.UploadConfig{Backend: "auto"}}
	stores, err := initStores(cfg)
	if err != nil {
		t.Fatalf("initStores: %v", err)
	}
	if stores.db != nil {
		t.Fatalf("expected no database without DATABASE_URL")
	}
	if _, ok := stores.objects.(*objectstore.CachedStore); !ok {
		t.Fatalf("objects should be cached, got %T", stores.objects)
	}
	if stores.documents == nil {
		t.Fatalf("documents store is nil")
	}
}

func TestNewTransportSelection(t *testing.T) {
	objects := objectstore.NewMemoryStore("")
	cases := []struct {
		upload config.UploadConfig
		check  func(upload.Transport) bool
	}{
		{config.UploadConfig{Backend: "auto"}, func(tr upload.Transport) bool { _, ok := tr.(*upload.ObjectTransport); return ok }},
		{config.UploadConfig{Backend: "inline"}, func(tr upload.Transport) bool { _, ok := tr.(upload.DataURLTransport); return ok }},
		{config.UploadConfig{Backend: "http", HTTPEndpoint: "https://up.example", HTTPToken: "t"}, func(tr upload.Transport) bool {
			h, ok := tr.(*upload.HTTPTransport)
			return ok && h.Headers["Authorization"] == "Bearer t"
		}},
		{config.UploadConfig{Backend: "http"}, func(tr upload.Transport) bool { _, ok := tr.(*upload.ObjectTransport); return ok }},
	}
	for _, tc := range cases {
		tr := newTransport(&config.Config{Upload: tc.upload}, objects)
		if !tc.check(tr) {
			t.Fatalf("backend %q: unexpected transport %T", tc.upload.Backend, tr)
		}
	}
}

func TestLoadFeed(t *testing.T) {
	feed, err := loadFeed(&config.Config{Mention: config.MentionConfig{MinimumCharacters: 2}})
	if err != nil {
		t.Fatalf("loadFeed: %v", err)
	}
	if len(feed.Items) != 4 || feed.MinimumCharacters != 2 {
		t.Fatalf("unexpected default feed: %+v", feed)
	}

	path := filepath.Join(t.TempDir(), "feed.json")
	if err := os.WriteFile(path, []byte(`{"marker":"@","feed":[{"id":"@Ana","userId":"9","name":"Ana"}]}`), 0o644); err != nil {
		t.Fatalf("write feed: %v", err)
	}
	feed, err = loadFeed(&config.Config{Mention: config.MentionConfig{FeedFile: path}})
	if err != nil {
		t.Fatalf("loadFeed file: %v", err)
	}
	if len(feed.Items) != 1 || feed.Items[0].ID != "@Ana" {
		t.Fatalf("unexpected file feed: %+v", feed)
	}

	if _, err := loadFeed(&config.Config{Mention: config.MentionConfig{FeedFile: filepath.Join(t.TempDir(), "missing.json")}}); err == nil {
		t.Fatalf("expected error for missing feed file")
	}
}

func TestChooseObjectStoreHonoursBackend(t *testing.T) {
	fallback := objectstore.NewMemoryStore("https://db.example/objects")
	noS3 := func() (objectstore.Store, error) {
		t.Fatalf("s3 factory must not be called")
		return nil, nil
	}
	cases := map[string]string{
		"memory":   "https://cdn.example/",
		"postgres": "https://db.example/objects/",
		"auto":     "https://db.example/objects/",
	}
	for backend, prefix := range cases {
		cfg := &config.Config{Upload: config.UploadConfig{Backend: backend, PublicBaseURL: "https://cdn.example"}}
		store, err := chooseObjectStore(cfg, fallback, "postgres", noS3)
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		u, err := store.URL(context.Background(), "k.png")
		if err != nil {
			t.Fatalf("%s url: %v", backend, err)
		}
		if !strings.HasPrefix(u, prefix) {
			t.Fatalf("backend %s resolved to %s, want prefix %s", backend, u, prefix)
		}
	}

	// memory wins even when S3 settings are complete.
	cfg := &config.Config{Upload: config.UploadConfig{Backend: "memory", Endpoint: "s3:9000", AccessKey: "a", SecretKey: "s", Bucket: "b"}}
	if _, err := chooseObjectStore(cfg, fallback, "postgres", noS3); err != nil {
		t.Fatalf("memory with s3 settings: %v", err)
	}
}

func TestUploadParamsReachHTTPTransport(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Params map[string]string `json:"params"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		got = body.Params
		_, _ = w.Write([]byte(`{"url":"https://files/x.png"}`))
	}))
	defer srv.Close()

	cfg := &config.Config{Upload: config.UploadConfig{
		Backend:      "http",
		HTTPEndpoint: srv.URL,
		Params:       map[string]string{"folder": "posts"},
	}}
	f := newUploadFactory(cfg, objectstore.NewMemoryStore(""))
	if _, err := f.New(upload.NewBytesFile("x.png", "image/png", []byte("png"))).Upload(context.Background()); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if got["folder"] != "posts" {
		t.Fatalf("params not forwarded: %+v", got)
	}
}
