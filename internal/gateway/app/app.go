package app

import (
	"context"
	"fmt"
	"log"

	"mentioneditor/internal/gateway/config"
	"mentioneditor/internal/gateway/handler"
	"mentioneditor/internal/gateway/server"
	"mentioneditor/internal/gateway/session"
	"mentioneditor/internal/mention"
)

type App struct {
	server   *server.Server
	sessions *session.Manager
	stores   *gatewayStores
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg *config.Config) (*App, error) {
	// Dependencies
	stores, err := initStores(cfg)
	if err != nil {
		return nil, err
	}
	feed, err := loadFeed(cfg)
	if err != nil {
		return nil, err
	}
	uploads := newUploadFactory(cfg, stores.objects)
	sessions, err := session.NewManager(stores.documents, feed, uploads, cfg.Session.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to init sessions: %w", err)
	}

	documentHandler := handler.NewDocumentHandler(sessions)
	uploadHandler := handler.NewUploadHandler(sessions, cfg.Upload.MaxBytes)
	editingHandler := handler.NewEditingHandler(sessions)
	objectHandler := handler.NewObjectHandler(stores.objects)

	// Routing & Server
	mux := server.NewMux(documentHandler, uploadHandler, editingHandler, objectHandler)
	srv := server.New(cfg.Port, mux)

	return &App{
		server:   srv,
		sessions: sessions,
		stores:   stores,
	}, nil
}

func loadFeed(cfg *config.Config) (mention.Feed, error) {
	feed := mention.DefaultFeed()
	if cfg.Mention.FeedFile != "" {
		loaded, err := mention.LoadFeed(cfg.Mention.FeedFile)
		if err != nil {
			return mention.Feed{}, fmt.Errorf("failed to load mention feed: %w", err)
		}
		feed = loaded
		log.Printf("mention feed: %d items from %s", len(feed.Items), cfg.Mention.FeedFile)
	}
	if cfg.Mention.MinimumCharacters > 0 {
		feed.MinimumCharacters = cfg.Mention.MinimumCharacters
	}
	return feed, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

// Shutdown aborts in-flight uploads, writes back open documents and then
// stops the server.
func (a *App) Shutdown(ctx context.Context) error {
	a.sessions.AbortAll()
	a.sessions.Flush()
	err := a.server.Shutdown(ctx)
	if a.stores.db != nil {
		if cerr := a.stores.db.Close(); cerr != nil {
			log.Printf("close db: %v", cerr)
		}
	}
	return err
}
