package app

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	"golang.org/x/time/rate"

	"mentioneditor/internal/gateway/config"
	docrepo "mentioneditor/internal/gateway/repository/document"
	"mentioneditor/internal/objectstore"
	"mentioneditor/internal/upload"
)

type gatewayStores struct {
	db        *sql.DB
	documents docrepo.Store
	objects   objectstore.Store
}

func initStores(cfg *config.Config) (*gatewayStores, error) {
	s3Factory := newObjectS3StoreFactory(cfg)

	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		return initPostgresStores(dsn, cfg, s3Factory)
	}
	return initInMemoryStores(cfg, s3Factory)
}

func newObjectS3StoreFactory(cfg *config.Config) func() (objectstore.Store, error) {
	return func() (objectstore.Store, error) {
		s3Cfg := objectstore.S3Config{
			Endpoint:      cfg.Upload.Endpoint,
			Region:        cfg.Upload.Region,
			AccessKey:     cfg.Upload.AccessKey,
			SecretKey:     cfg.Upload.SecretKey,
			Bucket:        cfg.Upload.Bucket,
			UseSSL:        cfg.Upload.UseSSL,
			PublicBaseURL: cfg.Upload.PublicBaseURL,
		}
		s3Store, err := objectstore.NewS3Store(s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize upload s3 store: %w", err)
		}
		log.Printf("upload store: s3 bucket=%s endpoint=%s", s3Cfg.Bucket, s3Cfg.Endpoint)
		return s3Store, nil
	}
}

func initPostgresStores(dsn string, cfg *config.Config, s3Factory func() (objectstore.Store, error)) (*gatewayStores, error) {
	db, err := objectstore.OpenPostgres(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	objects, err := chooseObjectStore(cfg, objectstore.NewPostgresStore(db, cfg.Upload.PublicBaseURL), "postgres", s3Factory)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &gatewayStores{
		db:        db,
		documents: docrepo.NewPostgresStore(db),
		objects:   objects,
	}, nil
}

func initInMemoryStores(cfg *config.Config, s3Factory func() (objectstore.Store, error)) (*gatewayStores, error) {
	objects, err := chooseObjectStore(cfg, objectstore.NewMemoryStore(cfg.Upload.PublicBaseURL), "in-memory", s3Factory)
	if err != nil {
		return nil, err
	}
	return &gatewayStores{
		documents: docrepo.NewMemoryStore(),
		objects:   objects,
	}, nil
}

func chooseObjectStore(
	cfg *config.Config,
	fallback objectstore.Store,
	fallbackLabel string,
	s3Factory func() (objectstore.Store, error),
) (objectstore.Store, error) {
	var origin objectstore.Store
	switch backend := cfg.Upload.Backend; {
	case backend == "memory":
		origin = objectstore.NewMemoryStore(cfg.Upload.PublicBaseURL)
	case backend == "postgres":
		if fallbackLabel != "postgres" {
			log.Printf("upload store: postgres requested without DATABASE_URL, using %s", fallbackLabel)
		}
		origin = fallback
	case cfg.Upload.CanUseS3():
		s3Store, err := s3Factory()
		if err != nil {
			return nil, err
		}
		origin = s3Store
	default:
		if backend == "s3" {
			log.Printf("upload store: using %s fallback (s3 config incomplete)", fallbackLabel)
		}
		origin = fallback
	}
	if origin == nil {
		return nil, fmt.Errorf("upload origin store is nil")
	}
	return objectstore.NewCachedStore(origin, objectstore.DefaultCacheConfig()), nil
}

// newTransport picks how upload payloads leave the gateway.
func newTransport(cfg *config.Config, objects objectstore.Store) upload.Transport {
	switch cfg.Upload.Backend {
	case "http":
		if cfg.Upload.HTTPEndpoint == "" {
			log.Printf("upload transport: UPLOAD_HTTP_ENDPOINT is empty, falling back to object store")
			break
		}
		headers := map[string]string{}
		if cfg.Upload.HTTPToken != "" {
			headers["Authorization"] = "Bearer " + cfg.Upload.HTTPToken
		}
		log.Printf("upload transport: http endpoint=%s", cfg.Upload.HTTPEndpoint)
		return upload.NewHTTPTransport(cfg.Upload.HTTPEndpoint, headers)
	case "inline":
		log.Printf("upload transport: inline data urls")
		return upload.DataURLTransport{}
	}
	return upload.NewObjectTransport(objects, cfg.Upload.KeyPrefix)
}

func newUploadFactory(cfg *config.Config, objects objectstore.Store) *upload.Factory {
	uc := upload.Config{MaxBytes: cfg.Upload.MaxBytes, Params: cfg.Upload.Params}
	if cfg.Upload.RatePerSec > 0 {
		burst := cfg.Upload.RateBurst
		if burst <= 0 {
			burst = 1
		}
		uc.Limiter = rate.NewLimiter(rate.Limit(cfg.Upload.RatePerSec), burst)
	}
	return upload.NewFactory(newTransport(cfg, objects), uc)
}
