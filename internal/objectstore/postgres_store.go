package objectstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore keeps objects as BYTEA rows. Locators point at the
// gateway's object route under baseURL.
type PostgresStore struct {
	db         *sql.DB
	baseURL    string
	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(db *sql.DB, publicBaseURL string) *PostgresStore {
	return &PostgresStore{db: db, baseURL: publicBaseURL}
}

// OpenPostgres opens a pgx-backed database handle for dsn.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return db, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS upload_objects (
    key TEXT PRIMARY KEY,
    content_type TEXT NOT NULL DEFAULT '',
    content BYTEA NOT NULL DEFAULT ''::bytea,
    size BIGINT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Put(ctx context.Context, key, contentType string, content []byte) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	if content == nil {
		content = []byte{}
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO upload_objects (key, content_type, content, size, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (key)
DO UPDATE SET content_type=EXCLUDED.content_type, content=EXCLUDED.content, size=EXCLUDED.size, updated_at=EXCLUDED.updated_at
`, key, contentType, content, int64(len(content)), time.Now())
	return err
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*Object, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	obj := &Object{Key: key}
	err = s.db.QueryRowContext(ctx, `SELECT content_type, content FROM upload_objects WHERE key=$1`, key).
		Scan(&obj.ContentType, &obj.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (s *PostgresStore) URL(_ context.Context, key string) (string, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return "", err
	}
	return publicURL(s.baseURL, key), nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM upload_objects WHERE key=$1`, key)
	return err
}
