package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS editor_documents (
    id TEXT PRIMARY KEY,
    html TEXT NOT NULL DEFAULT '',
    version BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Load(ctx context.Context, id string) (Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Record{}, fmt.Errorf("document id is required")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return Record{}, err
	}
	rec := Record{ID: id}
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT html, version, updated_at FROM editor_documents WHERE id=$1`, id).
		Scan(&rec.HTML, &version, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	rec.Version = uint64(version)
	return rec, nil
}

func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	rec.ID = strings.TrimSpace(rec.ID)
	if rec.ID == "" {
		return fmt.Errorf("document id is required")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO editor_documents (id, html, version, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id)
DO UPDATE SET html=EXCLUDED.html, version=EXCLUDED.version, updated_at=EXCLUDED.updated_at
WHERE editor_documents.version < EXCLUDED.version
`, rec.ID, rec.HTML, int64(rec.Version), rec.UpdatedAt)
	return err
}
