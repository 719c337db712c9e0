package document

import (
	"context"
	"errors"
	"time"
)

// Record is the persisted form of a document: its downcast HTML.
type Record struct {
	ID        string
	HTML      string
	Version   uint64
	UpdatedAt time.Time
}

// Store defines operations for persisting documents. Save must ignore a
// record whose version is not newer than the stored one.
type Store interface {
	Load(ctx context.Context, id string) (Record, error)
	Save(ctx context.Context, rec Record) error
}

var ErrNotFound = errors.New("document not found")
