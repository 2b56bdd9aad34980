package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Backend is the persistence collaborator behind the entity stores: one
// opaque document per collection key, read and replaced whole. Each call is
// atomic on its own.
type Backend interface {
	// LoadCollection returns the stored document, or nil when the key has
	// never been saved.
	LoadCollection(ctx context.Context, key string) ([]byte, error)
	// SaveCollection replaces the document stored under key.
	SaveCollection(ctx context.Context, key string, doc []byte) error
}

// Collections stores collection documents in the collections table
type Collections struct {
	db  *DB
	now func() time.Time
}

// NewCollections creates a document backend on a migrated database
func NewCollections(db *DB) *Collections {
	return &Collections{db: db, now: time.Now}
}

// LoadCollection implements Backend
func (c *Collections) LoadCollection(ctx context.Context, key string) ([]byte, error) {
	var doc string
	err := c.db.conn.QueryRowContext(ctx, `SELECT doc FROM collections WHERE key = ?`, key).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load collection %s: %w", key, err)
	}
	return []byte(doc), nil
}

// SaveCollection implements Backend
func (c *Collections) SaveCollection(ctx context.Context, key string, doc []byte) error {
	_, err := c.db.conn.ExecContext(ctx, `
		INSERT INTO collections (key, doc, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at
	`, key, string(doc), c.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save collection %s: %w", key, err)
	}
	return nil
}
