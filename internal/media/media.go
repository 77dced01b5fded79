// Package media is a content-addressed blob store. Identity is derived from
// content equality: putting the same bytes twice always yields the same id.
// Media is immutable once created; there is no update or delete.
package media

import (
	"context"
	"database/sql"
	"errors"

	"github.com/arunsworth/cardbox/internal/db"
	apperrors "github.com/arunsworth/cardbox/internal/errors"
	"github.com/arunsworth/cardbox/internal/logger"
)

type Store struct {
	db *sql.DB
}

func New(sqlDB *sql.DB) *Store {
	return &Store{db: sqlDB}
}

// Put stores content and returns its id. Identical content returns the
// existing id; the UNIQUE constraint on content serializes racing uploads so
// two identical blobs can never end up under different ids.
func (s *Store) Put(ctx context.Context, content []byte) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("media")

	var id int64
	err := db.Tx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO media (content) VALUES (?)
`, content); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT id FROM media WHERE content = ?`, content).Scan(&id)
	})
	if err != nil {
		log.Error("failed to put media: %v", err)
		return 0, apperrors.NewStoreError("put media", err)
	}
	log.Debug("media stored: id=%d, size=%d", id, len(content))
	return id, nil
}

// Get returns the content stored under id, or false when no such media
// exists.
func (s *Store) Get(ctx context.Context, id int64) ([]byte, bool, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx, `SELECT content FROM media WHERE id = ?`, id).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.NewStoreError("get media", err)
	}
	return content, true, nil
}
