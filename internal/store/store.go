package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps pgxpool.Pool for document-store operations.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new store connection pool.
func New(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
