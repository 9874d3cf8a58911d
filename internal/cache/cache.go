package cache

import (
	"context"
	"errors"
	"time"

	"confess.share/internal/models"
)

// ErrMiss is returned by Get when no live entry exists for the id.
var ErrMiss = errors.New("cache miss")

// Cache mirrors secret messages under their id with a per-entry TTL.
// Delete of an absent id is a no-op.
type Cache interface {
	Set(ctx context.Context, id string, entry *models.CachedSecret, ttl time.Duration) error
	Get(ctx context.Context, id string) (*models.CachedSecret, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}
