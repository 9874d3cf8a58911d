package store

import (
	"context"
	"errors"
	"time"

	"confess.share/internal/models"
)

// ErrNotFound is returned when a record does not exist. Deleting an absent
// record also reports ErrNotFound so callers can choose to ignore it.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateKey is returned when a secret message key is already taken.
var ErrDuplicateKey = errors.New("duplicate secret key")

type ConfessionStore interface {
	// Create assigns ID (and CreatedAt when zero) and persists c.
	Create(ctx context.Context, c *models.Confession) error
	List(ctx context.Context) ([]models.Confession, error)
	UpdateMessage(ctx context.Context, id, message string) (*models.Confession, error)
	Delete(ctx context.Context, id string) error
}

type SecretStore interface {
	// Create assigns ID and persists s. CreatedAt and ExpiresAt are set by the caller.
	Create(ctx context.Context, s *models.SecretMessage) error
	Get(ctx context.Context, id string) (*models.SecretMessage, error)
	Delete(ctx context.Context, id string) error
	// ListExpired returns the ids of messages whose expiry is strictly before now.
	ListExpired(ctx context.Context, now time.Time) ([]string, error)
	// DeleteExpired removes every message whose expiry is strictly before now
	// in a single operation and reports how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type Store interface {
	Confessions() ConfessionStore
	Secrets() SecretStore
	Ping(ctx context.Context) error
	Close() error
}
