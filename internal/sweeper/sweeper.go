// Package sweeper periodically removes expired secret messages from the
// document store and their mirrors from the cache.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"confess.share/internal/cache"
	"confess.share/internal/logger"
	"confess.share/internal/store"
)

// DefaultInterval is how often expired messages are swept.
const DefaultInterval = time.Hour

// Result summarizes one sweep.
type Result struct {
	Expired       int
	Deleted       int64
	CacheFailures int
}

// Sweeper is safe to run concurrently with itself and with reads: every
// delete it issues is idempotent.
type Sweeper struct {
	secrets  store.SecretStore
	cache    cache.Cache
	interval time.Duration
	logger   *logger.Logger
	now      func() time.Time
}

func New(secrets store.SecretStore, c cache.Cache, interval time.Duration, log *logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		secrets:  secrets,
		cache:    c,
		interval: interval,
		logger:   log.WithComponent("sweeper"),
		now:      time.Now,
	}
}

// Start sweeps once immediately and then on every tick until ctx is canceled.
func (s *Sweeper) Start(ctx context.Context) {
	s.runLogged(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

// Background runs Start in a new goroutine. The returned channel is closed
// once the sweeper has stopped, so callers can wait for an in-flight sweep
// before closing the store and cache.
func (s *Sweeper) Background(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Start(ctx)
	}()
	return done
}

func (s *Sweeper) runLogged(ctx context.Context) {
	res, err := s.Run(ctx)
	if err != nil {
		s.logger.Error("sweep failed", "error", err)
		return
	}
	if res.Expired > 0 || res.Deleted > 0 {
		s.logger.Info("expired secret messages deleted",
			"expired", res.Expired,
			"deleted", res.Deleted,
			"cache_failures", res.CacheFailures,
		)
	}
}

// Run performs a single sweep. Cache mirrors are dropped first, then all
// records expired as of the same instant are bulk-deleted from the store.
// Records that expire between the two steps are left for the next run.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	var res Result
	now := s.now()

	ids, err := s.secrets.ListExpired(ctx, now)
	if err != nil {
		return res, fmt.Errorf("listing expired secret messages: %w", err)
	}
	res.Expired = len(ids)

	for _, id := range ids {
		if err := s.cache.Delete(ctx, id); err != nil {
			res.CacheFailures++
			s.logger.Warn("failed to delete cached secret message", "id", id, "error", err)
		}
	}

	if len(ids) == 0 {
		return res, nil
	}

	n, err := s.secrets.DeleteExpired(ctx, now)
	if err != nil {
		return res, fmt.Errorf("deleting expired secret messages: %w", err)
	}
	res.Deleted = n

	return res, nil
}
