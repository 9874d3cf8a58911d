package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"confess.share/internal/cache"
	"confess.share/internal/logger"
	"confess.share/internal/models"
	"confess.share/internal/store"
)

// recordingSecrets wraps a SecretStore, counts calls and can inject errors.
type recordingSecrets struct {
	store.SecretStore

	mu        sync.Mutex
	calls     int
	getErr    error
	deleteErr error
	createErr error
}

func (r *recordingSecrets) record() {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
}

func (r *recordingSecrets) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *recordingSecrets) Create(ctx context.Context, s *models.SecretMessage) error {
	r.record()
	if r.createErr != nil {
		return r.createErr
	}
	return r.SecretStore.Create(ctx, s)
}

func (r *recordingSecrets) Get(ctx context.Context, id string) (*models.SecretMessage, error) {
	r.record()
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.SecretStore.Get(ctx, id)
}

func (r *recordingSecrets) Delete(ctx context.Context, id string) error {
	r.record()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	return r.SecretStore.Delete(ctx, id)
}

// recordingCache wraps a Cache the same way.
type recordingCache struct {
	cache.Cache

	mu        sync.Mutex
	calls     int
	getErr    error
	setErr    error
	deleteErr error
}

func (r *recordingCache) record() {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
}

func (r *recordingCache) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *recordingCache) Set(ctx context.Context, id string, e *models.CachedSecret, ttl time.Duration) error {
	r.record()
	if r.setErr != nil {
		return r.setErr
	}
	return r.Cache.Set(ctx, id, e, ttl)
}

func (r *recordingCache) Get(ctx context.Context, id string) (*models.CachedSecret, error) {
	r.record()
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.Cache.Get(ctx, id)
}

func (r *recordingCache) Delete(ctx context.Context, id string) error {
	r.record()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	return r.Cache.Delete(ctx, id)
}

type secretFixture struct {
	svc     *SecretService
	store   *store.MemoryStore
	secrets *recordingSecrets
	cache   *recordingCache
}

func newSecretFixture(t *testing.T) *secretFixture {
	t.Helper()

	st := store.NewMemoryStore()
	mc := cache.NewMemoryCache(time.Hour)
	t.Cleanup(func() { _ = mc.Close() })

	secrets := &recordingSecrets{SecretStore: st.Secrets()}
	rc := &recordingCache{Cache: mc}

	svc := NewSecretService(secrets, rc, SecretConfig{
		BaseURL:          "https://confess.example",
		TTL:              24 * time.Hour,
		BcryptCost:       bcrypt.MinCost,
		MaxMessageLength: 1000,
	}, logger.Discard())

	return &secretFixture{svc: svc, store: st, secrets: secrets, cache: rc}
}
