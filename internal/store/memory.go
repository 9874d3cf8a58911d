package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"confess.share/internal/models"
)

// Compile-time interface check
var (
	_ Store           = (*MemoryStore)(nil)
	_ ConfessionStore = (*memoryConfessions)(nil)
	_ SecretStore     = (*memorySecrets)(nil)
)

// MemoryStore keeps everything in process memory. It is meant for local
// development and tests; data is lost on restart.
type MemoryStore struct {
	confessions *memoryConfessions
	secrets     *memorySecrets
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		confessions: &memoryConfessions{items: make(map[string]models.Confession)},
		secrets:     &memorySecrets{items: make(map[string]models.SecretMessage)},
	}
}

func (s *MemoryStore) Confessions() ConfessionStore { return s.confessions }

func (s *MemoryStore) Secrets() SecretStore { return s.secrets }

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Close() error {
	s.confessions.mu.Lock()
	s.confessions.items = make(map[string]models.Confession)
	s.confessions.mu.Unlock()

	s.secrets.mu.Lock()
	s.secrets.items = make(map[string]models.SecretMessage)
	s.secrets.mu.Unlock()
	return nil
}

type memoryConfessions struct {
	items map[string]models.Confession
	mu    sync.RWMutex
}

func (m *memoryConfessions) Create(ctx context.Context, c *models.Confession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c.ID = models.NewID()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.items[c.ID] = *c
	return nil
}

func (m *memoryConfessions) List(ctx context.Context) ([]models.Confession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Confession, 0, len(m.items))
	for _, c := range m.items {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memoryConfessions) UpdateMessage(ctx context.Context, id, message string) (*models.Confession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.Message = message
	m.items[id] = c
	return &c, nil
}

func (m *memoryConfessions) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type memorySecrets struct {
	items map[string]models.SecretMessage
	mu    sync.RWMutex
}

func (m *memorySecrets) Create(ctx context.Context, s *models.SecretMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.items {
		if existing.Key == s.Key {
			return ErrDuplicateKey
		}
	}

	s.ID = models.NewID()
	m.items[s.ID] = *s
	return nil
}

func (m *memorySecrets) Get(ctx context.Context, id string) (*models.SecretMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *memorySecrets) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memorySecrets) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, s := range m.items {
		if s.ExpiresAt.Before(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memorySecrets) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.items {
		if s.ExpiresAt.Before(now) {
			delete(m.items, id)
			n++
		}
	}
	return n, nil
}
