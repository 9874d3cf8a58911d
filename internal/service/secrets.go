package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"confess.share/internal/cache"
	"confess.share/internal/crypto"
	"confess.share/internal/logger"
	"confess.share/internal/models"
	"confess.share/internal/store"
)

// consumeTimeout bounds the deletions that follow a successful read. They run
// detached from the request context so a client hanging up after the read
// cannot leave the message readable.
const consumeTimeout = 5 * time.Second

type SecretConfig struct {
	// BaseURL is the frontend origin shareable links point to.
	BaseURL          string
	TTL              time.Duration
	BcryptCost       int
	MaxMessageLength int
}

// CreatedSecret is the result of SecretService.Create.
type CreatedSecret struct {
	ID            string
	ShareableLink string
	ExpiresAt     time.Time
}

// SecretService stores one-time messages in the document store, mirrors them
// into the cache and deletes them from both after the first successful read.
type SecretService struct {
	secrets store.SecretStore
	cache   cache.Cache
	cfg     SecretConfig
	logger  *logger.Logger
	now     func() time.Time
}

func NewSecretService(secrets store.SecretStore, c cache.Cache, cfg SecretConfig, log *logger.Logger) *SecretService {
	return &SecretService{
		secrets: secrets,
		cache:   c,
		cfg:     cfg,
		logger:  log.WithComponent("secrets"),
		now:     time.Now,
	}
}

func (s *SecretService) Create(ctx context.Context, message, password string) (*CreatedSecret, error) {
	if err := validateMessage(message, s.cfg.MaxMessageLength); err != nil {
		return nil, err
	}

	log := s.logger.WithContext(ctx)

	// Checked up front so a misconfigured deployment does not leave
	// unreachable messages behind.
	if s.cfg.BaseURL == "" {
		log.Error("base url is not configured, cannot build shareable link")
		return nil, ErrMisconfigured
	}

	if len(password) > crypto.MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	var passwordHash string
	if password != "" {
		hash, err := crypto.HashPassword(password, s.cfg.BcryptCost)
		if err != nil {
			log.Error("failed to hash password", "error", err)
			return nil, err
		}
		passwordHash = hash
	}

	now := s.now().UTC()
	msg := &models.SecretMessage{
		Message:      message,
		PasswordHash: passwordHash,
		Key:          crypto.GenerateKey(),
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.cfg.TTL),
	}

	if err := s.secrets.Create(ctx, msg); err != nil {
		log.Error("failed to save secret message", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if err := s.cache.Set(ctx, msg.ID, msg.Cached(), s.cfg.TTL); err != nil {
		log.Error("failed to cache secret message", "id", msg.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	log.Info("secret message created", "id", msg.ID, "password_protected", msg.HasPassword())

	return &CreatedSecret{
		ID:            msg.ID,
		ShareableLink: strings.TrimRight(s.cfg.BaseURL, "/") + "/secret/" + msg.ID,
		ExpiresAt:     msg.ExpiresAt,
	}, nil
}

// Retrieve returns the message stored under id and deletes it. A message
// that was already read is indistinguishable from one that never existed,
// and of two concurrent reads only one gets the message.
// Failed password checks leave the message in place.
func (s *SecretService) Retrieve(ctx context.Context, id, password string) (string, error) {
	id, err := normalizeID(id)
	if err != nil {
		return "", err
	}

	log := s.logger.WithContext(ctx)

	entry, err := s.lookup(ctx, id)
	if err != nil {
		return "", err
	}

	if entry.HasPassword() {
		if password == "" {
			return "", ErrPasswordRequired
		}
		ok, err := crypto.CheckPassword(entry.PasswordHash, password)
		if err != nil {
			log.Error("stored password hash is unusable", "id", id, "error", err)
			return "", err
		}
		if !ok {
			return "", ErrIncorrectPassword
		}
	}

	if err := s.consume(ctx, id); err != nil {
		return "", err
	}
	return entry.Message, nil
}

// lookup reads the cache first and falls back to the document store.
func (s *SecretService) lookup(ctx context.Context, id string) (*models.CachedSecret, error) {
	log := s.logger.WithContext(ctx)

	entry, err := s.cache.Get(ctx, id)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		log.Warn("cache lookup failed, falling back to store", "id", id, "error", err)
	}

	msg, err := s.secrets.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error("failed to load secret message", "id", id, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return msg.Cached(), nil
}

// consume deletes id from both stores. The store delete decides which reader
// owns the message: if the record is already gone another read consumed it
// first and the caller gets ErrNotFound. Any other deletion failure is logged
// only; the cache TTL and the sweeper clean up leftovers.
func (s *SecretService) consume(ctx context.Context, id string) error {
	log := s.logger.WithContext(ctx)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), consumeTimeout)
	defer cancel()

	var consumed error
	if err := s.secrets.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("secret message already consumed", "id", id)
			consumed = ErrNotFound
		} else {
			log.Error("failed to delete secret message from store", "id", id, "error", err)
		}
	}

	if err := s.cache.Delete(ctx, id); err != nil {
		log.Error("failed to delete secret message from cache", "id", id, "error", err)
	}

	if consumed != nil {
		return consumed
	}

	log.Info("secret message consumed", "id", id)
	return nil
}
