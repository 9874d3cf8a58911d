package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"confess.share/internal/logger"
	"confess.share/internal/models"
	"confess.share/internal/store"
)

// ConfessionService is plain CRUD over the confession store.
type ConfessionService struct {
	confessions      store.ConfessionStore
	maxMessageLength int
	logger           *logger.Logger
}

func NewConfessionService(confessions store.ConfessionStore, maxMessageLength int, log *logger.Logger) *ConfessionService {
	return &ConfessionService{
		confessions:      confessions,
		maxMessageLength: maxMessageLength,
		logger:           log.WithComponent("confessions"),
	}
}

func (s *ConfessionService) Create(ctx context.Context, message string) (*models.Confession, error) {
	if err := validateMessage(message, s.maxMessageLength); err != nil {
		return nil, err
	}

	c := &models.Confession{Message: message}
	if err := s.confessions.Create(ctx, c); err != nil {
		s.logger.WithContext(ctx).Error("failed to create confession", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return c, nil
}

func (s *ConfessionService) List(ctx context.Context) ([]models.Confession, error) {
	list, err := s.confessions.List(ctx)
	if err != nil {
		s.logger.WithContext(ctx).Error("failed to list confessions", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if list == nil {
		list = []models.Confession{}
	}
	return list, nil
}

func (s *ConfessionService) Update(ctx context.Context, id, message string) (*models.Confession, error) {
	id, err := confessionID(id)
	if err != nil {
		return nil, err
	}
	if err := validateMessage(message, s.maxMessageLength); err != nil {
		return nil, err
	}

	c, err := s.confessions.UpdateMessage(ctx, id, message)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		s.logger.WithContext(ctx).Error("failed to update confession", "id", id, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return c, nil
}

func (s *ConfessionService) Delete(ctx context.Context, id string) error {
	id, err := confessionID(id)
	if err != nil {
		return err
	}

	if err := s.confessions.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		s.logger.WithContext(ctx).Error("failed to delete confession", "id", id, "error", err)
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return nil
}

// confessionID tolerates underscores that some clients insert into ids.
func confessionID(id string) (string, error) {
	return normalizeID(strings.ReplaceAll(id, "_", ""))
}
