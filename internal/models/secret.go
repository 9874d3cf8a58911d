package models

import "time"

type SecretMessage struct {
	ID           string    `json:"id"`
	Message      string    `json:"-"`
	PasswordHash string    `json:"-"`
	Key          string    `json:"key"` // informational, never used for lookup
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// HasPassword reports whether reading the message requires a password.
func (s *SecretMessage) HasPassword() bool {
	return s.PasswordHash != ""
}

// Cached returns the cache mirror of the message.
func (s *SecretMessage) Cached() *CachedSecret {
	return &CachedSecret{
		Key:          s.Key,
		Message:      s.Message,
		PasswordHash: s.PasswordHash,
	}
}

// CachedSecret is the cache representation of a SecretMessage, stored as JSON
// under the message id.
type CachedSecret struct {
	Key          string `json:"key"`
	Message      string `json:"message"`
	PasswordHash string `json:"passwordHash"`
}

func (c *CachedSecret) HasPassword() bool {
	return c.PasswordHash != ""
}
