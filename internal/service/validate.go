package service

import (
	"strings"
	"unicode/utf8"

	"confess.share/internal/models"
)

func validateMessage(message string, maxLength int) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}
	if maxLength > 0 && utf8.RuneCountInString(message) > maxLength {
		return ErrMessageTooLong
	}
	return nil
}

// normalizeID validates id and returns its canonical lower-case form.
func normalizeID(id string) (string, error) {
	if !models.ValidID(id) {
		return "", ErrInvalidID
	}
	return strings.ToLower(id), nil
}
