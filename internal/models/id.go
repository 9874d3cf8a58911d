package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// NewID returns a fresh 24-character hex identifier. Backends that do not
// generate ObjectIDs themselves use it so every store shares one id format.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ValidID reports whether id has the store identifier format.
func ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}
