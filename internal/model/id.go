package model

import "github.com/google/uuid"

// NewID returns a fresh identifier for documents, chunks, and tags.
func NewID() string {
	return uuid.NewString()
}
