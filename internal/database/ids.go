package database

import "github.com/google/uuid"

// NewID returns a fresh random record id.
func NewID() string {
	return uuid.NewString()
}
