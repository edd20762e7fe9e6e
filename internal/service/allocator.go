package service

import "github.com/google/uuid"

// IDAllocator produces unique opaque identifiers for new properties.
type IDAllocator interface {
	NewID() string
}

// UUIDAllocator allocates random UUID identifiers.
type UUIDAllocator struct{}

// NewID returns a freshly generated UUID string.
func (UUIDAllocator) NewID() string {
	return uuid.New().String()
}
