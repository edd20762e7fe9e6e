package repository

import (
	"context"

	"github.com/Psycaptr/rBNB/internal/domain"
)

// Queryable field names accepted by FindWhere. The backing collection is
// queried by these document keys.
const (
	FieldID       = "id"
	FieldOwnerID  = "ownerId"
	FieldIsListed = "isListed"
)

// PropertyRepository defines the persistence contract for property documents.
//
// Implementations report semantic failures through the pkg/errors sentinels:
// ErrNotFound when a keyed operation matches nothing, ErrConflict when a
// conditional rating write loses the race, and ErrStorage for I/O-level
// failures. No implementation caches reads; every call reflects the backend
// state at call time.
type PropertyRepository interface {
	// Insert stores a new document under its ID. The ID must already be set;
	// the implementation mirrors it into the "id" field so key-based and
	// field-based lookups agree.
	Insert(ctx context.Context, property *domain.Property) error

	// Get performs a point lookup by storage key.
	Get(ctx context.Context, id string) (*domain.Property, error)

	// FindByID queries by the "id" field, not the storage key. It returns
	// zero, one, or more matches; callers decide how to treat duplicates.
	FindByID(ctx context.Context, id string) ([]domain.Property, error)

	// FindWhere returns all documents whose field equals value.
	FindWhere(ctx context.Context, field string, value any) ([]domain.Property, error)

	// UpdateFields merges the given field/value pairs into the document at
	// the storage key, leaving unspecified fields untouched.
	UpdateFields(ctx context.Context, id string, fields map[string]any) error

	// CompareAndSwapRating writes next as the document's rating aggregate
	// only if the stored rating.amount still equals expected.Amount. A miss
	// (the aggregate moved, or the document is gone) is ErrConflict.
	CompareAndSwapRating(ctx context.Context, id string, expected, next domain.Rating) error

	// Delete removes the document at the storage key.
	Delete(ctx context.Context, id string) error
}

// OwnerLinker appends property identifiers to an owner's set of owned
// properties. Appends are set-like: linking an already-linked property is a
// no-op. The link is never read back or removed by this service.
type OwnerLinker interface {
	LinkProperty(ctx context.Context, ownerID, propertyID string) error
}
