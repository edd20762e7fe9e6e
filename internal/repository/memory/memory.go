package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Psycaptr/rBNB/internal/domain"
	"github.com/Psycaptr/rBNB/internal/repository"
	apperrors "github.com/Psycaptr/rBNB/pkg/errors"
)

// Store is an in-memory implementation of the property repository and owner
// linker with the same semantics as the MongoDB implementation, including the
// conditional rating write. It backs service tests and local development
// without a running backend.
type Store struct {
	mu         sync.Mutex
	properties map[string]domain.Property
	owned      map[string]map[string]struct{}
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		properties: make(map[string]domain.Property),
		owned:      make(map[string]map[string]struct{}),
	}
}

// Insert stores a new property document keyed by its ID, mirroring the ID
// into the "id" field.
func (s *Store) Insert(ctx context.Context, property *domain.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.properties[property.ID]; exists {
		return fmt.Errorf("insert property %s: %w", property.ID, apperrors.ErrConflict)
	}

	property.IDField = property.ID
	s.properties[property.ID] = *property
	return nil
}

// Get performs a point lookup by storage key.
func (s *Store) Get(ctx context.Context, id string) (*domain.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.properties[id]
	if !ok {
		return nil, fmt.Errorf("property %s: %w", id, apperrors.ErrNotFound)
	}
	return &p, nil
}

// FindByID queries by the "id" field and returns every match.
func (s *Store) FindByID(ctx context.Context, id string) ([]domain.Property, error) {
	return s.FindWhere(ctx, repository.FieldID, id)
}

// FindWhere returns all documents whose field equals value. Results are
// ordered by storage key for determinism.
func (s *Store) FindWhere(ctx context.Context, field string, value any) ([]domain.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches := []domain.Property{}
	for _, p := range s.properties {
		var match bool
		switch field {
		case repository.FieldID:
			match = p.IDField == value
		case repository.FieldOwnerID:
			match = p.OwnerID == value
		case repository.FieldIsListed:
			match = p.IsListed == value
		default:
			return nil, fmt.Errorf("query properties by %s: unsupported field: %w", field, apperrors.ErrInvalidInput)
		}
		if match {
			matches = append(matches, p)
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches, nil
}

// UpdateFields merges the given field/value pairs into the document at the
// storage key. The core's mutable top-level fields and the dotted rating
// keys are supported.
func (s *Store) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.properties[id]
	if !ok {
		return fmt.Errorf("property %s: %w", id, apperrors.ErrNotFound)
	}

	for k, v := range fields {
		switch k {
		case "isListed":
			if b, ok := v.(bool); ok {
				p.IsListed = b
			}
		case "name":
			if str, ok := v.(string); ok {
				p.Name = str
			}
		case "description":
			if str, ok := v.(string); ok {
				p.Description = str
			}
		case "address":
			if str, ok := v.(string); ok {
				p.Address = str
			}
		case "city":
			if str, ok := v.(string); ok {
				p.City = str
			}
		case "pricePerNight":
			switch n := v.(type) {
			case int64:
				p.PricePerNight = n
			case int:
				p.PricePerNight = int64(n)
			case float64:
				p.PricePerNight = int64(n)
			}
		case "capacity":
			switch n := v.(type) {
			case int:
				p.Capacity = n
			case float64:
				p.Capacity = int(n)
			}
		case "rating.value":
			if f, ok := v.(float64); ok {
				p.Rating.Value = f
			}
		case "rating.amount":
			if n, ok := v.(int); ok {
				p.Rating.Amount = n
			}
		case "updatedAt":
			if ts, ok := v.(time.Time); ok {
				p.UpdatedAt = ts
			}
		default:
			if p.Extra == nil {
				p.Extra = make(map[string]any)
			}
			p.Extra[k] = v
		}
	}

	s.properties[id] = p
	return nil
}

// CompareAndSwapRating conditionally replaces the rating aggregate, matching
// the MongoDB implementation's filter on the current rating.amount.
func (s *Store) CompareAndSwapRating(ctx context.Context, id string, expected, next domain.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.properties[id]
	if !ok || p.Rating.Amount != expected.Amount {
		return fmt.Errorf("property %s rating moved: %w", id, apperrors.ErrConflict)
	}

	p.Rating = next
	s.properties[id] = p
	return nil
}

// Delete removes the document at the storage key.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.properties[id]; !ok {
		return fmt.Errorf("property %s: %w", id, apperrors.ErrNotFound)
	}
	delete(s.properties, id)
	return nil
}

// LinkProperty adds propertyID to the owner's set of owned properties.
// Duplicate links are no-ops.
func (s *Store) LinkProperty(ctx context.Context, ownerID, propertyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.owned[ownerID]
	if !ok {
		set = make(map[string]struct{})
		s.owned[ownerID] = set
	}
	set[propertyID] = struct{}{}
	return nil
}

// OwnedProperties returns the owner's linked property identifiers, sorted.
func (s *Store) OwnedProperties(ownerID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.owned[ownerID]))
	for id := range s.owned[ownerID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Seed inserts a property directly, bypassing the insert conflict check.
// Intended for tests that need to construct duplicate-id scenarios.
func (s *Store) Seed(property domain.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if property.IDField == "" {
		property.IDField = property.ID
	}
	s.properties[property.ID] = property
}
