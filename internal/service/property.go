package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Psycaptr/rBNB/internal/domain"
	"github.com/Psycaptr/rBNB/internal/event"
	"github.com/Psycaptr/rBNB/internal/repository"
	apperrors "github.com/Psycaptr/rBNB/pkg/errors"
)

// defaultRatingAttempts bounds the re-read/fold/swap loop when concurrent
// rating submissions keep invalidating the aggregate we read. Deployments
// override it through configuration.
const defaultRatingAttempts = 5

// protectedFields are document keys a partial update may not touch. The
// identifier and owner are immutable after creation, and the rating
// aggregate only changes through Rate.
var protectedFields = map[string]struct{}{
	"_id":           {},
	"id":            {},
	"ownerId":       {},
	"rating":        {},
	"rating.value":  {},
	"rating.amount": {},
}

// PropertyService implements the business logic for property operations.
type PropertyService struct {
	repo           repository.PropertyRepository
	linker         repository.OwnerLinker
	ids            IDAllocator
	producer       *event.Producer
	logger         *slog.Logger
	ratingAttempts int
}

// NewPropertyService creates a new property service. ratingAttempts bounds
// the rating retry loop; values below 1 fall back to the default.
func NewPropertyService(
	repo repository.PropertyRepository,
	linker repository.OwnerLinker,
	ids IDAllocator,
	producer *event.Producer,
	logger *slog.Logger,
	ratingAttempts int,
) *PropertyService {
	if ratingAttempts < 1 {
		ratingAttempts = defaultRatingAttempts
	}
	return &PropertyService{
		repo:           repo,
		linker:         linker,
		ids:            ids,
		producer:       producer,
		logger:         logger,
		ratingAttempts: ratingAttempts,
	}
}

// Create stores a new property for the given owner and links it into the
// owner's set of owned properties. The owner and identifier on the input are
// always overwritten, and the rating aggregate starts at its baseline.
//
// If the owner link fails after the insert committed, the property exists but
// is not reachable from the owner's set; that outcome is surfaced as a
// partial failure together with the stored property, and is not rolled back.
func (s *PropertyService) Create(ctx context.Context, property *domain.Property, ownerID string) (*domain.Property, error) {
	if property == nil {
		return nil, apperrors.InvalidInput("property is required")
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperrors.InvalidInput("owner id is required")
	}

	now := time.Now().UTC()
	property.ID = s.ids.NewID()
	property.OwnerID = ownerID
	property.Rating = domain.Rating{}
	property.CreatedAt = now
	property.UpdatedAt = now

	if err := s.repo.Insert(ctx, property); err != nil {
		return nil, fmt.Errorf("create property: %w", err)
	}

	if err := s.linker.LinkProperty(ctx, ownerID, property.ID); err != nil {
		s.logger.ErrorContext(ctx, "property inserted but owner link failed",
			slog.String("property_id", property.ID),
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		return property, apperrors.PartialFailure(
			fmt.Sprintf("property %s created but not linked to owner %s", property.ID, ownerID), err)
	}

	if err := s.producer.PublishPropertyCreated(ctx, property); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish property.created event",
			slog.String("property_id", property.ID),
			slog.String("error", err.Error()),
		)
		// Do not fail the operation if event publishing fails.
	}

	s.logger.InfoContext(ctx, "property created",
		slog.String("property_id", property.ID),
		slog.String("owner_id", ownerID),
	)

	return property, nil
}

// Delete removes the property with the given identifier. The identifier is
// resolved through the "id" field first: zero matches is not found, and more
// than one match means the uniqueness invariant is broken, which is reported
// as a conflict rather than deleting an arbitrary record.
func (s *PropertyService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.InvalidInput("property id is required")
	}

	matches, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete property: %w", err)
	}
	if len(matches) == 0 {
		return apperrors.NotFound("property", id)
	}
	if len(matches) > 1 {
		return apperrors.Conflict(fmt.Sprintf("%d properties share id %s", len(matches), id))
	}

	if err := s.repo.Delete(ctx, matches[0].ID); err != nil {
		return fmt.Errorf("delete property: %w", err)
	}

	if err := s.producer.PublishPropertyDeleted(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish property.deleted event",
			slog.String("property_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "property deleted", slog.String("property_id", id))

	return nil
}

// ListAvailable returns every listed property not owned by the requester.
// A caller browsing the general view never sees their own listings.
func (s *PropertyService) ListAvailable(ctx context.Context, requesterID string) ([]domain.Property, error) {
	listed, err := s.repo.FindWhere(ctx, repository.FieldIsListed, true)
	if err != nil {
		return nil, fmt.Errorf("list available properties: %w", err)
	}

	available := []domain.Property{}
	for _, p := range listed {
		if p.OwnerID != requesterID {
			available = append(available, p)
		}
	}

	return available, nil
}

// ListByOwner returns all properties owned by the given account. An empty
// owner id resolves to no owner. A known owner with zero properties yields
// an empty slice, which callers surface differently from an error.
func (s *PropertyService) ListByOwner(ctx context.Context, ownerID string) ([]domain.Property, error) {
	if ownerID == "" {
		return nil, apperrors.NotFound("owner", ownerID)
	}

	properties, err := s.repo.FindWhere(ctx, repository.FieldOwnerID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list properties by owner: %w", err)
	}

	return properties, nil
}

// CountByOwner returns how many properties the given account owns, counted
// from the owner-scoped query result.
func (s *PropertyService) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	if ownerID == "" {
		return 0, apperrors.NotFound("owner", ownerID)
	}

	properties, err := s.repo.FindWhere(ctx, repository.FieldOwnerID, ownerID)
	if err != nil {
		return 0, fmt.Errorf("count properties by owner: %w", err)
	}

	return len(properties), nil
}

// Get returns the property with the given identifier, resolved through the
// "id" field. If duplicates exist the first match wins; only Delete defends
// against that state.
func (s *PropertyService) Get(ctx context.Context, id string) (*domain.Property, error) {
	matches, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get property: %w", err)
	}
	if len(matches) == 0 {
		return nil, apperrors.NotFound("property", id)
	}

	return &matches[0], nil
}

// SetListed writes the visibility flag unconditionally. A missing property
// surfaces as the repository's not-found error; there is no pre-check.
func (s *PropertyService) SetListed(ctx context.Context, id string, listed bool) error {
	if err := s.repo.UpdateFields(ctx, id, map[string]any{"isListed": listed}); err != nil {
		return fmt.Errorf("set property listed: %w", err)
	}

	s.logger.InfoContext(ctx, "property visibility updated",
		slog.String("property_id", id),
		slog.Bool("is_listed", listed),
	)

	return nil
}

// UpdateFields merges the given field/value pairs into the property,
// rejecting writes to the identifier, owner, and rating aggregate.
func (s *PropertyService) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.InvalidInput("property id is required")
	}
	if len(fields) == 0 {
		return apperrors.InvalidInput("no fields to update")
	}
	for field := range fields {
		if _, protected := protectedFields[field]; protected {
			return apperrors.InvalidInput(fmt.Sprintf("field %q cannot be updated", field))
		}
	}

	fields["updatedAt"] = time.Now().UTC()

	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return fmt.Errorf("update property: %w", err)
	}

	return nil
}

// IsListed reports whether the property exists and is visible. Absence and
// an unset flag both read as false; callers that need to distinguish the two
// should use Get.
func (s *PropertyService) IsListed(ctx context.Context, id string) (bool, error) {
	property, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("check property listed: %w", err)
	}

	return property.IsListed, nil
}

// Rate folds one rating submission into the property's aggregate. The
// read-fold-write sequence runs as a conditional swap on the current
// submission count, so concurrent submissions on the same property cannot
// overwrite each other; a losing writer re-reads and retries, bounded by
// the configured attempt budget.
func (s *PropertyService) Rate(ctx context.Context, id string, raw int) (domain.Rating, error) {
	if !domain.ValidRating(raw) {
		return domain.Rating{}, apperrors.InvalidInput(
			fmt.Sprintf("rating must be between %d and %d", domain.RatingMin, domain.RatingMax))
	}

	for attempt := 0; attempt < s.ratingAttempts; attempt++ {
		property, err := s.Get(ctx, id)
		if err != nil {
			return domain.Rating{}, err
		}

		next := property.Rating.Fold(raw)

		err = s.repo.CompareAndSwapRating(ctx, property.ID, property.Rating, next)
		if err != nil {
			if errors.Is(err, apperrors.ErrConflict) {
				continue
			}
			return domain.Rating{}, fmt.Errorf("rate property: %w", err)
		}

		if err := s.producer.PublishPropertyRated(ctx, property.ID, next); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish property.rated event",
				slog.String("property_id", property.ID),
				slog.String("error", err.Error()),
			)
		}

		s.logger.InfoContext(ctx, "property rated",
			slog.String("property_id", property.ID),
			slog.Int("rating", raw),
			slog.Int("amount", next.Amount),
		)

		return next, nil
	}

	return domain.Rating{}, apperrors.Conflict(
		fmt.Sprintf("rating for property %s kept changing after %d attempts", id, s.ratingAttempts))
}
