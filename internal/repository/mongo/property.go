package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Psycaptr/rBNB/internal/domain"
	apperrors "github.com/Psycaptr/rBNB/pkg/errors"
)

// PropertyRepository implements property persistence on a MongoDB collection.
type PropertyRepository struct {
	col *mongo.Collection
}

// NewPropertyRepository creates a MongoDB-backed property repository.
func NewPropertyRepository(db *mongo.Database, collection string) *PropertyRepository {
	return &PropertyRepository{col: db.Collection(collection)}
}

// Insert stores a new property document keyed by its ID. The ID is mirrored
// into the "id" field so field-scoped queries and key lookups agree.
func (r *PropertyRepository) Insert(ctx context.Context, property *domain.Property) error {
	property.IDField = property.ID

	if _, err := r.col.InsertOne(ctx, property); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert property %s: %w", property.ID, apperrors.ErrConflict)
		}
		return fmt.Errorf("insert property: %w", apperrors.Storage(err))
	}

	return nil
}

// Get performs a point lookup by storage key.
func (r *PropertyRepository) Get(ctx context.Context, id string) (*domain.Property, error) {
	var property domain.Property

	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&property)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("property %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("get property: %w", apperrors.Storage(err))
	}

	return &property, nil
}

// FindByID queries by the "id" field and returns every match.
func (r *PropertyRepository) FindByID(ctx context.Context, id string) ([]domain.Property, error) {
	return r.FindWhere(ctx, "id", id)
}

// FindWhere returns all documents whose field equals value.
func (r *PropertyRepository) FindWhere(ctx context.Context, field string, value any) ([]domain.Property, error) {
	cursor, err := r.col.Find(ctx, bson.M{field: value})
	if err != nil {
		return nil, fmt.Errorf("query properties by %s: %w", field, apperrors.Storage(err))
	}
	defer cursor.Close(ctx)

	var properties []domain.Property
	if err := cursor.All(ctx, &properties); err != nil {
		return nil, fmt.Errorf("decode properties: %w", apperrors.Storage(err))
	}

	if properties == nil {
		properties = []domain.Property{}
	}

	return properties, nil
}

// UpdateFields merges the given field/value pairs into the document at the
// storage key. Dotted keys update nested fields.
func (r *PropertyRepository) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update property: %w", apperrors.Storage(err))
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("property %s: %w", id, apperrors.ErrNotFound)
	}

	return nil
}

// CompareAndSwapRating conditionally replaces the rating aggregate. The
// filter pins the current rating.amount, so two concurrent folds of the same
// prior aggregate cannot both commit; the loser sees ErrConflict and must
// re-read.
func (r *PropertyRepository) CompareAndSwapRating(ctx context.Context, id string, expected, next domain.Rating) error {
	filter := bson.M{"_id": id, "rating.amount": expected.Amount}
	update := bson.M{"$set": bson.M{
		"rating.value":  next.Value,
		"rating.amount": next.Amount,
	}}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update property rating: %w", apperrors.Storage(err))
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("property %s rating moved: %w", id, apperrors.ErrConflict)
	}

	return nil
}

// Delete removes the document at the storage key.
func (r *PropertyRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete property: %w", apperrors.Storage(err))
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("property %s: %w", id, apperrors.ErrNotFound)
	}

	return nil
}
