package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "github.com/Psycaptr/rBNB/pkg/errors"
)

// OwnerLinker maintains the owner-side set of owned property identifiers on
// the user documents. The property service only ever appends to that set.
type OwnerLinker struct {
	col *mongo.Collection
}

// NewOwnerLinker creates a MongoDB-backed owner linker over the given user
// collection.
func NewOwnerLinker(db *mongo.Database, collection string) *OwnerLinker {
	return &OwnerLinker{col: db.Collection(collection)}
}

// LinkProperty adds propertyID to the owner's propertiesId set. $addToSet
// makes the append idempotent, and the upsert keeps the link from failing
// when the user document does not exist yet.
func (l *OwnerLinker) LinkProperty(ctx context.Context, ownerID, propertyID string) error {
	filter := bson.M{"_id": ownerID}
	update := bson.M{"$addToSet": bson.M{"propertiesId": propertyID}}

	if _, err := l.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("link property %s to owner %s: %w", propertyID, ownerID, apperrors.Storage(err))
	}

	return nil
}
