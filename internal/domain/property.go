package domain

import "time"

// Property represents one rental listing document.
//
// The listing is stored under its identifier twice: as the document key
// (`_id`) and as a plain `id` field. Field-scoped queries locate documents
// through the `id` field while key-based operations use `_id`, so the two
// must stay equal for every persisted record. The repository enforces the
// mirror on insert.
type Property struct {
	ID      string `bson:"_id" json:"id"`
	IDField string `bson:"id" json:"-"`

	// OwnerID is set once at creation by the service; caller-supplied
	// values are overwritten.
	OwnerID  string `bson:"ownerId" json:"ownerId"`
	IsListed bool   `bson:"isListed" json:"isListed"`
	Rating   Rating `bson:"rating" json:"rating"`

	Name          string `bson:"name,omitempty" json:"name,omitempty"`
	Description   string `bson:"description,omitempty" json:"description,omitempty"`
	Address       string `bson:"address,omitempty" json:"address,omitempty"`
	City          string `bson:"city,omitempty" json:"city,omitempty"`
	PricePerNight int64  `bson:"pricePerNight,omitempty" json:"pricePerNight,omitempty"`
	Capacity      int    `bson:"capacity,omitempty" json:"capacity,omitempty"`

	// Extra carries descriptive fields the service does not interpret.
	Extra map[string]any `bson:",inline" json:"extra,omitempty"`

	CreatedAt time.Time `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}
