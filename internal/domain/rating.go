package domain

// Rating input and aggregate scales. Submissions arrive on a 1-5 scale and
// are stored as a 0-100 rolling average.
const (
	RatingMin   = 1
	RatingMax   = 5
	RatingScale = 20
)

// Rating is the rolling-average aggregate attached to a property.
// Value stays within [0,100] for inputs within [RatingMin,RatingMax];
// Amount counts the submissions folded into the average so far.
type Rating struct {
	Value  float64 `bson:"value" json:"value"`
	Amount int     `bson:"amount" json:"amount"`
}

// ValidRating reports whether raw is an acceptable submission.
func ValidRating(raw int) bool {
	return raw >= RatingMin && raw <= RatingMax
}

// Fold returns the aggregate with one more submission folded in. It is a
// pure function; the caller is responsible for writing the result back
// atomically with respect to concurrent submissions.
func (r Rating) Fold(raw int) Rating {
	scaled := float64(raw * RatingScale)
	amount := r.Amount + 1
	return Rating{
		Value:  (r.Value*float64(r.Amount) + scaled) / float64(amount),
		Amount: amount,
	}
}
