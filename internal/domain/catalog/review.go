package catalog

import "time"

type Review struct {
	ID        string
	ProductID string
	BuyerID   string
	Rating    int
	Comment   string
	Verified  bool
	CreatedAt time.Time
}

// NewReview clamps the rating into 1..5 and stamps creation time. Verified
// is decided by the caller from the buyer's purchase history.
func NewReview(id, productID, buyerID string, rating int, comment string, verified bool) *Review {
	if rating < 1 {
		rating = 1
	}
	if rating > 5 {
		rating = 5
	}
	return &Review{
		ID:        id,
		ProductID: productID,
		BuyerID:   buyerID,
		Rating:    rating,
		Comment:   comment,
		Verified:  verified,
		CreatedAt: time.Now().UTC(),
	}
}
