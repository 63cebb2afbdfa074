package model

import "time"

type Prize struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURI    string    `json:"image_uri"`
	PointCost   int       `json:"point_cost"`
	Category    string    `json:"category"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"created_at"`
}

type PrizeRedemption struct {
	ID          int64     `json:"id"`
	PrizeID     int64     `json:"prize_id"`
	UserID      int64     `json:"user_id"`
	PointsSpent int       `json:"points_spent"`
	RedeemedAt  time.Time `json:"redeemed_at"`
}

// PointBalance separates lifetime earned points from prize spending so the
// cumulative points field on the user stays monotonic.
type PointBalance struct {
	UserID      int64 `json:"user_id"`
	TotalEarned int   `json:"total_earned"`
	TotalSpent  int   `json:"total_spent"`
	Balance     int   `json:"balance"`
}
