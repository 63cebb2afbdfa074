package model

import "time"

// DepartmentPointsAward records a department's point credit for processing a
// complaint's status event. At most one row exists per (complaint, status);
// rows are never updated or deleted.
type DepartmentPointsAward struct {
	ID            int64     `json:"id"`
	ComplaintID   int64     `json:"complaint_id"`
	Department    string    `json:"department"`
	Status        string    `json:"status"`
	PointsAwarded int       `json:"points_awarded"`
	Date          time.Time `json:"date"`
}

// DepartmentStanding is a derived leaderboard row, never stored.
type DepartmentStanding struct {
	Department   string `json:"department"`
	TotalPoints  int    `json:"total_points"`
	ActionsCount int    `json:"actions_count"`
	Rank         int    `json:"rank"`
}
