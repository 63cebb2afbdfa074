package model

import "time"

type User struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username"`
	DisplayName      string    `json:"display_name"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	AvatarURI        string    `json:"avatar_uri"`
	ShippingAddress  string    `json:"shipping_address"`
	Points           int       `json:"points"`
	SubmissionsCount int       `json:"submissions_count"`
	IsAdmin          bool      `json:"is_admin"`
	IsDepartmentUser bool      `json:"is_department_user"`
	Department       *string   `json:"department"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// UserRanking is a row on the citizen leaderboard. Rank is derived from
// position in the points-ordered listing, never stored.
type UserRanking struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURI   string `json:"avatar_uri"`
	Points      int    `json:"points"`
	Rank        int    `json:"rank"`
	Submissions int    `json:"submissions"`
}
