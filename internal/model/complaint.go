package model

import "time"

type Complaint struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	Location        string    `json:"location"`
	Latitude        *float64  `json:"latitude"`
	Longitude       *float64  `json:"longitude"`
	ImageURI        string    `json:"image_uri"`
	Status          string    `json:"status"`
	Points          int       `json:"points"`
	Department      *string   `json:"department"`
	RejectionReason *string   `json:"rejection_reason"`
	AICategorized   bool      `json:"ai_categorized"`
	SubmittedDate   time.Time `json:"submitted_date"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StatusHistoryEntry is one row of a complaint's append-only status ledger.
// The department field is a snapshot taken at transition time and may differ
// from the complaint's current department after a reassignment.
type StatusHistoryEntry struct {
	ID          int64     `json:"id"`
	ComplaintID int64     `json:"complaint_id"`
	Status      string    `json:"status"`
	Department  *string   `json:"department"`
	Date        time.Time `json:"date"`
}
