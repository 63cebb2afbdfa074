package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/civicdesk/civicdesk/internal/model"
)

type ComplaintStore struct {
	db *sql.DB
}

func NewComplaintStore(db *sql.DB) *ComplaintStore {
	return &ComplaintStore{db: db}
}

func scanComplaint(scanner interface{ Scan(...any) error }) (*model.Complaint, error) {
	var c model.Complaint
	var lat, lon sql.NullFloat64
	var department, rejectionReason sql.NullString
	var aiCategorized int

	err := scanner.Scan(
		&c.ID, &c.UserID, &c.Title, &c.Description, &c.Category, &c.Location,
		&lat, &lon, &c.ImageURI, &c.Status, &c.Points, &department,
		&rejectionReason, &aiCategorized, &c.SubmittedDate, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lat.Valid {
		c.Latitude = &lat.Float64
	}
	if lon.Valid {
		c.Longitude = &lon.Float64
	}
	if department.Valid {
		c.Department = &department.String
	}
	if rejectionReason.Valid {
		c.RejectionReason = &rejectionReason.String
	}
	c.AICategorized = aiCategorized != 0
	return &c, nil
}

const complaintCols = `id, user_id, title, description, category, location, latitude, longitude, image_uri, status, points, department, rejection_reason, ai_categorized, submitted_date, created_at, updated_at`

// CreateParams holds the citizen-supplied fields of a new complaint.
type CreateParams struct {
	UserID        int64
	Title         string
	Description   string
	Category      string
	Location      string
	Latitude      *float64
	Longitude     *float64
	ImageURI      string
	AICategorized bool
}

// Create inserts a new complaint in the submitted state, appends the initial
// status history entry, and bumps the submitter's submissions count, all in
// one transaction.
func (s *ComplaintStore) Create(p CreateParams) (*model.Complaint, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var lat, lon sql.NullFloat64
	if p.Latitude != nil {
		lat = sql.NullFloat64{Float64: *p.Latitude, Valid: true}
	}
	if p.Longitude != nil {
		lon = sql.NullFloat64{Float64: *p.Longitude, Valid: true}
	}
	var ai int
	if p.AICategorized {
		ai = 1
	}

	result, err := tx.Exec(
		`INSERT INTO complaints (user_id, title, description, category, location, latitude, longitude, image_uri, status, points, ai_categorized)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'submitted', 0, ?)`,
		p.UserID, p.Title, p.Description, p.Category, p.Location, lat, lon, p.ImageURI, ai,
	)
	if err != nil {
		return nil, fmt.Errorf("insert complaint: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO status_history (complaint_id, status) VALUES (?, 'submitted')`,
		id,
	); err != nil {
		return nil, fmt.Errorf("insert initial history: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE users SET submissions_count = submissions_count + 1 WHERE id = ?`,
		p.UserID,
	); err != nil {
		return nil, fmt.Errorf("increment submissions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func (s *ComplaintStore) GetByID(id int64) (*model.Complaint, error) {
	row := s.db.QueryRow(`SELECT `+complaintCols+` FROM complaints WHERE id = ?`, id)
	c, err := scanComplaint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get complaint: %w", err)
	}
	return c, nil
}

func (s *ComplaintStore) List() ([]model.Complaint, error) {
	rows, err := s.db.Query(`SELECT ` + complaintCols + ` FROM complaints ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	defer rows.Close()
	return collectComplaints(rows)
}

func (s *ComplaintStore) ListByUser(userID int64) ([]model.Complaint, error) {
	rows, err := s.db.Query(
		`SELECT `+complaintCols+` FROM complaints WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list complaints by user: %w", err)
	}
	defer rows.Close()
	return collectComplaints(rows)
}

// Filter narrows the admin complaint listing.
type Filter struct {
	Status     string
	Department string
	Limit      int
	Offset     int
}

func (s *ComplaintStore) ListFiltered(f Filter) ([]model.Complaint, error) {
	query := `SELECT ` + complaintCols + ` FROM complaints WHERE 1=1`
	var args []any
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Department != "" {
		query += ` AND department = ?`
		args = append(args, f.Department)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list filtered complaints: %w", err)
	}
	defer rows.Close()
	return collectComplaints(rows)
}

// ListWithDepartment returns every complaint that has been routed to a
// department, in id order. Used by the backfill reconciler.
func (s *ComplaintStore) ListWithDepartment() ([]model.Complaint, error) {
	rows, err := s.db.Query(`SELECT ` + complaintCols + ` FROM complaints WHERE department IS NOT NULL AND department != '' ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list complaints with department: %w", err)
	}
	defer rows.Close()
	return collectComplaints(rows)
}

func collectComplaints(rows *sql.Rows) ([]model.Complaint, error) {
	var complaints []model.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan complaint: %w", err)
		}
		complaints = append(complaints, *c)
	}
	return complaints, rows.Err()
}

func (s *ComplaintStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM complaints`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count complaints: %w", err)
	}
	return n, nil
}

func (s *ComplaintStore) CountByStatus(status string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM complaints WHERE status = ?`, status).Scan(&n); err != nil {
		return 0, fmt.Errorf("count complaints by status: %w", err)
	}
	return n, nil
}

func (s *ComplaintStore) CountByStatuses(statuses ...string) (int, error) {
	query := `SELECT COUNT(*) FROM complaints WHERE status IN (`
	args := make([]any, len(statuses))
	for i, st := range statuses {
		if i > 0 {
			query += `, `
		}
		query += `?`
		args[i] = st
	}
	query += `)`

	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count complaints by statuses: %w", err)
	}
	return n, nil
}

// GroupCount is a (key, count) aggregation row for dashboard stats.
type GroupCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

func (s *ComplaintStore) CountsByDepartment() ([]GroupCount, error) {
	rows, err := s.db.Query(
		`SELECT department, COUNT(id) FROM complaints WHERE department IS NOT NULL AND department != '' GROUP BY department`,
	)
	if err != nil {
		return nil, fmt.Errorf("counts by department: %w", err)
	}
	defer rows.Close()
	return collectGroupCounts(rows)
}

func (s *ComplaintStore) CountsByStatus() ([]GroupCount, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(id) FROM complaints GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counts by status: %w", err)
	}
	defer rows.Close()
	return collectGroupCounts(rows)
}

func collectGroupCounts(rows *sql.Rows) ([]GroupCount, error) {
	var counts []GroupCount
	for rows.Next() {
		var g GroupCount
		if err := rows.Scan(&g.Key, &g.Count); err != nil {
			return nil, fmt.Errorf("scan group count: %w", err)
		}
		counts = append(counts, g)
	}
	return counts, rows.Err()
}

func (s *ComplaintStore) Recent(limit int) ([]model.Complaint, error) {
	rows, err := s.db.Query(
		`SELECT `+complaintCols+` FROM complaints ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent complaints: %w", err)
	}
	defer rows.Close()
	return collectComplaints(rows)
}

// --- Status history methods ---

func scanHistoryEntry(scanner interface{ Scan(...any) error }) (*model.StatusHistoryEntry, error) {
	var e model.StatusHistoryEntry
	var department sql.NullString

	err := scanner.Scan(&e.ID, &e.ComplaintID, &e.Status, &department, &e.Date)
	if err != nil {
		return nil, err
	}

	if department.Valid {
		e.Department = &department.String
	}
	return &e, nil
}

const historyCols = `id, complaint_id, status, department, date`

// History returns a complaint's status ledger in chronological order.
func (s *ComplaintStore) History(complaintID int64) ([]model.StatusHistoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+historyCols+` FROM status_history WHERE complaint_id = ? ORDER BY date ASC, id ASC`,
		complaintID,
	)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	var entries []model.StatusHistoryEntry
	for rows.Next() {
		e, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// TransitionUpdate is one atomic status transition: the complaint mutation,
// the history append, and the submitter's point increment commit together or
// not at all.
type TransitionUpdate struct {
	ComplaintID     int64
	Status          string
	Points          int
	Department      *string // nil retains the current department
	RejectionReason *string // set only on rejection
	UserID          int64
	UserPointsDelta int
	Date            time.Time
}

// ApplyTransition applies a status transition as a single transaction.
func (s *ComplaintStore) ApplyTransition(u TransitionUpdate) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var dept sql.NullString
	if u.Department != nil {
		dept = sql.NullString{String: *u.Department, Valid: true}
	}

	if _, err := tx.Exec(
		`UPDATE complaints SET status = ?, points = ?, department = COALESCE(?, department), updated_at = ? WHERE id = ?`,
		u.Status, u.Points, dept, u.Date.UTC(), u.ComplaintID,
	); err != nil {
		return fmt.Errorf("update complaint: %w", err)
	}

	if u.RejectionReason != nil {
		if _, err := tx.Exec(
			`UPDATE complaints SET rejection_reason = ? WHERE id = ?`,
			*u.RejectionReason, u.ComplaintID,
		); err != nil {
			return fmt.Errorf("update rejection reason: %w", err)
		}
	}

	historyDept := dept
	if !historyDept.Valid {
		// Snapshot the department the complaint already carries.
		var current sql.NullString
		if err := tx.QueryRow(`SELECT department FROM complaints WHERE id = ?`, u.ComplaintID).Scan(&current); err != nil {
			return fmt.Errorf("read current department: %w", err)
		}
		historyDept = current
	}

	if _, err := tx.Exec(
		`INSERT INTO status_history (complaint_id, status, department, date) VALUES (?, ?, ?, ?)`,
		u.ComplaintID, u.Status, historyDept, u.Date.UTC(),
	); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}

	if u.UserPointsDelta > 0 {
		if _, err := tx.Exec(
			`UPDATE users SET points = points + ?, updated_at = ? WHERE id = ?`,
			u.UserPointsDelta, u.Date.UTC(), u.UserID,
		); err != nil {
			return fmt.Errorf("increment user points: %w", err)
		}
	}

	return tx.Commit()
}
