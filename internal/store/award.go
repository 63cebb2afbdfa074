package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/civicdesk/civicdesk/internal/model"
)

// ErrDuplicateAward is returned when an award already exists for a
// (complaint, status) pair. The unique constraint on the table is the
// authoritative guard; losing that race is not a failure.
var ErrDuplicateAward = errors.New("department points already awarded for this complaint and status")

type AwardStore struct {
	db *sql.DB
}

func NewAwardStore(db *sql.DB) *AwardStore {
	return &AwardStore{db: db}
}

func scanAward(scanner interface{ Scan(...any) error }) (*model.DepartmentPointsAward, error) {
	var a model.DepartmentPointsAward
	err := scanner.Scan(&a.ID, &a.ComplaintID, &a.Department, &a.Status, &a.PointsAwarded, &a.Date)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const awardCols = `id, complaint_id, department, status, points_awarded, date`

// Create inserts an award row. Returns ErrDuplicateAward when a row for the
// (complaint, status) pair already exists.
func (s *AwardStore) Create(complaintID int64, department, status string, points int, date time.Time) (*model.DepartmentPointsAward, error) {
	result, err := s.db.Exec(
		`INSERT INTO department_points_history (complaint_id, department, status, points_awarded, date) VALUES (?, ?, ?, ?, ?)`,
		complaintID, department, status, points, date.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateAward
		}
		return nil, fmt.Errorf("insert award: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+awardCols+` FROM department_points_history WHERE id = ?`, id)
	return scanAward(row)
}

// Exists reports whether an award has been recorded for the pair.
func (s *AwardStore) Exists(complaintID int64, status string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM department_points_history WHERE complaint_id = ? AND status = ?`,
		complaintID, status,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check award exists: %w", err)
	}
	return n > 0, nil
}

// Latest returns the most recent award for a complaint across all statuses,
// or nil when the complaint has never been awarded.
func (s *AwardStore) Latest(complaintID int64) (*model.DepartmentPointsAward, error) {
	row := s.db.QueryRow(
		`SELECT `+awardCols+` FROM department_points_history WHERE complaint_id = ? ORDER BY date DESC, id DESC LIMIT 1`,
		complaintID,
	)
	a, err := scanAward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest award: %w", err)
	}
	return a, nil
}

// ListByComplaint returns a complaint's awards in chronological order.
func (s *AwardStore) ListByComplaint(complaintID int64) ([]model.DepartmentPointsAward, error) {
	rows, err := s.db.Query(
		`SELECT `+awardCols+` FROM department_points_history WHERE complaint_id = ? ORDER BY date ASC, id ASC`,
		complaintID,
	)
	if err != nil {
		return nil, fmt.Errorf("list awards: %w", err)
	}
	defer rows.Close()

	var awards []model.DepartmentPointsAward
	for rows.Next() {
		a, err := scanAward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan award: %w", err)
		}
		awards = append(awards, *a)
	}
	return awards, rows.Err()
}

// Leaderboard aggregates awards per department, ordered by total points
// descending. Rank is the 1-based position in the ordering; equal totals
// keep the aggregation's own (department-name) order.
func (s *AwardStore) Leaderboard() ([]model.DepartmentStanding, error) {
	rows, err := s.db.Query(
		`SELECT department, COALESCE(SUM(points_awarded), 0), COUNT(id)
		 FROM department_points_history
		 GROUP BY department
		 ORDER BY SUM(points_awarded) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("department leaderboard: %w", err)
	}
	defer rows.Close()

	var standings []model.DepartmentStanding
	for rows.Next() {
		var st model.DepartmentStanding
		if err := rows.Scan(&st.Department, &st.TotalPoints, &st.ActionsCount); err != nil {
			return nil, fmt.Errorf("scan standing: %w", err)
		}
		st.Rank = len(standings) + 1
		standings = append(standings, st)
	}
	return standings, rows.Err()
}

// DepartmentCount returns the number of distinct departments with at least
// one award.
func (s *AwardStore) DepartmentCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(DISTINCT department) FROM department_points_history`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count departments: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
