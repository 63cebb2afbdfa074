package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/civicdesk/civicdesk/internal/model"
)

// ErrInsufficientBalance means the user's spendable points do not cover
// the prize cost.
var ErrInsufficientBalance = errors.New("insufficient point balance")

type PrizeStore struct {
	db *sql.DB
}

func NewPrizeStore(db *sql.DB) *PrizeStore {
	return &PrizeStore{db: db}
}

func scanPrize(scanner interface{ Scan(...any) error }) (*model.Prize, error) {
	var p model.Prize
	var available int

	err := scanner.Scan(&p.ID, &p.Title, &p.Description, &p.ImageURI, &p.PointCost, &p.Category, &available, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	p.Available = available != 0
	return &p, nil
}

const prizeCols = `id, title, description, image_uri, point_cost, category, available, created_at`

func (s *PrizeStore) Create(title, description, imageURI string, pointCost int, category string, available bool) (*model.Prize, error) {
	var a int
	if available {
		a = 1
	}

	result, err := s.db.Exec(
		`INSERT INTO prizes (title, description, image_uri, point_cost, category, available) VALUES (?, ?, ?, ?, ?, ?)`,
		title, description, imageURI, pointCost, category, a,
	)
	if err != nil {
		return nil, fmt.Errorf("insert prize: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *PrizeStore) GetByID(id int64) (*model.Prize, error) {
	row := s.db.QueryRow(`SELECT `+prizeCols+` FROM prizes WHERE id = ?`, id)
	p, err := scanPrize(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get prize: %w", err)
	}
	return p, nil
}

// ListAvailable returns prizes that can currently be redeemed, cheapest first.
func (s *PrizeStore) ListAvailable() ([]model.Prize, error) {
	rows, err := s.db.Query(`SELECT ` + prizeCols + ` FROM prizes WHERE available = 1 ORDER BY point_cost ASC, title ASC`)
	if err != nil {
		return nil, fmt.Errorf("list available prizes: %w", err)
	}
	defer rows.Close()

	var prizes []model.Prize
	for rows.Next() {
		p, err := scanPrize(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prize: %w", err)
		}
		prizes = append(prizes, *p)
	}
	return prizes, rows.Err()
}

// --- Redemption methods ---

func scanRedemption(scanner interface{ Scan(...any) error }) (*model.PrizeRedemption, error) {
	var r model.PrizeRedemption
	err := scanner.Scan(&r.ID, &r.PrizeID, &r.UserID, &r.PointsSpent, &r.RedeemedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const redemptionCols = `id, prize_id, user_id, points_spent, redeemed_at`

// Redeem records a prize redemption. The balance check and the insert run
// in one transaction so concurrent redemptions cannot both spend the same
// points; an uncovered cost returns ErrInsufficientBalance.
func (s *PrizeStore) Redeem(prizeID, userID int64, pointsSpent int) (*model.PrizeRedemption, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin redemption: %w", err)
	}
	defer tx.Rollback()

	var balance int
	err = tx.QueryRow(
		`SELECT COALESCE(points, 0) - COALESCE((SELECT SUM(points_spent) FROM prize_redemptions WHERE user_id = users.id), 0)
		 FROM users WHERE id = ?`,
		userID,
	).Scan(&balance)
	if err != nil {
		return nil, fmt.Errorf("check balance: %w", err)
	}
	if balance < pointsSpent {
		return nil, ErrInsufficientBalance
	}

	result, err := tx.Exec(
		`INSERT INTO prize_redemptions (prize_id, user_id, points_spent) VALUES (?, ?, ?)`,
		prizeID, userID, pointsSpent,
	)
	if err != nil {
		return nil, fmt.Errorf("insert redemption: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit redemption: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+redemptionCols+` FROM prize_redemptions WHERE id = ?`, id)
	return scanRedemption(row)
}

// Balance computes spendable points: lifetime earned minus prize spending.
// The earned total on the user record itself never decreases.
func (s *PrizeStore) Balance(userID int64) (*model.PointBalance, error) {
	var earned int
	err := s.db.QueryRow(`SELECT COALESCE(points, 0) FROM users WHERE id = ?`, userID).Scan(&earned)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get earned points: %w", err)
	}

	var spent int
	err = s.db.QueryRow(
		`SELECT COALESCE(SUM(points_spent), 0) FROM prize_redemptions WHERE user_id = ?`,
		userID,
	).Scan(&spent)
	if err != nil {
		return nil, fmt.Errorf("sum points spent: %w", err)
	}

	return &model.PointBalance{
		UserID:      userID,
		TotalEarned: earned,
		TotalSpent:  spent,
		Balance:     earned - spent,
	}, nil
}
