package store

import (
	"database/sql"
	"fmt"

	"github.com/civicdesk/civicdesk/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var isAdmin, isDept int
	var department sql.NullString

	err := scanner.Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.Email, &u.PasswordHash,
		&u.AvatarURI, &u.ShippingAddress, &u.Points, &u.SubmissionsCount,
		&isAdmin, &isDept, &department, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.IsAdmin = isAdmin != 0
	u.IsDepartmentUser = isDept != 0
	if department.Valid {
		u.Department = &department.String
	}
	return &u, nil
}

const userCols = `id, username, display_name, email, password_hash, avatar_uri, shipping_address, points, submissions_count, is_admin, is_department_user, department, created_at, updated_at`

func (s *UserStore) Create(username, displayName, email, passwordHash string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (username, display_name, email, password_hash) VALUES (?, ?, ?, ?)`,
		username, displayName, email, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

// CreateDepartmentUser creates a department-scoped account. Used by seeding
// and administrative tooling.
func (s *UserStore) CreateDepartmentUser(username, displayName, email, passwordHash, department string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (username, display_name, email, password_hash, is_department_user, department) VALUES (?, ?, ?, ?, 1, ?)`,
		username, displayName, email, passwordHash, department,
	)
	if err != nil {
		return nil, fmt.Errorf("insert department user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByUsername(username string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

func (s *UserStore) SetAdmin(id int64, isAdmin bool) error {
	var a int
	if isAdmin {
		a = 1
	}
	_, err := s.db.Exec(`UPDATE users SET is_admin = ? WHERE id = ?`, a, id)
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	return nil
}

// AddPoints increments the user's cumulative points. Deltas are never
// negative; lateral or backward status moves award zero.
func (s *UserStore) AddPoints(id int64, delta int) error {
	if delta <= 0 {
		return nil
	}
	_, err := s.db.Exec(`UPDATE users SET points = points + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, delta, id)
	if err != nil {
		return fmt.Errorf("add points: %w", err)
	}
	return nil
}

func (s *UserStore) IncrementSubmissions(id int64) error {
	_, err := s.db.Exec(`UPDATE users SET submissions_count = submissions_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment submissions: %w", err)
	}
	return nil
}

// Rank returns the 1-based leaderboard position for a user with the given
// points: the count of regular users holding strictly more, plus one.
func (s *UserStore) Rank(points int) (int, error) {
	var ahead int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM users WHERE points > ? AND is_admin = 0 AND is_department_user = 0`,
		points,
	).Scan(&ahead)
	if err != nil {
		return 0, fmt.Errorf("rank: %w", err)
	}
	return ahead + 1, nil
}

// Leaderboard lists regular users by points descending. Admin and
// department accounts are excluded; rank is position in the ordering.
func (s *UserStore) Leaderboard(limit int) ([]model.UserRanking, error) {
	rows, err := s.db.Query(
		`SELECT id, username, display_name, avatar_uri, points, submissions_count
		 FROM users
		 WHERE is_admin = 0 AND is_department_user = 0
		 ORDER BY points DESC, id ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var rankings []model.UserRanking
	for rows.Next() {
		var r model.UserRanking
		if err := rows.Scan(&r.ID, &r.Username, &r.DisplayName, &r.AvatarURI, &r.Points, &r.Submissions); err != nil {
			return nil, fmt.Errorf("scan ranking: %w", err)
		}
		r.Rank = len(rankings) + 1
		rankings = append(rankings, r)
	}
	return rankings, rows.Err()
}

func (s *UserStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
