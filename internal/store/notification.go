package store

import (
	"database/sql"
	"fmt"

	"github.com/civicdesk/civicdesk/internal/model"
)

type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func scanNotification(scanner interface{ Scan(...any) error }) (*model.Notification, error) {
	var n model.Notification
	var complaintID sql.NullInt64
	var read int

	err := scanner.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &complaintID, &read, &n.Date)
	if err != nil {
		return nil, err
	}

	if complaintID.Valid {
		n.ComplaintID = &complaintID.Int64
	}
	n.Read = read != 0
	return &n, nil
}

const notificationCols = `id, user_id, title, message, type, complaint_id, read, date`

func (s *NotificationStore) Create(userID int64, title, message, notifType string, complaintID *int64) (*model.Notification, error) {
	var cID sql.NullInt64
	if complaintID != nil {
		cID = sql.NullInt64{Int64: *complaintID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO notifications (user_id, title, message, type, complaint_id) VALUES (?, ?, ?, ?, ?)`,
		userID, title, message, notifType, cID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+notificationCols+` FROM notifications WHERE id = ?`, id)
	return scanNotification(row)
}

// ListByUser returns the user's most recent notifications, newest first.
func (s *NotificationStore) ListByUser(userID int64, limit int) ([]model.Notification, error) {
	rows, err := s.db.Query(
		`SELECT `+notificationCols+` FROM notifications WHERE user_id = ? ORDER BY date DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}

// MarkRead flags a notification as read. Scoped to the owner so one user
// cannot mark another's notifications.
func (s *NotificationStore) MarkRead(id, userID int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}
