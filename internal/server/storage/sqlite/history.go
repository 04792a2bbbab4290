package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/gophauth/internal/models"
)

// AppendHistory stores a new history entry
func (s *Storage) AppendHistory(ctx context.Context, entry *models.UserHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO user_history (id, user_id, device_id, action, ip, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var deviceID sql.NullString
	if entry.DeviceID != nil {
		deviceID = sql.NullString{String: *entry.DeviceID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query, entry.ID, entry.UserID, deviceID, entry.Action, entry.IP, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	return nil
}

// ListHistory returns user history, newest first
func (s *Storage) ListHistory(ctx context.Context, userID string, offset, limit int) ([]*models.UserHistory, error) {
	query := `
		SELECT id, user_id, device_id, action, ip, created_at
		FROM user_history
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []*models.UserHistory
	for rows.Next() {
		entry := &models.UserHistory{}
		var deviceID sql.NullString
		if err := rows.Scan(&entry.ID, &entry.UserID, &deviceID, &entry.Action, &entry.IP, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if deviceID.Valid {
			entry.DeviceID = &deviceID.String
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}
