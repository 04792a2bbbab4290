package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/storage"
)

const tokenColumns = `id, user_id, device_id, token, expires_at, created_at`

// OpenSession resolves or creates device and stores its new refresh token in one transaction
func (s *Storage) OpenSession(
	ctx context.Context,
	userID, userAgent string,
	issue storage.IssueFunc,
) (*models.Device, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Запись первой: транзакция сразу берет write lock, параллельный вход ждет busy_timeout
	_, err = tx.ExecContext(ctx,
		`INSERT INTO devices (id, user_id, user_agent, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, user_agent) DO NOTHING`,
		uuid.New().String(), userID, userAgent, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert device: %w", err)
	}

	device := &models.Device{}
	err = tx.QueryRowContext(ctx,
		`SELECT id, user_id, user_agent, created_at FROM devices WHERE user_id = ? AND user_agent = ?`,
		userID, userAgent,
	).Scan(&device.ID, &device.UserID, &device.UserAgent, &device.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	token, expiresAt, err := issue(device)
	if err != nil {
		return nil, err
	}

	// Запись токена устройства перезаписывается на месте, id записи сохраняется
	query := `
		INSERT INTO refresh_tokens (` + tokenColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (device_id) DO UPDATE SET
			token = excluded.token,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at
	`
	_, err = tx.ExecContext(ctx, query,
		uuid.New().String(),
		userID,
		device.ID,
		token,
		expiresAt.Unix(),
		time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrDuplicateSession
		}
		return nil, fmt.Errorf("failed to save refresh token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return device, nil
}

// GetDevice retrieves device by ID
func (s *Storage) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	device := &models.Device{}

	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, user_agent, created_at FROM devices WHERE id = ?`, deviceID,
	).Scan(&device.ID, &device.UserID, &device.UserAgent, &device.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return device, nil
}

// ListDevices retrieves all devices of a user
func (s *Storage) ListDevices(ctx context.Context, userID string) ([]*models.Device, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, user_agent, created_at FROM devices WHERE user_id = ? ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var devices []*models.Device
	for rows.Next() {
		device := &models.Device{}
		if err := rows.Scan(&device.ID, &device.UserID, &device.UserAgent, &device.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return devices, nil
}

// FindRefreshToken retrieves refresh token record by token value
func (s *Storage) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	return s.getToken(ctx, "token", token)
}

// GetDeviceToken retrieves refresh token record of a device
func (s *Storage) GetDeviceToken(ctx context.Context, deviceID string) (*models.RefreshToken, error) {
	return s.getToken(ctx, "device_id", deviceID)
}

func (s *Storage) getToken(ctx context.Context, column, value string) (*models.RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE ` + column + ` = ?`

	refreshToken := &models.RefreshToken{}
	var expiresAt int64

	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&refreshToken.ID,
		&refreshToken.UserID,
		&refreshToken.DeviceID,
		&refreshToken.Token,
		&expiresAt,
		&refreshToken.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	refreshToken.ExpiresAt = time.Unix(expiresAt, 0).UTC()

	return refreshToken, nil
}

// RotateRefreshToken overwrites token value only if the record still holds oldToken
func (s *Storage) RotateRefreshToken(ctx context.Context, id, oldToken, newToken string, expiresAt time.Time) error {
	query := `
		UPDATE refresh_tokens
		SET token = ?, expires_at = ?, created_at = ?
		WHERE id = ? AND token = ?
	`

	result, err := s.db.ExecContext(ctx, query, newToken, expiresAt.Unix(), time.Now().UTC(), id, oldToken)
	if err != nil {
		return fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrTokenNotFound
	}

	return nil
}

// RevokeDevice deletes refresh token of a device
func (s *Storage) RevokeDevice(ctx context.Context, deviceID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE device_id = ?`, deviceID); err != nil {
		return fmt.Errorf("failed to delete device token: %w", err)
	}
	return nil
}

// RevokeAllDevices deletes refresh tokens of every device of a user
func (s *Storage) RevokeAllDevices(ctx context.Context, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// DeleteExpiredTokens removes tokens that expired before the given time
func (s *Storage) DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}
