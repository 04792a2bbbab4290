package storage

import (
	"context"
	"time"

	"github.com/iudanet/gophauth/internal/models"
)

// IssueFunc mints a refresh token for the resolved device inside OpenSession
type IssueFunc func(device *models.Device) (token string, expiresAt time.Time, err error)

// SessionStorage defines interface for devices and their refresh tokens
// A device owns at most one refresh token record at a time
type SessionStorage interface {
	// OpenSession resolves the device for (userID, userAgent), creating it on first use,
	// calls issue and stores the returned token as the device's only refresh token.
	// All of it runs in one transaction.
	// Returns ErrDuplicateSession if a concurrent writer created the device first
	OpenSession(ctx context.Context, userID, userAgent string, issue IssueFunc) (*models.Device, error)

	// GetDevice retrieves device by ID
	// Returns ErrDeviceNotFound if device doesn't exist
	GetDevice(ctx context.Context, deviceID string) (*models.Device, error)

	// ListDevices retrieves all devices of a user
	ListDevices(ctx context.Context, userID string) ([]*models.Device, error)

	// FindRefreshToken retrieves refresh token record by exact token value
	// Returns ErrTokenNotFound if token doesn't exist
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)

	// GetDeviceToken retrieves the refresh token record of a device
	// Returns ErrTokenNotFound if device has no live refresh token
	GetDeviceToken(ctx context.Context, deviceID string) (*models.RefreshToken, error)

	// RotateRefreshToken overwrites token of record id in place, only if it still holds oldToken
	// Returns ErrTokenNotFound if record is gone or was already rotated
	RotateRefreshToken(ctx context.Context, id, oldToken, newToken string, expiresAt time.Time) error

	// RevokeDevice deletes refresh token of a device, no-op if there is none
	RevokeDevice(ctx context.Context, deviceID string) error

	// RevokeAllDevices deletes refresh tokens of every device of a user
	// Returns number of deleted tokens
	RevokeAllDevices(ctx context.Context, userID string) (int64, error)

	// DeleteExpiredTokens removes tokens that expired before the given time
	// Returns number of deleted tokens
	DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error)
}
