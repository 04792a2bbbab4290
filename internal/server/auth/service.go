// Package auth implements login, token refresh and logout over devices and refresh tokens,
// plus the OAuth login/link flows built on top of them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iudanet/gophauth/internal/crypto"
	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/jwt"
	"github.com/iudanet/gophauth/internal/server/storage"
)

const tracerName = "github.com/iudanet/gophauth/internal/server/auth"

// LoginRequest describes one login attempt
// Provider is set for OAuth logins, password is not checked then
type LoginRequest struct {
	Login     string
	Password  string
	UserAgent string
	IP        string
	Provider  string
}

// Service orchestrates login, refresh and logout
type Service struct {
	logger      *slog.Logger
	storage     storage.Storage
	codec       *jwt.Codec
	revocations *RevocationCache
	tracer      trace.Tracer
	now         func() time.Time
}

// NewService creates auth service
func NewService(logger *slog.Logger, store storage.Storage, codec *jwt.Codec, revocations *RevocationCache) *Service {
	return &Service{
		logger:      logger,
		storage:     store,
		codec:       codec,
		revocations: revocations,
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
	}
}

// Codec returns token codec used by the service
func (s *Service) Codec() *jwt.Codec {
	return s.codec
}

// Login authenticates user and opens or renews the session of the client device
func (s *Service) Login(ctx context.Context, req LoginRequest) (pair jwt.Pair, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login", trace.WithAttributes(
		attribute.String("auth.provider", req.Provider),
	))
	defer func() { endSpan(span, err) }()

	user, err := s.activeUser(ctx, req.Login)
	if err != nil {
		return jwt.Pair{}, err
	}

	if req.Provider == "" {
		ok, err := crypto.VerifyPassword(req.Password, user.PasswordHash)
		if err != nil && !errors.Is(err, crypto.ErrMalformedHash) {
			return jwt.Pair{}, fmt.Errorf("failed to verify password: %w", err)
		}
		if !ok {
			s.logger.WarnContext(ctx, "password mismatch", slog.String("login", req.Login))
			return jwt.Pair{}, ErrInvalidCredentials
		}
	}

	pair, device, err := s.openSession(ctx, user, req.UserAgent)
	if err != nil {
		return jwt.Pair{}, err
	}

	action := "login"
	if req.Provider != "" {
		action = "login via " + req.Provider
	}
	s.appendHistory(ctx, &models.UserHistory{
		UserID:   user.ID,
		DeviceID: &device.ID,
		Action:   action,
		IP:       req.IP,
	})

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("login", user.Login),
		slog.String("device_id", device.ID),
		slog.String("action", action))

	return pair, nil
}

// openSession mints a pair for the device inside the session transaction.
// A session conflict is retried once with a freshly minted pair.
func (s *Service) openSession(ctx context.Context, user *models.User, userAgent string) (jwt.Pair, *models.Device, error) {
	roles, err := s.storage.GetUserRoles(ctx, user.ID)
	if err != nil {
		return jwt.Pair{}, nil, fmt.Errorf("failed to get user roles: %w", err)
	}

	var pair jwt.Pair
	issue := func(device *models.Device) (string, time.Time, error) {
		var err error
		pair, err = s.codec.IssuePair(user.Login, device.ID, roles, s.now())
		if err != nil {
			return "", time.Time{}, err
		}
		return pair.RefreshToken, pair.RefreshExpiresAt, nil
	}

	for attempt := 0; ; attempt++ {
		device, err := s.storage.OpenSession(ctx, user.ID, userAgent, issue)
		if err == nil {
			return pair, device, nil
		}
		if !errors.Is(err, storage.ErrDuplicateSession) {
			return jwt.Pair{}, nil, fmt.Errorf("failed to open session: %w", err)
		}
		if attempt > 0 {
			s.logger.WarnContext(ctx, "session conflict persisted after retry", slog.String("login", user.Login))
			return jwt.Pair{}, nil, fmt.Errorf("%w: user not found", ErrInvalidCredentials)
		}
		s.logger.DebugContext(ctx, "session conflict, retrying", slog.String("login", user.Login))
	}
}

// Refresh exchanges the current refresh token of a device for a new pair.
// The presented token must still be the one stored for the device, so it works once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (pair jwt.Pair, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Refresh")
	defer func() { endSpan(span, err) }()

	if err := s.codec.Verify(refreshToken); err != nil {
		return jwt.Pair{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	payload, err := s.codec.DecodeRefresh(refreshToken)
	if err != nil {
		return jwt.Pair{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	record, err := s.storage.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			s.logger.WarnContext(ctx, "unknown or rotated refresh token",
				slog.String("login", payload.Sub),
				slog.String("device_id", payload.DeviceID))
			return jwt.Pair{}, ErrTokenNotFound
		}
		return jwt.Pair{}, fmt.Errorf("failed to find refresh token: %w", err)
	}
	if record.DeviceID != payload.DeviceID {
		return jwt.Pair{}, fmt.Errorf("%w: device mismatch", ErrInvalidToken)
	}

	user, err := s.activeUser(ctx, payload.Sub)
	if err != nil {
		return jwt.Pair{}, err
	}
	if user.ID != record.UserID {
		return jwt.Pair{}, ErrInvalidCredentials
	}

	// Роли перечитываются, чтобы изменения вступали в силу при следующем refresh
	roles, err := s.storage.GetUserRoles(ctx, user.ID)
	if err != nil {
		return jwt.Pair{}, fmt.Errorf("failed to get user roles: %w", err)
	}

	pair, err = s.codec.IssuePair(user.Login, payload.DeviceID, roles, s.now())
	if err != nil {
		return jwt.Pair{}, err
	}

	err = s.storage.RotateRefreshToken(ctx, record.ID, refreshToken, pair.RefreshToken, pair.RefreshExpiresAt)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return jwt.Pair{}, ErrTokenNotFound
		}
		return jwt.Pair{}, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	s.logger.InfoContext(ctx, "tokens refreshed",
		slog.String("login", user.Login),
		slog.String("device_id", payload.DeviceID))

	return pair, nil
}

// Logout drops refresh capability of the token's device, or of every device when everywhere is set,
// and denylists the access token for the rest of its lifetime.
func (s *Service) Logout(ctx context.Context, accessToken string, everywhere bool) (err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Logout", trace.WithAttributes(
		attribute.Bool("auth.everywhere", everywhere),
	))
	defer func() { endSpan(span, err) }()

	payload, err := s.verifyAccess(ctx, accessToken)
	if err != nil {
		return err
	}

	user, err := s.storage.GetUserByLogin(ctx, payload.Sub)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%w: subject not found", ErrInvalidToken)
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if everywhere {
		n, err := s.storage.RevokeAllDevices(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("failed to revoke sessions: %w", err)
		}
		s.logger.InfoContext(ctx, "logged out everywhere",
			slog.String("login", user.Login),
			slog.Int64("sessions", n))
	} else {
		if err := s.revokeDevice(ctx, user, payload.DeviceID); err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "logged out",
			slog.String("login", user.Login),
			slog.String("device_id", payload.DeviceID))
	}

	expiresAt, err := payload.ExpiresAt()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	return s.revocations.Revoke(ctx, accessToken, expiresAt)
}

func (s *Service) revokeDevice(ctx context.Context, user *models.User, deviceID string) error {
	device, err := s.storage.GetDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(err, storage.ErrDeviceNotFound) {
			return ErrDeviceNotExists
		}
		return fmt.Errorf("failed to get device: %w", err)
	}
	if device.UserID != user.ID {
		return ErrDeviceNotExists
	}

	if _, err := s.storage.GetDeviceToken(ctx, deviceID); err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("failed to get device token: %w", err)
	}

	if err := s.storage.RevokeDevice(ctx, deviceID); err != nil {
		return fmt.Errorf("failed to revoke device: %w", err)
	}

	return nil
}

// VerifyAccessToken validates access token and requires every listed role.
// The superuser login passes any role requirement.
func (s *Service) VerifyAccessToken(ctx context.Context, accessToken string, requiredRoles ...string) (*jwt.AccessPayload, error) {
	payload, err := s.verifyAccess(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if payload.Sub == models.SuperuserLogin {
		return payload, nil
	}

	for _, role := range requiredRoles {
		if !payload.HasRole(role) {
			return nil, fmt.Errorf("%w: missing role %q", ErrInsufficientRole, role)
		}
	}

	return payload, nil
}

// verifyAccess checks signature, expiry and revocation, in that order
func (s *Service) verifyAccess(ctx context.Context, accessToken string) (*jwt.AccessPayload, error) {
	if err := s.codec.Verify(accessToken); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	payload, err := s.codec.DecodeAccess(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	revoked, err := s.revocations.IsRevoked(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", ErrInvalidToken)
	}

	return payload, nil
}

// activeUser resolves login to an active user, hiding which check failed
func (s *Service) activeUser(ctx context.Context, login string) (*models.User, error) {
	user, err := s.storage.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			s.logger.WarnContext(ctx, "login attempt for unknown user", slog.String("login", login))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.IsActive {
		s.logger.WarnContext(ctx, "login attempt for inactive user", slog.String("login", login))
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// appendHistory пишет журнал, ошибка не прерывает вход
func (s *Service) appendHistory(ctx context.Context, entry *models.UserHistory) {
	if err := s.storage.AppendHistory(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to append history",
			slog.String("user_id", entry.UserID),
			slog.String("action", entry.Action),
			slog.Any("error", err))
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
