package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iudanet/gophauth/internal/crypto"
	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/storage"
)

// RegisterRequest describes a new local account
type RegisterRequest struct {
	Login     string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// UpdateProfileRequest describes a partial account update, nil fields stay unchanged
type UpdateProfileRequest struct {
	Login     *string
	Email     *string
	Password  *string
	FirstName *string
	LastName  *string
}

// Profile is the account view returned to its owner
type Profile struct {
	User    *models.User
	Roles   []string
	Links   []*models.OAuthLink
	Devices []*models.Device
}

// Register creates an active user with argon2id password hash
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	if req.Login == models.SuperuserLogin {
		return nil, ErrReservedLogin
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Login:        req.Login,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     true,
	}

	if err := s.storage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("login", user.Login),
		slog.String("user_id", user.ID))

	return user, nil
}

// Profile returns account data of an active user
func (s *Service) Profile(ctx context.Context, login string) (*Profile, error) {
	user, err := s.activeUser(ctx, login)
	if err != nil {
		return nil, err
	}

	roles, err := s.storage.GetUserRoles(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}

	links, err := s.storage.ListOAuthLinks(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth links: %w", err)
	}

	devices, err := s.storage.ListDevices(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	return &Profile{User: user, Roles: roles, Links: links, Devices: devices}, nil
}

// UpdateProfile changes account fields of an active user.
// A new password or login closes every session: refresh tokens are revoked,
// access tokens issued for the old login stop resolving to the account.
func (s *Service) UpdateProfile(ctx context.Context, login string, req UpdateProfileRequest) (*Profile, error) {
	if login == models.SuperuserLogin {
		return nil, ErrReservedLogin
	}
	if req.Login != nil && *req.Login == models.SuperuserLogin {
		return nil, ErrReservedLogin
	}

	user, err := s.activeUser(ctx, login)
	if err != nil {
		return nil, err
	}

	revoke := false
	if req.Login != nil && *req.Login != user.Login {
		user.Login = *req.Login
		revoke = true
	}
	if req.Password != nil {
		hash, err := crypto.HashPassword(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hash
		revoke = true
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}

	if err := s.storage.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if revoke {
		n, err := s.storage.RevokeAllDevices(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to revoke sessions: %w", err)
		}
		s.logger.InfoContext(ctx, "credentials changed, sessions revoked",
			slog.String("user_id", user.ID),
			slog.Int64("count", n))
	}

	s.logger.InfoContext(ctx, "profile updated",
		slog.String("login", user.Login),
		slog.String("user_id", user.ID))

	return s.Profile(ctx, user.Login)
}

// History returns login history of an active user, newest first
func (s *Service) History(ctx context.Context, login string, offset, limit int) ([]*models.UserHistory, error) {
	user, err := s.activeUser(ctx, login)
	if err != nil {
		return nil, err
	}

	entries, err := s.storage.ListHistory(ctx, user.ID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	return entries, nil
}

// DeleteAccount soft-deletes the token owner.
// Login and email are overwritten with random placeholders so the unique indexes keep the row
// while nobody can sign in with or register the old values through this row. All sessions are
// revoked, provider links removed and the presented access token denylisted.
func (s *Service) DeleteAccount(ctx context.Context, accessToken string) error {
	payload, err := s.verifyAccess(ctx, accessToken)
	if err != nil {
		return err
	}
	if payload.Sub == models.SuperuserLogin {
		return ErrReservedLogin
	}

	user, err := s.activeUser(ctx, payload.Sub)
	if err != nil {
		return err
	}

	suffix, err := crypto.RandomHex(16)
	if err != nil {
		return err
	}
	unusable, err := crypto.RandomString(32)
	if err != nil {
		return err
	}

	oldLogin := user.Login
	user.Login = "deleted-" + suffix
	user.Email = suffix + "@user.deleted"
	user.FirstName = ""
	user.LastName = ""
	// Не PHC строка: VerifyPassword всегда вернет ошибку формата
	user.PasswordHash = "!" + unusable
	user.IsActive = false

	if err := s.storage.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to anonymize user: %w", err)
	}

	if _, err := s.storage.RevokeAllDevices(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	links, err := s.storage.ListOAuthLinks(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to get oauth links: %w", err)
	}
	for _, link := range links {
		if err := s.storage.DeleteOAuthLink(ctx, link.Provider, user.ID); err != nil && !errors.Is(err, storage.ErrOAuthLinkNotFound) {
			return fmt.Errorf("failed to delete oauth link: %w", err)
		}
	}

	expiresAt, err := payload.ExpiresAt()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if err := s.revocations.Revoke(ctx, accessToken, expiresAt); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "account deleted",
		slog.String("login", oldLogin),
		slog.String("user_id", user.ID))

	return nil
}

// EnsureSuperuser creates the superuser account or resets its password.
// Returns true when the account was created.
func (s *Service) EnsureSuperuser(ctx context.Context, password string) (bool, error) {
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.storage.GetUserByLogin(ctx, models.SuperuserLogin)
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		user = &models.User{
			Login:        models.SuperuserLogin,
			PasswordHash: hash,
			IsActive:     true,
		}
		if err := s.storage.CreateUser(ctx, user); err != nil {
			return false, fmt.Errorf("failed to create superuser: %w", err)
		}
		s.logger.InfoContext(ctx, "superuser created", slog.String("user_id", user.ID))
		return true, nil
	case err != nil:
		return false, fmt.Errorf("failed to get superuser: %w", err)
	}

	user.PasswordHash = hash
	user.IsActive = true
	if err := s.storage.UpdateUser(ctx, user); err != nil {
		return false, fmt.Errorf("failed to update superuser: %w", err)
	}

	// Старые сессии не должны пережить смену пароля
	if _, err := s.storage.RevokeAllDevices(ctx, user.ID); err != nil {
		return false, fmt.Errorf("failed to revoke superuser sessions: %w", err)
	}

	s.logger.InfoContext(ctx, "superuser password updated", slog.String("user_id", user.ID))
	return false, nil
}
