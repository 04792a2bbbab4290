package storage

import (
	"context"

	"github.com/iudanet/gophauth/internal/models"
)

// UserStorage defines interface for user data persistence
type UserStorage interface {
	// CreateUser creates a new user in the storage
	// Returns ErrUserAlreadyExists if login or email is taken
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByLogin retrieves user by login
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)

	// GetUserByEmail retrieves user by email
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID retrieves user by ID
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByID(ctx context.Context, userID string) (*models.User, error)

	// UpdateUser updates login, email, password hash, names and active flag
	// Returns ErrUserNotFound if user doesn't exist
	UpdateUser(ctx context.Context, user *models.User) error
}

// RoleStorage defines interface for roles and their assignment to users
type RoleStorage interface {
	// CreateRole creates a new role
	// Returns ErrRoleAlreadyExists if title is taken
	CreateRole(ctx context.Context, role *models.Role) error

	// AssignRole grants role to user, assigning twice is a no-op
	// Returns ErrRoleNotFound if role doesn't exist
	AssignRole(ctx context.Context, userID, title string) error

	// RevokeRole removes role from user, revoking a missing role is a no-op
	RevokeRole(ctx context.Context, userID, title string) error

	// GetUserRoles returns role titles of the user sorted by title
	GetUserRoles(ctx context.Context, userID string) ([]string, error)
}
