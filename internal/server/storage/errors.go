package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this login or email already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrTokenNotFound indicates that refresh token was not found or was already rotated
	ErrTokenNotFound = errors.New("refresh token not found")

	// ErrDeviceNotFound indicates that device was not found
	ErrDeviceNotFound = errors.New("device not found")

	// ErrDuplicateSession indicates that the issued refresh token is already stored for another device
	ErrDuplicateSession = errors.New("duplicate session")

	// ErrOAuthLinkNotFound indicates that oauth link was not found
	ErrOAuthLinkNotFound = errors.New("oauth link not found")

	// ErrOAuthLinkExists indicates that provider account is already linked
	ErrOAuthLinkExists = errors.New("oauth link already exists")

	// ErrRoleNotFound indicates that role with this title does not exist
	ErrRoleNotFound = errors.New("role not found")

	// ErrRoleAlreadyExists indicates that role with this title already exists
	ErrRoleAlreadyExists = errors.New("role already exists")
)
