package auth

import (
	"errors"

	"github.com/iudanet/gophauth/internal/server/oauth"
)

// Domain errors returned by Service and OAuthService
var (
	// ErrInvalidCredentials covers unknown login, wrong password and inactive user alike
	ErrInvalidCredentials = errors.New("invalid login or password")

	// ErrInvalidToken wraps every token-layer failure: signature, format, expiry, revocation
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenNotFound indicates refresh token is not the current one for its device
	ErrTokenNotFound = errors.New("refresh token not found")

	// ErrDeviceNotExists indicates token device is unknown
	ErrDeviceNotExists = errors.New("device does not exist")

	// ErrInsufficientRole indicates token lacks a required role
	ErrInsufficientRole = errors.New("not enough permissions")

	// ErrUserExists indicates login or email is taken
	ErrUserExists = errors.New("user already exists")

	// ErrReservedLogin indicates attempt to register the superuser login
	ErrReservedLogin = errors.New("login is reserved")

	// ErrAlreadyLinkedElsewhere indicates provider account belongs to another user
	ErrAlreadyLinkedElsewhere = errors.New("oauth account is linked to another user")

	// ErrOAuthAccountNotExists indicates there is no link to remove
	ErrOAuthAccountNotExists = errors.New("oauth account is not linked")

	// ErrInvalidState indicates OAuth state is unknown, expired or already used
	ErrInvalidState = errors.New("oauth state is unknown or expired")

	// ErrUpstreamProvider indicates provider call failure, retriable
	ErrUpstreamProvider = oauth.ErrUpstream

	// ErrUnknownProvider indicates provider is not configured
	ErrUnknownProvider = oauth.ErrUnknownProvider
)
