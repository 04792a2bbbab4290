package storage

import (
	"context"

	"github.com/iudanet/gophauth/internal/models"
)

// OAuthStorage defines interface for links between users and provider accounts
type OAuthStorage interface {
	// GetOAuthLink retrieves link by provider and provider user ID
	// Returns ErrOAuthLinkNotFound if link doesn't exist
	GetOAuthLink(ctx context.Context, provider, providerUserID string) (*models.OAuthLink, error)

	// ListOAuthLinks retrieves all links of a user
	ListOAuthLinks(ctx context.Context, userID string) ([]*models.OAuthLink, error)

	// CreateOAuthLink creates a new link
	// Returns ErrOAuthLinkExists if provider account is already linked
	CreateOAuthLink(ctx context.Context, link *models.OAuthLink) error

	// DeleteOAuthLink deletes links of a user for a provider
	// Returns ErrOAuthLinkNotFound if there is none
	DeleteOAuthLink(ctx context.Context, provider, userID string) error
}

// HistoryStorage defines interface for the append-only login history
type HistoryStorage interface {
	// AppendHistory stores a new history entry
	AppendHistory(ctx context.Context, entry *models.UserHistory) error

	// ListHistory returns user history, newest first
	ListHistory(ctx context.Context, userID string, offset, limit int) ([]*models.UserHistory, error)
}

// Storage aggregates all storage interfaces
type Storage interface {
	UserStorage
	RoleStorage
	SessionStorage
	OAuthStorage
	HistoryStorage
}
