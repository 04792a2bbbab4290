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

// GetOAuthLink retrieves link by provider and provider user ID
func (s *Storage) GetOAuthLink(ctx context.Context, provider, providerUserID string) (*models.OAuthLink, error) {
	query := `
		SELECT id, user_id, provider, provider_user_id, created_at
		FROM oauth_links
		WHERE provider = ? AND provider_user_id = ?
	`

	link := &models.OAuthLink{}
	err := s.db.QueryRowContext(ctx, query, provider, providerUserID).Scan(
		&link.ID,
		&link.UserID,
		&link.Provider,
		&link.ProviderUserID,
		&link.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrOAuthLinkNotFound
		}
		return nil, fmt.Errorf("failed to get oauth link: %w", err)
	}

	return link, nil
}

// ListOAuthLinks retrieves all links of a user
func (s *Storage) ListOAuthLinks(ctx context.Context, userID string) ([]*models.OAuthLink, error) {
	query := `
		SELECT id, user_id, provider, provider_user_id, created_at
		FROM oauth_links
		WHERE user_id = ?
		ORDER BY provider
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query oauth links: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var links []*models.OAuthLink
	for rows.Next() {
		link := &models.OAuthLink{}
		if err := rows.Scan(&link.ID, &link.UserID, &link.Provider, &link.ProviderUserID, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan oauth link: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return links, nil
}

// CreateOAuthLink creates a new link
func (s *Storage) CreateOAuthLink(ctx context.Context, link *models.OAuthLink) error {
	if link.ID == "" {
		link.ID = uuid.New().String()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO oauth_links (id, user_id, provider, provider_user_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query, link.ID, link.UserID, link.Provider, link.ProviderUserID, link.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrOAuthLinkExists
		}
		return fmt.Errorf("failed to insert oauth link: %w", err)
	}

	return nil
}

// DeleteOAuthLink deletes links of a user for a provider
func (s *Storage) DeleteOAuthLink(ctx context.Context, provider, userID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM oauth_links WHERE provider = ? AND user_id = ?`, provider, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete oauth link: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrOAuthLinkNotFound
	}

	return nil
}
