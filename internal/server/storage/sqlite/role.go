package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/storage"
)

// CreateRole creates a new role
func (s *Storage) CreateRole(ctx context.Context, role *models.Role) error {
	if role.ID == "" {
		role.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO roles (id, title) VALUES (?, ?)`, role.ID, role.Title)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrRoleAlreadyExists
		}
		return fmt.Errorf("failed to insert role: %w", err)
	}

	return nil
}

// AssignRole grants role to user
func (s *Storage) AssignRole(ctx context.Context, userID, title string) error {
	var roleID string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM roles WHERE title = ?`, title).Scan(&roleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrRoleNotFound
		}
		return fmt.Errorf("failed to get role: %w", err)
	}

	query := `INSERT OR IGNORE INTO user_roles (user_id, role_id) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, query, userID, roleID); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	return nil
}

// RevokeRole removes role from user
func (s *Storage) RevokeRole(ctx context.Context, userID, title string) error {
	query := `
		DELETE FROM user_roles
		WHERE user_id = ? AND role_id IN (SELECT id FROM roles WHERE title = ?)
	`

	if _, err := s.db.ExecContext(ctx, query, userID, title); err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}

	return nil
}

// GetUserRoles returns role titles of the user
func (s *Storage) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT r.title
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = ?
		ORDER BY r.title
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user roles: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	roles := []string{}
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, title)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return roles, nil
}
