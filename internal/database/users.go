package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"labkiosk/internal/models"
)

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	if user.Role == "" {
		user.Role = models.RoleStudent
	}
	query := `INSERT INTO users (name, email, role, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query, user.Name, user.Email, user.Role, user.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	query := `SELECT id, name, email, role, is_active, created_at, updated_at FROM users WHERE id = ?`
	err := db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Email, &user.Role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetUserRoles возвращает роли пользователя. Самостоятельно не деградирует:
// политику «ошибка поиска означает отсутствие ролей» применяет Authorizer.
func (db *DB) GetUserRoles(ctx context.Context, userID int64) ([]string, error) {
	user, err := db.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive || user.Role == "" {
		return nil, nil
	}
	return []string{user.Role}, nil
}
