package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"labkiosk/internal/models"
)

const tokenColumns = `id, booking_id, token, expires_at, used_at, created_at`

func scanToken(row interface{ Scan(...any) error }) (*models.QRToken, error) {
	t := &models.QRToken{}
	err := row.Scan(&t.ID, &t.BookingID, &t.Token, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (db *DB) CreateQRToken(ctx context.Context, token *models.QRToken) error {
	query := `INSERT INTO qr_tokens (booking_id, token, expires_at, created_at) VALUES (?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query, token.BookingID, token.Token, token.ExpiresAt.UTC(), now)
	if err != nil {
		return fmt.Errorf("failed to create qr token: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	token.ID = id
	token.CreatedAt = now
	return nil
}

// GetTokenByValue ищет токен без учета регистра.
func (db *DB) GetTokenByValue(ctx context.Context, value string) (*models.QRToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM qr_tokens WHERE LOWER(token) = LOWER(?)`
	token, err := scanToken(db.QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return token, nil
}

// GetLatestValidToken возвращает самый свежий ещё действительный токен брони.
func (db *DB) GetLatestValidToken(ctx context.Context, bookingID int64) (*models.QRToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM qr_tokens
              WHERE booking_id = ? AND used_at IS NULL AND expires_at > ?
              ORDER BY id DESC LIMIT 1`
	token, err := scanToken(db.QueryRowContext(ctx, query, bookingID, time.Now().UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest valid token: %w", err)
	}
	return token, nil
}

func (db *DB) GetBookingTokens(ctx context.Context, bookingID int64) ([]*models.QRToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM qr_tokens WHERE booking_id = ? ORDER BY id DESC`
	rows, err := db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*models.QRToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
