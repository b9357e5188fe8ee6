package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"labkiosk/internal/models"
)

func (db *DB) CreateLab(ctx context.Context, lab *models.Lab) error {
	query := `INSERT INTO labs (code, name, location, capacity, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		lab.Code, lab.Name, lab.Location, lab.Capacity, lab.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to create lab: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	lab.ID = id
	lab.CreatedAt = now
	lab.UpdatedAt = now
	return nil
}

func (db *DB) GetLab(ctx context.Context, id int64) (*models.Lab, error) {
	var lab models.Lab
	query := `SELECT id, code, name, location, capacity, is_active, created_at, updated_at FROM labs WHERE id = ?`
	err := db.QueryRowContext(ctx, query, id).Scan(
		&lab.ID, &lab.Code, &lab.Name, &lab.Location, &lab.Capacity, &lab.IsActive, &lab.CreatedAt, &lab.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLabNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lab: %w", err)
	}
	return &lab, nil
}

func (db *DB) GetActiveLabs(ctx context.Context) ([]*models.Lab, error) {
	query := `SELECT id, code, name, location, capacity, is_active, created_at, updated_at
              FROM labs WHERE is_active = 1 ORDER BY name`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active labs: %w", err)
	}
	defer rows.Close()

	var labs []*models.Lab
	for rows.Next() {
		var lab models.Lab
		if err := rows.Scan(&lab.ID, &lab.Code, &lab.Name, &lab.Location, &lab.Capacity,
			&lab.IsActive, &lab.CreatedAt, &lab.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lab: %w", err)
		}
		labs = append(labs, &lab)
	}
	return labs, rows.Err()
}

func (db *DB) CreateEquipment(ctx context.Context, eq *models.Equipment) error {
	query := `INSERT INTO equipment (lab_id, name, category, serial_number, sort_order, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		eq.LabID, eq.Name, eq.Category, eq.SerialNumber, eq.SortOrder, eq.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to create equipment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	eq.ID = id
	eq.CreatedAt = now
	eq.UpdatedAt = now
	return nil
}

func (db *DB) GetEquipment(ctx context.Context, id int64) (*models.Equipment, error) {
	var eq models.Equipment
	query := `SELECT id, lab_id, name, category, serial_number, sort_order, is_active, created_at, updated_at
              FROM equipment WHERE id = ?`
	err := db.QueryRowContext(ctx, query, id).Scan(
		&eq.ID, &eq.LabID, &eq.Name, &eq.Category, &eq.SerialNumber, &eq.SortOrder,
		&eq.IsActive, &eq.CreatedAt, &eq.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEquipmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get equipment: %w", err)
	}
	return &eq, nil
}

func (db *DB) GetActiveEquipmentByLab(ctx context.Context, labID int64) ([]*models.Equipment, error) {
	query := `SELECT id, lab_id, name, category, serial_number, sort_order, is_active, created_at, updated_at
              FROM equipment WHERE lab_id = ? AND is_active = 1 ORDER BY sort_order, name`
	rows, err := db.QueryContext(ctx, query, labID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lab equipment: %w", err)
	}
	defer rows.Close()

	var list []*models.Equipment
	for rows.Next() {
		var eq models.Equipment
		if err := rows.Scan(&eq.ID, &eq.LabID, &eq.Name, &eq.Category, &eq.SerialNumber,
			&eq.SortOrder, &eq.IsActive, &eq.CreatedAt, &eq.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan equipment: %w", err)
		}
		list = append(list, &eq)
	}
	return list, rows.Err()
}
