package db

import (
	"context"
	"time"

	"bandroom/internal/model"
)

// CreateRoom inserts a room and fills its ID.
func (db *DB) CreateRoom(ctx context.Context, r *model.Room) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO rooms (name, description, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.Name, r.Description, r.IsActive, now, now,
	)
	if err != nil {
		return err
	}
	r.ID, err = res.LastInsertId()
	return err
}

// GetRoom returns a room by ID.
func (db *DB) GetRoom(ctx context.Context, id int64) (*model.Room, error) {
	var r model.Room
	err := db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(description, ''), is_active, created_at, updated_at
		FROM rooms WHERE id = ?`, id,
	).Scan(&r.ID, &r.Name, &r.Description, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListActiveRooms returns all active rooms ordered by name.
func (db *DB) ListActiveRooms(ctx context.Context) ([]model.Room, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, COALESCE(description, ''), is_active, created_at, updated_at
		FROM rooms WHERE is_active = 1 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []model.Room
	for rows.Next() {
		var r model.Room
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.IsActive, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}
