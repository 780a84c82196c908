package db

import (
	"context"
	"database/sql"
	"time"

	"bandroom/internal/model"
)

// CreateProduction inserts a scheduled production and fills its ID.
func (db *DB) CreateProduction(ctx context.Context, p *model.Production) error {
	now := time.Now()
	if p.Status == "" {
		p.Status = "scheduled"
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO productions (room_id, title, start_time, end_time, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.RoomID, p.Title, p.StartTime, p.EndTime, p.Status, now, now,
	)
	if err != nil {
		return err
	}
	p.ID, err = res.LastInsertId()
	return err
}

// ListProductions returns productions for a room within the window.
func (db *DB) ListProductions(ctx context.Context, roomID int64, from, to time.Time) ([]model.Production, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, room_id, title, start_time, end_time, status, created_at, updated_at
		FROM productions
		WHERE room_id = ? AND start_time >= ? AND start_time < ?
		ORDER BY start_time`,
		roomID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var productions []model.Production
	for rows.Next() {
		var p model.Production
		if err := rows.Scan(&p.ID, &p.RoomID, &p.Title, &p.StartTime, &p.EndTime, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		productions = append(productions, p)
	}
	return productions, rows.Err()
}

// CreateClosure inserts a space closure and fills its ID.
func (db *DB) CreateClosure(ctx context.Context, c *model.SpaceClosure) error {
	now := time.Now()
	if c.Kind == "" {
		c.Kind = model.ClosureOther
	}
	var roomID any
	if c.RoomID != nil {
		roomID = *c.RoomID
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO space_closures (room_id, start_time, end_time, kind, label, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		roomID, c.StartTime, c.EndTime, c.Kind, c.Label, now,
	)
	if err != nil {
		return err
	}
	c.ID, err = res.LastInsertId()
	c.CreatedAt = now
	return err
}

// ListClosures returns closures affecting a room within the window,
// facility-wide closures included.
func (db *DB) ListClosures(ctx context.Context, roomID int64, from, to time.Time) ([]model.SpaceClosure, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, room_id, start_time, end_time, kind, COALESCE(label, ''), created_at
		FROM space_closures
		WHERE (room_id = ? OR room_id IS NULL)
		AND start_time < ? AND end_time > ?
		ORDER BY start_time`,
		roomID, to, from,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var closures []model.SpaceClosure
	for rows.Next() {
		var c model.SpaceClosure
		var room sql.NullInt64
		if err := rows.Scan(&c.ID, &room, &c.StartTime, &c.EndTime, &c.Kind, &c.Label, &c.CreatedAt); err != nil {
			return nil, err
		}
		if room.Valid {
			c.RoomID = &room.Int64
		}
		closures = append(closures, c)
	}
	return closures, rows.Err()
}
