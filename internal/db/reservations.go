package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bandroom/internal/model"
)

// OverlapSet holds the blocking records that intersect a candidate
// window, grouped by kind.
type OverlapSet struct {
	Reservations []model.Reservation
	Productions  []model.Production
	Closures     []model.SpaceClosure
}

// Empty reports whether no blocking record overlaps the window.
func (s *OverlapSet) Empty() bool {
	return len(s.Reservations) == 0 && len(s.Productions) == 0 && len(s.Closures) == 0
}

// FindOverlaps returns all blocking records whose ranges intersect
// [start, end) for the room. Reservations with ID excludeReservationID
// are ignored (reschedule checks); productions and closures are never
// excluded. Closures without a room block every room.
func (db *DB) FindOverlaps(ctx context.Context, roomID int64, start, end time.Time, excludeReservationID int64) (*OverlapSet, error) {
	return findOverlaps(ctx, db.DB, roomID, start, end, excludeReservationID)
}

func findOverlaps(ctx context.Context, q querier, roomID int64, start, end time.Time, excludeReservationID int64) (*OverlapSet, error) {
	set := &OverlapSet{}

	rows, err := q.QueryContext(ctx, `
		SELECT id, room_id, band_id, start_time, end_time, status,
		       COALESCE(comment, ''), series_id, occurrence_date, created_at, updated_at
		FROM reservations
		WHERE room_id = ?
		AND start_time < ? AND end_time > ?
		AND status IN ('pending', 'confirmed')
		AND id != ?
		ORDER BY start_time`,
		roomID, end, start, excludeReservationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		set.Reservations = append(set.Reservations, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.QueryContext(ctx, `
		SELECT id, room_id, title, start_time, end_time, status, created_at, updated_at
		FROM productions
		WHERE room_id = ?
		AND start_time < ? AND end_time > ?
		AND status = 'scheduled'
		ORDER BY start_time`,
		roomID, end, start,
	)
	if err != nil {
		return nil, fmt.Errorf("query productions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p model.Production
		if err := rows.Scan(&p.ID, &p.RoomID, &p.Title, &p.StartTime, &p.EndTime, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		set.Productions = append(set.Productions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.QueryContext(ctx, `
		SELECT id, room_id, start_time, end_time, kind, COALESCE(label, ''), created_at
		FROM space_closures
		WHERE (room_id = ? OR room_id IS NULL)
		AND start_time < ? AND end_time > ?
		ORDER BY start_time`,
		roomID, end, start,
	)
	if err != nil {
		return nil, fmt.Errorf("query closures: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c model.SpaceClosure
		var closureRoom sql.NullInt64
		if err := rows.Scan(&c.ID, &closureRoom, &c.StartTime, &c.EndTime, &c.Kind, &c.Label, &c.CreatedAt); err != nil {
			return nil, err
		}
		if closureRoom.Valid {
			c.RoomID = &closureRoom.Int64
		}
		set.Closures = append(set.Closures, c)
	}
	return set, rows.Err()
}

// CreateReservation inserts a reservation without any conflict check.
// Used for skipped placeholders and trusted imports.
func (db *DB) CreateReservation(ctx context.Context, r *model.Reservation) error {
	return insertReservation(ctx, db.DB, r)
}

// CreateReservationIfFree checks the candidate window and inserts the
// reservation in one transaction. When blocking records exist, nothing
// is inserted and the overlap set is returned; two concurrent attempts
// on the same window cannot both observe a free slot.
func (db *DB) CreateReservationIfFree(ctx context.Context, r *model.Reservation) (*OverlapSet, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	set, err := findOverlaps(ctx, tx, r.RoomID, r.StartTime, r.EndTime, r.ID)
	if err != nil {
		return nil, err
	}
	if !set.Empty() {
		return set, nil
	}

	if err := insertReservation(ctx, tx, r); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return set, nil
}

func insertReservation(ctx context.Context, q querier, r *model.Reservation) error {
	now := time.Now()
	var seriesID any
	var occurrence any
	if r.SeriesID != nil {
		seriesID = *r.SeriesID
	}
	if r.OccurrenceDate != nil {
		occurrence = *r.OccurrenceDate
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO reservations (
			room_id, band_id, start_time, end_time, status, comment,
			series_id, occurrence_date, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RoomID, r.BandID, r.StartTime, r.EndTime, r.Status, r.Comment,
		seriesID, occurrence, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	r.ID, err = res.LastInsertId()
	r.CreatedAt = now
	r.UpdatedAt = now
	return err
}

// GetReservation returns a reservation by ID.
func (db *DB) GetReservation(ctx context.Context, id int64) (*model.Reservation, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, room_id, band_id, start_time, end_time, status,
		       COALESCE(comment, ''), series_id, occurrence_date, created_at, updated_at
		FROM reservations WHERE id = ?`, id,
	)
	return scanReservation(row)
}

// UpdateReservationStatus sets the status of a reservation.
func (db *DB) UpdateReservationStatus(ctx context.Context, id int64, status string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), id,
	)
	return err
}

// ListReservations returns all reservations for a room within the
// window, ordered by start time.
func (db *DB) ListReservations(ctx context.Context, roomID int64, from, to time.Time) ([]model.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, room_id, band_id, start_time, end_time, status,
		       COALESCE(comment, ''), series_id, occurrence_date, created_at, updated_at
		FROM reservations
		WHERE room_id = ? AND start_time >= ? AND start_time < ?
		ORDER BY start_time`,
		roomID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, *r)
	}
	return reservations, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var r model.Reservation
	var seriesID sql.NullInt64
	var occurrence sql.NullTime
	err := row.Scan(
		&r.ID, &r.RoomID, &r.BandID, &r.StartTime, &r.EndTime, &r.Status,
		&r.Comment, &seriesID, &occurrence, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if seriesID.Valid {
		r.SeriesID = &seriesID.Int64
	}
	if occurrence.Valid {
		t := occurrence.Time
		r.OccurrenceDate = &t
	}
	return &r, nil
}
