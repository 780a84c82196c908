package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bandroom/internal/model"
)

// CreateSeries inserts a recurring series and fills its ID.
func (db *DB) CreateSeries(ctx context.Context, s *model.RecurringSeries) error {
	now := time.Now()
	if s.Status == "" {
		s.Status = model.SeriesActive
	}
	if s.Rule.Interval <= 0 {
		s.Rule.Interval = 1
	}
	var endDate, count any
	if s.EndDate != nil {
		endDate = *s.EndDate
	}
	if s.Rule.Count != nil {
		count = *s.Rule.Count
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO recurring_series (
			room_id, band_id, recurable_type, frequency, interval, weekdays,
			occurrence_count, start_clock, duration_minutes, status,
			start_date, end_date, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RoomID, s.BandID, s.RecurableType, s.Rule.Frequency, s.Rule.Interval,
		weekdaysToCSV(s.Rule.Weekdays), count, s.StartClock, s.DurationMinutes,
		s.Status, s.StartDate, endDate, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert series: %w", err)
	}
	s.ID, err = res.LastInsertId()
	s.CreatedAt = now
	s.UpdatedAt = now
	return err
}

// GetSeries returns a series by ID.
func (db *DB) GetSeries(ctx context.Context, id int64) (*model.RecurringSeries, error) {
	row := db.QueryRowContext(ctx, seriesSelect+` WHERE id = ?`, id)
	return scanSeries(row)
}

// ListSeriesByStatus returns all series in the given status ordered by ID.
func (db *DB) ListSeriesByStatus(ctx context.Context, status string) ([]model.RecurringSeries, error) {
	rows, err := db.QueryContext(ctx, seriesSelect+` WHERE status = ? ORDER BY id`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RecurringSeries
	for rows.Next() {
		s, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// UpdateSeriesStatus sets the series status.
func (db *DB) UpdateSeriesStatus(ctx context.Context, id int64, status string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE recurring_series SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), id,
	)
	return err
}

// UpdateSeriesEndDate pushes the series end date.
func (db *DB) UpdateSeriesEndDate(ctx context.Context, id int64, endDate time.Time) error {
	_, err := db.ExecContext(ctx, `
		UPDATE recurring_series SET end_date = ?, updated_at = ? WHERE id = ?`,
		endDate, time.Now(), id,
	)
	return err
}

// AdvanceGeneratedThrough moves last_generated_through from the
// observed value to the new one. Compare-and-set: returns false when
// another generation pass advanced the marker first.
func (db *DB) AdvanceGeneratedThrough(ctx context.Context, id int64, from *time.Time, to time.Time) (bool, error) {
	var observed any
	if from != nil {
		observed = *from
	}
	res, err := db.ExecContext(ctx, `
		UPDATE recurring_series
		SET last_generated_through = ?, updated_at = ?
		WHERE id = ? AND last_generated_through IS ?`,
		to, time.Now(), id, observed,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// InstanceExists reports whether an instance row exists for the
// (series, date) pair regardless of its status.
func (db *DB) InstanceExists(ctx context.Context, seriesID int64, date time.Time) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE series_id = ? AND date(occurrence_date) = date(?)`,
		seriesID, date,
	).Scan(&count)
	return count > 0, err
}

// CancelFutureInstances cancels all materialized instances of the
// series starting at or after the cutoff. Past instances and skipped
// placeholders are untouched. Returns the number cancelled.
func (db *DB) CancelFutureInstances(ctx context.Context, seriesID int64, cutoff time.Time, reason string) (int64, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE reservations
		SET status = ?, comment = ?, updated_at = ?
		WHERE series_id = ? AND start_time >= ?
		AND status IN ('pending', 'confirmed')`,
		model.StatusCanceled, reason, time.Now(), seriesID, cutoff,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListSeriesInstances returns every instance of the series ordered by
// occurrence date, placeholders included.
func (db *DB) ListSeriesInstances(ctx context.Context, seriesID int64) ([]model.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, room_id, band_id, start_time, end_time, status,
		       COALESCE(comment, ''), series_id, occurrence_date, created_at, updated_at
		FROM reservations
		WHERE series_id = ?
		ORDER BY occurrence_date`,
		seriesID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, *r)
	}
	return instances, rows.Err()
}

const seriesSelect = `
	SELECT id, room_id, band_id, recurable_type, frequency, interval, weekdays,
	       occurrence_count, start_clock, duration_minutes, status,
	       start_date, end_date, last_generated_through, created_at, updated_at
	FROM recurring_series`

func scanSeries(row rowScanner) (*model.RecurringSeries, error) {
	var s model.RecurringSeries
	var weekdays string
	var count sql.NullInt64
	var endDate, generatedThrough sql.NullTime
	err := row.Scan(
		&s.ID, &s.RoomID, &s.BandID, &s.RecurableType, &s.Rule.Frequency,
		&s.Rule.Interval, &weekdays, &count, &s.StartClock, &s.DurationMinutes,
		&s.Status, &s.StartDate, &endDate, &generatedThrough, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Rule.Weekdays = csvToWeekdays(weekdays)
	if count.Valid {
		c := int(count.Int64)
		s.Rule.Count = &c
	}
	if endDate.Valid {
		t := endDate.Time
		s.EndDate = &t
	}
	if generatedThrough.Valid {
		t := generatedThrough.Time
		s.LastGeneratedThrough = &t
	}
	return &s, nil
}

func weekdaysToCSV(days []time.Weekday) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

func csvToWeekdays(s string) []time.Weekday {
	if s == "" {
		return nil
	}
	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 || n > 6 {
			continue
		}
		days = append(days, time.Weekday(n))
	}
	return days
}
