// Package model holds the persisted domain records for the scheduler.
package model

import "time"

// Reservation statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCanceled  = "canceled"
	// StatusSkipped marks a non-materialized placeholder: a series
	// occurrence date that could not be booked due to a conflict.
	StatusSkipped = "skipped"
)

// Room represents a bookable practice space.
type Room struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Reservation is a single rehearsal booking of a room. Reservations
// generated from a recurring series carry a back-reference to it.
type Reservation struct {
	ID             int64      `json:"id"`
	RoomID         int64      `json:"room_id"`
	BandID         int64      `json:"band_id"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        time.Time  `json:"end_time"`
	Status         string     `json:"status"`
	Comment        string     `json:"comment,omitempty"`
	SeriesID       *int64     `json:"series_id,omitempty"`
	OccurrenceDate *time.Time `json:"occurrence_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Materialized reports whether the reservation is a real booking rather
// than a cancelled record or a skipped placeholder.
func (r *Reservation) Materialized() bool {
	return r.Status != StatusCanceled && r.Status != StatusSkipped
}

// Blocking reports whether the reservation occupies its room for
// conflict purposes.
func (r *Reservation) Blocking() bool {
	return r.Status == StatusPending || r.Status == StatusConfirmed
}

// Production is a scheduled show occupying a room, including setup and
// teardown time.
type Production struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room_id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Closure kinds.
const (
	ClosureMaintenance = "maintenance"
	ClosureHoliday     = "holiday"
	ClosureOther       = "other"
)

// SpaceClosure blocks a room (or, with RoomID nil, the whole facility)
// for a time range. No reservation can occur during a closure.
type SpaceClosure struct {
	ID        int64     `json:"id"`
	RoomID    *int64    `json:"room_id,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Kind      string    `json:"kind"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
