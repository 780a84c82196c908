package model

import "time"

// Series statuses.
const (
	SeriesActive    = "active"
	SeriesPaused    = "paused"
	SeriesCancelled = "cancelled"
)

// Rule frequencies.
const (
	FreqWeekly   = "weekly"
	FreqBiweekly = "biweekly"
	FreqMonthly  = "monthly"
)

// Rule describes how a recurring series repeats. The end condition, if
// any, is either Count or the owning series' EndDate.
type Rule struct {
	Frequency string         `json:"frequency"`
	Interval  int            `json:"interval"`
	Weekdays  []time.Weekday `json:"weekdays"`
	Count     *int           `json:"count,omitempty"`
}

// RecurringSeries is a recurrence definition that expands into dated
// reservation instances. Instances reference the series; the series does
// not own them.
type RecurringSeries struct {
	ID            int64  `json:"id"`
	RoomID        int64  `json:"room_id"`
	BandID        int64  `json:"band_id"`
	RecurableType string `json:"recurable_type"`
	Rule          Rule   `json:"rule"`
	// StartClock is the local start time of each occurrence, "HH:MM".
	StartClock      string     `json:"start_clock"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	// LastGeneratedThrough is the last date a generation pass has
	// considered, inclusive. Nil until the first pass completes.
	LastGeneratedThrough *time.Time `json:"last_generated_through,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}
