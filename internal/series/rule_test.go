package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bandroom/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func weeklySeries(weekdays ...time.Weekday) *model.RecurringSeries {
	return &model.RecurringSeries{
		ID:              1,
		RoomID:          1,
		BandID:          1,
		RecurableType:   "rehearsal_reservation",
		Rule:            model.Rule{Frequency: model.FreqWeekly, Interval: 1, Weekdays: weekdays},
		StartClock:      "19:00",
		DurationMinutes: 120,
		Status:          model.SeriesActive,
		StartDate:       date(2025, 1, 1), // a Wednesday
	}
}

func TestOccurrenceDates_Weekly(t *testing.T) {
	s := weeklySeries(time.Wednesday)

	dates, err := OccurrenceDates(s, date(2025, 1, 1), date(2025, 1, 31))
	require.NoError(t, err)

	want := []time.Time{
		date(2025, 1, 1),
		date(2025, 1, 8),
		date(2025, 1, 15),
		date(2025, 1, 22),
		date(2025, 1, 29),
	}
	assert.Equal(t, want, dates)
}

func TestOccurrenceDates_StrictlyIncreasing(t *testing.T) {
	s := weeklySeries(time.Monday, time.Wednesday, time.Friday)

	dates, err := OccurrenceDates(s, date(2025, 1, 1), date(2025, 3, 31))
	require.NoError(t, err)
	require.NotEmpty(t, dates)

	for i := 1; i < len(dates); i++ {
		assert.True(t, dates[i].After(dates[i-1]), "dates must be strictly increasing")
	}
}

func TestOccurrenceDates_Biweekly(t *testing.T) {
	s := weeklySeries(time.Wednesday)
	s.Rule.Frequency = model.FreqBiweekly

	dates, err := OccurrenceDates(s, date(2025, 1, 1), date(2025, 1, 31))
	require.NoError(t, err)

	want := []time.Time{
		date(2025, 1, 1),
		date(2025, 1, 15),
		date(2025, 1, 29),
	}
	assert.Equal(t, want, dates)
}

func TestOccurrenceDates_CountCap(t *testing.T) {
	s := weeklySeries(time.Wednesday)
	count := 3
	s.Rule.Count = &count

	dates, err := OccurrenceDates(s, date(2025, 1, 1), date(2025, 12, 31))
	require.NoError(t, err)
	assert.Len(t, dates, 3)
}

func TestOccurrenceDates_EndDate(t *testing.T) {
	s := weeklySeries(time.Wednesday)
	end := date(2025, 1, 15)
	s.EndDate = &end

	dates, err := OccurrenceDates(s, date(2025, 1, 1), date(2025, 12, 31))
	require.NoError(t, err)

	want := []time.Time{
		date(2025, 1, 1),
		date(2025, 1, 8),
		date(2025, 1, 15),
	}
	assert.Equal(t, want, dates)
}

func TestOccurrenceDates_WindowExcludesEarlierDates(t *testing.T) {
	s := weeklySeries(time.Wednesday)

	dates, err := OccurrenceDates(s, date(2025, 1, 9), date(2025, 1, 31))
	require.NoError(t, err)

	want := []time.Time{
		date(2025, 1, 15),
		date(2025, 1, 22),
		date(2025, 1, 29),
	}
	assert.Equal(t, want, dates)
}

func TestOccurrenceDates_InvalidRule(t *testing.T) {
	s := weeklySeries(time.Wednesday)
	s.Rule.Frequency = "hourly"

	_, err := OccurrenceDates(s, date(2025, 1, 1), date(2025, 1, 31))
	assert.Error(t, err)
}

func TestOccurrenceRange(t *testing.T) {
	s := weeklySeries(time.Wednesday)

	rng, err := OccurrenceRange(s, date(2025, 1, 15), time.UTC)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 1, 15, 19, 0, 0, 0, time.UTC), rng.Start)
	assert.Equal(t, time.Date(2025, 1, 15, 21, 0, 0, 0, time.UTC), rng.End)
}

func TestOccurrenceRange_BadClock(t *testing.T) {
	for _, clock := range []string{"25:99", "late", "19", "19:00:30", ""} {
		t.Run(clock, func(t *testing.T) {
			s := weeklySeries(time.Wednesday)
			s.StartClock = clock

			_, err := OccurrenceRange(s, date(2025, 1, 15), time.UTC)
			assert.Error(t, err)
		})
	}
}

func TestValidateRule(t *testing.T) {
	badCount := 0
	tests := []struct {
		name    string
		rule    model.Rule
		wantErr bool
	}{
		{"weekly ok", model.Rule{Frequency: model.FreqWeekly, Interval: 1}, false},
		{"monthly ok", model.Rule{Frequency: model.FreqMonthly, Interval: 1}, false},
		{"unknown frequency", model.Rule{Frequency: "daily"}, true},
		{"negative interval", model.Rule{Frequency: model.FreqWeekly, Interval: -1}, true},
		{"zero count", model.Rule{Frequency: model.FreqWeekly, Count: &badCount}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRule(tt.rule)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
