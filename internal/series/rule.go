// Package series owns recurrence definitions: rule expansion, the
// series lifecycle and the instance generator.
package series

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"bandroom/internal/interval"
	"bandroom/internal/model"
)

// Cap on dates per generation window, guarding against runaway rules.
const maxOccurrencesPerWindow = 1000

var weekdayMap = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// ValidateRule rejects rules the generator cannot expand.
func ValidateRule(r model.Rule) error {
	switch r.Frequency {
	case model.FreqWeekly, model.FreqBiweekly, model.FreqMonthly:
	default:
		return fmt.Errorf("unknown frequency %q", r.Frequency)
	}
	if r.Interval < 0 {
		return errors.New("interval must not be negative")
	}
	if r.Count != nil && *r.Count <= 0 {
		return errors.New("occurrence count must be positive")
	}
	for _, d := range r.Weekdays {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("invalid weekday %d", d)
		}
	}
	return nil
}

// OccurrenceDates expands the series rule into the ordered, strictly
// increasing sequence of occurrence dates within [from, through], both
// bounds inclusive, as midnights in from's location. The series' end
// conditions (end date, occurrence count) are honored.
func OccurrenceDates(s *model.RecurringSeries, from, through time.Time) ([]time.Time, error) {
	if err := ValidateRule(s.Rule); err != nil {
		return nil, fmt.Errorf("series %d: %w", s.ID, err)
	}

	opt := rrule.ROption{
		Dtstart: dateOnly(s.StartDate),
	}

	switch s.Rule.Frequency {
	case model.FreqWeekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = s.Rule.Interval
	case model.FreqBiweekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 2
	case model.FreqMonthly:
		opt.Freq = rrule.MONTHLY
		opt.Interval = s.Rule.Interval
	}
	if opt.Interval <= 0 {
		opt.Interval = 1
	}

	for _, d := range s.Rule.Weekdays {
		opt.Byweekday = append(opt.Byweekday, weekdayMap[d])
	}

	if s.Rule.Count != nil {
		opt.Count = *s.Rule.Count
	}
	if s.EndDate != nil {
		opt.Until = dateOnly(*s.EndDate)
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("series %d: build rule: %w", s.ID, err)
	}

	dates := r.Between(dateOnly(from), dateOnly(through), true)
	if len(dates) > maxOccurrencesPerWindow {
		dates = dates[:maxOccurrencesPerWindow]
	}
	return dates, nil
}

// OccurrenceRange derives the concrete time window of one occurrence
// date from the series' start clock and duration, in loc.
func OccurrenceRange(s *model.RecurringSeries, date time.Time, loc *time.Location) (interval.Range, error) {
	hour, minute, err := parseClock(s.StartClock)
	if err != nil {
		return interval.Range{}, fmt.Errorf("series %d: %w", s.ID, err)
	}
	if s.DurationMinutes <= 0 {
		return interval.Range{}, fmt.Errorf("series %d: duration must be positive", s.ID)
	}
	start := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, loc)
	return interval.New(start, start.Add(time.Duration(s.DurationMinutes)*time.Minute))
}

func parseClock(clock string) (hour, minute int, err error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock format: %s", clock)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", clock)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", clock)
	}
	return hour, minute, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
