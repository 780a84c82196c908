package reservation

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bandroom/internal/clock"
	"bandroom/internal/conflict"
	"bandroom/internal/db"
	"bandroom/internal/events"
	"bandroom/internal/model"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateReservation(ctx context.Context, r *model.Reservation) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *mockStore) CreateReservationIfFree(ctx context.Context, r *model.Reservation) (*db.OverlapSet, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.OverlapSet), args.Error(1)
}

func (m *mockStore) GetReservation(ctx context.Context, id int64) (*model.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reservation), args.Error(1)
}

func (m *mockStore) UpdateReservationStatus(ctx context.Context, id int64, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockStore) InstanceExists(ctx context.Context, seriesID int64, date time.Time) (bool, error) {
	args := m.Called(ctx, seriesID, date)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) CancelFutureInstances(ctx context.Context, seriesID int64, cutoff time.Time, reason string) (int64, error) {
	args := m.Called(ctx, seriesID, cutoff, reason)
	return args.Get(0).(int64), args.Error(1)
}

var testNow = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func testLogger() *zerolog.Logger {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return &logger
}

func testSeries() *model.RecurringSeries {
	return &model.RecurringSeries{
		ID:              1,
		RoomID:          2,
		BandID:          3,
		RecurableType:   "rehearsal_reservation",
		Rule:            model.Rule{Frequency: model.FreqWeekly, Interval: 1, Weekdays: []time.Weekday{time.Wednesday}},
		StartClock:      "19:00",
		DurationMinutes: 120,
		Status:          model.SeriesActive,
		StartDate:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestAdapter(store *mockStore) *Adapter {
	clk := clock.Fixed{Instant: testNow}
	return NewAdapter(store, clk, time.UTC, events.NewBus(), testLogger())
}

func TestAdapterCreateForDate(t *testing.T) {
	store := new(mockStore)
	adapter := newTestAdapter(store)
	s := testSeries()
	occurrence := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	store.On("CreateReservationIfFree", mock.Anything, mock.MatchedBy(func(r *model.Reservation) bool {
		return r.RoomID == s.RoomID &&
			r.BandID == s.BandID &&
			r.Status == model.StatusConfirmed &&
			r.StartTime.Equal(occurrence.Add(19*time.Hour)) &&
			r.EndTime.Equal(occurrence.Add(21*time.Hour)) &&
			r.SeriesID != nil && *r.SeriesID == s.ID &&
			r.OccurrenceDate != nil && r.OccurrenceDate.Equal(occurrence)
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*model.Reservation).ID = 42
	}).Return(&db.OverlapSet{}, nil)

	id, err := adapter.CreateForDate(context.Background(), s, occurrence)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	store.AssertExpectations(t)
}

func TestAdapterCreateForDate_Conflict(t *testing.T) {
	store := new(mockStore)
	adapter := newTestAdapter(store)
	s := testSeries()

	occupied := &db.OverlapSet{Reservations: []model.Reservation{{ID: 9}}}
	store.On("CreateReservationIfFree", mock.Anything, mock.Anything).Return(occupied, nil)

	_, err := adapter.CreateForDate(context.Background(), s, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.ErrorIs(t, err, conflict.ErrConflict)

	var conflictErr *conflict.Error
	require.ErrorAs(t, err, &conflictErr)
	assert.Len(t, conflictErr.Result.Reservations, 1)
}

func TestAdapterCreatePlaceholderForDate(t *testing.T) {
	store := new(mockStore)
	adapter := newTestAdapter(store)
	s := testSeries()
	occurrence := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	store.On("CreateReservation", mock.Anything, mock.MatchedBy(func(r *model.Reservation) bool {
		return r.Status == model.StatusSkipped &&
			r.Comment == "room already booked" &&
			r.SeriesID != nil && *r.SeriesID == s.ID
	})).Return(nil)

	err := adapter.CreatePlaceholderForDate(context.Background(), s, occurrence, "room already booked")
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestAdapterCancelFutureInstances(t *testing.T) {
	store := new(mockStore)
	adapter := newTestAdapter(store)
	s := testSeries()

	store.On("CancelFutureInstances", mock.Anything, s.ID, testNow, "band split up").Return(int64(3), nil)

	n, err := adapter.CancelFutureInstances(context.Background(), s, "band split up")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func newTestService(store *mockStore, rules Rules) *Service {
	clk := clock.Fixed{Instant: testNow}
	return NewService(store, rules, clk, events.NewBus(), testLogger())
}

func TestServiceCreate(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store, Rules{})

	r := &model.Reservation{
		RoomID:    2,
		BandID:    3,
		StartTime: testNow.Add(24 * time.Hour),
		EndTime:   testNow.Add(26 * time.Hour),
	}
	store.On("CreateReservationIfFree", mock.Anything, r).Return(&db.OverlapSet{}, nil)

	require.NoError(t, svc.Create(context.Background(), r))
	assert.Equal(t, model.StatusPending, r.Status)
}

func TestServiceCreate_Conflict(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store, Rules{})

	occupied := &db.OverlapSet{Productions: []model.Production{{ID: 4, Title: "Showcase"}}}
	store.On("CreateReservationIfFree", mock.Anything, mock.Anything).Return(occupied, nil)

	err := svc.Create(context.Background(), &model.Reservation{
		RoomID:    2,
		StartTime: testNow.Add(24 * time.Hour),
		EndTime:   testNow.Add(26 * time.Hour),
	})
	assert.ErrorIs(t, err, conflict.ErrConflict)
}

func TestServiceCreate_InvalidRange(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store, Rules{})

	err := svc.Create(context.Background(), &model.Reservation{
		StartTime: testNow.Add(26 * time.Hour),
		EndTime:   testNow.Add(24 * time.Hour),
	})
	assert.Error(t, err)
	store.AssertNotCalled(t, "CreateReservationIfFree", mock.Anything, mock.Anything)
}

func TestServiceCreate_RejectsSeriesReference(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store, Rules{})

	seriesID := int64(1)
	err := svc.Create(context.Background(), &model.Reservation{
		SeriesID:  &seriesID,
		StartTime: testNow.Add(24 * time.Hour),
		EndTime:   testNow.Add(26 * time.Hour),
	})
	assert.Error(t, err)
	store.AssertNotCalled(t, "CreateReservationIfFree", mock.Anything, mock.Anything)
}

func TestServiceCreate_AdvanceRules(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store, Rules{
		MinAdvance: 2 * time.Hour,
		MaxAdvance: 30 * 24 * time.Hour,
	})

	tests := []struct {
		name  string
		start time.Time
	}{
		{"too soon", testNow.Add(time.Hour)},
		{"too far ahead", testNow.Add(31 * 24 * time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Create(context.Background(), &model.Reservation{
				StartTime: tt.start,
				EndTime:   tt.start.Add(2 * time.Hour),
			})
			assert.Error(t, err)
		})
	}
	store.AssertNotCalled(t, "CreateReservationIfFree", mock.Anything, mock.Anything)
}

func TestServiceCancel(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store, Rules{})

	store.On("GetReservation", mock.Anything, int64(5)).Return(&model.Reservation{
		ID:     5,
		Status: model.StatusConfirmed,
	}, nil)
	store.On("UpdateReservationStatus", mock.Anything, int64(5), model.StatusCanceled).Return(nil)

	require.NoError(t, svc.Cancel(context.Background(), 5))
	store.AssertExpectations(t)
}

func TestServiceCancel_AlreadyCanceled(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store, Rules{})

	store.On("GetReservation", mock.Anything, int64(5)).Return(&model.Reservation{
		ID:     5,
		Status: model.StatusCanceled,
	}, nil)

	require.NoError(t, svc.Cancel(context.Background(), 5))
	store.AssertNotCalled(t, "UpdateReservationStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestServiceCancel_SkippedPlaceholder(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store, Rules{})

	store.On("GetReservation", mock.Anything, int64(5)).Return(&model.Reservation{
		ID:     5,
		Status: model.StatusSkipped,
	}, nil)

	assert.Error(t, svc.Cancel(context.Background(), 5))
	store.AssertNotCalled(t, "UpdateReservationStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestServiceCreate_StoreError(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store, Rules{})

	boom := errors.New("db is down")
	store.On("CreateReservationIfFree", mock.Anything, mock.Anything).Return(nil, boom)

	err := svc.Create(context.Background(), &model.Reservation{
		StartTime: testNow.Add(24 * time.Hour),
		EndTime:   testNow.Add(26 * time.Hour),
	})
	assert.ErrorIs(t, err, boom)
}
