package series

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bandroom/internal/clock"
	"bandroom/internal/events"
	"bandroom/internal/model"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateSeries(ctx context.Context, s *model.RecurringSeries) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *mockStore) GetSeries(ctx context.Context, id int64) (*model.RecurringSeries, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RecurringSeries), args.Error(1)
}

func (m *mockStore) UpdateSeriesStatus(ctx context.Context, id int64, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockStore) UpdateSeriesEndDate(ctx context.Context, id int64, endDate time.Time) error {
	args := m.Called(ctx, id, endDate)
	return args.Error(0)
}

func (m *mockStore) AdvanceGeneratedThrough(ctx context.Context, id int64, from *time.Time, to time.Time) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

type mockRecurrable struct {
	mock.Mock
}

func (m *mockRecurrable) CreateForDate(ctx context.Context, s *model.RecurringSeries, date time.Time) (int64, error) {
	args := m.Called(ctx, s, date)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRecurrable) CreatePlaceholderForDate(ctx context.Context, s *model.RecurringSeries, date time.Time, reason string) error {
	args := m.Called(ctx, s, date, reason)
	return args.Error(0)
}

func (m *mockRecurrable) ExistsForDate(ctx context.Context, s *model.RecurringSeries, date time.Time) (bool, error) {
	args := m.Called(ctx, s, date)
	return args.Bool(0), args.Error(1)
}

func (m *mockRecurrable) CancelFutureInstances(ctx context.Context, s *model.RecurringSeries, reason string) (int64, error) {
	args := m.Called(ctx, s, reason)
	return args.Get(0).(int64), args.Error(1)
}

func testLogger() *zerolog.Logger {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return &logger
}

func newTestService(store Store) (*Service, *mockRecurrable) {
	adapter := new(mockRecurrable)
	clk := clock.Fixed{Instant: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)}
	svc := NewService(store, events.NewBus(), clk, testLogger())
	svc.RegisterAdapter("rehearsal_reservation", adapter)
	return svc, adapter
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{model.SeriesActive, model.SeriesPaused, true},
		{model.SeriesActive, model.SeriesCancelled, true},
		{model.SeriesPaused, model.SeriesActive, true},
		{model.SeriesPaused, model.SeriesCancelled, true},
		{model.SeriesCancelled, model.SeriesActive, false},
		{model.SeriesCancelled, model.SeriesPaused, false},
		{model.SeriesActive, model.SeriesActive, false},
		{"unknown", model.SeriesActive, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestCreate(t *testing.T) {
	store := new(mockStore)
	svc, _ := newTestService(store)

	s := weeklySeries(time.Wednesday)
	s.Status = ""
	store.On("CreateSeries", mock.Anything, s).Return(nil)

	err := svc.Create(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, model.SeriesActive, s.Status)
	store.AssertExpectations(t)
}

func TestCreate_Invalid(t *testing.T) {
	store := new(mockStore)
	svc, _ := newTestService(store)

	tests := []struct {
		name   string
		mutate func(*model.RecurringSeries)
	}{
		{"bad rule", func(s *model.RecurringSeries) { s.Rule.Frequency = "daily" }},
		{"bad clock", func(s *model.RecurringSeries) { s.StartClock = "late" }},
		{"zero duration", func(s *model.RecurringSeries) { s.DurationMinutes = 0 }},
		{"end before start", func(s *model.RecurringSeries) {
			end := s.StartDate.AddDate(0, 0, -1)
			s.EndDate = &end
		}},
		{"unregistered type", func(s *model.RecurringSeries) { s.RecurableType = "equipment_loan" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := weeklySeries(time.Wednesday)
			tt.mutate(s)
			assert.Error(t, svc.Create(context.Background(), s))
		})
	}
	store.AssertNotCalled(t, "CreateSeries", mock.Anything, mock.Anything)
}

func TestPauseResume(t *testing.T) {
	store := new(mockStore)
	svc, _ := newTestService(store)
	ctx := context.Background()

	active := weeklySeries(time.Wednesday)
	store.On("GetSeries", mock.Anything, int64(1)).Return(active, nil).Once()
	store.On("UpdateSeriesStatus", mock.Anything, int64(1), model.SeriesPaused).Return(nil).Once()
	require.NoError(t, svc.Pause(ctx, 1))

	paused := weeklySeries(time.Wednesday)
	paused.Status = model.SeriesPaused
	store.On("GetSeries", mock.Anything, int64(1)).Return(paused, nil).Once()
	store.On("UpdateSeriesStatus", mock.Anything, int64(1), model.SeriesActive).Return(nil).Once()
	require.NoError(t, svc.Resume(ctx, 1))

	store.AssertExpectations(t)
}

func TestResume_ActiveSeries(t *testing.T) {
	store := new(mockStore)
	svc, _ := newTestService(store)

	store.On("GetSeries", mock.Anything, int64(1)).Return(weeklySeries(time.Wednesday), nil)

	err := svc.Resume(context.Background(), 1)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	store.AssertNotCalled(t, "UpdateSeriesStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancel_Cascade(t *testing.T) {
	store := new(mockStore)
	svc, adapter := newTestService(store)

	s := weeklySeries(time.Wednesday)
	store.On("GetSeries", mock.Anything, int64(1)).Return(s, nil)
	store.On("UpdateSeriesStatus", mock.Anything, int64(1), model.SeriesCancelled).Return(nil)
	adapter.On("CancelFutureInstances", mock.Anything, s, "band split up").Return(int64(4), nil)

	cancelled, err := svc.Cancel(context.Background(), 1, true, "band split up")
	require.NoError(t, err)
	assert.Equal(t, int64(4), cancelled)
	adapter.AssertExpectations(t)
}

func TestCancel_NoCascade(t *testing.T) {
	store := new(mockStore)
	svc, adapter := newTestService(store)

	store.On("GetSeries", mock.Anything, int64(1)).Return(weeklySeries(time.Wednesday), nil)
	store.On("UpdateSeriesStatus", mock.Anything, int64(1), model.SeriesCancelled).Return(nil)

	cancelled, err := svc.Cancel(context.Background(), 1, false, "")
	require.NoError(t, err)
	assert.Zero(t, cancelled)
	adapter.AssertNotCalled(t, "CancelFutureInstances", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancel_AlreadyCancelled(t *testing.T) {
	store := new(mockStore)
	svc, _ := newTestService(store)

	s := weeklySeries(time.Wednesday)
	s.Status = model.SeriesCancelled
	store.On("GetSeries", mock.Anything, int64(1)).Return(s, nil)

	cancelled, err := svc.Cancel(context.Background(), 1, true, "again")
	require.NoError(t, err)
	assert.Zero(t, cancelled)
	store.AssertNotCalled(t, "UpdateSeriesStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestExtend(t *testing.T) {
	store := new(mockStore)
	svc, _ := newTestService(store)

	s := weeklySeries(time.Wednesday)
	oldEnd := date(2025, 3, 31)
	s.EndDate = &oldEnd
	newEnd := date(2025, 6, 30)

	store.On("GetSeries", mock.Anything, int64(1)).Return(s, nil)
	store.On("UpdateSeriesEndDate", mock.Anything, int64(1), newEnd).Return(nil)

	prior, err := svc.Extend(context.Background(), 1, newEnd)
	require.NoError(t, err)
	require.NotNil(t, prior)
	assert.Equal(t, oldEnd, *prior)
}

func TestExtend_OpenEnded(t *testing.T) {
	store := new(mockStore)
	svc, _ := newTestService(store)

	newEnd := date(2025, 6, 30)
	store.On("GetSeries", mock.Anything, int64(1)).Return(weeklySeries(time.Wednesday), nil)
	store.On("UpdateSeriesEndDate", mock.Anything, int64(1), newEnd).Return(nil)

	prior, err := svc.Extend(context.Background(), 1, newEnd)
	require.NoError(t, err)
	assert.Nil(t, prior)
}

func TestExtend_Cancelled(t *testing.T) {
	store := new(mockStore)
	svc, _ := newTestService(store)

	s := weeklySeries(time.Wednesday)
	s.Status = model.SeriesCancelled
	store.On("GetSeries", mock.Anything, int64(1)).Return(s, nil)

	_, err := svc.Extend(context.Background(), 1, date(2025, 6, 30))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	store.AssertNotCalled(t, "UpdateSeriesEndDate", mock.Anything, mock.Anything, mock.Anything)
}

func TestExtend_NotForward(t *testing.T) {
	store := new(mockStore)
	svc, _ := newTestService(store)

	s := weeklySeries(time.Wednesday)
	end := date(2025, 6, 30)
	s.EndDate = &end
	store.On("GetSeries", mock.Anything, int64(1)).Return(s, nil)

	_, err := svc.Extend(context.Background(), 1, date(2025, 3, 31))
	assert.Error(t, err)
	store.AssertNotCalled(t, "UpdateSeriesEndDate", mock.Anything, mock.Anything, mock.Anything)
}
