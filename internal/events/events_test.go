package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()

	var received []Event
	bus.Subscribe(SeriesCreated, func(e Event) error {
		received = append(received, e)
		return nil
	})

	bus.Publish(Event{Type: SeriesCreated})
	bus.Publish(Event{Type: SeriesCancelled}) // no subscriber

	require.Len(t, received, 1)
	assert.Equal(t, SeriesCreated, received[0].Type)
	assert.NotEmpty(t, received[0].ID)
	assert.False(t, received[0].CreatedAt.IsZero())
}

func TestPublishJSON(t *testing.T) {
	bus := NewBus()

	type payload struct {
		SeriesID int64 `json:"series_id"`
	}

	var got payload
	bus.Subscribe(SeriesGenerated, func(e Event) error {
		return json.Unmarshal(e.Payload, &got)
	})

	require.NoError(t, bus.PublishJSON(SeriesGenerated, payload{SeriesID: 42}))
	assert.Equal(t, int64(42), got.SeriesID)
}

func TestMultipleSubscribers(t *testing.T) {
	bus := NewBus()

	var calls int
	handler := func(Event) error { calls++; return nil }
	bus.Subscribe(ReservationCreated, handler)
	bus.Subscribe(ReservationCreated, handler)

	bus.Publish(Event{Type: ReservationCreated})
	assert.Equal(t, 2, calls)
}
