package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewEventBus()

	var got []*Event
	bus.Subscribe(EventBookingCreated, func(e *Event) error {
		got = append(got, e)
		return nil
	})

	payload := BookingEventPayload{BookingID: 7, UserID: 3, LabID: 1, Status: "pending"}
	require.NoError(t, bus.PublishJSON(EventBookingCreated, payload))

	// Чужой тип события обработчик не трогает.
	require.NoError(t, bus.PublishJSON(EventBookingCancelled, payload))

	require.Len(t, got, 1)
	assert.Equal(t, EventBookingCreated, got[0].Type)
	assert.False(t, got[0].CreatedAt.IsZero())

	var decoded BookingEventPayload
	require.NoError(t, json.Unmarshal(got[0].Payload, &decoded))
	assert.Equal(t, int64(7), decoded.BookingID)
}

func TestMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()

	calls := 0
	for i := 0; i < 3; i++ {
		bus.Subscribe(EventEquipmentReturned, func(e *Event) error {
			calls++
			return nil
		})
	}

	bus.Publish(&Event{Type: EventEquipmentReturned, CreatedAt: time.Now()})
	assert.Equal(t, 3, calls)
}

func TestNilBusPublishJSON(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventBookingCreated, BookingEventPayload{BookingID: 1}))
}

func TestConcurrentPublish(t *testing.T) {
	bus := NewEventBus()

	var mu sync.Mutex
	count := 0
	bus.Subscribe(EventBookingConfirmed, func(e *Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = bus.PublishJSON(EventBookingConfirmed, BookingEventPayload{BookingID: 1})
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, count)
}
