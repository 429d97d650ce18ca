package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var received []*Event
	unsubscribe := bus.Subscribe(func(e *Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	})
	defer unsubscribe()

	bus.Emit(RunStarted, &RunStartedData{RunID: "r1"})
	bus.Emit(RunCompleted, &RunCompletedData{RunID: "r1", Symbols: 10})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, RunStarted, received[0].Type)
	assert.Equal(t, RunCompleted, received[1].Type)
	assert.NotEmpty(t, received[0].ID)
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()

	count := 0
	unsubscribe := bus.Subscribe(func(e *Event) { count++ })

	bus.Emit(RunStarted, nil)
	unsubscribe()
	bus.Emit(RunStarted, nil)

	assert.Equal(t, 1, count)
}

func TestEventDataTypes(t *testing.T) {
	assert.Equal(t, RunStarted, (&RunStartedData{}).EventType())
	assert.Equal(t, RunCompleted, (&RunCompletedData{}).EventType())
	assert.Equal(t, RunFailed, (&RunFailedData{}).EventType())
	assert.Equal(t, ScreenFetched, (&ScreenFetchedData{}).EventType())
	assert.Equal(t, EnrichmentProgress, (&EnrichmentProgressData{}).EventType())
}
