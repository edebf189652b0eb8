package eventbus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledBusIsNoop(t *testing.T) {
	var nilBus *Bus
	assert.False(t, nilBus.Enabled())
	assert.NoError(t, nilBus.PublishProjectChanged(context.Background(), ProjectEvent{JONumber: "JO-1"}))

	bus := NewBus(nil)
	assert.False(t, bus.Enabled())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, open := <-bus.ProjectChanges(ctx, "JO-1")
	assert.False(t, open, "changes channel should close when redis is disabled")
}

func TestNewEventEncodesPayload(t *testing.T) {
	event, err := NewEvent(EventProjectChanged, ProjectEvent{ProjectID: 3, JONumber: "JO-2024-001", Change: "items"})
	require.NoError(t, err)
	assert.Equal(t, EventProjectChanged, event.Type)
	assert.NotZero(t, event.Timestamp)

	var decoded ProjectEvent
	require.NoError(t, json.Unmarshal(event.Data, &decoded))
	assert.Equal(t, uint(3), decoded.ProjectID)
	assert.Equal(t, "items", decoded.Change)
}

func TestHeaderValue(t *testing.T) {
	headers := []kafka.Header{
		{Key: HeaderEventType, Value: []byte("project_day.added")},
		{Key: HeaderEventID, Value: []byte("42")},
	}
	assert.Equal(t, "42", HeaderValue(headers, HeaderEventID))
	assert.Empty(t, HeaderValue(headers, HeaderDLQError))
}
