package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type Event struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// ProjectEvent tells clients viewing a job order that its detail changed
// and should be refetched.
type ProjectEvent struct {
	ProjectID uint   `json:"project_id"`
	JONumber  string `json:"jo_number"`
	Change    string `json:"change"`
}

const ChannelProject = "jobtrack:events:project"

const EventProjectChanged = "project.changed"

// Bus is safe to use with a nil receiver or a nil client, in which case
// publishing is a no-op and subscriptions yield a closed channel.
type Bus struct {
	client redis.UniversalClient
}

func NewBus(client redis.UniversalClient) *Bus {
	return &Bus{client: client}
}

func NewEvent(eventType string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Type:      eventType,
		Timestamp: time.Now().Unix(),
		Data:      data,
	}, nil
}

func (b *Bus) Enabled() bool {
	return b != nil && b.client != nil
}

func (b *Bus) Publish(ctx context.Context, channel string, event Event) error {
	if !b.Enabled() {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channel, payload).Err()
}

// PublishProjectChanged implements the allocation service's notifier.
func (b *Bus) PublishProjectChanged(ctx context.Context, change ProjectEvent) error {
	event, err := NewEvent(EventProjectChanged, change)
	if err != nil {
		return err
	}
	return b.Publish(ctx, ChannelProject, event)
}

func (b *Bus) Subscribe(ctx context.Context, channels ...string) <-chan *Event {
	ch := make(chan *Event, 100)
	if !b.Enabled() {
		close(ch)
		return ch
	}

	sub := b.client.Subscribe(ctx, channels...)

	go func() {
		defer close(ch)
		for msg := range sub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			select {
			case ch <- &event:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()

	return ch
}

// ProjectChanges filters the project channel down to events for one job order.
func (b *Bus) ProjectChanges(ctx context.Context, joNumber string) <-chan ProjectEvent {
	out := make(chan ProjectEvent, 16)
	events := b.Subscribe(ctx, ChannelProject)

	go func() {
		defer close(out)
		for event := range events {
			var change ProjectEvent
			if err := json.Unmarshal(event.Data, &change); err != nil {
				continue
			}
			if change.JONumber != joNumber {
				continue
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
