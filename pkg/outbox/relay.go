package outbox

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/jobtrack/jobtrack/pkg/activity"
	"github.com/jobtrack/jobtrack/pkg/eventbus"
	"github.com/jobtrack/jobtrack/pkg/metrics"
	"github.com/jobtrack/jobtrack/pkg/model"
)

type Repository interface {
	ListPendingLogs(ctx context.Context, limit int) ([]model.ProjectLog, error)
	MarkLogPublished(ctx context.Context, id uint64, publishedAt time.Time) error
	MarkLogFailed(ctx context.Context, id uint64) error
}

type Publisher interface {
	PublishEvent(ctx context.Context, key, value []byte, headers ...kafka.Header) error
	PublishDLQ(ctx context.Context, key, value []byte, headers ...kafka.Header) error
}

type Relay struct {
	repo         Repository
	publisher    Publisher
	logger       *zap.Logger
	pollInterval time.Duration
	batchSize    int
}

type Message struct {
	EventID      string        `json:"event_id"`
	EventType    string        `json:"event_type"`
	LogType      model.LogType `json:"log_type"`
	ProjectID    uint          `json:"project_id"`
	ProjectDayID *uint         `json:"project_day_id,omitempty"`
	EntityID     string        `json:"entity_id,omitempty"`
	Before       model.JSONMap `json:"before,omitempty"`
	After        model.JSONMap `json:"after,omitempty"`
	Description  string        `json:"description"`
	ActorID      *uint         `json:"actor_id,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

type DLQMessage struct {
	Event    Message   `json:"event"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

func NewRelay(repo Repository, publisher Publisher, logger *zap.Logger, pollInterval time.Duration, batchSize int) *Relay {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		repo:         repo,
		publisher:    publisher,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("outbox relay starting",
		zap.Duration("poll_interval", r.pollInterval),
		zap.Int("batch_size", r.batchSize),
	)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	r.ProcessPending(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay shutting down")
			return ctx.Err()
		case <-ticker.C:
			r.ProcessPending(ctx)
		}
	}
}

// ProcessPending relays one batch and returns how many records were handled.
func (r *Relay) ProcessPending(ctx context.Context) int {
	logs, err := r.repo.ListPendingLogs(ctx, r.batchSize)
	if err != nil {
		r.logger.Warn("failed to list pending project logs", zap.Error(err))
		return 0
	}

	for _, entry := range logs {
		if err := r.publishLog(ctx, entry); err != nil {
			r.logger.Warn("failed to publish project log", zap.Error(err), zap.Uint64("log_id", entry.ID))
		}
	}
	return len(logs)
}

func NewMessage(entry model.ProjectLog) Message {
	return Message{
		EventID:      strconv.FormatUint(entry.ID, 10),
		EventType:    entry.Event,
		LogType:      entry.LogType,
		ProjectID:    entry.ProjectID,
		ProjectDayID: entry.ProjectDayID,
		EntityID:     entry.EntityID,
		Before:       entry.BeforeValue,
		After:        entry.AfterValue,
		Description:  activity.Describe(entry),
		ActorID:      entry.RecordedBy,
		CreatedAt:    entry.CreatedAt,
	}
}

func (r *Relay) publishLog(ctx context.Context, entry model.ProjectLog) error {
	message := NewMessage(entry)

	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	// Keyed by project so a job order's events stay ordered within a partition.
	key := []byte(strconv.FormatUint(uint64(entry.ProjectID), 10))
	headers := []kafka.Header{
		{Key: eventbus.HeaderEventID, Value: []byte(message.EventID)},
		{Key: eventbus.HeaderEventType, Value: []byte(message.EventType)},
	}

	if err := r.publisher.PublishEvent(ctx, key, payload, headers...); err != nil {
		r.logger.Warn("failed to publish to kafka, sending to DLQ", zap.Error(err), zap.Uint64("log_id", entry.ID))
		return r.publishDLQ(ctx, key, message, err, entry.ID)
	}

	if err := r.repo.MarkLogPublished(ctx, entry.ID, time.Now().UTC()); err != nil {
		r.logger.Warn("failed to mark project log published", zap.Error(err), zap.Uint64("log_id", entry.ID))
		return err
	}

	metrics.OutboxPublished.WithLabelValues("published").Inc()
	return nil
}

func (r *Relay) publishDLQ(ctx context.Context, key []byte, message Message, publishErr error, id uint64) error {
	dlq := DLQMessage{
		Event:    message,
		Error:    publishErr.Error(),
		FailedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(dlq)
	if err != nil {
		return err
	}

	headers := []kafka.Header{
		{Key: eventbus.HeaderEventID, Value: []byte(message.EventID)},
		{Key: eventbus.HeaderDLQError, Value: []byte(publishErr.Error())},
	}
	if err := r.publisher.PublishDLQ(ctx, key, payload, headers...); err != nil {
		return err
	}

	if err := r.repo.MarkLogFailed(ctx, id); err != nil {
		r.logger.Warn("failed to mark project log failed", zap.Error(err), zap.Uint64("log_id", id))
		return err
	}

	metrics.OutboxPublished.WithLabelValues("dead_lettered").Inc()
	return nil
}
