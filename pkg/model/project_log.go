package model

import "time"

type LogType string

const (
	LogStatusChange LogType = "status_change"
	LogActivity     LogType = "activity"
	LogIncident     LogType = "incident"
)

const (
	OutboxStatusPending   = "pending"
	OutboxStatusPublished = "published"
	OutboxStatusFailed    = "failed"
)

// ProjectLog is an append-only structured activity record. It doubles as
// the outbox row that the relay publishes to Kafka.
type ProjectLog struct {
	ID            uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID     uint       `gorm:"not null;index:idx_project_log_project" json:"project_id"`
	ProjectDayID  *uint      `json:"project_day_id,omitempty"`
	LogType       LogType    `gorm:"type:varchar(20);not null" json:"log_type"`
	Event         string     `gorm:"size:64;not null" json:"event"`
	EntityID      string     `gorm:"size:64" json:"entity_id"`
	BeforeValue   JSONMap    `gorm:"type:json" json:"before_value,omitempty"`
	AfterValue    JSONMap    `gorm:"type:json" json:"after_value,omitempty"`
	RecordedBy    *uint      `json:"recorded_by,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index:idx_project_log_project" json:"created_at"`
	PublishStatus string     `gorm:"size:20;not null;default:'pending';index" json:"-"`
	PublishedAt   *time.Time `json:"-"`
}
