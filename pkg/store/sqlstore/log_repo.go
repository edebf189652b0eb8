package sqlstore

import (
	"context"
	"time"

	"github.com/jobtrack/jobtrack/pkg/model"
)

func (r *Repo) CreateProjectLog(ctx context.Context, entry *model.ProjectLog) error {
	if entry.PublishStatus == "" {
		entry.PublishStatus = model.OutboxStatusPending
	}
	return r.conn(ctx).Create(entry).Error
}

func (r *Repo) ListProjectLogs(ctx context.Context, projectID uint, limit int) ([]model.ProjectLog, error) {
	var logs []model.ProjectLog
	query := r.conn(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&logs).Error
	return logs, err
}

func (r *Repo) ListPendingLogs(ctx context.Context, limit int) ([]model.ProjectLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var logs []model.ProjectLog
	err := r.conn(ctx).
		Where("publish_status = ?", model.OutboxStatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (r *Repo) MarkLogPublished(ctx context.Context, id uint64, publishedAt time.Time) error {
	return r.conn(ctx).
		Model(&model.ProjectLog{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"publish_status": model.OutboxStatusPublished,
			"published_at":   publishedAt,
		}).Error
}

func (r *Repo) MarkLogFailed(ctx context.Context, id uint64) error {
	return r.conn(ctx).
		Model(&model.ProjectLog{}).
		Where("id = ?", id).
		Update("publish_status", model.OutboxStatusFailed).Error
}
