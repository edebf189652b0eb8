package sqlstore

import (
	"context"
	"time"

	"github.com/jobtrack/jobtrack/pkg/model"
)

func (r *Repo) CreateProject(ctx context.Context, project *model.Project) error {
	return translate(r.conn(ctx).Create(project).Error)
}

func (r *Repo) GetProject(ctx context.Context, id uint) (*model.Project, error) {
	var project model.Project
	if err := r.conn(ctx).First(&project, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &project, nil
}

func (r *Repo) GetProjectByJONumber(ctx context.Context, joNumber string) (*model.Project, error) {
	var project model.Project
	if err := r.conn(ctx).First(&project, "jo_number = ?", joNumber).Error; err != nil {
		return nil, translate(err)
	}
	return &project, nil
}

func (r *Repo) ListProjects(ctx context.Context, status model.ProjectStatus) ([]model.Project, error) {
	var projects []model.Project
	query := r.conn(ctx).Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Find(&projects).Error
	return projects, err
}

func (r *Repo) UpdateProjectStatus(ctx context.Context, id uint, status model.ProjectStatus) error {
	return r.conn(ctx).Model(&model.Project{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *Repo) CreateProjectDay(ctx context.Context, day *model.ProjectDay) error {
	return translate(r.conn(ctx).Omit("Location").Create(day).Error)
}

func (r *Repo) GetProjectDay(ctx context.Context, id uint) (*model.ProjectDay, error) {
	var day model.ProjectDay
	if err := r.conn(ctx).Preload("Location").First(&day, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &day, nil
}

func (r *Repo) FindProjectDay(ctx context.Context, projectID uint, date time.Time) (*model.ProjectDay, error) {
	var day model.ProjectDay
	err := r.conn(ctx).
		Where("project_id = ? AND project_date = ?", projectID, dateOnly(date)).
		First(&day).Error
	if err != nil {
		return nil, translate(err)
	}
	return &day, nil
}

func (r *Repo) ListProjectDays(ctx context.Context, projectID uint) ([]model.ProjectDay, error) {
	var days []model.ProjectDay
	err := r.conn(ctx).
		Preload("Location").
		Where("project_id = ?", projectID).
		Order("project_date ASC, id ASC").
		Find(&days).Error
	return days, err
}

func (r *Repo) UpdateProjectDay(ctx context.Context, day *model.ProjectDay) error {
	err := r.conn(ctx).Model(&model.ProjectDay{}).
		Where("id = ?", day.ID).
		Updates(map[string]interface{}{
			"project_date": dateOnly(day.ProjectDate),
			"location_id":  day.LocationID,
			"updated_at":   time.Now().UTC(),
		}).Error
	return translate(err)
}

func (r *Repo) DeleteProjectDay(ctx context.Context, id uint) error {
	return r.conn(ctx).Delete(&model.ProjectDay{}, id).Error
}

func (r *Repo) CountDayChildren(ctx context.Context, dayID uint) (int64, int64, error) {
	var items, personnel int64
	if err := r.conn(ctx).Model(&model.ProjectItem{}).Where("project_day_id = ?", dayID).Count(&items).Error; err != nil {
		return 0, 0, err
	}
	if err := r.conn(ctx).Model(&model.ProjectPersonnel{}).Where("project_day_id = ?", dayID).Count(&personnel).Error; err != nil {
		return 0, 0, err
	}
	return items, personnel, nil
}

func (r *Repo) GetLocation(ctx context.Context, id uint) (*model.Location, error) {
	var location model.Location
	if err := r.conn(ctx).First(&location, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &location, nil
}

func (r *Repo) ListActiveLocations(ctx context.Context) ([]model.Location, error) {
	var locations []model.Location
	err := r.conn(ctx).Where("is_active = ?", true).Order("name ASC").Find(&locations).Error
	return locations, err
}
