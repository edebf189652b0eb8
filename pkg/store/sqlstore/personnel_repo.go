package sqlstore

import (
	"context"

	"github.com/jobtrack/jobtrack/pkg/model"
)

func (r *Repo) GetPersonnel(ctx context.Context, id uint) (*model.Personnel, error) {
	var personnel model.Personnel
	if err := r.conn(ctx).First(&personnel, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &personnel, nil
}

func (r *Repo) ListActivePersonnel(ctx context.Context) ([]model.Personnel, error) {
	var personnel []model.Personnel
	err := r.conn(ctx).
		Where("status = ?", "active").
		Order("first_name ASC, last_name ASC").
		Find(&personnel).Error
	return personnel, err
}

func (r *Repo) GetRole(ctx context.Context, id uint) (*model.Role, error) {
	var role model.Role
	if err := r.conn(ctx).First(&role, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &role, nil
}

func (r *Repo) ListRoles(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	err := r.conn(ctx).Order("name ASC").Find(&roles).Error
	return roles, err
}

func (r *Repo) CreateProjectPersonnel(ctx context.Context, assignment *model.ProjectPersonnel) error {
	return translate(r.conn(ctx).Omit("Personnel", "Role").Create(assignment).Error)
}

func (r *Repo) ProjectPersonnelExists(ctx context.Context, key model.ProjectPersonnelKey) (bool, error) {
	var count int64
	err := r.conn(ctx).Model(&model.ProjectPersonnel{}).
		Where("project_day_id = ? AND personnel_id = ? AND role_id = ?", key.ProjectDayID, key.PersonnelID, key.RoleID).
		Count(&count).Error
	return count > 0, err
}

func (r *Repo) ListProjectPersonnel(ctx context.Context, dayIDs []uint) ([]model.ProjectPersonnel, error) {
	if len(dayIDs) == 0 {
		return nil, nil
	}
	var assignments []model.ProjectPersonnel
	err := r.conn(ctx).
		Preload("Personnel").
		Preload("Role").
		Where("project_day_id IN ?", dayIDs).
		Order("project_day_id ASC, personnel_id ASC, role_id ASC").
		Find(&assignments).Error
	return assignments, err
}

func (r *Repo) DeleteProjectPersonnel(ctx context.Context, key model.ProjectPersonnelKey) (int64, error) {
	result := r.conn(ctx).
		Where("project_day_id = ? AND personnel_id = ? AND role_id = ?", key.ProjectDayID, key.PersonnelID, key.RoleID).
		Delete(&model.ProjectPersonnel{})
	return result.RowsAffected, result.Error
}
