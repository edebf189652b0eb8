package sqlstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jobtrack/jobtrack/pkg/model"
	"github.com/jobtrack/jobtrack/pkg/store"
)

func (r *Repo) GetItem(ctx context.Context, id string) (*model.Item, error) {
	var item model.Item
	if err := r.conn(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (r *Repo) LockItem(ctx context.Context, id string) (*model.Item, error) {
	var item model.Item
	err := r.locking(ctx).First(&item, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (r *Repo) ListItems(ctx context.Context) ([]model.Item, error) {
	var items []model.Item
	err := r.conn(ctx).Order("name ASC").Find(&items).Error
	return items, err
}

func (r *Repo) ListAvailableItems(ctx context.Context) ([]model.Item, error) {
	var items []model.Item
	err := r.conn(ctx).
		Where("available_quantity > 0").
		Where("status IS NULL OR status = '' OR status = ?", "active").
		Order("name ASC").
		Find(&items).Error
	return items, err
}

func (r *Repo) AdjustAvailableQuantity(ctx context.Context, id string, delta int) error {
	result := r.conn(ctx).Model(&model.Item{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"available_quantity": gorm.Expr("available_quantity + ?", delta),
			"updated_at":         time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("adjust available quantity of item %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repo) SetAvailableQuantity(ctx context.Context, id string, quantity int) error {
	return r.conn(ctx).Model(&model.Item{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"available_quantity": quantity,
			"updated_at":         time.Now().UTC(),
		}).Error
}

func (r *Repo) CreateProjectItem(ctx context.Context, projectItem *model.ProjectItem) error {
	return translate(r.conn(ctx).Omit("Item").Create(projectItem).Error)
}

func (r *Repo) GetProjectItem(ctx context.Context, id uint) (*model.ProjectItem, error) {
	var projectItem model.ProjectItem
	if err := r.conn(ctx).Preload("Item").First(&projectItem, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &projectItem, nil
}

func (r *Repo) LockProjectItem(ctx context.Context, id uint) (*model.ProjectItem, error) {
	var projectItem model.ProjectItem
	err := r.locking(ctx).First(&projectItem, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &projectItem, nil
}

func (r *Repo) FindProjectItem(ctx context.Context, dayID uint, itemID string) (*model.ProjectItem, error) {
	var projectItem model.ProjectItem
	err := r.locking(ctx).
		Where("project_day_id = ? AND item_id = ?", dayID, itemID).
		First(&projectItem).Error
	if err != nil {
		return nil, translate(err)
	}
	return &projectItem, nil
}

func (r *Repo) ListProjectItems(ctx context.Context, dayIDs []uint) ([]model.ProjectItem, error) {
	if len(dayIDs) == 0 {
		return nil, nil
	}
	var projectItems []model.ProjectItem
	err := r.conn(ctx).
		Preload("Item").
		Where("project_day_id IN ?", dayIDs).
		Order("project_day_id ASC, id ASC").
		Find(&projectItems).Error
	return projectItems, err
}

func (r *Repo) UpdateProjectItem(ctx context.Context, projectItem *model.ProjectItem) error {
	result := r.conn(ctx).Model(&model.ProjectItem{}).
		Where("id = ?", projectItem.ID).
		Updates(map[string]interface{}{
			"allocated_quantity": projectItem.AllocatedQuantity,
			"damaged_quantity":   projectItem.DamagedQuantity,
			"lost_quantity":      projectItem.LostQuantity,
			"returned_quantity":  projectItem.ReturnedQuantity,
			"status":             projectItem.Status,
			"updated_at":         time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteProjectItem(ctx context.Context, id uint) error {
	result := r.conn(ctx).Delete(&model.ProjectItem{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repo) OutstandingByItem(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		ItemID      string
		Outstanding int
	}
	err := r.conn(ctx).Model(&model.ProjectItem{}).
		Select("item_id, COALESCE(SUM(allocated_quantity - returned_quantity), 0) AS outstanding").
		Group("item_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[string]int, len(rows))
	for _, row := range rows {
		result[row.ItemID] = row.Outstanding
	}
	return result, nil
}
