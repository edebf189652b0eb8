package sqlstore

import (
	"context"

	"github.com/jobtrack/jobtrack/pkg/model"
)

func (r *Repo) GetUser(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.conn(ctx).Preload("Position").First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *Repo) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := r.conn(ctx).Preload("Position").First(&user, "username = ?", username).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}
