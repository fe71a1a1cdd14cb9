package pgstore

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/codeready-toolchain/tarsy/pkg/models"
	"github.com/codeready-toolchain/tarsy/pkg/store"
)

func (s *Store) CreateReview(ctx context.Context, r *models.CodeReview) error {
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *Store) GetReviewForTask(ctx context.Context, taskID string) (*models.CodeReview, error) {
	var r models.CodeReview
	if err := s.db.WithContext(ctx).First(&r, "task_id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *Store) UpdateReview(ctx context.Context, r *models.CodeReview) error {
	res := s.db.WithContext(ctx).Model(&models.CodeReview{}).Where("task_id = ?", r.TaskID).Save(r)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}
