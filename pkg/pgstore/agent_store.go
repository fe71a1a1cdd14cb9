package pgstore

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/codeready-toolchain/tarsy/pkg/models"
	"github.com/codeready-toolchain/tarsy/pkg/store"
)

func (s *Store) CreateAgent(ctx context.Context, a *models.Agent) error {
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *Store) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	var a models.Agent
	if err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListAgents(ctx context.Context) ([]models.Agent, error) {
	var out []models.Agent
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateAgent(ctx context.Context, a *models.Agent) error {
	res := s.db.WithContext(ctx).Model(&models.Agent{}).Where("id = ?", a.ID).Save(a)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) IdleAgentsByKind(ctx context.Context, kind models.AgentKind) ([]models.Agent, error) {
	var out []models.Agent
	err := s.db.WithContext(ctx).
		Where("kind = ? AND status = ?", kind, models.AgentStatusIdle).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
