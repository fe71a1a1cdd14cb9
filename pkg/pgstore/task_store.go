package pgstore

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/codeready-toolchain/tarsy/pkg/models"
	"github.com/codeready-toolchain/tarsy/pkg/store"
)

// Store implements store.Store against PostgreSQL via GORM. A single Store
// value backs every entity's persistence contract, matching how the
// teacher's services shared one *ent.Client handle.
type Store struct {
	db *gorm.DB
}

// New constructs a Store over an already-migrated *gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ store.Store = (*Store)(nil)

func (s *Store) CreateTask(ctx context.Context, t *models.Task) error {
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var t models.Task
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListTasks(ctx context.Context, filters models.TaskFilters) ([]models.Task, error) {
	q := s.db.WithContext(ctx).Model(&models.Task{})
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.Agent != "" {
		q = q.Where("assigned_agent_id = ?", filters.Agent)
	}
	q = q.Order("created_at ASC")
	if filters.Limit > 0 {
		q = q.Limit(filters.Limit)
	}
	var out []models.Task
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateTask(ctx context.Context, t *models.Task) error {
	res := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", t.ID).Save(t)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CompareAndSwapStatus locks the row FOR UPDATE inside a transaction,
// checks expected, applies mutate, and saves — the same check-then-write
// shape store.MemStore performs under its mutex, translated to a
// row-level lock so concurrent Assigner/Sweeper/Executor writers racing
// across processes still serialize correctly.
func (s *Store) CompareAndSwapStatus(ctx context.Context, id string, expected, next models.TaskStatus, mutate func(*models.Task)) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Task
		if err := tx.Clauses(lockingClause()).First(&t, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return store.ErrNotFound
			}
			return err
		}
		if t.Status != expected {
			return store.ErrCASConflict
		}
		t.Status = next
		if mutate != nil {
			mutate(&t)
		}
		return tx.Save(&t).Error
	})
}

func (s *Store) ListPendingByPriority(ctx context.Context, limit int) ([]models.Task, error) {
	q := s.db.WithContext(ctx).
		Where("status = ?", models.TaskStatusPending).
		Order("priority DESC, created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.Task
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
