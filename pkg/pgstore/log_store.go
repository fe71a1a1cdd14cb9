package pgstore

import (
	"context"

	"gorm.io/gorm"

	"github.com/codeready-toolchain/tarsy/pkg/models"
)

// AppendLog inserts entry. entry.Step == 0 means "append at the next
// sequence number for this task" — computed inside the same transaction as
// the insert so concurrent appends for one task never collide, mirroring
// store.MemStore's len(logs)+1 behavior under its own lock.
func (s *Store) AppendLog(ctx context.Context, entry *models.ExecutionLog) error {
	if entry.Step != 0 {
		return s.db.WithContext(ctx).Create(entry).Error
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serialize auto-sequenced appends per task until commit.
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", entry.TaskID).Error; err != nil {
			return err
		}
		var maxStep int
		err := tx.Model(&models.ExecutionLog{}).
			Where("task_id = ?", entry.TaskID).
			Select("COALESCE(MAX(step), 0)").
			Scan(&maxStep).Error
		if err != nil {
			return err
		}
		entry.Step = maxStep + 1
		return tx.Create(entry).Error
	})
}

func (s *Store) ListLogsForTask(ctx context.Context, taskID string) ([]models.ExecutionLog, error) {
	var out []models.ExecutionLog
	err := s.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("step ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
