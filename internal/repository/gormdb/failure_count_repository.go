package gormdb

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/awsl-project/antigravity-relay/internal/repository"
)

// FailureCountRepository is the gorm-backed repository.FailureCountRepository.
type FailureCountRepository struct {
	db *DB
}

func NewFailureCountRepository(db *DB) repository.FailureCountRepository {
	return &FailureCountRepository{db: db}
}

func (r *FailureCountRepository) Get(email, reason string) (*repository.FailureCount, error) {
	var fc repository.FailureCount
	err := r.db.gorm.Where("account_email = ? AND reason = ?", email, reason).First(&fc).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fc, nil
}

func (r *FailureCountRepository) GetAll() ([]*repository.FailureCount, error) {
	var all []*repository.FailureCount
	err := r.db.gorm.Find(&all).Error
	return all, err
}

// Upsert inserts or updates the (account_email, reason) row, matching the
// teacher's upsert-by-composite-key semantics.
func (r *FailureCountRepository) Upsert(fc *repository.FailureCount) error {
	fc.UpdatedAt = time.Now().UTC()
	return r.db.gorm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_email"}, {Name: "reason"}},
		DoUpdates: clause.AssignmentColumns([]string{"count", "last_failure_at", "updated_at"}),
	}).Create(fc).Error
}

func (r *FailureCountRepository) Delete(email, reason string) error {
	return r.db.gorm.Where("account_email = ? AND reason = ?", email, reason).Delete(&repository.FailureCount{}).Error
}

func (r *FailureCountRepository) DeleteAll(email string) error {
	return r.db.gorm.Where("account_email = ?", email).Delete(&repository.FailureCount{}).Error
}

func (r *FailureCountRepository) DeleteExpired(olderThan time.Duration) error {
	cutoff := time.Now().UTC().Add(-olderThan)
	return r.db.gorm.Where("last_failure_at < ?", cutoff).Delete(&repository.FailureCount{}).Error
}
