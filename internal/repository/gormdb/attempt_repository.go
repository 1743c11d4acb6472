package gormdb

import (
	"github.com/awsl-project/antigravity-relay/internal/repository"
)

// AttemptRepository is the gorm-backed repository.AttemptRepository.
type AttemptRepository struct {
	db *DB
}

func NewAttemptRepository(db *DB) repository.AttemptRepository {
	return &AttemptRepository{db: db}
}

func (r *AttemptRepository) Record(a *repository.Attempt) error {
	return r.db.gorm.Create(a).Error
}

// Recent returns the most recently recorded attempts, newest first, for the
// admin events feed's initial snapshot.
func (r *AttemptRepository) Recent(limit int) ([]*repository.Attempt, error) {
	var attempts []*repository.Attempt
	err := r.db.gorm.Order("created_at DESC").Limit(limit).Find(&attempts).Error
	return attempts, err
}
