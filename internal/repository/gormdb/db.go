// Package gormdb is the gorm/sqlite-backed implementation of the
// repository interfaces, adapting the teacher's internal/repository/sqlite
// package (raw database/sql over mattn/go-sqlite3) onto gorm and
// glebarez/sqlite, the pack's pure-Go sqlite driver.
package gormdb

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/awsl-project/antigravity-relay/internal/repository"
)

// DB wraps the gorm handle shared by the attempt and failure-count
// repositories.
type DB struct {
	gorm *gorm.DB
}

// Open opens (creating if absent) the sqlite file at path and migrates the
// observability schema.
func Open(path string) (*DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := gdb.AutoMigrate(&repository.Attempt{}, &repository.FailureCount{}); err != nil {
		return nil, err
	}
	return &DB{gorm: gdb}, nil
}

// Close releases the underlying sqlite connection.
func (d *DB) Close() error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
