// Package repository persists the dispatcher's observability trail: one row
// per upstream attempt and a running failure tally per account, siblings to
// the account pool's own JSON file rather than a multi-tenant database.
package repository

import "time"

// Attempt is one persisted record of a single upstream call the dispatcher
// made, successful or not. Mirrors the teacher's proxy_upstream_attempts
// table, narrowed from the route/provider model to the account-pool model.
type Attempt struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	CreatedAt    time.Time
	AccountEmail string `gorm:"index"`
	Model        string
	Endpoint     string
	Streaming    bool
	StatusCode   int
	ErrorKind    string
	ErrorMessage string
	DurationMs   int64
}

func (Attempt) TableName() string { return "proxy_attempts" }

// FailureCount is a running per-account, per-reason failure tally, mirroring
// the teacher's failure_counts table adapted from provider+clientType keys to
// account email.
type FailureCount struct {
	AccountEmail  string `gorm:"primaryKey"`
	Reason        string `gorm:"primaryKey"`
	Count         int
	LastFailureAt time.Time
	UpdatedAt     time.Time
}

func (FailureCount) TableName() string { return "failure_counts" }
