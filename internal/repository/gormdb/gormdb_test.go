package gormdb

import (
	"testing"
	"time"

	"github.com/awsl-project/antigravity-relay/internal/repository"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAttemptRepositoryRecordAndRecent(t *testing.T) {
	db := openTestDB(t)
	repo := NewAttemptRepository(db)

	if err := repo.Record(&repository.Attempt{AccountEmail: "a@x.com", Model: "m", StatusCode: 200}); err != nil {
		t.Fatalf("unexpected error recording attempt: %v", err)
	}
	if err := repo.Record(&repository.Attempt{AccountEmail: "b@x.com", Model: "m", StatusCode: 429}); err != nil {
		t.Fatalf("unexpected error recording attempt: %v", err)
	}

	recent, err := repo.Recent(10)
	if err != nil {
		t.Fatalf("unexpected error fetching recent attempts: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 recorded attempts, got %d", len(recent))
	}
}

func TestFailureCountRepositoryUpsertUpdatesExisting(t *testing.T) {
	db := openTestDB(t)
	repo := NewFailureCountRepository(db)

	fc := &repository.FailureCount{AccountEmail: "a@x.com", Reason: "rate_limited", Count: 1, LastFailureAt: time.Now()}
	if err := repo.Upsert(fc); err != nil {
		t.Fatalf("unexpected error on first upsert: %v", err)
	}

	fc2 := &repository.FailureCount{AccountEmail: "a@x.com", Reason: "rate_limited", Count: 2, LastFailureAt: time.Now()}
	if err := repo.Upsert(fc2); err != nil {
		t.Fatalf("unexpected error on second upsert: %v", err)
	}

	got, err := repo.Get("a@x.com", "rate_limited")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Count != 2 {
		t.Fatalf("expected upsert to update the existing row to count 2, got %+v", got)
	}

	all, err := repo.GetAll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected a single row after upsert-update, got %d", len(all))
	}
}

func TestFailureCountRepositoryDeleteExpired(t *testing.T) {
	db := openTestDB(t)
	repo := NewFailureCountRepository(db)

	old := &repository.FailureCount{AccountEmail: "old@x.com", Reason: "network_error", Count: 1, LastFailureAt: time.Now().Add(-48 * time.Hour)}
	fresh := &repository.FailureCount{AccountEmail: "fresh@x.com", Reason: "network_error", Count: 1, LastFailureAt: time.Now()}
	if err := repo.Upsert(old); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Upsert(fresh); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := repo.DeleteExpired(24 * time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	all, err := repo.GetAll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 1 || all[0].AccountEmail != "fresh@x.com" {
		t.Fatalf("expected only the fresh row to survive, got %+v", all)
	}
}

func TestFailureCountRepositoryGetMissingReturnsNil(t *testing.T) {
	db := openTestDB(t)
	repo := NewFailureCountRepository(db)

	got, err := repo.Get("nobody@x.com", "rate_limited")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for a missing row, got %+v", got)
	}
}
