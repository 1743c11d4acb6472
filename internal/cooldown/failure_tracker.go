// Package cooldown keeps an in-memory failure tally per account, backed by
// repository.FailureCountRepository for persistence across restarts.
package cooldown

import (
	"sync"
	"time"

	"github.com/awsl-project/antigravity-relay/internal/logging"
	"github.com/awsl-project/antigravity-relay/internal/repository"
)

var log = logging.New("FailureTracker")

// Reason classifies why an account attempt failed, mirroring domain.ErrorKind
// values closely enough to key a failure count by them without importing the
// dispatch/domain packages here.
type Reason string

const (
	ReasonRateLimited Reason = "rate_limited"
	ReasonAuthInvalid Reason = "auth_invalid"
	ReasonAPIError    Reason = "api_error"
	ReasonNetwork     Reason = "network_error"
)

type failureKey struct {
	Email  string
	Reason Reason
}

// FailureTracker holds an in-memory failure count per (account, reason),
// mirroring the teacher's provider+clientType tracker adapted to the
// account-pool model.
type FailureTracker struct {
	mu     sync.Mutex
	counts map[failureKey]int
	repo   repository.FailureCountRepository
}

func NewFailureTracker(repo repository.FailureCountRepository) *FailureTracker {
	return &FailureTracker{
		counts: make(map[failureKey]int),
		repo:   repo,
	}
}

// LoadFromDatabase seeds the in-memory counts from the persisted store.
func (ft *FailureTracker) LoadFromDatabase() error {
	if ft.repo == nil {
		return nil
	}
	all, err := ft.repo.GetAll()
	if err != nil {
		return err
	}

	ft.mu.Lock()
	ft.counts = make(map[failureKey]int, len(all))
	for _, fc := range all {
		ft.counts[failureKey{Email: fc.AccountEmail, Reason: Reason(fc.Reason)}] = fc.Count
	}
	ft.mu.Unlock()

	log.Infof("loaded %d failure counts from database", len(all))
	return nil
}

// IncrementFailure increments and persists the failure count for email+reason,
// returning the new count.
func (ft *FailureTracker) IncrementFailure(email string, reason Reason) int {
	ft.mu.Lock()
	key := failureKey{Email: email, Reason: reason}
	ft.counts[key]++
	newCount := ft.counts[key]
	ft.mu.Unlock()

	if ft.repo != nil {
		fc := &repository.FailureCount{
			AccountEmail:  email,
			Reason:        string(reason),
			Count:         newCount,
			LastFailureAt: time.Now().UTC(),
		}
		if err := ft.repo.Upsert(fc); err != nil {
			log.Errorf("failed to persist failure count for %s: %v", email, err)
		}
	}
	return newCount
}

func (ft *FailureTracker) GetFailureCount(email string, reason Reason) int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.counts[failureKey{Email: email, Reason: reason}]
}

// ResetFailures clears every reason's count for email.
func (ft *FailureTracker) ResetFailures(email string) {
	ft.mu.Lock()
	var cleared int
	for key := range ft.counts {
		if key.Email == email {
			delete(ft.counts, key)
			cleared++
		}
	}
	ft.mu.Unlock()

	if cleared == 0 {
		return
	}
	if ft.repo != nil {
		if err := ft.repo.DeleteAll(email); err != nil {
			log.Errorf("failed to delete failure counts for %s: %v", email, err)
		}
	}
	log.Infof("%s: reset %d failure counts", email, cleared)
}

// CleanupExpired purges persisted counts whose last failure predates
// olderThan, then reloads memory state from the store.
func (ft *FailureTracker) CleanupExpired(olderThan time.Duration) {
	if ft.repo == nil {
		return
	}
	if err := ft.repo.DeleteExpired(olderThan); err != nil {
		log.Errorf("failed to clean up expired failure counts: %v", err)
		return
	}
	if err := ft.LoadFromDatabase(); err != nil {
		log.Errorf("failed to reload after cleanup: %v", err)
	}
}
