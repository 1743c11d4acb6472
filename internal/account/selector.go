package account

import (
	"time"

	"github.com/awsl-project/antigravity-relay/internal/domain"
	"github.com/awsl-project/antigravity-relay/internal/ratelimit"
)

// PickResult is the outcome of a selection attempt.
type PickResult struct {
	Account  *domain.Account
	NewIndex int
}

// PickNext round-robins starting at (currentIndex+1) mod n, skipping
// rate-limited and invalid accounts. onSave, if non-nil, is invoked after
// lastUsed is updated.
func PickNext(pool *domain.Pool, currentIndex int, modelID string, onSave func()) PickResult {
	n := len(pool.Accounts)
	if n == 0 {
		return PickResult{Account: nil, NewIndex: currentIndex}
	}
	start := clampIndex(currentIndex, n)
	now := time.Now()
	for i := 0; i < n; i++ {
		idx := (start + 1 + i) % n
		acc := pool.Accounts[idx]
		if acc.IsInvalid || ratelimit.IsActive(acc, modelID, now) {
			continue
		}
		acc.LastUsed = now
		if onSave != nil {
			onSave()
		}
		return PickResult{Account: acc, NewIndex: idx}
	}
	return PickResult{Account: nil, NewIndex: start}
}

// GetCurrentStickyAccount returns pool.Accounts[currentIndex] unless it's
// rate-limited or invalid, in which case it returns nil.
func GetCurrentStickyAccount(pool *domain.Pool, currentIndex int, modelID string, onSave func()) *domain.Account {
	n := len(pool.Accounts)
	if n == 0 {
		return nil
	}
	idx := clampIndex(currentIndex, n)
	acc := pool.Accounts[idx]
	if acc.IsInvalid || ratelimit.IsActive(acc, modelID, time.Now()) {
		return nil
	}
	acc.LastUsed = time.Now()
	if onSave != nil {
		onSave()
	}
	return acc
}

// ShouldWaitForCurrentAccount reports whether the current account is
// rate-limited but within maxWaitMs, the acceptable wait window.
func ShouldWaitForCurrentAccount(pool *domain.Pool, currentIndex int, modelID string, maxWaitMs int64) (shouldWait bool, waitMs int64, acc *domain.Account) {
	n := len(pool.Accounts)
	if n == 0 {
		return false, 0, nil
	}
	idx := clampIndex(currentIndex, n)
	a := pool.Accounts[idx]
	if a.IsInvalid {
		return false, 0, nil
	}
	now := time.Now()
	if !ratelimit.IsActive(a, modelID, now) {
		return false, 0, a
	}
	wait := ratelimit.GetMinWaitTimeMs([]*domain.Account{a}, modelID, now)
	return wait <= maxWaitMs, wait, a
}

// StickyResult is the outcome of PickStickyAccount: either an account to use
// now, or a wait instruction for the caller.
type StickyResult struct {
	Account  *domain.Account
	NewIndex int
	WaitMs   int64
}

// PickStickyAccount prefers the current account; fails over via PickNext when
// other accounts are available; otherwise, if waiting no longer than
// maxWaitMs is acceptable, asks the caller to sleep WaitMs and retry.
func PickStickyAccount(pool *domain.Pool, currentIndex int, modelID string, maxWaitMs int64, onSave func()) StickyResult {
	if acc := GetCurrentStickyAccount(pool, currentIndex, modelID, onSave); acc != nil {
		return StickyResult{Account: acc, NewIndex: clampIndex(currentIndex, len(pool.Accounts))}
	}

	now := time.Now()
	if len(ratelimit.GetAvailableAccounts(pool.Accounts, modelID, now)) > 0 {
		res := PickNext(pool, currentIndex, modelID, onSave)
		return StickyResult{Account: res.Account, NewIndex: res.NewIndex}
	}

	shouldWait, waitMs, _ := ShouldWaitForCurrentAccount(pool, currentIndex, modelID, maxWaitMs)
	if shouldWait {
		return StickyResult{Account: nil, NewIndex: clampIndex(currentIndex, len(pool.Accounts)), WaitMs: waitMs}
	}
	return StickyResult{Account: nil, NewIndex: clampIndex(currentIndex, len(pool.Accounts))}
}

func clampIndex(i, n int) int {
	if n == 0 {
		return 0
	}
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
