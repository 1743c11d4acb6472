package ratelimit

import (
	"time"

	"github.com/awsl-project/antigravity-relay/internal/domain"
)

// defaultCooldown is used when a 429/error body carries no parseable reset hint.
const defaultCooldown = 60 * time.Second

// MarkRateLimited sets the per-model rate-limit entry on account, defaulting
// to defaultCooldown when resetMs is zero.
func MarkRateLimited(account *domain.Account, modelID string, resetMs int64, now time.Time) {
	wait := defaultCooldown
	if resetMs > 0 {
		wait = time.Duration(resetMs) * time.Millisecond
	}
	rl := account.RateLimitFor(modelID)
	rl.IsRateLimited = true
	rl.ResetTime = now.Add(wait).UnixMilli()
}

// MarkInvalid flags account as permanently unusable until an operator clears it.
func MarkInvalid(account *domain.Account, reason string) {
	account.IsInvalid = true
	account.InvalidReason = reason
}

// IsActive reports whether account's rate-limit entry for modelID is still in
// effect at now. An expired entry (resetTime in the past) is not active.
func IsActive(account *domain.Account, modelID string, now time.Time) bool {
	if account.ModelRateLimits == nil {
		return false
	}
	rl, ok := account.ModelRateLimits[modelID]
	if !ok || !rl.IsRateLimited {
		return false
	}
	return rl.ResetTime > now.UnixMilli()
}

// IsAllRateLimited reports whether every non-invalid account in accounts has
// an active rate-limit entry for modelID. modelID == "" means "any model".
func IsAllRateLimited(accounts []*domain.Account, modelID string, now time.Time) bool {
	any := false
	for _, a := range accounts {
		if a.IsInvalid {
			continue
		}
		any = true
		if !hasActiveLimit(a, modelID, now) {
			return false
		}
	}
	return any
}

func hasActiveLimit(a *domain.Account, modelID string, now time.Time) bool {
	if modelID != "" {
		return IsActive(a, modelID, now)
	}
	for m := range a.ModelRateLimits {
		if IsActive(a, m, now) {
			return true
		}
	}
	return false
}

// ClearExpiredLimits sweeps every account's rate-limit map, clearing entries
// whose resetTime has passed. Returns the count cleared.
func ClearExpiredLimits(accounts []*domain.Account, now time.Time) int {
	cleared := 0
	for _, a := range accounts {
		for _, rl := range a.ModelRateLimits {
			if rl.IsRateLimited && rl.ResetTime <= now.UnixMilli() {
				rl.IsRateLimited = false
				rl.ResetTime = 0
				cleared++
			}
		}
	}
	return cleared
}

// GetMinWaitTimeMs returns the minimum time until any rate-limited account
// for modelID becomes available, or 0 if none are rate-limited.
func GetMinWaitTimeMs(accounts []*domain.Account, modelID string, now time.Time) int64 {
	var min int64
	for _, a := range accounts {
		if a.IsInvalid {
			continue
		}
		if !hasActiveLimit(a, modelID, now) {
			continue
		}
		rl := a.ModelRateLimits[modelID]
		if rl == nil {
			continue
		}
		wait := rl.ResetTime - now.UnixMilli()
		if wait < 0 {
			wait = 0
		}
		if min == 0 || wait < min {
			min = wait
		}
	}
	return min
}

// GetAvailableAccounts returns accounts that are neither invalid nor
// rate-limited for modelID.
func GetAvailableAccounts(accounts []*domain.Account, modelID string, now time.Time) []*domain.Account {
	out := make([]*domain.Account, 0, len(accounts))
	for _, a := range accounts {
		if a.IsInvalid || hasActiveLimit(a, modelID, now) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// GetInvalidAccounts returns accounts marked invalid.
func GetInvalidAccounts(accounts []*domain.Account) []*domain.Account {
	out := make([]*domain.Account, 0)
	for _, a := range accounts {
		if a.IsInvalid {
			out = append(out, a)
		}
	}
	return out
}

// ResetAllRateLimits clears every rate-limit entry on every account, leaving
// invalid marks untouched.
func ResetAllRateLimits(accounts []*domain.Account) {
	for _, a := range accounts {
		for _, rl := range a.ModelRateLimits {
			rl.IsRateLimited = false
			rl.ResetTime = 0
		}
	}
}
