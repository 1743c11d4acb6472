package domain

import "time"

// AccountSource records where an account's credential came from.
type AccountSource string

const (
	SourceOAuth    AccountSource = "oauth"
	SourceDatabase AccountSource = "database"
	SourceManual   AccountSource = "manual"
)

// ModelRateLimit is the per-model rate-limit entry held on an Account.
type ModelRateLimit struct {
	IsRateLimited bool  `json:"isRateLimited"`
	ResetTime     int64 `json:"resetTime,omitempty"` // epoch millis, 0 = none
}

// Account is one OAuth-authenticated Google identity in the dispatch pool.
// Email is the primary key within the pool; ownership of an Account's
// mutable fields belongs exclusively to the Account Manager while the
// process runs.
type Account struct {
	Email           string                    `json:"email"`
	Source          AccountSource             `json:"source"`
	RefreshToken    string                    `json:"refreshToken"`
	ProjectID       string                    `json:"projectId,omitempty"`
	AddedAt         time.Time                 `json:"addedAt,omitempty"`
	LastUsed        time.Time                 `json:"lastUsed,omitempty"`
	ModelRateLimits map[string]*ModelRateLimit `json:"modelRateLimits,omitempty"`
	IsInvalid       bool                      `json:"-"`
	InvalidReason   string                    `json:"-"`
}

// RateLimitFor returns the rate-limit entry for modelID, creating an empty
// one lazily so callers never see a nil map entry.
func (a *Account) RateLimitFor(modelID string) *ModelRateLimit {
	if a.ModelRateLimits == nil {
		a.ModelRateLimits = make(map[string]*ModelRateLimit)
	}
	rl, ok := a.ModelRateLimits[modelID]
	if !ok {
		rl = &ModelRateLimit{}
		a.ModelRateLimits[modelID] = rl
	}
	return rl
}

// Settings holds process-wide pool tuning knobs, persisted alongside the pool.
type Settings struct {
	CooldownDurationMs int64 `json:"cooldownDurationMs,omitempty"`
	MaxRetries         int   `json:"maxRetries,omitempty"`
}

// Pool is the ordered sequence of Accounts; order is significant because
// round-robin and sticky indices refer to positions within it.
type Pool struct {
	Accounts    []*Account `json:"accounts"`
	Settings    Settings   `json:"settings"`
	ActiveIndex int        `json:"activeIndex"`
}

// Status is a diagnostics snapshot of the pool, returned by the admin surface.
type Status struct {
	AccountCount    int      `json:"accountCount"`
	ActiveIndex     int      `json:"activeIndex"`
	InvalidEmails   []string `json:"invalidEmails,omitempty"`
	RateLimitedAny  int      `json:"rateLimitedAny"`
}
