package account

import (
	"testing"
	"time"

	"github.com/awsl-project/antigravity-relay/internal/domain"
)

const model = "gemini-3-pro-high"

func rateLimitedAccount(email string, resetMs int64) *domain.Account {
	return &domain.Account{
		Email: email,
		ModelRateLimits: map[string]*domain.ModelRateLimit{
			model: {IsRateLimited: true, ResetTime: resetMs},
		},
	}
}

func TestPickNextSkipsInvalidAndRateLimited(t *testing.T) {
	future := time.Now().Add(time.Hour).UnixMilli()
	pool := &domain.Pool{Accounts: []*domain.Account{
		{Email: "a@x.com"},
		{Email: "b@x.com", IsInvalid: true},
		rateLimitedAccount("c@x.com", future),
		{Email: "d@x.com"},
	}}

	res := PickNext(pool, 0, model, nil)
	if res.Account == nil || res.Account.Email != "d@x.com" {
		t.Fatalf("expected d@x.com (skipping invalid b and rate-limited c), got %+v", res.Account)
	}
}

func TestPickNextWrapsAround(t *testing.T) {
	pool := &domain.Pool{Accounts: []*domain.Account{
		{Email: "a@x.com"},
		{Email: "b@x.com"},
	}}
	res := PickNext(pool, 1, model, nil)
	if res.Account == nil || res.Account.Email != "a@x.com" {
		t.Fatalf("expected wraparound to a@x.com, got %+v", res.Account)
	}
}

func TestPickNextNoneAvailable(t *testing.T) {
	future := time.Now().Add(time.Hour).UnixMilli()
	pool := &domain.Pool{Accounts: []*domain.Account{
		rateLimitedAccount("a@x.com", future),
		{Email: "b@x.com", IsInvalid: true},
	}}
	res := PickNext(pool, 0, model, nil)
	if res.Account != nil {
		t.Fatalf("expected no account available, got %+v", res.Account)
	}
}

func TestPickNextEmptyPool(t *testing.T) {
	pool := &domain.Pool{}
	res := PickNext(pool, 5, model, nil)
	if res.Account != nil {
		t.Fatalf("expected nil account for empty pool")
	}
	if res.NewIndex != 5 {
		t.Fatalf("expected NewIndex unchanged for empty pool, got %d", res.NewIndex)
	}
}

func TestPickNextInvokesOnSave(t *testing.T) {
	pool := &domain.Pool{Accounts: []*domain.Account{{Email: "a@x.com"}}}
	called := false
	PickNext(pool, 0, model, func() { called = true })
	if !called {
		t.Fatalf("expected onSave to be invoked on successful pick")
	}
}

func TestGetCurrentStickyAccountRateLimited(t *testing.T) {
	future := time.Now().Add(time.Hour).UnixMilli()
	pool := &domain.Pool{Accounts: []*domain.Account{rateLimitedAccount("a@x.com", future)}}
	if acc := GetCurrentStickyAccount(pool, 0, model, nil); acc != nil {
		t.Fatalf("expected nil for a rate-limited current account, got %+v", acc)
	}
}

func TestPickStickyAccountPrefersCurrent(t *testing.T) {
	pool := &domain.Pool{Accounts: []*domain.Account{
		{Email: "a@x.com"},
		{Email: "b@x.com"},
	}}
	res := PickStickyAccount(pool, 0, model, 120000, nil)
	if res.Account == nil || res.Account.Email != "a@x.com" {
		t.Fatalf("expected the current account kept, got %+v", res.Account)
	}
}

func TestPickStickyAccountFailsOverWhenCurrentIsLimited(t *testing.T) {
	future := time.Now().Add(time.Hour).UnixMilli()
	pool := &domain.Pool{Accounts: []*domain.Account{
		rateLimitedAccount("a@x.com", future),
		{Email: "b@x.com"},
	}}
	res := PickStickyAccount(pool, 0, model, 120000, nil)
	if res.Account == nil || res.Account.Email != "b@x.com" {
		t.Fatalf("expected failover to b@x.com, got %+v", res.Account)
	}
}

func TestPickStickyAccountWaitsWhenAllLimitedWithinBudget(t *testing.T) {
	soon := time.Now().Add(time.Second).UnixMilli()
	pool := &domain.Pool{Accounts: []*domain.Account{rateLimitedAccount("a@x.com", soon)}}
	res := PickStickyAccount(pool, 0, model, 120000, nil)
	if res.Account != nil {
		t.Fatalf("expected no account while waiting, got %+v", res.Account)
	}
	if res.WaitMs <= 0 {
		t.Fatalf("expected a positive wait, got %d", res.WaitMs)
	}
}

func TestPickStickyAccountGivesUpBeyondWaitBudget(t *testing.T) {
	farFuture := time.Now().Add(10 * time.Hour).UnixMilli()
	pool := &domain.Pool{Accounts: []*domain.Account{rateLimitedAccount("a@x.com", farFuture)}}
	res := PickStickyAccount(pool, 0, model, 120000, nil)
	if res.Account != nil || res.WaitMs != 0 {
		t.Fatalf("expected neither an account nor a wait instruction beyond the budget, got %+v waitMs=%d", res.Account, res.WaitMs)
	}
}
