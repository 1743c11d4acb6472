package account

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/awsl-project/antigravity-relay/internal/domain"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "accounts.json"))
	discover := func(ctx context.Context, email string) (string, error) { return "", nil }
	mgr, err := NewManager(store, NewCredentials(), discover)
	if err != nil {
		t.Fatalf("unexpected error creating manager: %v", err)
	}
	return mgr
}

func TestNewManagerSeedsPlaceholderWhenEmpty(t *testing.T) {
	mgr := newTestManager(t)
	if mgr.GetAccountCount() != 1 {
		t.Fatalf("expected a single placeholder account, got %d", mgr.GetAccountCount())
	}
}

func TestAddAndRemoveAccount(t *testing.T) {
	mgr := newTestManager(t)
	mgr.AddAccount(&domain.Account{Email: "new@x.com", RefreshToken: "rt"})

	if mgr.GetAccountCount() != 2 {
		t.Fatalf("expected 2 accounts after add, got %d", mgr.GetAccountCount())
	}

	found := false
	for _, a := range mgr.ListAccounts() {
		if a.Email == "new@x.com" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected new@x.com to be listed")
	}

	if !mgr.RemoveAccount("new@x.com") {
		t.Fatalf("expected removal to succeed")
	}
	if mgr.GetAccountCount() != 1 {
		t.Fatalf("expected 1 account after removal, got %d", mgr.GetAccountCount())
	}
	if mgr.RemoveAccount("new@x.com") {
		t.Fatalf("expected a second removal of the same email to fail")
	}
}

func TestMarkRateLimitedAndInvalid(t *testing.T) {
	mgr := newTestManager(t)
	mgr.AddAccount(&domain.Account{Email: "limited@x.com"})
	mgr.AddAccount(&domain.Account{Email: "bad@x.com"})

	mgr.MarkRateLimited("limited@x.com", "model-x", 60000)
	mgr.MarkInvalid("bad@x.com", "invalid_grant")

	status := mgr.GetStatus()
	if status.RateLimitedAny != 1 {
		t.Fatalf("expected 1 rate-limited account, got %d", status.RateLimitedAny)
	}
	if len(status.InvalidEmails) != 1 || status.InvalidEmails[0] != "bad@x.com" {
		t.Fatalf("expected bad@x.com flagged invalid, got %+v", status.InvalidEmails)
	}
}

func TestPickNextSkipsInvalidAccount(t *testing.T) {
	mgr := newTestManager(t)
	mgr.AddAccount(&domain.Account{Email: "good@x.com"})
	mgr.MarkInvalid("unconfigured@local", "seed placeholder")

	res := mgr.PickNext("model-x")
	if res.Account == nil || res.Account.Email != "good@x.com" {
		t.Fatalf("expected good@x.com picked over the invalid placeholder, got %+v", res.Account)
	}
}

func TestClearExpiredLimits(t *testing.T) {
	mgr := newTestManager(t)
	mgr.MarkRateLimited("unconfigured@local", "model-x", 1)
	time.Sleep(5 * time.Millisecond)

	n := mgr.ClearExpiredLimits()
	if n != 1 {
		t.Fatalf("expected 1 cleared rate limit, got %d", n)
	}
}
