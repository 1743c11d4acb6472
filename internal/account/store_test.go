package account

import (
	"path/filepath"
	"testing"

	"github.com/awsl-project/antigravity-relay/internal/domain"
)

func TestStoreLoadMissingFileReturnsEmptyPool(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "does-not-exist.json"))
	pool, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.Accounts == nil || len(pool.Accounts) != 0 {
		t.Fatalf("expected an empty, non-nil accounts slice, got %+v", pool.Accounts)
	}
}

func TestStoreSaveAndLoadRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "accounts.json"))
	pool := &domain.Pool{
		Accounts: []*domain.Account{
			{Email: "a@x.com", Source: domain.SourceOAuth, RefreshToken: "rt", ProjectID: "proj-1"},
		},
		ActiveIndex: 0,
	}

	if err := store.Save(pool); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if len(loaded.Accounts) != 1 || loaded.Accounts[0].Email != "a@x.com" {
		t.Fatalf("expected the saved account to round-trip, got %+v", loaded.Accounts)
	}
	if loaded.Accounts[0].ProjectID != "proj-1" {
		t.Fatalf("expected ProjectID to round-trip, got %q", loaded.Accounts[0].ProjectID)
	}
}
