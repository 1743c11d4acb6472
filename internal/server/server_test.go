package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/awsl-project/antigravity-relay/internal/account"
	"github.com/awsl-project/antigravity-relay/internal/config"
	"github.com/awsl-project/antigravity-relay/internal/dispatch"
	"github.com/awsl-project/antigravity-relay/internal/event"
	"github.com/awsl-project/antigravity-relay/internal/signature"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := account.NewStore(filepath.Join(t.TempDir(), "accounts.json"))
	mgr, err := account.NewManager(store, account.NewCredentials(), nil)
	if err != nil {
		t.Fatalf("unexpected error creating manager: %v", err)
	}
	sigCache := signature.New(0, 0)
	handler := dispatch.NewHandler(mgr, &config.Config{}, sigCache)
	return New(handler, mgr, event.NewWSBroadcaster())
}

func TestHealthzReportsOK(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAdminAccountsRouteIsWired(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/accounts", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCountTokensRouteIsWired(t *testing.T) {
	srv := newTestServer(t)
	body := `{"model":"claude-sonnet-4-5","messages":[]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages/count_tokens", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
