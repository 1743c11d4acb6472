package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/awsl-project/antigravity-relay/internal/domain"
)

func TestDecodeRequestRequiresModel(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(`{"messages":[]}`))
	if _, err := decodeRequest(req); err == nil {
		t.Fatalf("expected an error for a missing model field")
	}
}

func TestDecodeRequestOK(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(`{"model":"claude-sonnet-4-5","messages":[]}`))
	parsed, err := decodeRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Model != "claude-sonnet-4-5" {
		t.Fatalf("unexpected model %q", parsed.Model)
	}
}

func TestHandleCountTokensEstimate(t *testing.T) {
	h := &MessagesHandler{}
	body := `{"model":"claude-sonnet-4-5","system":"0123456789","messages":[],"tools":[{"name":"abcd","description":"efghijkl"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages/count_tokens", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.handleCountTokens(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "input_tokens") {
		t.Fatalf("expected an input_tokens field, got %s", rec.Body.String())
	}
}

func TestHandleCountTokensRejectsNonPost(t *testing.T) {
	h := &MessagesHandler{}
	req := httptest.NewRequest(http.MethodGet, "/v1/messages/count_tokens", nil)
	rec := httptest.NewRecorder()

	h.handleCountTokens(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestWriteProxyErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err      error
		wantCode int
		wantType string
	}{
		{domain.NewRateLimitedError("a@x.com", time.Second), http.StatusTooManyRequests, "rate_limit_error"},
		{domain.NewAuthInvalidError("a@x.com", errors.New("bad token")), http.StatusUnauthorized, "authentication_error"},
		{domain.NewNoAccountsError(false), http.StatusServiceUnavailable, "overloaded_error"},
		{domain.NewMaxRetriesError(3, errors.New("last attempt failed")), http.StatusServiceUnavailable, "overloaded_error"},
		{domain.NewAPIError(400, "bad request"), http.StatusBadRequest, "api_error"},
		{domain.NewNetworkError(errors.New("dial failed")), http.StatusBadGateway, "api_error"},
		{errors.New("totally unexpected"), http.StatusInternalServerError, "api_error"},
	}

	for _, c := range cases {
		rec := httptest.NewRecorder()
		writeProxyError(rec, c.err)
		if rec.Code != c.wantCode {
			t.Errorf("%v: expected status %d, got %d", c.err, c.wantCode, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), c.wantType) {
			t.Errorf("%v: expected body to contain %q, got %s", c.err, c.wantType, rec.Body.String())
		}
	}
}
