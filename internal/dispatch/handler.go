// Package dispatch implements the shared account-selection/retry state
// machine behind both the unary and streaming Messages handlers.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/awsl-project/antigravity-relay/internal/account"
	"github.com/awsl-project/antigravity-relay/internal/config"
	"github.com/awsl-project/antigravity-relay/internal/convert"
	"github.com/awsl-project/antigravity-relay/internal/cooldown"
	"github.com/awsl-project/antigravity-relay/internal/domain"
	"github.com/awsl-project/antigravity-relay/internal/event"
	"github.com/awsl-project/antigravity-relay/internal/logging"
	"github.com/awsl-project/antigravity-relay/internal/ratelimit"
	"github.com/awsl-project/antigravity-relay/internal/repository"
	"github.com/awsl-project/antigravity-relay/internal/signature"
	"github.com/awsl-project/antigravity-relay/internal/sse"
)

var log = logging.New("Dispatcher")

const v1InternalBase = "https://cloudcode-pa.googleapis.com/v1internal"

// Handler drives the shared account/endpoint retry loop used by both the
// unary and streaming Messages handlers. Attempts and Failures are optional:
// a nil value simply skips that observability recording.
type Handler struct {
	Manager    *account.Manager
	HTTPClient *http.Client
	Config     *config.Config
	SigCache   *signature.Cache
	Attempts   repository.AttemptRepository
	Failures   *cooldown.FailureTracker
	Events     event.Broadcaster
}

func NewHandler(mgr *account.Manager, cfg *config.Config, sigCache *signature.Cache) *Handler {
	return &Handler{
		Manager:    mgr,
		HTTPClient: &http.Client{Timeout: 180 * time.Second},
		Config:     cfg,
		SigCache:   sigCache,
		Events:     event.NopBroadcaster{},
	}
}

func (h *Handler) recordAttempt(acc *domain.Account, model string, ep endpoint, statusCode int, errKind, errMsg string, start time.Time) {
	durationMs := time.Since(start).Milliseconds()
	if h.Events != nil {
		h.Events.BroadcastAttempt(event.AttemptEvent{
			AccountEmail: acc.Email,
			Model:        model,
			Endpoint:     ep.url,
			StatusCode:   statusCode,
			ErrorKind:    errKind,
			DurationMs:   durationMs,
		})
	}
	if h.Attempts == nil {
		return
	}
	a := &repository.Attempt{
		AccountEmail: acc.Email,
		Model:        model,
		Endpoint:     ep.url,
		Streaming:    ep.isSSE,
		StatusCode:   statusCode,
		ErrorKind:    errKind,
		ErrorMessage: errMsg,
		DurationMs:   durationMs,
	}
	if err := h.Attempts.Record(a); err != nil {
		log.Warnf("failed to record attempt for %s: %v", acc.Email, err)
	}
}

type endpoint struct {
	url    string
	accept string
	isSSE  bool
}

func endpointsFor(model string, forceSSE bool) []endpoint {
	streamEP := endpoint{url: v1InternalBase + ":streamGenerateContent?alt=sse", accept: "text/event-stream", isSSE: true}
	unaryEP := endpoint{url: v1InternalBase + ":generateContent", accept: "", isSSE: false}

	if forceSSE {
		return []endpoint{streamEP}
	}
	if wantsThinking(model) {
		return []endpoint{streamEP, unaryEP}
	}
	return []endpoint{unaryEP, streamEP}
}

func wantsThinking(model string) bool {
	return strings.Contains(model, "thinking") || strings.HasPrefix(model, "gemini-3")
}

// HandleMessage runs the non-streaming retry loop to completion and returns
// the assembled Anthropic response.
func (h *Handler) HandleMessage(ctx context.Context, model string, req *domain.AnthropicRequest) (*domain.AnthropicResponse, error) {
	var result *domain.AnthropicResponse
	err := h.run(ctx, model, req, false, func(body io.Reader, isSSE bool, requestedModel string) error {
		if isSSE {
			result = sse.Collect(body, requestedModel, h.SigCache, h.Config.MinSignatureLength)
			return nil
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			return err
		}
		var gr convert.GoogleResponse
		if err := json.Unmarshal(raw, &gr); err != nil {
			return err
		}
		result = convert.ConvertGoogleResponse(&gr, requestedModel, h.SigCache, h.Config.MinSignatureLength)
		return nil
	})
	return result, err
}

// HandleStream runs the streaming retry loop, invoking emit once per
// Anthropic SSE event in order. emit errors abort the stream.
func (h *Handler) HandleStream(ctx context.Context, model string, req *domain.AnthropicRequest, emit func(sse.Event) error) error {
	messageID := convert.GenerateMessageID()
	return h.run(ctx, model, req, true, func(body io.Reader, isSSE bool, requestedModel string) error {
		return sse.Stream(body, requestedModel, messageID, h.SigCache, h.Config.MinSignatureLength, emit)
	})
}

// run is the shared state machine: account selection, token/project
// resolution, endpoint attempts with retry/failover, and model fallback.
func (h *Handler) run(ctx context.Context, model string, req *domain.AnthropicRequest, streaming bool, sink func(body io.Reader, isSSE bool, requestedModel string) error) error {
	attempts := 0
	currentModel := model
	triedFallback := false

	for {
		if attempts >= h.Config.MaxAttempts {
			return domain.NewMaxRetriesError(attempts, nil)
		}

		sel, err := h.selectAccount(ctx, currentModel)
		if err != nil {
			if !triedFallback {
				if fb := FallbackFor(currentModel); fb != "" {
					triedFallback = true
					currentModel = fb
					continue
				}
			}
			return err
		}

		attempts++
		lastErr := h.attemptAccount(ctx, sel, currentModel, req, streaming, sink)
		if lastErr == nil {
			return nil
		}

		var pe *domain.ProxyError
		if !asProxyError(lastErr, &pe) {
			return lastErr
		}
		// AuthInvalid is "not retryable" against the same account but still
		// drives failover to the next one within this retry loop.
		if !pe.Retryable && pe.Kind != domain.KindAuthInvalid {
			return lastErr
		}
		log.Warnf("attempt %d on %s failed: %v", attempts, sel.Email, lastErr)
	}
}

func asProxyError(err error, target **domain.ProxyError) bool {
	pe, ok := err.(*domain.ProxyError)
	if ok {
		*target = pe
	}
	return ok
}

func (h *Handler) selectAccount(ctx context.Context, model string) (*domain.Account, error) {
	for {
		res := h.Manager.PickStickyAccount(model)
		if res.Account != nil {
			return res.Account, nil
		}
		if res.WaitMs > 0 {
			select {
			case <-ctx.Done():
				return nil, domain.NewNetworkError(ctx.Err())
			case <-time.After(time.Duration(res.WaitMs) * time.Millisecond):
			}
			h.Manager.ClearExpiredLimits()
			continue
		}
		allRL := h.Manager.IsAllRateLimited(model)
		return nil, domain.NewNoAccountsError(allRL)
	}
}

// attemptAccount tries both candidate endpoints for one account, advancing to
// the next account on auth failure or persistent 5xx, per §4.15/§4.16.
func (h *Handler) attemptAccount(ctx context.Context, acc *domain.Account, model string, req *domain.AnthropicRequest, streaming bool, sink func(io.Reader, bool, string) error) error {
	token, err := h.Manager.GetTokenForAccount(ctx, acc.Email)
	if err != nil {
		h.Manager.PickNext(model)
		return domain.NewAuthInvalidError(acc.Email, err)
	}
	project, err := h.Manager.GetProjectForAccount(ctx, acc.Email)
	if err != nil {
		h.Manager.PickNext(model)
		return domain.NewAuthInvalidError(acc.Email, err)
	}

	sessionID := convert.DeriveSessionID(req.Messages)
	googleReq := convert.BuildGoogleRequest(model, req, h.Config.GeminiMaxOutputTokens, h.SigCache, h.Config.MinSignatureLength, sessionID)
	payload, err := buildEnvelope(project, model, googleReq)
	if err != nil {
		return domain.NewAPIError(0, err.Error())
	}

	var minReset int64
	var lastErr error
	var noAccountAdvance bool

	for _, ep := range endpointsFor(model, streaming) {
		attemptStart := time.Now()
		resp, err := h.post(ctx, ep, token, payload, model)
		if err != nil {
			lastErr = domain.NewNetworkError(err)
			h.recordAttempt(acc, model, ep, 0, string(domain.KindNetwork), err.Error(), attemptStart)
			if h.Failures != nil {
				h.Failures.IncrementFailure(acc.Email, cooldown.ReasonNetwork)
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if strings.Contains(string(body), "invalid_grant") || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				h.Manager.ClearTokenCache(acc.Email)
				h.Manager.ClearProjectCache(acc.Email)
			}
			h.recordAttempt(acc, model, ep, resp.StatusCode, string(domain.KindAuthInvalid), string(body), attemptStart)
			if h.Failures != nil {
				h.Failures.IncrementFailure(acc.Email, cooldown.ReasonAuthInvalid)
			}
			h.Manager.PickNext(model)
			return domain.NewAuthInvalidError(acc.Email, fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))

		case resp.StatusCode == http.StatusTooManyRequests:
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			resetMs, ok := ratelimit.ParseResetMs(resp, body, time.Now())
			if ok && (minReset == 0 || resetMs < minReset) {
				minReset = resetMs
			}
			lastErr = domain.NewRateLimitedError(acc.Email, time.Duration(minReset)*time.Millisecond)
			h.recordAttempt(acc, model, ep, resp.StatusCode, string(domain.KindRateLimited), string(body), attemptStart)
			if h.Failures != nil {
				h.Failures.IncrementFailure(acc.Email, cooldown.ReasonRateLimited)
			}
			continue

		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = domain.NewAPIError(resp.StatusCode, "upstream server error")
			h.recordAttempt(acc, model, ep, resp.StatusCode, string(domain.KindAPIError), "upstream server error", attemptStart)
			if h.Failures != nil {
				h.Failures.IncrementFailure(acc.Email, cooldown.ReasonAPIError)
			}
			continue

		case resp.StatusCode >= 400:
			// No retry of the account for these: try the remaining candidate
			// endpoint, then fail outright without advancing to another account.
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = domain.NewAPIError(resp.StatusCode, string(body))
			noAccountAdvance = true
			h.recordAttempt(acc, model, ep, resp.StatusCode, string(domain.KindAPIError), string(body), attemptStart)
			continue

		default:
			h.recordAttempt(acc, model, ep, resp.StatusCode, "", "", attemptStart)
			defer resp.Body.Close()
			if resp.Body == http.NoBody {
				lastErr = domain.NewAPIError(502, "empty streaming body")
				continue
			}
			if err := sink(resp.Body, ep.isSSE, model); err != nil {
				return domain.NewNetworkError(err)
			}
			return nil
		}
	}

	if pe, ok := lastErr.(*domain.ProxyError); ok && pe.Kind == domain.KindRateLimited {
		h.Manager.MarkRateLimited(acc.Email, model, minReset)
		if h.Events != nil {
			h.Events.BroadcastRateLimit(event.RateLimitEvent{
				AccountEmail: acc.Email,
				Model:        model,
				Limited:      true,
				ResetAtMs:    time.Now().UnixMilli() + minReset,
			})
		}
		h.Manager.PickNext(model)
		return pe
	}
	if noAccountAdvance {
		return lastErr
	}
	if lastErr == nil {
		lastErr = domain.NewAPIError(502, "no endpoint succeeded")
	}
	h.Manager.PickNext(model)
	return lastErr
}

// clientMetadataHeader is the Client-Metadata header value sent on every
// upstream call, matching the shape the Cloud Code backend expects from an
// Antigravity-identified IDE plugin.
var clientMetadataHeader = func() string {
	raw, _ := json.Marshal(map[string]string{
		"ideType":    "ANTIGRAVITY",
		"platform":   "PLATFORM_UNSPECIFIED",
		"pluginType": "GEMINI",
	})
	return string(raw)
}()

func (h *Handler) post(ctx context.Context, ep endpoint, token string, body []byte, model string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("User-Agent", "antigravity")
	httpReq.Header.Set("X-Goog-Api-Client", "antigravity-relay")
	httpReq.Header.Set("Client-Metadata", clientMetadataHeader)
	if convert.IsClaudeModel(model) && wantsThinking(model) {
		httpReq.Header.Set("anthropic-beta", "interleaved-thinking-2025-05-14")
	}
	if ep.accept != "" {
		httpReq.Header.Set("Accept", ep.accept)
	}
	return h.HTTPClient.Do(httpReq)
}

type envelope struct {
	Project   string               `json:"project"`
	Model     string               `json:"model"`
	Request   *convert.GoogleRequest `json:"request"`
	UserAgent string               `json:"userAgent"`
	RequestID string               `json:"requestId"`
}

func buildEnvelope(project, model string, req *convert.GoogleRequest) ([]byte, error) {
	return json.Marshal(envelope{
		Project:   project,
		Model:     model,
		Request:   req,
		UserAgent: "antigravity",
		RequestID: "agent-" + uuid.NewString(),
	})
}
