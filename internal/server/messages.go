package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/awsl-project/antigravity-relay/internal/adapter/provider/antigravity"
	"github.com/awsl-project/antigravity-relay/internal/dispatch"
	"github.com/awsl-project/antigravity-relay/internal/domain"
	"github.com/awsl-project/antigravity-relay/internal/sse"
)

// MessagesHandler serves the translating proxy's inbound surface: the core
// /v1/messages endpoint (streaming and non-streaming) and the supplemented
// /v1/messages/count_tokens estimate.
type MessagesHandler struct {
	dispatch *dispatch.Handler
}

func (h *MessagesHandler) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Model = antigravity.MapClaudeModelToGemini(req.Model)

	if req.Stream {
		h.serveStream(w, r, req)
		return
	}
	h.serveMessage(w, r, req)
}

func (h *MessagesHandler) serveMessage(w http.ResponseWriter, r *http.Request, req *domain.AnthropicRequest) {
	resp, err := h.dispatch.HandleMessage(r.Context(), req.Model, req)
	if err != nil {
		writeProxyError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(resp); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

func (h *MessagesHandler) serveStream(w http.ResponseWriter, r *http.Request, req *domain.AnthropicRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	err := h.dispatch.HandleStream(r.Context(), req.Model, req, func(evt sse.Event) error {
		if err := evt.Write(w); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		log.Errorf("stream ended with error: %v", err)
		errEvt := sse.Event{Name: "error", Data: map[string]interface{}{
			"type":  "error",
			"error": map[string]string{"type": "api_error", "message": err.Error()},
		}}
		errEvt.Write(w)
		flusher.Flush()
	}
}

// handleCountTokens is a best-effort token-estimate endpoint: a
// character-based heuristic over the converted request, not a real
// tokenizer call.
func (h *MessagesHandler) handleCountTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var chars int
	chars += len(req.System)
	for _, m := range req.Messages {
		chars += len(m.Content)
	}
	for _, t := range req.Tools {
		chars += len(t.Name) + len(t.Description)
	}

	// ~4 characters per token is the usual rough estimate for English text.
	estimate := chars / 4
	if estimate < 1 && chars > 0 {
		estimate = 1
	}
	writeJSON(w, http.StatusOK, map[string]int{"input_tokens": estimate})
}

func decodeRequest(r *http.Request) (*domain.AnthropicRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	var req domain.AnthropicRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	if req.Model == "" {
		return nil, errors.New("model is required")
	}
	return &req, nil
}

func writeProxyError(w http.ResponseWriter, err error) {
	var pe *domain.ProxyError
	status := http.StatusInternalServerError
	errType := "api_error"

	if errors.As(err, &pe) {
		switch pe.Kind {
		case domain.KindRateLimited:
			status = http.StatusTooManyRequests
			errType = "rate_limit_error"
		case domain.KindAuthInvalid:
			status = http.StatusUnauthorized
			errType = "authentication_error"
		case domain.KindNoAccounts:
			status = http.StatusServiceUnavailable
			errType = "overloaded_error"
		case domain.KindMaxRetries:
			status = http.StatusServiceUnavailable
			errType = "overloaded_error"
		case domain.KindAPIError:
			if pe.HTTPStatusCode >= 400 && pe.HTTPStatusCode < 600 {
				status = pe.HTTPStatusCode
			}
			errType = "api_error"
		case domain.KindNetwork:
			status = http.StatusBadGateway
			errType = "api_error"
		}
	}

	writeJSON(w, status, map[string]interface{}{
		"type": "error",
		"error": map[string]string{
			"type":    errType,
			"message": err.Error(),
		},
	})
}
