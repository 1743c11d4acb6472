package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/awsl-project/antigravity-relay/internal/account"
	"github.com/awsl-project/antigravity-relay/internal/domain"
	"github.com/awsl-project/antigravity-relay/internal/event"
)

// AdminHandler serves account pool CRUD and the live observability feed,
// adapting the teacher's DB-backed provider CRUD idiom onto the JSON-file
// backed account pool.
type AdminHandler struct {
	manager     *account.Manager
	broadcaster *event.WSBroadcaster
}

// accountView is the admin-facing projection of domain.Account: it surfaces
// IsInvalid/InvalidReason, which the persisted JSON form deliberately omits.
type accountView struct {
	Email           string                            `json:"email"`
	Source          domain.AccountSource              `json:"source"`
	ProjectID       string                            `json:"projectId,omitempty"`
	AddedAt         time.Time                         `json:"addedAt,omitempty"`
	LastUsed        time.Time                         `json:"lastUsed,omitempty"`
	ModelRateLimits map[string]*domain.ModelRateLimit `json:"modelRateLimits,omitempty"`
	IsInvalid       bool                              `json:"isInvalid"`
	InvalidReason   string                            `json:"invalidReason,omitempty"`
}

func toAccountView(a *domain.Account) accountView {
	return accountView{
		Email:           a.Email,
		Source:          a.Source,
		ProjectID:       a.ProjectID,
		AddedAt:         a.AddedAt,
		LastUsed:        a.LastUsed,
		ModelRateLimits: a.ModelRateLimits,
		IsInvalid:       a.IsInvalid,
		InvalidReason:   a.InvalidReason,
	}
}

func (h *AdminHandler) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		accounts := h.manager.ListAccounts()
		views := make([]accountView, len(accounts))
		for i, a := range accounts {
			views[i] = toAccountView(a)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"accounts": views,
			"status":   h.manager.GetStatus(),
		})

	case http.MethodPost:
		var body struct {
			Email        string `json:"email"`
			RefreshToken string `json:"refreshToken"`
			ProjectID    string `json:"projectId,omitempty"`
		}
		if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if body.Email == "" || body.RefreshToken == "" {
			writeError(w, http.StatusBadRequest, "email and refreshToken are required")
			return
		}
		acc := &domain.Account{
			Email:        body.Email,
			Source:       domain.SourceManual,
			RefreshToken: body.RefreshToken,
			ProjectID:    body.ProjectID,
		}
		h.manager.AddAccount(acc)
		writeJSON(w, http.StatusCreated, toAccountView(acc))

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *AdminHandler) handleAccountByEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimPrefix(r.URL.Path, "/admin/accounts/")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email required")
		return
	}

	switch r.Method {
	case http.MethodDelete:
		if !h.manager.RemoveAccount(email) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleEvents upgrades to a websocket connection and registers it with the
// broadcaster until the client disconnects.
func (h *AdminHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("admin events upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	unregister := h.broadcaster.Register(conn)
	defer unregister()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
