// Package server is the small net/http mux serving the translating proxy and
// its admin shell, grounded on the teacher's internal/handler layout: one
// handler struct per concern, path-prefix dispatch in each handler's
// ServeHTTP, and a shared writeJSON helper.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/awsl-project/antigravity-relay/internal/account"
	"github.com/awsl-project/antigravity-relay/internal/dispatch"
	"github.com/awsl-project/antigravity-relay/internal/event"
	"github.com/awsl-project/antigravity-relay/internal/logging"
)

var log = logging.New("Server")

// Server owns the mux and the collaborators every handler is built from.
type Server struct {
	mux *http.ServeMux
}

// New wires up the full route table described in the HTTP surface section:
// the translating proxy, the token-estimate endpoint, and the admin shell.
func New(handler *dispatch.Handler, manager *account.Manager, broadcaster *event.WSBroadcaster) *Server {
	mux := http.NewServeMux()

	msg := &MessagesHandler{dispatch: handler}
	mux.HandleFunc("/v1/messages/count_tokens", msg.handleCountTokens)
	mux.HandleFunc("/v1/messages", msg.handleMessages)

	admin := &AdminHandler{manager: manager, broadcaster: broadcaster}
	mux.HandleFunc("/admin/accounts", admin.handleAccounts)
	mux.HandleFunc("/admin/accounts/", admin.handleAccountByEmail)
	mux.HandleFunc("/admin/events", admin.handleEvents)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return &Server{mux: mux}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
