package handlers

import (
	"net/http"

	"screen-recorder/internal/logging"
)

// CallbackRequest delivers a storage token from the sign-in flow.
type CallbackRequest struct {
	Token string `json:"token" validate:"required,max=8192"`
}

// AuthStatus describes the storage credential state.
type AuthStatus struct {
	SignedIn   bool   `json:"signedIn"`
	Pending    bool   `json:"pending"`
	NeedsToken bool   `json:"needsToken"`
	Backend    string `json:"backend"`
}

// AuthCallback resolves a pending re-authentication with a new token. The
// token is kept even when no request is waiting.
func (h *Handlers) AuthCallback(w http.ResponseWriter, r *http.Request) {
	var req CallbackRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeDecodeError(w, err)
		return
	}

	resolved, err := h.broker.Deliver(r.Context(), req.Token)
	if err != nil {
		logging.Warn("Auth callback: %v", err)
	}
	logging.Info("Auth callback received (resolved pending request: %v)", resolved)

	writeJSONValue(w, map[string]bool{
		"resolved":  resolved,
		"persisted": err == nil,
	})
}

// GetAuthStatus reports whether a token is available.
func (h *Handlers) GetAuthStatus(w http.ResponseWriter, r *http.Request) {
	token, _ := h.broker.Token(r.Context())
	status := AuthStatus{
		SignedIn: token != "",
		Pending:  h.broker.Pending(),
	}
	if h.remote != nil {
		store := h.remote.Store()
		status.NeedsToken = store.NeedsToken()
		status.Backend = store.Name()
	}
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONValue(w, status)
}

// SignOut forgets the stored token.
func (h *Handlers) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.broker.SignOut(r.Context()); err != nil {
		logging.Error("Sign out failed: %v", err)
		writeJSONError(w, "Failed to sign out", http.StatusInternalServerError)
		return
	}
	logging.Info("Storage credential cleared")
	writeJSONStatus(w, "ok")
}
