// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"

	"github.com/streetfix/streetfix/internal/adapters/identity"
)

// StatusHandler resolves the second phase of status changes: a change
// proposed on a report stays parked until the actor confirms or cancels.
type StatusHandler struct {
	deps Dependencies
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(deps Dependencies) *StatusHandler {
	return &StatusHandler{deps: deps}
}

// HandleConfirm handles POST /reports/status/confirm requests.
func (h *StatusHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	const op = "api.confirm_status"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	user, err := identity.FromRequest(r)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	if err := h.deps.ConfirmStatusChange(r.Context(), user); err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

// HandleCancel handles POST /reports/status/cancel requests.
func (h *StatusHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	const op = "api.cancel_status"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	user, err := identity.FromRequest(r)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	h.deps.CancelStatusChange(r.Context(), user)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
