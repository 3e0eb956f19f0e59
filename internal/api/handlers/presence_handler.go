package handlers

import "net/http"

// PresenceHandler serves the active users sidebar.
type PresenceHandler struct{}

// NewPresenceHandler creates a new PresenceHandler.
func NewPresenceHandler() *PresenceHandler {
	return &PresenceHandler{}
}

// List returns the most recently polled active users.
func (h *PresenceHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, homeFrom(r).Presence().View())
}

// Home returns the whole signed-in screen.
func (h *PresenceHandler) Home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, homeFrom(r).View())
}
