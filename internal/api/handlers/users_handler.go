package handlers

import (
	"net/http"

	"github.com/Mohammad2410/Sphere/internal/profile"
)

// UsersHandler serves other users' profiles.
type UsersHandler struct{}

// NewUsersHandler creates a new UsersHandler.
func NewUsersHandler() *UsersHandler {
	return &UsersHandler{}
}

// TabPayload selects a profile tab.
type TabPayload struct {
	Tab profile.Tab `json:"tab"`
}

func openViewer(r *http.Request) (*profile.Viewer, error) {
	id, err := parseID(r, "id")
	if err != nil {
		return nil, err
	}
	return homeFrom(r).Viewer(id)
}

// Open handles a click on a user. Clicking oneself opens the own profile.
func (h *UsersHandler) Open(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	home := homeFrom(r)
	v := home.OpenUser(r.Context(), id)
	if v == nil {
		writeJSON(w, http.StatusOK, home.Profile().View())
		return
	}
	writeJSON(w, http.StatusOK, v.View())
}

// Get returns the open profile.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	v, err := openViewer(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view := v.View()
	if view.NotFound {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SetTab switches between the posts and about tabs.
func (h *UsersHandler) SetTab(w http.ResponseWriter, r *http.Request) {
	v, err := openViewer(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var payload TabPayload
	if !decode(w, r, &payload) {
		return
	}
	if err := v.SetTab(payload.Tab); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v.View())
}

// Close closes the open profile.
func (h *UsersHandler) Close(w http.ResponseWriter, r *http.Request) {
	if _, err := openViewer(r); err != nil {
		writeError(w, r, err)
		return
	}
	homeFrom(r).CloseUser()
	w.WriteHeader(http.StatusNoContent)
}
