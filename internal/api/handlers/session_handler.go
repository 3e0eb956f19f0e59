package handlers

import (
	"net/http"

	"github.com/Mohammad2410/Sphere/internal/app"
	"github.com/Mohammad2410/Sphere/internal/session"
	"github.com/rs/zerolog/log"
)

// SessionHandler serves the root view and the login and registration forms.
type SessionHandler struct {
	app *app.App
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(a *app.App) *SessionHandler {
	return &SessionHandler{app: a}
}

// View returns the screen to show and the signed-in user, if any.
func (h *SessionHandler) View(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.View())
}

// ShowLogin switches the logged-out screen to the login form.
func (h *SessionHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	h.app.ShowLogin()
	writeJSON(w, http.StatusOK, h.app.View())
}

// ShowRegister switches the logged-out screen to the registration form.
func (h *SessionHandler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	h.app.ShowRegister()
	writeJSON(w, http.StatusOK, h.app.View())
}

// Login signs in with an email or username.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload session.Credentials
	if !decode(w, r, &payload) {
		return
	}

	if _, err := h.app.Login(commandContext(r), payload); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.app.View())
}

// Register creates an account and signs in.
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload session.Registration
	if !decode(w, r, &payload) {
		return
	}

	if _, err := h.app.Register(commandContext(r), payload); err != nil {
		writeError(w, r, err)
		return
	}
	log.Info().Str("username", payload.Username).Msg("Account registered")
	writeJSON(w, http.StatusCreated, h.app.View())
}

// Logout forgets the session.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.app.Logout(commandContext(r))
	writeJSON(w, http.StatusOK, h.app.View())
}
