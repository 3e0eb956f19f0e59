package app

import (
	"context"
	"sync"

	"github.com/Mohammad2410/Sphere/internal/backend"
	"github.com/Mohammad2410/Sphere/internal/feed"
	"github.com/Mohammad2410/Sphere/internal/models"
	"github.com/Mohammad2410/Sphere/internal/presence"
	"github.com/Mohammad2410/Sphere/internal/profile"
	"github.com/Mohammad2410/Sphere/internal/verification"
)

// Home is the signed-in screen: the feed, the active users sidebar, and
// the profile and verification modals.
type Home struct {
	app      *App
	client   *backend.Client
	self     int64
	feed     *feed.Feed
	presence *presence.Poller
	editor   *profile.Editor

	mu          sync.Mutex
	profileOpen bool
	viewer      *profile.Viewer
	wizard      *verification.Wizard
}

// Feed is the main post feed.
func (h *Home) Feed() *feed.Feed {
	return h.feed
}

// Presence is the active users sidebar.
func (h *Home) Presence() *presence.Poller {
	return h.presence
}

// Profile is the signed-in user's own profile page.
func (h *Home) Profile() *profile.Editor {
	return h.editor
}

// OpenProfile shows the own profile.
func (h *Home) OpenProfile() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.profileOpen = true
}

// CloseProfile hides the own profile and drops unsaved edits.
func (h *Home) CloseProfile() {
	h.mu.Lock()
	h.profileOpen = false
	h.mu.Unlock()
	h.editor.Cancel()
}

// OpenUser handles a click on a user: the own profile for self, the
// read-only viewer for anyone else. It returns the viewer it opened, nil
// for self.
func (h *Home) OpenUser(ctx context.Context, id int64) *profile.Viewer {
	if id == h.self {
		h.OpenProfile()
		return nil
	}

	u, _ := h.app.sess.User()
	v := profile.NewViewer(h.client, id, u.Summary())

	h.mu.Lock()
	prev := h.viewer
	h.viewer = v
	h.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	v.Load(ctx)
	return v
}

// Viewer returns the open viewer for user id.
func (h *Home) Viewer(id int64) (*profile.Viewer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.viewer == nil || h.viewer.UserID() != id {
		return nil, ErrNoViewer
	}
	return h.viewer, nil
}

// CloseUser closes the other user's profile.
func (h *Home) CloseUser() {
	h.mu.Lock()
	v := h.viewer
	h.viewer = nil
	h.mu.Unlock()
	if v != nil {
		v.Close()
	}
}

// OpenVerification starts a fresh verification wizard for the signed-in
// user.
func (h *Home) OpenVerification() (*verification.Wizard, error) {
	u, _ := h.app.sess.User()
	w, err := verification.Open(h.client, u, h.verificationDone)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	prev := h.wizard
	h.wizard = w
	h.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	return w, nil
}

// Verification returns the open wizard.
func (h *Home) Verification() (*verification.Wizard, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.wizard == nil || h.wizard.Closed() {
		return nil, ErrNoWizard
	}
	return h.wizard, nil
}

// CloseVerification abandons the wizard.
func (h *Home) CloseVerification() {
	h.mu.Lock()
	w := h.wizard
	h.wizard = nil
	h.mu.Unlock()
	if w != nil {
		w.Close()
	}
}

func (h *Home) verificationDone(u models.User) {
	h.app.userUpdated(u)
	h.editor.VerificationSubmitted(u)
	h.mu.Lock()
	h.wizard = nil
	h.mu.Unlock()
}

func (h *Home) unmount() {
	h.presence.Stop()
	h.feed.Close()
	h.CloseUser()
	h.CloseVerification()
}

// HomeView is the signed-in screen as rendered.
type HomeView struct {
	User             models.User   `json:"user"`
	Feed             feed.View     `json:"feed"`
	ActiveUsers      presence.View `json:"activeUsers"`
	ProfileOpen      bool          `json:"profileOpen"`
	ViewingUser      int64         `json:"viewingUser,omitempty"`
	VerificationOpen bool          `json:"verificationOpen"`
}

// View snapshots the home screen.
func (h *Home) View() HomeView {
	u, _ := h.app.sess.User()
	v := HomeView{
		User:        u,
		Feed:        h.feed.View(),
		ActiveUsers: h.presence.View(),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	v.ProfileOpen = h.profileOpen
	if h.viewer != nil {
		v.ViewingUser = h.viewer.UserID()
	}
	v.VerificationOpen = h.wizard != nil && !h.wizard.Closed()
	return v
}
