// Package app is the root of the client: it follows the session between
// the login, registration and home screens and owns the components mounted
// on the home screen.
package app

import (
	"context"
	"errors"
	"sync"

	"github.com/Mohammad2410/Sphere/internal/feed"
	"github.com/Mohammad2410/Sphere/internal/models"
	"github.com/Mohammad2410/Sphere/internal/presence"
	"github.com/Mohammad2410/Sphere/internal/profile"
	"github.com/Mohammad2410/Sphere/internal/session"
	"github.com/rs/zerolog/log"
)

// Route is the screen the root shows.
type Route string

const (
	RouteLoading  Route = "loading"
	RouteLogin    Route = "login"
	RouteRegister Route = "register"
	RouteHome     Route = "home"
)

var (
	// ErrNoViewer is returned when no other user's profile is open.
	ErrNoViewer = errors.New("app: no user profile open")
	// ErrNoWizard is returned when the verification wizard is not open.
	ErrNoWizard = errors.New("app: verification is not open")
)

// App is safe for concurrent use.
type App struct {
	sess         *session.Session
	presenceOpts []presence.Option

	mu   sync.Mutex
	form Route
	home *Home
}

// New creates the root around a session that has not been started yet.
// presenceOpts configure the active users poller mounted on login.
func New(sess *session.Session, presenceOpts ...presence.Option) *App {
	return &App{
		sess:         sess,
		presenceOpts: presenceOpts,
		form:         RouteLogin,
	}
}

// Session returns the session the app is built on.
func (a *App) Session() *session.Session {
	return a.sess
}

// Start resolves a stored session and mounts the home screen when it is
// still valid.
func (a *App) Start(ctx context.Context) error {
	if a.sess.Start(ctx) != session.StateLoggedIn {
		return nil
	}
	return a.mountHome(ctx)
}

// Route returns the screen to show.
func (a *App) Route() Route {
	switch a.sess.State() {
	case session.StateLoading:
		return RouteLoading
	case session.StateLoggedIn:
		return RouteHome
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.form
}

// ShowLogin switches the logged-out screen to the login form.
func (a *App) ShowLogin() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.form = RouteLogin
}

// ShowRegister switches the logged-out screen to the registration form.
func (a *App) ShowRegister() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.form = RouteRegister
}

// Login signs in and mounts the home screen.
func (a *App) Login(ctx context.Context, c session.Credentials) (models.User, error) {
	u, err := a.sess.Login(ctx, c)
	if err != nil {
		return models.User{}, err
	}
	return u, a.mountHome(ctx)
}

// Register creates an account and mounts the home screen.
func (a *App) Register(ctx context.Context, r session.Registration) (models.User, error) {
	u, err := a.sess.Register(ctx, r)
	if err != nil {
		return models.User{}, err
	}
	return u, a.mountHome(ctx)
}

// Logout unmounts the home screen and forgets the session.
func (a *App) Logout(ctx context.Context) {
	a.unmountHome()
	a.sess.Logout(ctx)
	a.mu.Lock()
	a.form = RouteLogin
	a.mu.Unlock()
}

// Close unmounts the home screen, stopping its background polling.
func (a *App) Close() {
	a.unmountHome()
}

// Home returns the mounted home screen.
func (a *App) Home() (*Home, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.home == nil {
		return nil, session.ErrNoSession
	}
	return a.home, nil
}

func (a *App) mountHome(ctx context.Context) error {
	client, err := a.sess.Client()
	if err != nil {
		return err
	}
	user, _ := a.sess.User()

	h := &Home{
		app:      a,
		client:   client,
		self:     user.ID,
		feed:     feed.New(client, user.Summary()),
		presence: presence.NewPoller(client, user.ID, a.presenceOpts...),
	}
	h.editor = profile.NewEditor(client, user, a.userUpdated)

	a.unmountHome()
	h.feed.Refresh(ctx)
	if err := h.presence.Start(); err != nil {
		log.Error().Err(err).Msg("Could not start active user polling")
	}

	a.mu.Lock()
	a.home = h
	a.mu.Unlock()
	log.Debug().Int64("user_id", user.ID).Msg("Home screen mounted")
	return nil
}

func (a *App) unmountHome() {
	a.mu.Lock()
	h := a.home
	a.home = nil
	a.mu.Unlock()
	if h != nil {
		h.unmount()
	}
}

// userUpdated propagates a changed profile to the session and every mounted
// component showing it.
func (a *App) userUpdated(u models.User) {
	a.sess.SetUser(u)
	a.mu.Lock()
	h := a.home
	a.mu.Unlock()
	if h == nil {
		return
	}
	h.feed.SetViewer(u.Summary())
	h.editor.SetUser(u)
}

// View is the root as rendered.
type View struct {
	Route Route        `json:"route"`
	User  *models.User `json:"user,omitempty"`
}

// View snapshots the root.
func (a *App) View() View {
	v := View{Route: a.Route()}
	if u, ok := a.sess.User(); ok {
		v.User = &u
	}
	return v
}
