// Package session owns the authenticated state of the application: the
// bearer token, its persisted copy, and the resolved user.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Mohammad2410/Sphere/internal/auth"
	"github.com/Mohammad2410/Sphere/internal/backend"
	"github.com/Mohammad2410/Sphere/internal/database"
	"github.com/Mohammad2410/Sphere/internal/models"
	"github.com/rs/zerolog/log"
)

// TokenKey is the storage key the bearer token is persisted under.
const TokenKey = "token"

const (
	msgNetwork            = "Network error. Please try again."
	msgRegistrationFailed = "Registration failed"
	msgLoginFailed        = "Login failed"
)

// ErrNoSession is returned by operations that need a logged-in user.
var ErrNoSession = errors.New("session: not logged in")

// Storage persists small string values across restarts.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// State is the lifecycle position of a session.
type State int

const (
	StateLoading State = iota
	StateLoggedOut
	StateLoggedIn
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoggedIn:
		return "logged_in"
	default:
		return "logged_out"
	}
}

// Session is the explicit replacement for ambient global auth state.
// Components receive it (or a client bound by it) instead of reading
// storage themselves.
type Session struct {
	client *backend.Client
	store  Storage
	now    func() time.Time

	mu    sync.RWMutex
	state State
	token string
	user  *models.User
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides time.Now, used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New creates a session in the loading state. client must not carry a
// token; the session binds one per request.
func New(client *backend.Client, store Storage, opts ...Option) *Session {
	s := &Session{
		client: client,
		store:  store,
		now:    time.Now,
		state:  StateLoading,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start resolves a persisted token into a user. It never fails: any
// problem clears the stored token and leaves the session logged out.
func (s *Session) Start(ctx context.Context) State {
	token, err := s.store.Get(ctx, TokenKey)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			log.Error().Err(err).Msg("Could not read stored token")
		}
		return s.setLoggedOut()
	}
	if strings.TrimSpace(token) == "" {
		s.clearStored(ctx)
		return s.setLoggedOut()
	}

	if auth.Expired(token, s.now()) {
		log.Info().Msg("Stored token has expired, removing it")
		s.clearStored(ctx)
		return s.setLoggedOut()
	}

	user, err := s.client.As(token).Me(ctx)
	if err != nil {
		log.Info().Err(err).Msg("Token invalid, removing from storage")
		s.clearStored(ctx)
		return s.setLoggedOut()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = &user
	s.state = StateLoggedIn
	return s.state
}

// Login authenticates with an identifier (username or email) and password.
func (s *Session) Login(ctx context.Context, c Credentials) (models.User, error) {
	if err := c.Validate(); err != nil {
		return models.User{}, err
	}

	res, err := s.client.Login(ctx, strings.TrimSpace(c.Identifier), c.Password)
	if err != nil {
		return models.User{}, authError(err, msgLoginFailed)
	}
	s.establish(ctx, res.Token, res.User)
	return res.User, nil
}

// Register creates an account and logs it in. Name fields are applied by a
// follow-up profile update; if that fails the account is still logged in
// with the profile returned by registration.
func (s *Session) Register(ctx context.Context, r Registration) (models.User, error) {
	if err := r.Validate(); err != nil {
		return models.User{}, err
	}

	res, err := s.client.Register(ctx, strings.TrimSpace(r.Username), strings.TrimSpace(r.Email), r.Password)
	if err != nil {
		return models.User{}, authError(err, msgRegistrationFailed)
	}

	user := res.User
	if r.FirstName != "" || r.LastName != "" {
		updated, err := s.client.As(res.Token).UpdateUser(ctx, res.User.ID, map[string]string{
			"firstName": r.FirstName,
			"lastName":  r.LastName,
		})
		if err != nil {
			log.Warn().Err(err).Int64("user_id", res.User.ID).Msg("Registered, but the name update failed")
		} else {
			user = updated
		}
	}

	s.establish(ctx, res.Token, user)
	return user, nil
}

// Logout forgets the token locally. There is no server-side revocation.
func (s *Session) Logout(ctx context.Context) {
	s.clearStored(ctx)
	s.setLoggedOut()
}

// SetUser replaces the current user after a profile change.
func (s *Session) SetUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLoggedIn {
		return
	}
	s.user = &u
}

// User returns the logged-in user.
func (s *Session) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

// Token returns the current bearer token, empty when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Client returns a backend client authenticated as the current user.
func (s *Session) Client() (*backend.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateLoggedIn {
		return nil, ErrNoSession
	}
	return s.client.As(s.token), nil
}

func (s *Session) establish(ctx context.Context, token string, user models.User) {
	if err := s.store.Set(ctx, TokenKey, token); err != nil {
		// The session still works for this run; it just won't survive a restart.
		log.Error().Err(err).Msg("Could not persist token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = &user
	s.state = StateLoggedIn
	log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("Logged in")
}

func (s *Session) clearStored(ctx context.Context) {
	if err := s.store.Remove(ctx, TokenKey); err != nil {
		log.Error().Err(err).Msg("Could not remove stored token")
	}
}

func (s *Session) setLoggedOut() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	s.state = StateLoggedOut
	return s.state
}
