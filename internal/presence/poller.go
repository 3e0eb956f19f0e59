// Package presence keeps the "active users" sidebar fresh by polling the
// user list. There is no presence channel on the backend, so "recently
// active" only means "seen in a recent fetch".
package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Mohammad2410/Sphere/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	DefaultInterval = 30 * time.Second
	DefaultWindow   = 15 * time.Minute
	DefaultLimit    = 10
)

// API is the subset of the backend client the poller uses.
type API interface {
	ListUsers(ctx context.Context, excludeID int64) ([]models.User, error)
}

// ActiveUser is a listed user stamped with the time it was last fetched.
type ActiveUser struct {
	models.User
	LastActive time.Time `json:"lastActive"`
}

// Poller periodically fetches the other users.
type Poller struct {
	api      API
	selfID   int64
	interval time.Duration
	window   time.Duration
	limit    int
	now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	users   []ActiveUser
	loading bool
	running bool
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the polling period. cron rounds it up to whole seconds.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithWindow sets how long after a fetch a user counts as recently active.
func WithWindow(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.window = d
		}
	}
}

// WithLimit caps the number of users kept.
func WithLimit(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.limit = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// NewPoller creates a poller listing everyone but selfID.
func NewPoller(api API, selfID int64, opts ...Option) *Poller {
	p := &Poller{
		api:      api,
		selfID:   selfID,
		interval: DefaultInterval,
		window:   DefaultWindow,
		limit:    DefaultLimit,
		now:      time.Now,
		loading:  true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start fetches once and then on every interval until Stop. Starting a
// running poller does nothing.
func (p *Poller) Start() error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{})), cron.WithLogger(cronLogger{}))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", p.interval), p.fetch); err != nil {
		p.cancel()
		p.mu.Unlock()
		return fmt.Errorf("schedule presence polling: %w", err)
	}
	p.cron = c
	p.running = true
	p.mu.Unlock()

	log.Info().Dur("interval", p.interval).Msg("Starting active user polling...")
	p.fetch()
	c.Start()
	return nil
}

// Stop halts polling and waits for a fetch in progress. Results arriving
// after Stop are dropped.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	c, cancel := p.cron, p.cancel
	p.mu.Unlock()

	cancel()
	<-c.Stop().Done()
	log.Info().Msg("Stopped active user polling.")
}

func (p *Poller) fetch() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	ctx := p.ctx
	p.mu.Unlock()

	users, err := p.api.ListUsers(ctx, p.selfID)
	fetched := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.loading = false
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch active users")
		return
	}
	if len(users) > p.limit {
		users = users[:p.limit]
	}
	p.users = make([]ActiveUser, len(users))
	for i, u := range users {
		p.users[i] = ActiveUser{User: u, LastActive: fetched}
	}
}

// Users returns the last fetched users.
func (p *Poller) Users() []ActiveUser {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ActiveUser, len(p.users))
	copy(out, p.users)
	return out
}

// IsRecentlyActive reports whether u was fetched within the active window.
func (p *Poller) IsRecentlyActive(u ActiveUser) bool {
	return p.now().Sub(u.LastActive) < p.window
}

// UserView is one sidebar entry.
type UserView struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	DisplayName    string    `json:"displayName"`
	AvatarURL      string    `json:"avatarUrl"`
	IsVerified     bool      `json:"isVerified"`
	LastActive     time.Time `json:"lastActive"`
	RecentlyActive bool      `json:"recentlyActive"`
}

// View is the sidebar as rendered.
type View struct {
	Loading     bool       `json:"loading"`
	ActiveCount int        `json:"activeCount"`
	Users       []UserView `json:"users"`
}

// View snapshots the sidebar.
func (p *Poller) View() View {
	p.mu.Lock()
	users := make([]ActiveUser, len(p.users))
	copy(users, p.users)
	v := View{Loading: p.loading, Users: make([]UserView, 0, len(users))}
	p.mu.Unlock()

	for _, u := range users {
		recent := p.IsRecentlyActive(u)
		if recent {
			v.ActiveCount++
		}
		v.Users = append(v.Users, UserView{
			ID:             u.ID,
			Username:       u.Username,
			DisplayName:    u.DisplayName(),
			AvatarURL:      u.AvatarURL,
			IsVerified:     u.IsVerified,
			LastActive:     u.LastActive,
			RecentlyActive: recent,
		})
	}
	return v
}

// cronLogger routes cron's own messages to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
