package presence

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Mohammad2410/Sphere/internal/backend"
	"github.com/Mohammad2410/Sphere/internal/backend/backendtest"
	"github.com/Mohammad2410/Sphere/internal/media"
	"github.com/Mohammad2410/Sphere/internal/models"
	"github.com/Mohammad2410/Sphere/internal/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAPI struct {
	mu    sync.Mutex
	calls int
	users []models.User
	err   error
}

func (s *stubAPI) ListUsers(ctx context.Context, excludeID int64) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.users, s.err
}

func (s *stubAPI) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestStart_FetchesAndExcludesSelf(t *testing.T) {
	srv := backendtest.New(t)
	self, token := srv.SeedUser("al", "a@b.com", "secret1", nil)
	srv.SeedUser("bo", "b@b.com", "secret1", nil)
	srv.SeedUser("cy", "c@b.com", "secret1", nil)
	client := backend.New(srv.URL, backendtest.Prefix, normalize.New(media.NewResolver(srv.URL, "")), backend.WithToken(token))

	p := NewPoller(client, self, WithInterval(time.Hour))
	require.NoError(t, p.Start())
	defer p.Stop()

	users := p.Users()
	require.Len(t, users, 2)
	for _, u := range users {
		assert.NotEqual(t, self, u.ID)
	}
	calls := srv.CallsTo(http.MethodGet, "/users")
	require.Len(t, calls, 1)
	assert.Equal(t, fmt.Sprint(self), calls[0].Query.Get("filters[id][$ne]"))
}

func TestFetch_LimitAndTimestamp(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	api := &stubAPI{}
	for i := 1; i <= 12; i++ {
		api.users = append(api.users, models.User{ID: int64(i), Username: fmt.Sprintf("u%d", i)})
	}

	p := NewPoller(api, 99, WithInterval(time.Hour), WithClock(func() time.Time { return now }))
	require.NoError(t, p.Start())
	defer p.Stop()

	users := p.Users()
	require.Len(t, users, DefaultLimit)
	assert.Equal(t, int64(1), users[0].ID)
	assert.Equal(t, now, users[0].LastActive)

	v := p.View()
	assert.False(t, v.Loading)
	assert.Equal(t, DefaultLimit, v.ActiveCount)
}

func TestIsRecentlyActive(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	p := NewPoller(&stubAPI{}, 1, WithClock(func() time.Time { return now }))

	assert.True(t, p.IsRecentlyActive(ActiveUser{LastActive: now.Add(-14 * time.Minute)}))
	assert.False(t, p.IsRecentlyActive(ActiveUser{LastActive: now.Add(-15 * time.Minute)}))
	assert.False(t, p.IsRecentlyActive(ActiveUser{LastActive: now.Add(-2 * time.Hour)}))
}

func TestFetch_FailureKeepsLastList(t *testing.T) {
	api := &stubAPI{users: []models.User{{ID: 2, Username: "bo"}}}
	p := NewPoller(api, 1, WithInterval(time.Hour))
	require.NoError(t, p.Start())
	defer p.Stop()
	require.Len(t, p.Users(), 1)

	api.mu.Lock()
	api.err = errors.New("down")
	api.mu.Unlock()
	p.fetch()

	assert.Len(t, p.Users(), 1)
	assert.Equal(t, 2, api.Calls())
}

func TestPolling_StopsOnStop(t *testing.T) {
	api := &stubAPI{users: []models.User{{ID: 2}}}
	p := NewPoller(api, 1, WithInterval(time.Second))
	require.NoError(t, p.Start())

	require.Eventually(t, func() bool { return api.Calls() >= 2 }, 3*time.Second, 20*time.Millisecond)

	p.Stop()
	after := api.Calls()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, after, api.Calls())

	p.Stop()
}

func TestStop_DropsLateResults(t *testing.T) {
	api := &stubAPI{users: []models.User{{ID: 2}}}
	p := NewPoller(api, 1, WithInterval(time.Hour))
	require.NoError(t, p.Start())
	p.Stop()

	api.mu.Lock()
	api.users = []models.User{{ID: 3}, {ID: 4}}
	api.mu.Unlock()
	p.fetch()

	users := p.Users()
	require.Len(t, users, 1)
	assert.Equal(t, int64(2), users[0].ID)
}
