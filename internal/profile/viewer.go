package profile

import (
	"context"
	"errors"
	"sync"

	"github.com/Mohammad2410/Sphere/internal/feed"
	"github.com/Mohammad2410/Sphere/internal/models"
	"github.com/rs/zerolog/log"
)

// Tab is a section of another user's profile.
type Tab string

const (
	TabPosts Tab = "posts"
	TabAbout Tab = "about"
)

// ErrUnknownTab is returned for a tab name the viewer does not have.
var ErrUnknownTab = errors.New("profile: unknown tab")

// ViewerAPI is what the viewer needs from the backend client.
type ViewerAPI interface {
	feed.API
	GetUser(ctx context.Context, id int64) (models.User, error)
	ListPostsByAuthor(ctx context.Context, authorID int64) ([]models.Post, error)
}

// Viewer is another user's read-only profile. Its posts are a regular feed,
// so likes and comments work there too.
type Viewer struct {
	api    ViewerAPI
	userID int64
	posts  *feed.Feed

	mu      sync.Mutex
	user    *models.User
	loading bool
	tab     Tab
}

// NewViewer creates a viewer for userID as seen by viewer. Call Load to
// fetch it.
func NewViewer(api ViewerAPI, userID int64, viewer models.Author) *Viewer {
	v := &Viewer{
		api:     api,
		userID:  userID,
		loading: true,
		tab:     TabPosts,
	}
	v.posts = feed.New(api, viewer, feed.WithSource(func(ctx context.Context) ([]models.Post, error) {
		return api.ListPostsByAuthor(ctx, userID)
	}))
	return v
}

// UserID is the id of the profile being viewed.
func (v *Viewer) UserID() int64 {
	return v.userID
}

// Feed returns the viewed user's posts.
func (v *Viewer) Feed() *feed.Feed {
	return v.posts
}

// Load fetches the profile and the posts at the same time. A profile that
// cannot be read is shown as not found; posts that cannot be read as none.
func (v *Viewer) Load(ctx context.Context) {
	v.mu.Lock()
	v.loading = true
	v.mu.Unlock()

	var (
		wg   sync.WaitGroup
		user models.User
		err  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		user, err = v.api.GetUser(ctx, v.userID)
	}()
	go func() {
		defer wg.Done()
		v.posts.Refresh(ctx)
	}()
	wg.Wait()

	v.mu.Lock()
	defer v.mu.Unlock()
	v.loading = false
	if err != nil {
		log.Warn().Err(err).Int64("user_id", v.userID).Msg("Failed to load user profile")
		v.user = nil
		return
	}
	v.user = &user
}

// SetTab switches between the posts and about sections.
func (v *Viewer) SetTab(t Tab) error {
	if t != TabPosts && t != TabAbout {
		return ErrUnknownTab
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tab = t
	return nil
}

// Close detaches the viewer; late results are dropped.
func (v *Viewer) Close() {
	v.posts.Close()
}

// ViewerView is the profile as rendered.
type ViewerView struct {
	Loading            bool         `json:"loading"`
	NotFound           bool         `json:"notFound"`
	User               *models.User `json:"user,omitempty"`
	VerificationStatus string       `json:"verificationStatus,omitempty"`
	Tab                Tab          `json:"tab"`
	Posts              *feed.View   `json:"posts,omitempty"`
}

// View snapshots the viewer for rendering. Posts are included on the posts
// tab only.
func (v *Viewer) View() ViewerView {
	v.mu.Lock()
	out := ViewerView{
		Loading: v.loading,
		Tab:     v.tab,
	}
	if v.user != nil {
		u := *v.user
		out.User = &u
		out.VerificationStatus = u.VerificationStatus().Label()
	} else if !v.loading {
		out.NotFound = true
	}
	tab := v.tab
	v.mu.Unlock()

	if tab == TabPosts {
		fv := v.posts.View()
		out.Posts = &fv
	}
	return out
}
