// Package feed holds a list of posts together with the per-post interaction
// state the home screen and profile pages render: like and comment guards,
// lazily loaded comment threads, and comment drafts.
package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Mohammad2410/Sphere/internal/models"
	"github.com/rs/zerolog/log"
)

// EmptyMessage is shown when a loaded feed has no posts.
const EmptyMessage = "No posts yet. Be the first to share something!"

var (
	// ErrInFlight means the same action is already running for that post;
	// the duplicate is dropped.
	ErrInFlight = errors.New("feed: action already in progress")
	// ErrUnknownPost is returned for a post id that is not in the feed.
	ErrUnknownPost = errors.New("feed: unknown post")
	// ErrNotAuthor guards deletion of someone else's post.
	ErrNotAuthor = errors.New("feed: only the author can delete a post")
	// ErrEmptyComment rejects a blank comment draft.
	ErrEmptyComment = errors.New("feed: comment is empty")
)

// API is the subset of the backend client the feed drives.
type API interface {
	ListPosts(ctx context.Context) ([]models.Post, error)
	LikePost(ctx context.Context, id int64) error
	DeletePost(ctx context.Context, id int64) error
	ListComments(ctx context.Context, postID int64) ([]models.Comment, error)
	CreateComment(ctx context.Context, postID, authorID int64, content string) (models.Comment, error)
	CreatePost(ctx context.Context, content string, authorID, imageID int64) (models.Post, error)
	Upload(ctx context.Context, files ...models.Upload) ([]models.Media, error)
}

// ActionError is a failed write, with a message fit for display.
type ActionError struct {
	Message string
	Err     error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// PostState is the interaction state of one post.
type PostState struct {
	Liking           bool   `json:"liking"`
	Deleting         bool   `json:"deleting"`
	CommentsExpanded bool   `json:"commentsExpanded"`
	CommentsLoading  bool   `json:"commentsLoading"`
	Commenting       bool   `json:"commenting"`
	CommentDraft     string `json:"commentDraft"`
	Error            string `json:"error,omitempty"`
}

type entry struct {
	post           models.Post
	state          PostState
	comments       []models.Comment
	commentsLoaded bool
}

// Feed is safe for concurrent use. Network calls are made without holding
// the lock; their results are applied to whatever the feed looks like when
// they return.
type Feed struct {
	api  API
	load func(ctx context.Context) ([]models.Post, error)
	now  func() time.Time

	composer *Composer

	mu      sync.Mutex
	viewer  models.Author
	entries []*entry
	loading bool
	loaded  bool
	closed  bool
}

// Option configures a Feed.
type Option func(*Feed)

// WithSource replaces the post source, e.g. to show one author's posts.
func WithSource(load func(ctx context.Context) ([]models.Post, error)) Option {
	return func(f *Feed) { f.load = load }
}

// WithClock overrides time.Now for relative timestamps.
func WithClock(now func() time.Time) Option {
	return func(f *Feed) { f.now = now }
}

// New creates an empty feed acting as viewer. Call Refresh to load it.
func New(api API, viewer models.Author, opts ...Option) *Feed {
	f := &Feed{
		api:    api,
		load:   api.ListPosts,
		now:    time.Now,
		viewer: viewer,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.composer = &Composer{feed: f}
	return f
}

// Composer returns the compose form attached to this feed.
func (f *Feed) Composer() *Composer {
	return f.composer
}

// SetViewer updates the acting user, e.g. after a profile edit.
func (f *Feed) SetViewer(a models.Author) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewer = a
}

func (f *Feed) viewerSummary() models.Author {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewer
}

// Close detaches the feed. Requests still in flight complete but their
// results are dropped.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// Refresh reloads the post list. A failed read leaves the feed empty.
func (f *Feed) Refresh(ctx context.Context) {
	f.mu.Lock()
	f.loading = true
	f.mu.Unlock()

	posts, err := f.load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load posts")
		posts = nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.loading = false
	f.loaded = true
	f.entries = make([]*entry, 0, len(posts))
	for _, p := range posts {
		f.entries = append(f.entries, &entry{post: p})
	}
}

// Posts returns the current posts in display order.
func (f *Feed) Posts() []models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Post, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.post
	}
	return out
}

// Post returns one post and its state.
func (f *Feed) Post(id int64) (models.Post, PostState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.find(id)
	if e == nil {
		return models.Post{}, PostState{}, false
	}
	return e.post, e.state, true
}

// Comments returns the comments held for a post.
func (f *Feed) Comments(id int64) []models.Comment {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.find(id)
	if e == nil {
		return nil
	}
	out := make([]models.Comment, len(e.comments))
	copy(out, e.comments)
	return out
}

// Prepend puts a post at the front of the feed.
func (f *Feed) Prepend(p models.Post) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.entries = append([]*entry{{post: p}}, f.entries...)
}

// ToggleLike likes or unlikes a post. The local flag and count change only
// once the backend accepted the toggle, and the count moves by exactly one
// regardless of what the backend reports.
func (f *Feed) ToggleLike(ctx context.Context, id int64) error {
	f.mu.Lock()
	e := f.find(id)
	if e == nil {
		f.mu.Unlock()
		return ErrUnknownPost
	}
	if e.state.Liking {
		f.mu.Unlock()
		return ErrInFlight
	}
	e.state.Liking = true
	e.state.Error = ""
	f.mu.Unlock()

	err := f.api.LikePost(ctx, id)

	f.mu.Lock()
	defer f.mu.Unlock()
	e = f.find(id)
	if e == nil || f.closed {
		return nil
	}
	e.state.Liking = false
	if err != nil {
		log.Error().Err(err).Int64("post_id", id).Msg("Failed to toggle like")
		e.state.Error = "Failed to update like"
		return &ActionError{Message: e.state.Error, Err: err}
	}

	if e.post.IsLiked {
		e.post.IsLiked = false
		if e.post.Likes > 0 {
			e.post.Likes--
		}
	} else {
		e.post.IsLiked = true
		e.post.Likes++
	}
	return nil
}

// ToggleComments expands or collapses a post's comments. The thread is
// fetched on the first expand only; a failed fetch shows an empty thread
// and is retried on the next expand.
func (f *Feed) ToggleComments(ctx context.Context, id int64) error {
	f.mu.Lock()
	e := f.find(id)
	if e == nil {
		f.mu.Unlock()
		return ErrUnknownPost
	}
	e.state.CommentsExpanded = !e.state.CommentsExpanded
	if !e.state.CommentsExpanded || e.commentsLoaded || e.state.CommentsLoading {
		f.mu.Unlock()
		return nil
	}
	e.state.CommentsLoading = true
	f.mu.Unlock()

	comments, err := f.api.ListComments(ctx, id)
	if err != nil {
		log.Warn().Err(err).Int64("post_id", id).Msg("Failed to load comments")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	e = f.find(id)
	if e == nil || f.closed {
		return nil
	}
	e.state.CommentsLoading = false
	if err != nil {
		e.comments = nil
		return nil
	}
	// A comment added while the thread was loading is already in the
	// fetched list, so the fetch replaces what is held.
	e.comments = comments
	e.commentsLoaded = true
	return nil
}

// SetDraft stores the comment box text for a post.
func (f *Feed) SetDraft(id int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.find(id)
	if e == nil {
		return ErrUnknownPost
	}
	e.state.CommentDraft = text
	return nil
}

// AddComment submits the post's draft. On success the comment is put at
// the top of the thread, the post's comment count goes up by one and the
// draft is cleared; on failure the draft is kept.
func (f *Feed) AddComment(ctx context.Context, id int64) (models.Comment, error) {
	f.mu.Lock()
	e := f.find(id)
	if e == nil {
		f.mu.Unlock()
		return models.Comment{}, ErrUnknownPost
	}
	content := strings.TrimSpace(e.state.CommentDraft)
	if content == "" {
		f.mu.Unlock()
		return models.Comment{}, ErrEmptyComment
	}
	if e.state.Commenting {
		f.mu.Unlock()
		return models.Comment{}, ErrInFlight
	}
	e.state.Commenting = true
	e.state.Error = ""
	viewer := f.viewer
	f.mu.Unlock()

	c, err := f.api.CreateComment(ctx, id, viewer.ID, content)

	f.mu.Lock()
	defer f.mu.Unlock()
	e = f.find(id)
	if e == nil || f.closed {
		return c, err
	}
	e.state.Commenting = false
	if err != nil {
		log.Error().Err(err).Int64("post_id", id).Msg("Failed to add comment")
		e.state.Error = "Failed to add comment"
		return models.Comment{}, &ActionError{Message: e.state.Error, Err: err}
	}

	if c.Author.ID == 0 {
		c.Author = viewer
	}
	if c.PostID == 0 {
		c.PostID = id
	}
	e.comments = append([]models.Comment{c}, e.comments...)
	e.post.Comments++
	e.state.CommentDraft = ""
	return c, nil
}

// DeletePost removes one of the viewer's own posts.
func (f *Feed) DeletePost(ctx context.Context, id int64) error {
	f.mu.Lock()
	e := f.find(id)
	if e == nil {
		f.mu.Unlock()
		return ErrUnknownPost
	}
	if e.post.Author.ID == 0 || e.post.Author.ID != f.viewer.ID {
		f.mu.Unlock()
		return ErrNotAuthor
	}
	if e.state.Deleting {
		f.mu.Unlock()
		return ErrInFlight
	}
	e.state.Deleting = true
	e.state.Error = ""
	f.mu.Unlock()

	err := f.api.DeletePost(ctx, id)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	if err != nil {
		log.Error().Err(err).Int64("post_id", id).Msg("Failed to delete post")
		if e = f.find(id); e != nil {
			e.state.Deleting = false
			e.state.Error = "Failed to delete post"
		}
		return &ActionError{Message: "Failed to delete post", Err: err}
	}
	for i, cur := range f.entries {
		if cur.post.ID == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			break
		}
	}
	log.Info().Int64("post_id", id).Msg("Post deleted")
	return nil
}

// find expects f.mu to be held.
func (f *Feed) find(id int64) *entry {
	for _, e := range f.entries {
		if e.post.ID == id {
			return e
		}
	}
	return nil
}
