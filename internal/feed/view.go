package feed

import (
	"fmt"
	"time"

	"github.com/Mohammad2410/Sphere/internal/models"
)

// CommentView is a comment as rendered.
type CommentView struct {
	models.Comment
	TimeAgo string `json:"timeAgo"`
}

// PostView is a post with its interaction state as rendered.
type PostView struct {
	models.Post
	TimeAgo   string        `json:"timeAgo"`
	CanDelete bool          `json:"canDelete"`
	State     PostState     `json:"state"`
	Comments  []CommentView `json:"thread,omitempty"`
}

// View is the whole feed as rendered.
type View struct {
	Loading      bool         `json:"loading"`
	Posts        []PostView   `json:"posts"`
	EmptyMessage string       `json:"emptyMessage,omitempty"`
	Composer     ComposerView `json:"composer"`
}

// View snapshots the feed for rendering.
func (f *Feed) View() View {
	composer := f.composer.View()

	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()

	v := View{
		Loading:  f.loading,
		Posts:    make([]PostView, 0, len(f.entries)),
		Composer: composer,
	}
	for _, e := range f.entries {
		pv := PostView{
			Post:      e.post,
			TimeAgo:   TimeAgo(e.post.CreatedAt, now),
			CanDelete: e.post.Author.ID != 0 && e.post.Author.ID == f.viewer.ID,
			State:     e.state,
		}
		if e.state.CommentsExpanded {
			pv.Comments = make([]CommentView, len(e.comments))
			for i, c := range e.comments {
				pv.Comments[i] = CommentView{Comment: c, TimeAgo: TimeAgo(c.CreatedAt, now)}
			}
		}
		v.Posts = append(v.Posts, pv)
	}
	if f.loaded && len(f.entries) == 0 {
		v.EmptyMessage = EmptyMessage
	}
	return v
}

// TimeAgo renders t relative to now: "Just now", "5m ago", "3h ago",
// "2d ago", then the plain date after a week.
func TimeAgo(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
	return t.Format("Jan 2, 2006")
}
