package feed

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Mohammad2410/Sphere/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrEmptyPost rejects a post with neither text nor an image.
var ErrEmptyPost = errors.New("feed: post needs text or an image")

// Composer is the new-post form at the top of a feed.
type Composer struct {
	feed *Feed

	mu         sync.Mutex
	content    string
	image      *models.Upload
	submitting bool
	errMsg     string
}

// ComposerView is what the form renders.
type ComposerView struct {
	Content    string `json:"content"`
	ImageName  string `json:"imageName,omitempty"`
	Submitting bool   `json:"submitting"`
	CanSubmit  bool   `json:"canSubmit"`
	Error      string `json:"error,omitempty"`
}

// SetContent replaces the post text.
func (c *Composer) SetContent(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = text
}

// Attach sets the image to upload with the post. nil removes it.
func (c *Composer) Attach(img *models.Upload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.image = img
}

// View returns the form state.
func (c *Composer) View() ComposerView {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := ComposerView{
		Content:    c.content,
		Submitting: c.submitting,
		Error:      c.errMsg,
	}
	if c.image != nil {
		v.ImageName = c.image.Name
	}
	v.CanSubmit = !c.submitting && (strings.TrimSpace(c.content) != "" || c.image != nil)
	return v
}

// Submit creates the post. An attached image is uploaded first and the post
// is created only once the upload succeeded. Success clears the form and
// puts the post at the top of the feed; failure keeps the form as it was.
func (c *Composer) Submit(ctx context.Context) (models.Post, error) {
	c.mu.Lock()
	content := strings.TrimSpace(c.content)
	image := c.image
	if content == "" && image == nil {
		c.mu.Unlock()
		return models.Post{}, ErrEmptyPost
	}
	if c.submitting {
		c.mu.Unlock()
		return models.Post{}, ErrInFlight
	}
	c.submitting = true
	c.errMsg = ""
	c.mu.Unlock()

	post, err := c.submit(ctx, content, image)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	if err != nil {
		var aerr *ActionError
		if errors.As(err, &aerr) {
			c.errMsg = aerr.Message
		}
		return models.Post{}, err
	}
	c.content = ""
	c.image = nil
	c.feed.Prepend(post)
	return post, nil
}

func (c *Composer) submit(ctx context.Context, content string, image *models.Upload) (models.Post, error) {
	viewer := c.feed.viewerSummary()

	var imageID int64
	if image != nil {
		uploaded, err := c.feed.api.Upload(ctx, *image)
		if err != nil {
			log.Error().Err(err).Str("file", image.Name).Msg("Failed to upload post image")
			return models.Post{}, &ActionError{Message: "Failed to upload image", Err: err}
		}
		imageID = uploaded[0].ID
	}

	post, err := c.feed.api.CreatePost(ctx, content, viewer.ID, imageID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create post")
		return models.Post{}, &ActionError{Message: "Failed to create post", Err: err}
	}
	if post.Author.ID == 0 {
		post.Author = viewer
	}
	log.Info().Int64("post_id", post.ID).Bool("image", imageID != 0).Msg("Post created")
	return post, nil
}
