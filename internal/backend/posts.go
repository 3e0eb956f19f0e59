package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"

	"github.com/Mohammad2410/Sphere/internal/models"
	"github.com/rs/zerolog/log"
)

const authorMediaPopulate = "profilePicture,avatar"

// postListQueries are tried in order; the first that the backend accepts
// wins. Older backends reject the nested populate syntax.
func postListQueries() []url.Values {
	return []url.Values{
		{
			"populate[author][populate]": {authorMediaPopulate},
			"populate[image]":            {"true"},
			"sort":                       {"createdAt:desc"},
		},
		{"populate": {"*"}, "sort": {"createdAt:desc"}},
		nil,
	}
}

// ListPosts fetches the feed, newest first.
func (c *Client) ListPosts(ctx context.Context) ([]models.Post, error) {
	return c.listPosts(ctx, postListQueries())
}

// ListPostsByAuthor fetches one user's posts, newest first.
func (c *Client) ListPostsByAuthor(ctx context.Context, authorID int64) ([]models.Post, error) {
	id := strconv.FormatInt(authorID, 10)
	return c.listPosts(ctx, []url.Values{
		{"filters[author][id][$eq]": {id}, "populate": {"*"}, "sort": {"createdAt:desc"}},
		{"filters[author][id][$eq]": {id}, "populate": {"*"}},
	})
}

func (c *Client) listPosts(ctx context.Context, queries []url.Values) ([]models.Post, error) {
	var errs []error
	for i, q := range queries {
		raw, err := c.get(ctx, "/posts", q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			log.Warn().Err(err).Int("attempt", i+1).Msg("Post query failed, trying a simpler one")
			errs = append(errs, err)
			continue
		}
		return c.norm.Posts(raw), nil
	}
	return nil, fmt.Errorf("list posts: %w", errors.Join(errs...))
}

func (c *Client) getPost(ctx context.Context, id int64) (models.Post, error) {
	raw, err := c.get(ctx, "/posts/"+strconv.FormatInt(id, 10), url.Values{
		"populate[author][populate]": {authorMediaPopulate},
		"populate[image]":            {"true"},
	})
	if err != nil {
		return models.Post{}, err
	}
	return c.norm.Post(raw)
}

// CreatePost creates a post and returns it with its relations populated.
// imageID zero means no image.
func (c *Client) CreatePost(ctx context.Context, content string, authorID, imageID int64) (models.Post, error) {
	data := map[string]any{
		"content":  content,
		"author":   authorID,
		"likes":    0,
		"comments": 0,
		"isLiked":  false,
	}
	if imageID != 0 {
		data["image"] = imageID
	}

	raw, err := c.doJSON(ctx, http.MethodPost, "/posts", nil, dataEnvelope{Data: data}, false)
	if err != nil {
		return models.Post{}, err
	}
	created, err := c.norm.Post(raw)
	if err != nil {
		return models.Post{}, fmt.Errorf("create post response: %w", err)
	}

	full, err := c.getPost(ctx, created.ID)
	if err != nil {
		log.Warn().Err(err).Int64("post_id", created.ID).Msg("Could not refetch created post, using create response")
		return created, nil
	}
	return full, nil
}

// DeletePost removes a post.
func (c *Client) DeletePost(ctx context.Context, id int64) error {
	_, err := c.doJSON(ctx, http.MethodDelete, "/posts/"+strconv.FormatInt(id, 10), nil, nil, false)
	return err
}

// LikePost toggles the caller's like on a post. The response body is
// ignored.
func (c *Client) LikePost(ctx context.Context, id int64) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/posts/"+strconv.FormatInt(id, 10)+"/like", nil, nil, false)
	return err
}

// ListComments fetches a post's comments, newest first.
func (c *Client) ListComments(ctx context.Context, postID int64) ([]models.Comment, error) {
	raw, err := c.get(ctx, "/comments", url.Values{
		"filters[post][id][$eq]":     {strconv.FormatInt(postID, 10)},
		"populate[author][populate]": {authorMediaPopulate},
		"sort":                       {"createdAt:desc"},
	})
	if err != nil {
		return nil, err
	}
	comments := c.norm.Comments(raw)
	for i := range comments {
		if comments[i].PostID == 0 {
			comments[i].PostID = postID
		}
	}
	return comments, nil
}

// CreateComment adds a comment to a post and returns it populated.
func (c *Client) CreateComment(ctx context.Context, postID, authorID int64, content string) (models.Comment, error) {
	payload := dataEnvelope{Data: map[string]any{
		"content": content,
		"post":    postID,
		"author":  authorID,
	}}
	raw, err := c.doJSON(ctx, http.MethodPost, "/comments", nil, payload, false)
	if err != nil {
		return models.Comment{}, err
	}
	created, err := c.norm.Comment(raw)
	if err != nil {
		return models.Comment{}, fmt.Errorf("create comment response: %w", err)
	}
	created.PostID = postID

	raw, err = c.get(ctx, "/comments/"+strconv.FormatInt(created.ID, 10), url.Values{
		"populate[author][populate]": {authorMediaPopulate},
	})
	if err != nil {
		log.Warn().Err(err).Int64("comment_id", created.ID).Msg("Could not refetch created comment, using create response")
		return created, nil
	}
	full, err := c.norm.Comment(raw)
	if err != nil {
		return created, nil
	}
	full.PostID = postID
	return full, nil
}

// Upload sends files in one multipart request. The result keeps the order
// of files.
func (c *Client) Upload(ctx context.Context, files ...models.Upload) ([]models.Media, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("upload: no files")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.Name))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("upload: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, fmt.Errorf("upload: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	raw, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/upload",
		body:        &buf,
		contentType: mw.FormDataContentType(),
	})
	if err != nil {
		return nil, err
	}
	media, err := c.norm.Uploads(raw)
	if err != nil {
		return nil, err
	}
	if len(media) < len(files) {
		return nil, fmt.Errorf("upload: backend stored %d of %d files", len(media), len(files))
	}
	return media, nil
}
