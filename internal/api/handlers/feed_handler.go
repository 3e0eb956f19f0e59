package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Mohammad2410/Sphere/internal/feed"
)

// FeedHandler serves a post feed. The same handler backs the home feed and
// the posts tab of another user's profile.
type FeedHandler struct {
	feedOf func(r *http.Request) (*feed.Feed, error)
}

// NewFeedHandler creates a FeedHandler for the home feed.
func NewFeedHandler() *FeedHandler {
	return &FeedHandler{feedOf: func(r *http.Request) (*feed.Feed, error) {
		return homeFrom(r).Feed(), nil
	}}
}

// NewUserFeedHandler creates a FeedHandler for the posts of the open user
// profile named by the {id} path parameter.
func NewUserFeedHandler() *FeedHandler {
	return &FeedHandler{feedOf: func(r *http.Request) (*feed.Feed, error) {
		v, err := openViewer(r)
		if err != nil {
			return nil, err
		}
		return v.Feed(), nil
	}}
}

// CommentPayload carries comment text.
type CommentPayload struct {
	Content *string `json:"content"`
}

func (h *FeedHandler) withFeed(w http.ResponseWriter, r *http.Request) (*feed.Feed, bool) {
	f, err := h.feedOf(r)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return f, true
}

// Get returns the feed.
func (h *FeedHandler) Get(w http.ResponseWriter, r *http.Request) {
	f, ok := h.withFeed(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, f.View())
}

// Refresh reloads the feed from the backend.
func (h *FeedHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	f, ok := h.withFeed(w, r)
	if !ok {
		return
	}
	f.Refresh(r.Context())
	writeJSON(w, http.StatusOK, f.View())
}

// CreatePost publishes a post from a multipart form with a "content" field
// and an optional "image" file.
func (h *FeedHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	f, ok := h.withFeed(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	image, err := formFile(r, "image")
	if err != nil {
		http.Error(w, "Invalid image", http.StatusBadRequest)
		return
	}

	c := f.Composer()
	c.SetContent(r.FormValue("content"))
	c.Attach(image)
	post, err := c.Submit(commandContext(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// DeletePost removes one of the viewer's posts.
func (h *FeedHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	f, ok := h.withFeed(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "postID")
	if !ok {
		return
	}
	if err := f.DeletePost(commandContext(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleLike flips the viewer's like on a post.
func (h *FeedHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	f, ok := h.withFeed(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "postID")
	if !ok {
		return
	}
	if err := f.ToggleLike(commandContext(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.writePost(w, r, f, id)
}

// ToggleComments expands or collapses a post's comment thread.
func (h *FeedHandler) ToggleComments(w http.ResponseWriter, r *http.Request) {
	f, ok := h.withFeed(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "postID")
	if !ok {
		return
	}
	if err := f.ToggleComments(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.writePost(w, r, f, id)
}

// SetDraft stores the unsent comment text of a post.
func (h *FeedHandler) SetDraft(w http.ResponseWriter, r *http.Request) {
	f, ok := h.withFeed(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "postID")
	if !ok {
		return
	}
	var payload CommentPayload
	if !decode(w, r, &payload) {
		return
	}
	text := ""
	if payload.Content != nil {
		text = *payload.Content
	}
	if err := f.SetDraft(id, text); err != nil {
		writeError(w, r, err)
		return
	}
	h.writePost(w, r, f, id)
}

// AddComment sends the post's draft. A body with "content" replaces the
// draft first.
func (h *FeedHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	f, ok := h.withFeed(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "postID")
	if !ok {
		return
	}
	var payload CommentPayload
	if err := decodeOptional(r, &payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if payload.Content != nil {
		if err := f.SetDraft(id, *payload.Content); err != nil {
			writeError(w, r, err)
			return
		}
	}

	comment, err := f.AddComment(commandContext(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (h *FeedHandler) writePost(w http.ResponseWriter, r *http.Request, f *feed.Feed, id int64) {
	for _, p := range f.View().Posts {
		if p.ID == id {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	writeError(w, r, feed.ErrUnknownPost)
}

// decodeOptional decodes a JSON body, accepting an empty one.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
