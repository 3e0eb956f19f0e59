// Package normalize maps the backend's response shapes onto the canonical
// records in internal/models. Every mapping is a pure function of its
// input; missing fields become zero values instead of errors.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Mohammad2410/Sphere/internal/media"
	"github.com/Mohammad2410/Sphere/internal/models"
	"github.com/rs/zerolog/log"
)

// UnknownUsername labels content whose author relation was not populated.
const UnknownUsername = "Unknown User"

// ErrMissingID is returned for records without a usable id.
var ErrMissingID = errors.New("normalize: record has no id")

// Normalizer converts raw payloads using a media resolver for URLs.
type Normalizer struct {
	media *media.Resolver
}

// New creates a Normalizer.
func New(resolver *media.Resolver) *Normalizer {
	return &Normalizer{media: resolver}
}

// Post normalizes one post record, optionally wrapped in {data: ...}.
func (n *Normalizer) Post(raw json.RawMessage) (models.Post, error) {
	raw = unwrapData(raw)

	var (
		post models.Post
		err  error
	)
	if isEnvelope(raw) {
		var e entry[postAttrs]
		if err = json.Unmarshal(raw, &e); err == nil {
			post = n.envelopePost(e)
		}
	} else {
		var f flatPost
		if err = json.Unmarshal(raw, &f); err == nil {
			post = n.flatPost(f)
		}
	}
	if err != nil {
		return models.Post{}, fmt.Errorf("decode post: %w", err)
	}
	if post.ID == 0 {
		return models.Post{}, ErrMissingID
	}
	return post, nil
}

// Posts normalizes a post list. Records that cannot be decoded or have no
// id are skipped.
func (n *Normalizer) Posts(raw json.RawMessage) []models.Post {
	items, err := listItems(raw)
	if err != nil {
		log.Warn().Err(err).Msg("Post list payload is not a list")
		return []models.Post{}
	}
	posts := make([]models.Post, 0, len(items))
	for _, item := range items {
		p, err := n.Post(item)
		if err != nil {
			log.Warn().Err(err).Msg("Skipping unreadable post")
			continue
		}
		posts = append(posts, p)
	}
	return posts
}

// Comment normalizes one comment record, optionally wrapped in {data: ...}.
func (n *Normalizer) Comment(raw json.RawMessage) (models.Comment, error) {
	raw = unwrapData(raw)

	var (
		c   models.Comment
		err error
	)
	if isEnvelope(raw) {
		var e entry[commentAttrs]
		if err = json.Unmarshal(raw, &e); err == nil {
			c = n.envelopeComment(e)
		}
	} else {
		var f flatComment
		if err = json.Unmarshal(raw, &f); err == nil {
			c = n.flatComment(f)
		}
	}
	if err != nil {
		return models.Comment{}, fmt.Errorf("decode comment: %w", err)
	}
	if c.ID == 0 {
		return models.Comment{}, ErrMissingID
	}
	return c, nil
}

// Comments normalizes a comment list, skipping unusable records.
func (n *Normalizer) Comments(raw json.RawMessage) []models.Comment {
	items, err := listItems(raw)
	if err != nil {
		log.Warn().Err(err).Msg("Comment list payload is not a list")
		return []models.Comment{}
	}
	comments := make([]models.Comment, 0, len(items))
	for _, item := range items {
		c, err := n.Comment(item)
		if err != nil {
			log.Warn().Err(err).Msg("Skipping unreadable comment")
			continue
		}
		comments = append(comments, c)
	}
	return comments
}

// User normalizes a user record. The users endpoints answer flat objects,
// but envelopes are accepted too.
func (n *Normalizer) User(raw json.RawMessage) (models.User, error) {
	raw = unwrapData(raw)

	var (
		u   models.User
		err error
	)
	if isEnvelope(raw) {
		var e entry[userAttrs]
		if err = json.Unmarshal(raw, &e); err == nil {
			u = n.envelopeUser(e)
		}
	} else {
		var f flatUser
		if err = json.Unmarshal(raw, &f); err == nil {
			u = n.flatUser(f)
		}
	}
	if err != nil {
		return models.User{}, fmt.Errorf("decode user: %w", err)
	}
	if u.ID == 0 {
		return models.User{}, ErrMissingID
	}
	return u, nil
}

// Users normalizes a user list, skipping unusable records.
func (n *Normalizer) Users(raw json.RawMessage) []models.User {
	items, err := listItems(raw)
	if err != nil {
		log.Warn().Err(err).Msg("User list payload is not a list")
		return []models.User{}
	}
	users := make([]models.User, 0, len(items))
	for _, item := range items {
		u, err := n.User(item)
		if err != nil {
			log.Warn().Err(err).Msg("Skipping unreadable user")
			continue
		}
		users = append(users, u)
	}
	return users
}

// Uploads normalizes the upload endpoint's [{id,url,...}] answer.
func (n *Normalizer) Uploads(raw json.RawMessage) ([]models.Media, error) {
	items, err := listItems(raw)
	if err != nil {
		return nil, fmt.Errorf("decode upload result: %w", err)
	}
	out := make([]models.Media, 0, len(items))
	for _, item := range items {
		var f flatMedia
		if err := json.Unmarshal(item, &f); err != nil {
			return nil, fmt.Errorf("decode upload result: %w", err)
		}
		if f.ID == 0 {
			return nil, ErrMissingID
		}
		out = append(out, models.Media{ID: f.ID, URL: n.media.Absolute(f.URL)})
	}
	return out, nil
}

// Flat shape.

func (n *Normalizer) ref(m *mediaRef) *models.Media {
	if m.empty() {
		return nil
	}
	return &models.Media{ID: m.ID, URL: n.media.Absolute(m.URL)}
}

func (n *Normalizer) identityImages(r soft[identityRefs]) models.IdentityImages {
	if !r.OK {
		return models.IdentityImages{}
	}
	return models.IdentityImages{Front: n.ref(r.V.Front), Back: n.ref(r.V.Back)}
}

func (n *Normalizer) flatAuthor(a soft[flatAuthor]) models.Author {
	if !a.OK {
		return n.author(models.Author{})
	}
	return n.author(models.Author{
		ID:             int64(a.V.ID),
		Username:       string(a.V.Username),
		FirstName:      string(a.V.FirstName),
		LastName:       string(a.V.LastName),
		ProfilePicture: n.ref(a.V.ProfilePicture),
		Avatar:         n.ref(a.V.Avatar),
	})
}

func (n *Normalizer) flatPost(f flatPost) models.Post {
	return models.Post{
		ID:        int64(f.ID),
		Content:   string(f.Content),
		Image:     n.ref(f.Image),
		Author:    n.flatAuthor(f.Author),
		Likes:     int(f.Likes),
		Comments:  int(f.Comments),
		IsLiked:   bool(f.IsLiked),
		CreatedAt: parseTime(f.CreatedAt),
		UpdatedAt: parseTime(f.UpdatedAt),
	}
}

func (n *Normalizer) flatComment(f flatComment) models.Comment {
	c := models.Comment{
		ID:        int64(f.ID),
		Content:   string(f.Content),
		Author:    n.flatAuthor(f.Author),
		CreatedAt: parseTime(f.CreatedAt),
	}
	if f.Post.OK {
		c.PostID = int64(f.Post.V.ID)
	}
	return c
}

func (n *Normalizer) flatUser(f flatUser) models.User {
	u := n.userFromFields(int64(f.ID), f.userFields)
	u.ProfilePicture = n.ref(f.ProfilePicture)
	u.Avatar = n.ref(f.Avatar)
	u.IdentityImages = n.identityImages(f.IdentityImages)
	u.AvatarURL = avatarURL(n.media, u.ProfilePicture, u.Avatar)
	return u
}

// Envelope shape.

func (n *Normalizer) envelopeAuthor(r soft[relation[authorAttrs]]) models.Author {
	if !r.OK || r.V.Data == nil {
		return n.author(models.Author{})
	}
	a := r.V.Data.Attributes
	return n.author(models.Author{
		ID:             int64(r.V.Data.ID),
		Username:       string(a.Username),
		FirstName:      string(a.FirstName),
		LastName:       string(a.LastName),
		ProfilePicture: n.ref(a.ProfilePicture),
		Avatar:         n.ref(a.Avatar),
	})
}

func (n *Normalizer) envelopePost(e entry[postAttrs]) models.Post {
	a := e.Attributes
	return models.Post{
		ID:        int64(e.ID),
		Content:   string(a.Content),
		Image:     n.ref(a.Image),
		Author:    n.envelopeAuthor(a.Author),
		Likes:     int(a.Likes),
		Comments:  int(a.Comments),
		IsLiked:   bool(a.IsLiked),
		CreatedAt: parseTime(a.CreatedAt),
		UpdatedAt: parseTime(a.UpdatedAt),
	}
}

func (n *Normalizer) envelopeComment(e entry[commentAttrs]) models.Comment {
	a := e.Attributes
	c := models.Comment{
		ID:        int64(e.ID),
		Content:   string(a.Content),
		Author:    n.envelopeAuthor(a.Author),
		CreatedAt: parseTime(a.CreatedAt),
	}
	if a.Post.OK && a.Post.V.Data != nil {
		c.PostID = int64(a.Post.V.Data.ID)
	}
	return c
}

func (n *Normalizer) envelopeUser(e entry[userAttrs]) models.User {
	a := e.Attributes
	u := n.userFromFields(int64(e.ID), a.userFields)
	u.ProfilePicture = n.ref(a.ProfilePicture)
	u.Avatar = n.ref(a.Avatar)
	u.IdentityImages = n.identityImages(a.IdentityImages)
	u.AvatarURL = avatarURL(n.media, u.ProfilePicture, u.Avatar)
	return u
}

// Shared.

func (n *Normalizer) author(a models.Author) models.Author {
	if a.Username == "" {
		a.Username = UnknownUsername
	}
	a.AvatarURL = avatarURL(n.media, a.ProfilePicture, a.Avatar)
	return a
}

func (n *Normalizer) userFromFields(id int64, f userFields) models.User {
	u := models.User{
		ID:                 id,
		Username:           string(f.Username),
		Email:              string(f.Email),
		FirstName:          string(f.FirstName),
		LastName:           string(f.LastName),
		Bio:                string(f.Bio),
		Phone:              string(f.Phone),
		Address:            string(f.Address),
		SocialMedia:        f.SocialMedia.V,
		Skills:             f.Skills.V,
		Experience:         f.Experience.V,
		IsVerified:         bool(f.IsVerified),
		VerificationStep:   int(f.VerificationStep),
		IdentityType:       models.IdentityType(f.IdentityType),
		NIDStatus:          string(f.NIDStatus),
		IsProfileCompleted: bool(f.IsProfileCompleted),
		CreatedAt:          parseTime(f.CreatedAt),
		UpdatedAt:          parseTime(f.UpdatedAt),
	}
	if u.Skills == nil {
		u.Skills = []string{}
	}
	if u.Experience == nil {
		u.Experience = []models.Experience{}
	}
	return u
}

func avatarURL(r *media.Resolver, profilePicture, avatar *models.Media) string {
	var pp, av string
	if profilePicture != nil {
		pp = profilePicture.URL
	}
	if avatar != nil {
		av = avatar.URL
	}
	return r.AvatarURL(pp, av)
}
