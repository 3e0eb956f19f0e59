package normalize

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/Mohammad2410/Sphere/internal/models"
)

// Flat records are what Strapi v5 returns: relations inline, media as
// {id,url}. Upload results are the only place media is decoded strictly.

type flatMedia struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

type flatAuthor struct {
	ID             num       `json:"id"`
	Username       text      `json:"username"`
	FirstName      text      `json:"firstName"`
	LastName       text      `json:"lastName"`
	ProfilePicture *mediaRef `json:"profilePicture"`
	Avatar         *mediaRef `json:"avatar"`
}

type flatPost struct {
	ID        num              `json:"id"`
	Content   text             `json:"content"`
	Image     *mediaRef        `json:"image"`
	Author    soft[flatAuthor] `json:"author"`
	Likes     num              `json:"likes"`
	Comments  num              `json:"comments"`
	IsLiked   flag             `json:"isLiked"`
	CreatedAt text             `json:"createdAt"`
	UpdatedAt text             `json:"updatedAt"`
}

type flatComment struct {
	ID      num              `json:"id"`
	Content text             `json:"content"`
	Author  soft[flatAuthor] `json:"author"`
	Post    soft[struct {
		ID num `json:"id"`
	}] `json:"post"`
	CreatedAt text `json:"createdAt"`
}

// userFields are the scalar profile fields, identical in both shapes.
type userFields struct {
	Username           text                      `json:"username"`
	Email              text                      `json:"email"`
	FirstName          text                      `json:"firstName"`
	LastName           text                      `json:"lastName"`
	Bio                text                      `json:"bio"`
	Phone              text                      `json:"phone"`
	Address            text                      `json:"address"`
	SocialMedia        soft[models.SocialMedia]  `json:"socialMedia"`
	Skills             soft[[]string]            `json:"skills"`
	Experience         soft[[]models.Experience] `json:"experience"`
	IsVerified         flag                      `json:"isVerified"`
	VerificationStep   num                       `json:"verificationStep"`
	IdentityType       text                      `json:"identityType"`
	NIDStatus          text                      `json:"nidStatus"`
	IsProfileCompleted flag                      `json:"isProfileCompleted"`
	CreatedAt          text                      `json:"createdAt"`
	UpdatedAt          text                      `json:"updatedAt"`
}

// identityRefs holds the document images. The wizard stores bare upload
// ids; a populating backend answers media objects.
type identityRefs struct {
	Front *mediaRef `json:"front"`
	Back  *mediaRef `json:"back"`
}

type flatUser struct {
	ID num `json:"id"`
	userFields
	ProfilePicture *mediaRef           `json:"profilePicture"`
	Avatar         *mediaRef           `json:"avatar"`
	IdentityImages soft[identityRefs] `json:"identityImages"`
}

// Envelope records are the Strapi v4 shape: {id, attributes:{...}} with
// every relation wrapped in {data: ...}. Media relations decode through
// mediaRef, which understands the wrapper.

type entry[T any] struct {
	ID         num `json:"id"`
	Attributes T   `json:"attributes"`
}

type relation[T any] struct {
	Data *entry[T] `json:"data"`
}

type authorAttrs struct {
	Username       text      `json:"username"`
	FirstName      text      `json:"firstName"`
	LastName       text      `json:"lastName"`
	ProfilePicture *mediaRef `json:"profilePicture"`
	Avatar         *mediaRef `json:"avatar"`
}

type postAttrs struct {
	Content   text                        `json:"content"`
	Image     *mediaRef                   `json:"image"`
	Author    soft[relation[authorAttrs]] `json:"author"`
	Likes     num                         `json:"likes"`
	Comments  num                         `json:"comments"`
	IsLiked   flag                        `json:"isLiked"`
	CreatedAt text                        `json:"createdAt"`
	UpdatedAt text                        `json:"updatedAt"`
}

type commentAttrs struct {
	Content   text                        `json:"content"`
	Author    soft[relation[authorAttrs]] `json:"author"`
	Post      soft[relation[struct{}]]    `json:"post"`
	CreatedAt text                        `json:"createdAt"`
}

type userAttrs struct {
	userFields
	ProfilePicture *mediaRef           `json:"profilePicture"`
	Avatar         *mediaRef           `json:"avatar"`
	IdentityImages soft[identityRefs] `json:"identityImages"`
}

// isEnvelope reports whether a single record uses the attributes shape.
func isEnvelope(raw json.RawMessage) bool {
	var head struct {
		Attributes json.RawMessage `json:"attributes"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return false
	}
	return len(head.Attributes) > 0 && !bytes.Equal(head.Attributes, []byte("null"))
}

// unwrapData strips a top-level {data: record, meta: ...} response wrapper.
// Records that carry their own id are never unwrapped.
func unwrapData(raw json.RawMessage) json.RawMessage {
	var head struct {
		ID   json.RawMessage `json:"id"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return raw
	}
	if len(head.ID) == 0 && len(head.Data) > 0 && !bytes.Equal(head.Data, []byte("null")) {
		return head.Data
	}
	return raw
}

// listItems splits a list payload, either a bare array or {data:[...]}.
func listItems(raw json.RawMessage) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '[' {
		raw = unwrapData(raw)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func parseTime(s text) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, string(s))
	if err != nil {
		return time.Time{}
	}
	return t
}
