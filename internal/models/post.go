package models

import "time"

// Media is an uploaded file reference. URL is absolute once normalized.
type Media struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

// Author is the user summary embedded in posts and comments.
type Author struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	ProfilePicture *Media `json:"profilePicture,omitempty"`
	Avatar         *Media `json:"avatar,omitempty"`
	AvatarURL      string `json:"avatarUrl"`
}

// DisplayName prefers the real name and falls back to the username.
func (a Author) DisplayName() string {
	return displayName(a.FirstName, a.LastName, a.Username)
}

// Post is a feed entry.
type Post struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Image     *Media    `json:"image,omitempty"`
	Author    Author    `json:"author"`
	Likes     int       `json:"likes"`
	Comments  int       `json:"comments"`
	IsLiked   bool      `json:"isLiked"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Comment belongs to exactly one post; PostID is zero when the backend
// did not include the relation.
type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"postId,omitempty"`
	Content   string    `json:"content"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Upload is a file picked by the user that has not been sent yet.
type Upload struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
}
