// Package media turns the backend's media references into URLs a browser
// can render.
package media

import (
	"encoding/json"
	"strings"
)

// DefaultPlaceholder is served when a reference carries no usable URL.
const DefaultPlaceholder = "/placeholder.png"

// Resolver resolves media references against the backend origin.
type Resolver struct {
	base        string
	placeholder string
}

// NewResolver creates a Resolver. An empty placeholder selects
// DefaultPlaceholder.
func NewResolver(baseURL, placeholder string) *Resolver {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	return &Resolver{
		base:        strings.TrimRight(baseURL, "/"),
		placeholder: placeholder,
	}
}

// Placeholder returns the fallback asset path.
func (r *Resolver) Placeholder() string {
	return r.placeholder
}

// URL makes a backend URL absolute, or returns the placeholder when empty.
func (r *Resolver) URL(raw string) string {
	if raw == "" {
		return r.placeholder
	}
	return r.absolute(raw)
}

// Absolute is URL without the placeholder fallback: empty stays empty.
func (r *Resolver) Absolute(raw string) string {
	if raw == "" {
		return ""
	}
	return r.absolute(raw)
}

func (r *Resolver) absolute(raw string) string {
	switch {
	case strings.HasPrefix(raw, "/uploads/"):
		return r.base + raw
	case strings.HasPrefix(raw, "http"):
		return raw
	case strings.HasPrefix(raw, "/"):
		return r.base + raw
	default:
		return r.base + "/" + raw
	}
}

// Resolve accepts any of the reference shapes the backend produces: a bare
// string, {url}, {attributes:{url}} or {data:{attributes:{url}}}.
func (r *Resolver) Resolve(ref json.RawMessage) string {
	return r.URL(ExtractURL(ref))
}

// ExtractURL pulls the raw URL out of a media reference without resolving
// it. Unknown shapes yield "".
func ExtractURL(ref json.RawMessage) string {
	if len(ref) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(ref, &s); err == nil {
		return s
	}

	var shape struct {
		URL        string `json:"url"`
		Attributes *struct {
			URL string `json:"url"`
		} `json:"attributes"`
		Data *struct {
			Attributes *struct {
				URL string `json:"url"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(ref, &shape); err != nil {
		return ""
	}

	switch {
	case shape.URL != "":
		return shape.URL
	case shape.Data != nil && shape.Data.Attributes != nil && shape.Data.Attributes.URL != "":
		return shape.Data.Attributes.URL
	case shape.Attributes != nil:
		return shape.Attributes.URL
	}
	return ""
}

// AvatarURL picks the profile picture first, then the avatar, and falls
// back to the placeholder.
func (r *Resolver) AvatarURL(profilePicture, avatar string) string {
	if profilePicture != "" {
		return r.URL(profilePicture)
	}
	return r.URL(avatar)
}
