package models

import "time"

// IdentityType is the kind of document submitted for verification.
type IdentityType string

const (
	IdentityNID      IdentityType = "nid"
	IdentityPassport IdentityType = "passport"
)

// SocialMedia holds a user's public profile links.
type SocialMedia struct {
	Facebook  string `json:"facebook"`
	Twitter   string `json:"twitter"`
	LinkedIn  string `json:"linkedin"`
	Instagram string `json:"instagram"`
}

// Experience is one entry of a user's work history.
type Experience struct {
	ID          string `json:"id"`
	Company     string `json:"company"`
	Position    string `json:"position"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate,omitempty"`
	Description string `json:"description,omitempty"`
}

// IdentityImages references the two sides of an identity document.
type IdentityImages struct {
	Front *Media `json:"front,omitempty"`
	Back  *Media `json:"back,omitempty"`
}

// User represents an account profile as served by the backend.
type User struct {
	ID                 int64          `json:"id"`
	Username           string         `json:"username"`
	Email              string         `json:"email"`
	FirstName          string         `json:"firstName"`
	LastName           string         `json:"lastName"`
	Bio                string         `json:"bio"`
	Phone              string         `json:"phone"`
	Address            string         `json:"address"`
	SocialMedia        SocialMedia    `json:"socialMedia"`
	Skills             []string       `json:"skills"`
	Experience         []Experience   `json:"experience"`
	IsVerified         bool           `json:"isVerified"`
	VerificationStep   int            `json:"verificationStep"`
	IdentityType       IdentityType   `json:"identityType,omitempty"`
	IdentityImages     IdentityImages `json:"identityImages"`
	NIDStatus          string         `json:"nidStatus,omitempty"` // "pending", "approved" or "rejected"
	IsProfileCompleted bool           `json:"isProfileCompleted"`
	ProfilePicture     *Media         `json:"profilePicture,omitempty"`
	Avatar             *Media         `json:"avatar,omitempty"`
	AvatarURL          string         `json:"avatarUrl"` // Resolved, never empty
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// DisplayName prefers the real name and falls back to the username.
func (u User) DisplayName() string {
	return displayName(u.FirstName, u.LastName, u.Username)
}

// Summary returns the denormalized form embedded in posts and comments.
func (u User) Summary() Author {
	return Author{
		ID:             u.ID,
		Username:       u.Username,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		ProfilePicture: u.ProfilePicture,
		Avatar:         u.Avatar,
		AvatarURL:      u.AvatarURL,
	}
}

// VerificationStatus reports where the user is in identity verification.
func (u User) VerificationStatus() VerificationStatus {
	switch {
	case u.IsVerified:
		return StatusVerified
	case u.VerificationStep > 0:
		return StatusPending
	default:
		return StatusUnverified
	}
}

// CanEditRestrictedFields is false once the account has been verified.
func (u User) CanEditRestrictedFields() bool {
	return !u.IsVerified
}

// VerificationStatus is the display state derived from a user's
// verification fields.
type VerificationStatus int

const (
	StatusUnverified VerificationStatus = iota
	StatusPending
	StatusVerified
)

// Label is the short badge text used in headers and other users' profiles.
func (s VerificationStatus) Label() string {
	switch s {
	case StatusVerified:
		return "Verified"
	case StatusPending:
		return "Pending"
	default:
		return "Unverified"
	}
}

// LongLabel is the wording used on the user's own profile page.
func (s VerificationStatus) LongLabel() string {
	switch s {
	case StatusVerified:
		return "Verified"
	case StatusPending:
		return "Verification in Progress"
	default:
		return "Not Verified"
	}
}

func (s VerificationStatus) String() string {
	return s.Label()
}

func displayName(first, last, username string) string {
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	default:
		return username
	}
}
