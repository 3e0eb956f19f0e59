// Package profile contains the signed-in user's profile editor and the
// read-only viewer for other users' profiles.
package profile

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/Mohammad2410/Sphere/internal/backend"
	"github.com/Mohammad2410/Sphere/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	MsgUpdated             = "Profile updated successfully!"
	MsgVerificationSent    = "Verification submitted successfully! Your account will be reviewed."
	msgUpdateFailed        = "Update failed. Please try again."
	msgNetwork             = "Network error. Please check your connection and try again."
	msgPictureUploadFailed = "Failed to upload profile picture"
)

var (
	// ErrNotEditing is returned by form changes outside edit mode.
	ErrNotEditing = errors.New("profile: not in edit mode")
	// ErrInFlight means a save is already running.
	ErrInFlight = errors.New("profile: save in progress")
	// ErrUnknownExperience is returned for an experience id not in the form.
	ErrUnknownExperience = errors.New("profile: unknown experience entry")
	// ErrUnknownField is returned by UpdateExperience for a field it does not know.
	ErrUnknownField = errors.New("profile: unknown experience field")
)

// SaveError is a failed save, with a message fit for display.
type SaveError struct {
	Message string
	Err     error
}

func (e *SaveError) Error() string {
	return e.Message + ": " + e.Err.Error()
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// EditorAPI is the subset of the backend client the editor drives.
type EditorAPI interface {
	Upload(ctx context.Context, files ...models.Upload) ([]models.Media, error)
	UpdateUser(ctx context.Context, id int64, fields any) (models.User, error)
}

// Form holds the editable profile fields.
type Form struct {
	Username    string              `json:"username"`
	Email       string              `json:"email"`
	FirstName   string              `json:"firstName"`
	LastName    string              `json:"lastName"`
	Bio         string              `json:"bio"`
	SocialMedia models.SocialMedia  `json:"socialMedia"`
	Skills      []string            `json:"skills"`
	Experience  []models.Experience `json:"experience"`
}

// FormFrom copies a user's editable fields.
func FormFrom(u models.User) Form {
	f := Form{
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Bio:         u.Bio,
		SocialMedia: u.SocialMedia,
		Skills:      slices.Clone(u.Skills),
		Experience:  slices.Clone(u.Experience),
	}
	if f.Skills == nil {
		f.Skills = []string{}
	}
	if f.Experience == nil {
		f.Experience = []models.Experience{}
	}
	return f
}

type update struct {
	Form
	ProfilePicture int64 `json:"profilePicture,omitempty"`
}

// Editor is the signed-in user's profile page. It is safe for concurrent use.
type Editor struct {
	api      EditorAPI
	onUpdate func(models.User)
	newID    func() string

	mu      sync.Mutex
	user    models.User
	editing bool
	form    Form
	picture *models.Upload
	saving  bool
	message string
	errMsg  string
}

// NewEditor creates an editor for user. onUpdate receives the saved profile.
func NewEditor(api EditorAPI, user models.User, onUpdate func(models.User)) *Editor {
	return &Editor{
		api:      api,
		onUpdate: onUpdate,
		newID:    uuid.NewString,
		user:     user,
		form:     FormFrom(user),
	}
}

// SetUser replaces the profile shown, e.g. after verification. An open
// edit session keeps its form.
func (e *Editor) SetUser(u models.User) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.user = u
	if !e.editing {
		e.form = FormFrom(u)
	}
}

// VerificationSubmitted records a completed verification wizard.
func (e *Editor) VerificationSubmitted(u models.User) {
	e.SetUser(u)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.message = MsgVerificationSent
	e.errMsg = ""
}

// Edit switches to edit mode.
func (e *Editor) Edit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.editing = true
	e.message = ""
	e.errMsg = ""
}

// Cancel leaves edit mode and restores the form from the profile.
func (e *Editor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.editing = false
	e.form = FormFrom(e.user)
	e.picture = nil
	e.message = ""
	e.errMsg = ""
}

// Form returns a copy of the form.
func (e *Editor) Form() Form {
	e.mu.Lock()
	defer e.mu.Unlock()
	f := e.form
	f.Skills = slices.Clone(e.form.Skills)
	f.Experience = slices.Clone(e.form.Experience)
	return f
}

// SetFields replaces the scalar fields and social links of the form. Skills
// and experience have their own operations. Name, username and email stay
// as they are once the account is verified.
func (e *Editor) SetFields(f Form) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.editing {
		return ErrNotEditing
	}
	if e.user.CanEditRestrictedFields() {
		e.form.Username = f.Username
		e.form.Email = f.Email
		e.form.FirstName = f.FirstName
		e.form.LastName = f.LastName
	}
	e.form.Bio = f.Bio
	e.form.SocialMedia = f.SocialMedia
	return nil
}

// AddSkill appends a trimmed skill. Blank and duplicate skills are ignored.
func (e *Editor) AddSkill(skill string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.editing {
		return ErrNotEditing
	}
	skill = strings.TrimSpace(skill)
	if skill == "" || slices.Contains(e.form.Skills, skill) {
		return nil
	}
	e.form.Skills = append(e.form.Skills, skill)
	return nil
}

// RemoveSkill drops a skill.
func (e *Editor) RemoveSkill(skill string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.editing {
		return ErrNotEditing
	}
	e.form.Skills = slices.DeleteFunc(e.form.Skills, func(s string) bool { return s == skill })
	return nil
}

// AddExperience appends a blank experience entry and returns its id.
func (e *Editor) AddExperience() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.editing {
		return "", ErrNotEditing
	}
	id := e.newID()
	e.form.Experience = append(e.form.Experience, models.Experience{ID: id})
	return id, nil
}

// UpdateExperience sets one field of an experience entry. field is the
// JSON name: company, position, startDate, endDate or description.
func (e *Editor) UpdateExperience(id, field, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.editing {
		return ErrNotEditing
	}
	i := slices.IndexFunc(e.form.Experience, func(x models.Experience) bool { return x.ID == id })
	if i < 0 {
		return ErrUnknownExperience
	}
	exp := &e.form.Experience[i]
	switch field {
	case "company":
		exp.Company = value
	case "position":
		exp.Position = value
	case "startDate":
		exp.StartDate = value
	case "endDate":
		exp.EndDate = value
	case "description":
		exp.Description = value
	default:
		return ErrUnknownField
	}
	return nil
}

// RemoveExperience drops an experience entry.
func (e *Editor) RemoveExperience(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.editing {
		return ErrNotEditing
	}
	e.form.Experience = slices.DeleteFunc(e.form.Experience, func(x models.Experience) bool { return x.ID == id })
	return nil
}

// SetPicture stages a new profile picture; nil clears it.
func (e *Editor) SetPicture(img *models.Upload) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.editing {
		return ErrNotEditing
	}
	e.picture = img
	return nil
}

// Save uploads a staged picture, then sends the form. On success the editor
// leaves edit mode and onUpdate receives the saved profile; on failure the
// form is kept for another try.
func (e *Editor) Save(ctx context.Context) (models.User, error) {
	e.mu.Lock()
	if !e.editing {
		e.mu.Unlock()
		return models.User{}, ErrNotEditing
	}
	if e.saving {
		e.mu.Unlock()
		return models.User{}, ErrInFlight
	}
	e.saving = true
	e.message = ""
	e.errMsg = ""
	userID := e.user.ID
	body := update{Form: e.form}
	body.Skills = slices.Clone(e.form.Skills)
	body.Experience = slices.Clone(e.form.Experience)
	picture := e.picture
	e.mu.Unlock()

	user, msg, err := e.save(ctx, userID, body, picture)

	e.mu.Lock()
	e.saving = false
	if err != nil {
		e.errMsg = msg
		e.mu.Unlock()
		return models.User{}, &SaveError{Message: msg, Err: err}
	}
	e.user = user
	e.form = FormFrom(user)
	e.editing = false
	e.picture = nil
	e.message = MsgUpdated
	e.mu.Unlock()

	if e.onUpdate != nil {
		e.onUpdate(user)
	}
	return user, nil
}

func (e *Editor) save(ctx context.Context, userID int64, body update, picture *models.Upload) (models.User, string, error) {
	if picture != nil {
		uploaded, err := e.api.Upload(ctx, *picture)
		if err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("Failed to upload profile picture")
			return models.User{}, msgPictureUploadFailed, err
		}
		body.ProfilePicture = uploaded[0].ID
	}

	user, err := e.api.UpdateUser(ctx, userID, body)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to update profile")
		if !backend.IsHTTP(err) {
			return models.User{}, msgNetwork, err
		}
		return models.User{}, backend.MessageOf(err, msgUpdateFailed), err
	}
	log.Info().Int64("user_id", userID).Msg("Profile updated")
	return user, "", nil
}

// EditorView is the profile page as rendered.
type EditorView struct {
	User                    models.User `json:"user"`
	Editing                 bool        `json:"editing"`
	Form                    Form        `json:"form"`
	PictureName             string      `json:"pictureName,omitempty"`
	Saving                  bool        `json:"saving"`
	Message                 string      `json:"message,omitempty"`
	Error                   string      `json:"error,omitempty"`
	VerificationStatus      string      `json:"verificationStatus"`
	CanEditRestrictedFields bool        `json:"canEditRestrictedFields"`
	CanVerify               bool        `json:"canVerify"`
}

// View snapshots the editor for rendering.
func (e *Editor) View() EditorView {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := EditorView{
		User:                    e.user,
		Editing:                 e.editing,
		Form:                    e.form,
		Saving:                  e.saving,
		Message:                 e.message,
		Error:                   e.errMsg,
		VerificationStatus:      e.user.VerificationStatus().LongLabel(),
		CanEditRestrictedFields: e.user.CanEditRestrictedFields(),
		CanVerify:               !e.user.IsVerified,
	}
	v.Form.Skills = slices.Clone(e.form.Skills)
	v.Form.Experience = slices.Clone(e.form.Experience)
	if e.picture != nil {
		v.PictureName = e.picture.Name
	}
	return v
}
