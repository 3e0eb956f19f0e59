package handlers

import (
	"net/http"

	"github.com/Mohammad2410/Sphere/internal/profile"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ProfileHandler serves the signed-in user's own profile page.
type ProfileHandler struct{}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler() *ProfileHandler {
	return &ProfileHandler{}
}

// SkillPayload names one skill.
type SkillPayload struct {
	Skill string `json:"skill"`
}

// ExperiencePayload sets one field of an experience entry.
type ExperiencePayload struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func editorOf(r *http.Request) *profile.Editor {
	return homeFrom(r).Profile()
}

// Get returns the profile page.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	homeFrom(r).OpenProfile()
	writeJSON(w, http.StatusOK, editorOf(r).View())
}

// Close hides the profile page, dropping unsaved edits.
func (h *ProfileHandler) Close(w http.ResponseWriter, r *http.Request) {
	homeFrom(r).CloseProfile()
	w.WriteHeader(http.StatusNoContent)
}

// Edit enters edit mode.
func (h *ProfileHandler) Edit(w http.ResponseWriter, r *http.Request) {
	ed := editorOf(r)
	ed.Edit()
	writeJSON(w, http.StatusOK, ed.View())
}

// Cancel leaves edit mode and restores the saved profile.
func (h *ProfileHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ed := editorOf(r)
	ed.Cancel()
	writeJSON(w, http.StatusOK, ed.View())
}

// Update replaces the form fields.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	ed := editorOf(r)
	form := ed.Form()
	if !decode(w, r, &form) {
		return
	}
	if err := ed.SetFields(form); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ed.View())
}

// AddSkill appends a skill.
func (h *ProfileHandler) AddSkill(w http.ResponseWriter, r *http.Request) {
	var payload SkillPayload
	if !decode(w, r, &payload) {
		return
	}
	ed := editorOf(r)
	if err := ed.AddSkill(payload.Skill); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ed.View())
}

// RemoveSkill removes the skill named in the path.
func (h *ProfileHandler) RemoveSkill(w http.ResponseWriter, r *http.Request) {
	ed := editorOf(r)
	if err := ed.RemoveSkill(chi.URLParam(r, "skill")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ed.View())
}

// AddExperience appends an empty experience entry.
func (h *ProfileHandler) AddExperience(w http.ResponseWriter, r *http.Request) {
	ed := editorOf(r)
	id, err := ed.AddExperience()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// UpdateExperience sets one field of an experience entry.
func (h *ProfileHandler) UpdateExperience(w http.ResponseWriter, r *http.Request) {
	var payload ExperiencePayload
	if !decode(w, r, &payload) {
		return
	}
	ed := editorOf(r)
	if err := ed.UpdateExperience(chi.URLParam(r, "expID"), payload.Field, payload.Value); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ed.View())
}

// RemoveExperience removes an experience entry.
func (h *ProfileHandler) RemoveExperience(w http.ResponseWriter, r *http.Request) {
	ed := editorOf(r)
	if err := ed.RemoveExperience(chi.URLParam(r, "expID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ed.View())
}

// SetPicture stages a new profile picture from the multipart "file" field.
func (h *ProfileHandler) SetPicture(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	img, err := formFile(r, "file")
	if err != nil || img == nil {
		http.Error(w, "A picture file is required", http.StatusBadRequest)
		return
	}
	ed := editorOf(r)
	if err := ed.SetPicture(img); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ed.View())
}

// Save persists the form.
func (h *ProfileHandler) Save(w http.ResponseWriter, r *http.Request) {
	ed := editorOf(r)
	u, err := ed.Save(commandContext(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.Info().Int64("user_id", u.ID).Msg("Profile saved")
	writeJSON(w, http.StatusOK, ed.View())
}
