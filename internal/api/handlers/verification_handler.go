package handlers

import (
	"net/http"

	"github.com/Mohammad2410/Sphere/internal/models"
	"github.com/Mohammad2410/Sphere/internal/verification"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// VerificationHandler drives the identity verification wizard.
type VerificationHandler struct{}

// NewVerificationHandler creates a new VerificationHandler.
func NewVerificationHandler() *VerificationHandler {
	return &VerificationHandler{}
}

// DetailsPayload updates the wizard's text fields. Absent fields are left
// as they are.
type DetailsPayload struct {
	IdentityType *models.IdentityType `json:"identityType"`
	Phone        *string              `json:"phone"`
	Address      *string              `json:"address"`
}

func (h *VerificationHandler) withWizard(w http.ResponseWriter, r *http.Request) (*verification.Wizard, bool) {
	wz, err := homeFrom(r).Verification()
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return wz, true
}

// Open starts a fresh wizard.
func (h *VerificationHandler) Open(w http.ResponseWriter, r *http.Request) {
	wz, err := homeFrom(r).OpenVerification()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wz.View())
}

// Get returns the wizard.
func (h *VerificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.withWizard(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, wz.View())
}

// Update sets the identity type, phone or address.
func (h *VerificationHandler) Update(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.withWizard(w, r)
	if !ok {
		return
	}
	var payload DetailsPayload
	if !decode(w, r, &payload) {
		return
	}

	if payload.IdentityType != nil {
		if err := wz.SetIdentityType(*payload.IdentityType); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if payload.Phone != nil {
		if err := wz.SetPhone(*payload.Phone); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if payload.Address != nil {
		if err := wz.SetAddress(*payload.Address); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, wz.View())
}

// Document attaches the front or back image from the multipart "file" field.
func (h *VerificationHandler) Document(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.withWizard(w, r)
	if !ok {
		return
	}
	side := chi.URLParam(r, "side")
	if side != "front" && side != "back" {
		http.Error(w, "Side must be front or back", http.StatusBadRequest)
		return
	}
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	img, err := formFile(r, "file")
	if err != nil || img == nil {
		http.Error(w, "A document image is required", http.StatusBadRequest)
		return
	}

	set := wz.SetBack
	if side == "front" {
		set = wz.SetFront
	}
	if err := set(img); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wz.View())
}

// Next advances when the current step is complete.
func (h *VerificationHandler) Next(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.withWizard(w, r)
	if !ok {
		return
	}
	if err := wz.Next(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wz.View())
}

// Back returns to the previous step.
func (h *VerificationHandler) Back(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.withWizard(w, r)
	if !ok {
		return
	}
	wz.Back()
	writeJSON(w, http.StatusOK, wz.View())
}

// Submit uploads the documents and marks the account pending review.
func (h *VerificationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.withWizard(w, r)
	if !ok {
		return
	}
	u, err := wz.Submit(commandContext(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.Info().Int64("user_id", u.ID).Msg("Verification submitted")
	writeJSON(w, http.StatusOK, homeFrom(r).Profile().View())
}

// Close abandons the wizard.
func (h *VerificationHandler) Close(w http.ResponseWriter, r *http.Request) {
	homeFrom(r).CloseVerification()
	w.WriteHeader(http.StatusNoContent)
}
