// Package verification implements the identity verification wizard: a
// four step form (documents, phone, address, review) that ends in a single
// profile update marking the account as pending review.
package verification

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/Mohammad2410/Sphere/internal/backend"
	"github.com/Mohammad2410/Sphere/internal/models"
	"github.com/rs/zerolog/log"
)

// Step is a position in the wizard.
type Step int

const (
	StepDocuments Step = iota + 1
	StepPhone
	StepAddress
	StepReview
	StepSubmitted
)

func (s Step) String() string {
	switch s {
	case StepDocuments:
		return "documents"
	case StepPhone:
		return "phone"
	case StepAddress:
		return "address"
	case StepReview:
		return "review"
	case StepSubmitted:
		return "submitted"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// MinAddressLength is the shortest trimmed address accepted.
const MinAddressLength = 10

// PendingStep is the verificationStep value written on submission.
const PendingStep = 3

var phonePattern = regexp.MustCompile(`^[+]?[1-9]\d{0,15}$`)

var (
	// ErrAlreadyVerified is returned when opening the wizard for a verified user.
	ErrAlreadyVerified = errors.New("verification: account is already verified")
	// ErrClosed is returned by actions on a wizard that was closed.
	ErrClosed = errors.New("verification: wizard is closed")
	// ErrInFlight means a submission is already running.
	ErrInFlight = errors.New("verification: submission in progress")
)

// StepError blocks a transition. The wizard data is left untouched.
type StepError struct {
	Step    Step
	Message string
}

func (e *StepError) Error() string {
	return e.Message
}

// SubmitError is a failed final submission. The wizard stays on the review
// step so it can be retried.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// API is the subset of the backend client the wizard drives.
type API interface {
	Upload(ctx context.Context, files ...models.Upload) ([]models.Media, error)
	UpdateUser(ctx context.Context, id int64, fields any) (models.User, error)
}

// Data is what the user has entered so far.
type Data struct {
	IdentityType models.IdentityType
	Front        *models.Upload
	Back         *models.Upload
	Phone        string
	Address      string
}

// Wizard is safe for concurrent use.
type Wizard struct {
	api        API
	userID     int64
	onComplete func(models.User)

	mu         sync.Mutex
	step       Step
	data       Data
	errMsg     string
	submitting bool
	closed     bool
}

// Open starts a wizard for user. onComplete receives the updated profile
// after a successful submission.
func Open(api API, user models.User, onComplete func(models.User)) (*Wizard, error) {
	if user.IsVerified {
		return nil, ErrAlreadyVerified
	}
	return &Wizard{
		api:        api,
		userID:     user.ID,
		onComplete: onComplete,
		step:       StepDocuments,
		data: Data{
			IdentityType: models.IdentityNID,
			Phone:        user.Phone,
			Address:      user.Address,
		},
	}, nil
}

// SetIdentityType picks the document kind.
func (w *Wizard) SetIdentityType(t models.IdentityType) error {
	if t != models.IdentityNID && t != models.IdentityPassport {
		return &StepError{Step: StepDocuments, Message: "Please choose a valid document type"}
	}
	return w.edit(func(d *Data) { d.IdentityType = t })
}

// SetFront attaches the front document image.
func (w *Wizard) SetFront(img *models.Upload) error {
	return w.edit(func(d *Data) { d.Front = img })
}

// SetBack attaches the back document image.
func (w *Wizard) SetBack(img *models.Upload) error {
	return w.edit(func(d *Data) { d.Back = img })
}

// SetPhone stores the phone number as typed.
func (w *Wizard) SetPhone(phone string) error {
	return w.edit(func(d *Data) { d.Phone = phone })
}

// SetAddress stores the address as typed.
func (w *Wizard) SetAddress(address string) error {
	return w.edit(func(d *Data) { d.Address = address })
}

// edit applies a change to the wizard data. The data is frozen while a
// submission runs and once the wizard is closed.
func (w *Wizard) edit(change func(d *Data)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.submitting {
		return ErrInFlight
	}
	change(&w.data)
	return nil
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Data returns a copy of the entered data.
func (w *Wizard) Data() Data {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.data
}

// Next validates the current step and moves forward one step.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.step >= StepReview {
		return nil
	}
	if err := validate(w.step, w.data); err != nil {
		w.errMsg = err.Message
		return err
	}
	w.errMsg = ""
	w.step++
	return nil
}

// Back returns to the previous step. It is a no-op on the first step.
func (w *Wizard) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.submitting || w.step <= StepDocuments || w.step == StepSubmitted {
		return
	}
	w.errMsg = ""
	w.step--
}

// Close abandons the wizard. A submission in flight still completes on the
// backend, but its result is not reported.
func (w *Wizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

// Closed reports whether the wizard was closed, by the user or by a
// successful submission.
func (w *Wizard) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func validate(step Step, d Data) *StepError {
	switch step {
	case StepDocuments:
		if d.Front == nil || d.Back == nil {
			return &StepError{Step: step, Message: "Please upload both front and back images"}
		}
	case StepPhone:
		if strings.TrimSpace(d.Phone) == "" {
			return &StepError{Step: step, Message: "Please enter your phone number"}
		}
		if !phonePattern.MatchString(stripSpace(d.Phone)) {
			return &StepError{Step: step, Message: "Please enter a valid phone number"}
		}
	case StepAddress:
		address := strings.TrimSpace(d.Address)
		if address == "" {
			return &StepError{Step: step, Message: "Please enter your complete address"}
		}
		if len([]rune(address)) < MinAddressLength {
			return &StepError{Step: step, Message: "Please provide a more detailed address"}
		}
	}
	return nil
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

type identityImages struct {
	Front int64 `json:"front"`
	Back  int64 `json:"back"`
}

type submission struct {
	IdentityType     models.IdentityType `json:"identityType"`
	IdentityImages   identityImages      `json:"identityImages"`
	Phone            string              `json:"phone"`
	Address          string              `json:"address"`
	VerificationStep int                 `json:"verificationStep"`
	IsVerified       bool                `json:"isVerified"`
	NIDStatus        string              `json:"nidStatus"`
}

// Submit uploads both document images in one request and then updates the
// profile. Any failure keeps the wizard on the review step.
func (w *Wizard) Submit(ctx context.Context) (models.User, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return models.User{}, ErrClosed
	}
	if w.step != StepReview {
		w.mu.Unlock()
		return models.User{}, &StepError{Step: w.step, Message: "Please complete all steps before submitting"}
	}
	if w.submitting {
		w.mu.Unlock()
		return models.User{}, ErrInFlight
	}
	for s := StepDocuments; s < StepReview; s++ {
		if err := validate(s, w.data); err != nil {
			w.errMsg = err.Message
			w.mu.Unlock()
			return models.User{}, err
		}
	}
	w.submitting = true
	w.errMsg = ""
	data := w.data
	w.mu.Unlock()

	user, err := w.submit(ctx, data)

	w.mu.Lock()
	w.submitting = false
	if err != nil {
		var serr *SubmitError
		if errors.As(err, &serr) {
			w.errMsg = serr.Message
		}
		w.mu.Unlock()
		return models.User{}, err
	}
	report := !w.closed
	w.step = StepSubmitted
	w.closed = true
	w.mu.Unlock()

	if report && w.onComplete != nil {
		w.onComplete(user)
	}
	return user, nil
}

func (w *Wizard) submit(ctx context.Context, d Data) (models.User, error) {
	uploaded, err := w.api.Upload(ctx, *d.Front, *d.Back)
	if err != nil {
		log.Error().Err(err).Int64("user_id", w.userID).Msg("Failed to upload identity documents")
		return models.User{}, &SubmitError{Message: "Failed to upload images", Err: err}
	}

	body := submission{
		IdentityType:     d.IdentityType,
		IdentityImages:   identityImages{Front: uploaded[0].ID, Back: uploaded[1].ID},
		Phone:            stripSpace(d.Phone),
		Address:          strings.TrimSpace(d.Address),
		VerificationStep: PendingStep,
		IsVerified:       false,
		NIDStatus:        "pending",
	}
	user, err := w.api.UpdateUser(ctx, w.userID, body)
	if err != nil {
		msg := "Network error. Please try again."
		if backend.IsHTTP(err) {
			msg = backend.MessageOf(err, "Verification submission failed")
		}
		log.Error().Err(err).Int64("user_id", w.userID).Msg("Failed to submit verification")
		return models.User{}, &SubmitError{Message: msg, Err: err}
	}

	log.Info().Int64("user_id", w.userID).Str("identity_type", string(d.IdentityType)).Msg("Verification submitted")
	return user, nil
}

// View is the wizard as rendered.
type View struct {
	Step         int                 `json:"step"`
	StepName     string              `json:"stepName"`
	IdentityType models.IdentityType `json:"identityType"`
	FrontName    string              `json:"frontImage,omitempty"`
	BackName     string              `json:"backImage,omitempty"`
	Phone        string              `json:"phone"`
	Address      string              `json:"address"`
	Submitting   bool                `json:"submitting"`
	Error        string              `json:"error,omitempty"`
	Closed       bool                `json:"closed"`
}

// View snapshots the wizard for rendering.
func (w *Wizard) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	v := View{
		Step:         int(w.step),
		StepName:     w.step.String(),
		IdentityType: w.data.IdentityType,
		Phone:        w.data.Phone,
		Address:      w.data.Address,
		Submitting:   w.submitting,
		Error:        w.errMsg,
		Closed:       w.closed,
	}
	if w.data.Front != nil {
		v.FrontName = w.data.Front.Name
	}
	if w.data.Back != nil {
		v.BackName = w.data.Back.Name
	}
	return v
}
