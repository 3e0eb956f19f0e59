package verification

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Mohammad2410/Sphere/internal/backend"
	"github.com/Mohammad2410/Sphere/internal/backend/backendtest"
	"github.com/Mohammad2410/Sphere/internal/media"
	"github.com/Mohammad2410/Sphere/internal/models"
	"github.com/Mohammad2410/Sphere/internal/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func image(name string) *models.Upload {
	return &models.Upload{Name: name, ContentType: "image/jpeg", Data: []byte(name)}
}

type fixture struct {
	srv       *backendtest.Server
	wizard    *Wizard
	userID    int64
	completed []models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := backendtest.New(t)
	id, token := srv.SeedUser("al", "a@b.com", "secret1", nil)
	client := backend.New(srv.URL, backendtest.Prefix, normalize.New(media.NewResolver(srv.URL, "")), backend.WithToken(token))

	f := &fixture{srv: srv, userID: id}
	w, err := Open(client, models.User{ID: id}, func(u models.User) { f.completed = append(f.completed, u) })
	require.NoError(t, err)
	f.wizard = w
	return f
}

// toReview fills every step with valid data and advances to the review step.
func (f *fixture) toReview(t *testing.T) {
	t.Helper()
	require.NoError(t, f.wizard.SetFront(image("front.jpg")))
	require.NoError(t, f.wizard.SetBack(image("back.jpg")))
	require.NoError(t, f.wizard.Next())
	require.NoError(t, f.wizard.SetPhone("+1 555 0100"))
	require.NoError(t, f.wizard.Next())
	require.NoError(t, f.wizard.SetAddress("  221B Baker Street, London  "))
	require.NoError(t, f.wizard.Next())
	require.Equal(t, StepReview, f.wizard.Step())
}

func TestOpen_AlreadyVerified(t *testing.T) {
	_, err := Open(nil, models.User{ID: 1, IsVerified: true}, nil)
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestOpen_Prefills(t *testing.T) {
	w, err := Open(nil, models.User{ID: 1, Phone: "123", Address: "somewhere"}, nil)
	require.NoError(t, err)
	d := w.Data()
	assert.Equal(t, models.IdentityNID, d.IdentityType)
	assert.Equal(t, "123", d.Phone)
	assert.Equal(t, StepDocuments, w.Step())
}

func TestNext_Guards(t *testing.T) {
	tests := []struct {
		name  string
		setup func(w *Wizard)
		step  Step
		msg   string
	}{
		{"no documents", func(w *Wizard) {}, StepDocuments, "Please upload both front and back images"},
		{"only front", func(w *Wizard) { w.SetFront(image("f")) }, StepDocuments, "Please upload both front and back images"},
		{"blank phone", func(w *Wizard) {
			w.SetFront(image("f"))
			w.SetBack(image("b"))
			w.Next()
			w.SetPhone("   ")
		}, StepPhone, "Please enter your phone number"},
		{"bad phone", func(w *Wizard) {
			w.SetFront(image("f"))
			w.SetBack(image("b"))
			w.Next()
			w.SetPhone("notaphone")
		}, StepPhone, "Please enter a valid phone number"},
		{"leading zero", func(w *Wizard) {
			w.SetFront(image("f"))
			w.SetBack(image("b"))
			w.Next()
			w.SetPhone("0123")
		}, StepPhone, "Please enter a valid phone number"},
		{"blank address", func(w *Wizard) {
			w.SetFront(image("f"))
			w.SetBack(image("b"))
			w.Next()
			w.SetPhone("5550100")
			w.Next()
		}, StepAddress, "Please enter your complete address"},
		{"short address", func(w *Wizard) {
			w.SetFront(image("f"))
			w.SetBack(image("b"))
			w.Next()
			w.SetPhone("5550100")
			w.Next()
			w.SetAddress("  Main St  ")
		}, StepAddress, "Please provide a more detailed address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := Open(nil, models.User{ID: 1}, nil)
			require.NoError(t, err)
			tt.setup(w)
			before := w.Data()

			err = w.Next()
			var serr *StepError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tt.msg, serr.Message)
			assert.Equal(t, tt.step, w.Step())
			assert.Equal(t, before, w.Data(), "a blocked transition leaves the data alone")
			assert.Equal(t, tt.msg, w.View().Error)
		})
	}
}

func TestPhoneAtStepTwoIsRejected(t *testing.T) {
	f := newFixture(t)
	f.wizard.SetFront(image("front.jpg"))
	f.wizard.SetBack(image("back.jpg"))
	require.NoError(t, f.wizard.Next())

	f.wizard.SetPhone("notaphone")
	err := f.wizard.Next()
	require.Error(t, err)
	assert.Equal(t, "Please enter a valid phone number", err.Error())
	assert.Equal(t, StepPhone, f.wizard.Step())
	assert.Equal(t, 2, f.wizard.View().Step)
	assert.Empty(t, f.srv.Calls())
}

func TestPhoneWhitespaceIsStripped(t *testing.T) {
	w, err := Open(nil, models.User{ID: 1}, nil)
	require.NoError(t, err)
	w.SetFront(image("f"))
	w.SetBack(image("b"))
	require.NoError(t, w.Next())
	w.SetPhone(" +44 20 7946 0958 ")
	assert.NoError(t, w.Next())
}

func TestBack(t *testing.T) {
	f := newFixture(t)
	f.wizard.Back()
	assert.Equal(t, StepDocuments, f.wizard.Step())

	f.toReview(t)
	f.wizard.Back()
	assert.Equal(t, StepAddress, f.wizard.Step())
	f.wizard.Back()
	f.wizard.Back()
	assert.Equal(t, StepDocuments, f.wizard.Step())
	assert.Equal(t, "221B Baker Street, London", strings.TrimSpace(f.wizard.Data().Address))
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.wizard.SetIdentityType(models.IdentityPassport))
	f.toReview(t)

	user, err := f.wizard.Submit(context.Background())
	require.NoError(t, err)

	uploads := f.srv.CallsTo(http.MethodPost, "/upload")
	require.Len(t, uploads, 1, "both images go in one request")
	puts := f.srv.CallsTo(http.MethodPut, "/users/"+strconv.FormatInt(f.userID, 10))
	require.Len(t, puts, 1)

	var body map[string]any
	require.NoError(t, json.Unmarshal(puts[0].Body, &body))
	assert.Equal(t, "passport", body["identityType"])
	assert.Equal(t, "+15550100", body["phone"])
	assert.Equal(t, "221B Baker Street, London", body["address"])
	assert.EqualValues(t, 3, body["verificationStep"])
	assert.Equal(t, false, body["isVerified"])
	assert.Equal(t, "pending", body["nidStatus"])
	imgs := body["identityImages"].(map[string]any)
	assert.NotZero(t, imgs["front"])
	assert.NotZero(t, imgs["back"])
	assert.NotEqual(t, imgs["front"], imgs["back"])

	assert.Equal(t, 3, user.VerificationStep)
	assert.Equal(t, models.StatusPending, user.VerificationStatus())
	require.NotNil(t, user.IdentityImages.Front)
	assert.EqualValues(t, imgs["front"], user.IdentityImages.Front.ID, "stored ids are echoed back")
	require.NotNil(t, user.IdentityImages.Back)
	assert.EqualValues(t, imgs["back"], user.IdentityImages.Back.ID)

	require.Len(t, f.completed, 1)
	assert.Equal(t, f.userID, f.completed[0].ID)
	assert.True(t, f.wizard.Closed())
	assert.Equal(t, StepSubmitted, f.wizard.Step())
}

func TestSubmit_UploadFailureStaysOnReview(t *testing.T) {
	f := newFixture(t)
	f.toReview(t)
	f.srv.Fail(http.MethodPost, "/upload", http.StatusInternalServerError, "disk full")

	_, err := f.wizard.Submit(context.Background())
	var serr *SubmitError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "Failed to upload images", serr.Message)
	assert.Equal(t, StepReview, f.wizard.Step())
	assert.False(t, f.wizard.Closed())
	assert.Empty(t, f.srv.CallsTo(http.MethodPut, "/users/"+strconv.FormatInt(f.userID, 10)))
	assert.Empty(t, f.completed)

	f.srv.Restore(http.MethodPost, "/upload")
	_, err = f.wizard.Submit(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.completed, 1)
}

func TestSubmit_UpdateFailureUsesBackendMessage(t *testing.T) {
	f := newFixture(t)
	f.toReview(t)
	f.srv.Fail(http.MethodPut, "/users/{id}", http.StatusBadRequest, "Phone already in use")

	_, err := f.wizard.Submit(context.Background())
	var serr *SubmitError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "Phone already in use", serr.Message)
	assert.Equal(t, StepReview, f.wizard.Step())
	assert.Equal(t, "Phone already in use", f.wizard.View().Error)
}

func TestSubmit_NetworkFailure(t *testing.T) {
	f := newFixture(t)
	f.toReview(t)
	f.srv.Override(http.MethodPut, "/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			return
		}
		conn, _, _ := hj.Hijack()
		conn.Close()
	})

	_, err := f.wizard.Submit(context.Background())
	var serr *SubmitError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "Network error. Please try again.", serr.Message)
	assert.Equal(t, StepReview, f.wizard.Step())
}

func TestSubmit_BeforeReview(t *testing.T) {
	f := newFixture(t)
	_, err := f.wizard.Submit(context.Background())
	var serr *StepError
	require.ErrorAs(t, err, &serr)
	assert.Empty(t, f.srv.Calls())
}

func TestSetIdentityType_Rejects(t *testing.T) {
	w, err := Open(nil, models.User{ID: 1}, nil)
	require.NoError(t, err)
	assert.Error(t, w.SetIdentityType("driver_license"))
	assert.Equal(t, models.IdentityNID, w.Data().IdentityType)
}

func TestSubmit_PopulatedIdentityImages(t *testing.T) {
	f := newFixture(t)
	f.srv.PopulateIdentityImages()
	f.toReview(t)

	user, err := f.wizard.Submit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, user.IdentityImages.Front)
	assert.Contains(t, user.IdentityImages.Front.URL, "front.jpg")
	require.NotNil(t, user.IdentityImages.Back)
	assert.Contains(t, user.IdentityImages.Back.URL, "back.jpg")
}

func TestEdits_FrozenWhileSubmitting(t *testing.T) {
	f := newFixture(t)
	f.toReview(t)

	release := make(chan struct{})
	f.srv.Override(http.MethodPost, "/upload", func(w http.ResponseWriter, r *http.Request) {
		<-release
		http.Error(w, `{"error":{"message":"down"}}`, http.StatusInternalServerError)
	})

	done := make(chan error, 1)
	go func() {
		_, err := f.wizard.Submit(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return f.wizard.View().Submitting }, 2*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, f.wizard.SetPhone("+15550199"), ErrInFlight)
	assert.ErrorIs(t, f.wizard.SetAddress("10 Downing Street, London"), ErrInFlight)
	assert.ErrorIs(t, f.wizard.SetFront(image("other.jpg")), ErrInFlight)
	assert.ErrorIs(t, f.wizard.SetIdentityType(models.IdentityPassport), ErrInFlight)

	close(release)
	require.Error(t, <-done)

	d := f.wizard.Data()
	assert.Equal(t, "+1 555 0100", d.Phone)
	assert.Equal(t, "front.jpg", d.Front.Name)
	assert.Equal(t, models.IdentityNID, d.IdentityType)
	assert.NoError(t, f.wizard.SetPhone("+15550199"))
}

func TestEdits_RejectedAfterClose(t *testing.T) {
	f := newFixture(t)
	f.wizard.Close()

	assert.ErrorIs(t, f.wizard.SetAddress("10 Downing Street, London"), ErrClosed)
	assert.ErrorIs(t, f.wizard.SetBack(image("b")), ErrClosed)
	assert.Empty(t, f.wizard.Data().Address)
}
