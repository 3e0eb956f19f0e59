package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/Mohammad2410/Sphere/internal/app"
	"github.com/Mohammad2410/Sphere/internal/backend"
	"github.com/Mohammad2410/Sphere/internal/feed"
	"github.com/Mohammad2410/Sphere/internal/models"
	"github.com/Mohammad2410/Sphere/internal/profile"
	"github.com/Mohammad2410/Sphere/internal/session"
	"github.com/Mohammad2410/Sphere/internal/verification"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
)

// MaxUploadSize bounds multipart request bodies.
const MaxUploadSize = 10 << 20

type contextKey string

// homeKey is the context key for the mounted home screen.
const homeKey = contextKey("home")

// RequireHome rejects requests while nobody is signed in and hands the
// home screen to the next handler.
func RequireHome(a *app.App) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h, err := a.Home()
			if err != nil {
				http.Error(w, "Not logged in", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), homeKey, h)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func homeFrom(r *http.Request) *app.Home {
	h, _ := r.Context().Value(homeKey).(*app.Home)
	return h
}

// commandContext detaches backend writes from the client connection. The
// backend client's timeout still bounds them.
func commandContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

var errBadID = errors.New("invalid id")

func parseID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s %q", errBadID, name, chi.URLParam(r, name))
	}
	return id, nil
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := parseID(r, name)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid %s", name), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// formFile reads an optional multipart file. It returns nil when the field
// is absent.
func formFile(r *http.Request, field string) (*models.Upload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return readUpload(file, header)
}

func readUpload(file multipart.File, header *multipart.FileHeader) (*models.Upload, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &models.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// writeError maps component errors to a status and a display message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	logger := hlog.FromRequest(r)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg("Request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}
	http.Error(w, msg, status)
}

func classify(err error) (int, string) {
	var (
		validation *session.ValidationError
		authErr    *session.AuthError
		stepErr    *verification.StepError
		submitErr  *verification.SubmitError
		actionErr  *feed.ActionError
		saveErr    *profile.SaveError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity, validation.Message
	case errors.As(err, &stepErr):
		return http.StatusUnprocessableEntity, stepErr.Message
	case errors.As(err, &authErr):
		if backend.IsHTTP(authErr.Err) {
			return http.StatusUnauthorized, authErr.Message
		}
		return http.StatusBadGateway, authErr.Message
	case errors.As(err, &submitErr):
		return http.StatusBadGateway, submitErr.Message
	case errors.As(err, &actionErr):
		return http.StatusBadGateway, actionErr.Message
	case errors.As(err, &saveErr):
		return http.StatusBadGateway, saveErr.Message

	case errors.Is(err, feed.ErrEmptyComment):
		return http.StatusUnprocessableEntity, "Comment cannot be empty"
	case errors.Is(err, feed.ErrEmptyPost):
		return http.StatusUnprocessableEntity, "Write something or attach an image"
	case errors.Is(err, profile.ErrUnknownField):
		return http.StatusUnprocessableEntity, "Unknown experience field"
	case errors.Is(err, profile.ErrUnknownTab):
		return http.StatusUnprocessableEntity, "Unknown profile tab"

	case errors.Is(err, errBadID):
		return http.StatusBadRequest, "Invalid id"
	case errors.Is(err, session.ErrNoSession):
		return http.StatusUnauthorized, "Not logged in"
	case errors.Is(err, feed.ErrNotAuthor):
		return http.StatusForbidden, "You can only delete your own posts"

	case errors.Is(err, feed.ErrInFlight), errors.Is(err, profile.ErrInFlight), errors.Is(err, verification.ErrInFlight):
		return http.StatusConflict, "Already in progress"
	case errors.Is(err, profile.ErrNotEditing):
		return http.StatusConflict, "Profile is not in edit mode"
	case errors.Is(err, verification.ErrAlreadyVerified):
		return http.StatusConflict, "Your account is already verified"

	case errors.Is(err, feed.ErrUnknownPost), errors.Is(err, profile.ErrUnknownExperience),
		errors.Is(err, app.ErrNoViewer), errors.Is(err, app.ErrNoWizard), errors.Is(err, verification.ErrClosed):
		return http.StatusNotFound, "Not found"
	}
	return http.StatusInternalServerError, "Internal server error"
}
