package api

import (
	"net/http"
	"time"

	"github.com/Mohammad2410/Sphere/internal/api/handlers"
	"github.com/Mohammad2410/Sphere/internal/app"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// NewRouter creates and configures a new Chi router.
func NewRouter(a *app.App, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request served")
	}))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(a)
	feedHandler := handlers.NewFeedHandler()
	userFeedHandler := handlers.NewUserFeedHandler()
	presenceHandler := handlers.NewPresenceHandler()
	profileHandler := handlers.NewProfileHandler()
	usersHandler := handlers.NewUsersHandler()
	verificationHandler := handlers.NewVerificationHandler()

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/view", sessionHandler.View)
		r.Post("/view/login", sessionHandler.ShowLogin)
		r.Post("/view/register", sessionHandler.ShowRegister)

		r.Route("/session", func(r chi.Router) {
			r.Post("/login", sessionHandler.Login)
			r.Post("/register", sessionHandler.Register)
			r.Post("/logout", sessionHandler.Logout)
		})

		// Everything below needs a signed-in user
		r.Group(func(r chi.Router) {
			r.Use(handlers.RequireHome(a))

			r.Get("/home", presenceHandler.Home)
			r.Get("/active-users", presenceHandler.List)

			r.Route("/feed", func(r chi.Router) {
				r.Get("/", feedHandler.Get)
				r.Post("/refresh", feedHandler.Refresh)
				r.Post("/posts", feedHandler.CreatePost)
				r.Route("/posts/{postID}", postRoutes(feedHandler))
			})

			r.Route("/profile", func(r chi.Router) {
				r.Get("/", profileHandler.Get)
				r.Put("/", profileHandler.Update)
				r.Post("/close", profileHandler.Close)
				r.Post("/edit", profileHandler.Edit)
				r.Post("/cancel", profileHandler.Cancel)
				r.Post("/save", profileHandler.Save)
				r.Post("/picture", profileHandler.SetPicture)
				r.Post("/skills", profileHandler.AddSkill)
				r.Delete("/skills/{skill}", profileHandler.RemoveSkill)
				r.Post("/experience", profileHandler.AddExperience)
				r.Patch("/experience/{expID}", profileHandler.UpdateExperience)
				r.Delete("/experience/{expID}", profileHandler.RemoveExperience)
			})

			r.Route("/users/{id}", func(r chi.Router) {
				r.Get("/", usersHandler.Get)
				r.Delete("/", usersHandler.Close)
				r.Post("/open", usersHandler.Open)
				r.Put("/tab", usersHandler.SetTab)
				r.Route("/posts/{postID}", postRoutes(userFeedHandler))
			})

			r.Route("/verification", func(r chi.Router) {
				r.Get("/", verificationHandler.Get)
				r.Put("/", verificationHandler.Update)
				r.Post("/open", verificationHandler.Open)
				r.Post("/documents/{side}", verificationHandler.Document)
				r.Post("/next", verificationHandler.Next)
				r.Post("/back", verificationHandler.Back)
				r.Post("/submit", verificationHandler.Submit)
				r.Post("/close", verificationHandler.Close)
			})
		})
	})

	return r
}

// postRoutes mounts the per-post actions shared by every feed.
func postRoutes(h *handlers.FeedHandler) func(r chi.Router) {
	return func(r chi.Router) {
		r.Delete("/", h.DeletePost)
		r.Post("/like", h.ToggleLike)
		r.Post("/comments/toggle", h.ToggleComments)
		r.Put("/comments/draft", h.SetDraft)
		r.Post("/comments", h.AddComment)
	}
}
