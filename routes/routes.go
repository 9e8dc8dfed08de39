package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Dosada05/tennis-tournament/handlers"
	"github.com/Dosada05/tennis-tournament/middleware"
	"github.com/Dosada05/tennis-tournament/models"
)

// Handlers groups everything the router dispatches to.
type Handlers struct {
	Auth      *handlers.AuthHandler
	Users     *handlers.UserHandler
	Matches   *handlers.MatchHandler
	WebSocket *handlers.WebSocketHandler
}

type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
	Logger         *slog.Logger
}

func SetupRoutes(h Handlers, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.Logging(opts.Logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(opts.JWTSecret)
	adminOnly := middleware.Authorize(models.RoleAdmin)

	r.Get("/healthz", handlers.Healthz)
	r.Get("/swagger/doc.json", handlers.SwaggerDoc)
	r.Get("/swagger/*", handlers.SwaggerUI())

	r.Route("/auth", func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(15 * time.Second))
		r.Post("/signup", h.Auth.SignUp)
		r.Post("/signin", h.Auth.SignIn)
	})

	r.With(authenticate).Get("/ws/notifications", h.WebSocket.ServeNotifications)

	r.Route("/users", func(r chi.Router) {
		r.Use(authenticate)

		r.Get("/me", h.Users.GetCurrentUser)
		r.Put("/{id}/credentials", h.Users.UpdateCredentials)
		r.Post("/{id}/registration", h.Users.RequestRegistration)
		r.Delete("/{id}/registration", h.Users.QuitTournament)

		r.Group(func(r chi.Router) {
			r.Use(adminOnly)

			r.Get("/", h.Users.ListUsers)
			r.Post("/", h.Users.CreateUser)
			r.Get("/filter", h.Users.FilterUsers)
			r.Get("/{id}", h.Users.GetUserByID)
			r.Put("/{id}", h.Users.UpdateUser)
			r.Delete("/{id}", h.Users.DeleteUser)
			r.Post("/{id}/registration/accept", h.Users.AcceptRegistration)
			r.Post("/{id}/registration/reject", h.Users.RejectRegistration)
		})
	})

	r.Route("/matches", func(r chi.Router) {
		r.Get("/", h.Matches.ListMatches)
		r.Get("/{id}", h.Matches.GetMatch)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Get("/export", h.Matches.ExportMatches)
			r.With(middleware.Authorize(models.RoleReferee, models.RoleAdmin)).Put("/{id}/score", h.Matches.UpdateScore)

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)

				r.Post("/", h.Matches.CreateMatch)
				r.Put("/{id}", h.Matches.UpdateMatch)
				r.Delete("/{id}", h.Matches.DeleteMatch)
				r.Post("/{id}/players", h.Matches.RegisterPlayer)
				r.Post("/export/archive", h.Matches.ArchiveExport)
			})
		})
	})

	r.Get("/referees/{id}/matches", h.Matches.ListMatchesByReferee)

	return r
}
