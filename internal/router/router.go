package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"redisquery-backend/internal/handlers"
	"redisquery-backend/internal/middleware"
	"redisquery-backend/internal/websocket"
)

func New(
	sessionAuth *middleware.SessionAuth,
	createLimiter *middleware.RateLimiter,
	sendLimiter *middleware.RateLimiter,
	sessionHandler *handlers.SessionHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Both routes open a session; limited per client address.
	r.With(createLimiter.Middleware).Get("/", sessionHandler.Index)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/examples", sessionHandler.Examples)
		r.With(createLimiter.Middleware).Post("/sessions", sessionHandler.Create)

		// ──── Session Routes ────
		r.Route("/session", func(r chi.Router) {
			r.Use(sessionAuth.Middleware)
			r.Get("/", sessionHandler.Get)
			r.Put("/context", sessionHandler.UpdateContext)
			r.Put("/input", sessionHandler.SetInput)
			r.Delete("/messages", sessionHandler.Clear)
			r.Post("/example", sessionHandler.SelectExample)
			r.Post("/discover", sessionHandler.Discover)
			r.Get("/transcript", sessionHandler.Transcript)

			r.With(sendLimiter.Middleware).Post("/messages", sessionHandler.Send)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
