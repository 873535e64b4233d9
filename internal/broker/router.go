package broker

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/brainmap/realtime/internal/auth"
	"github.com/brainmap/realtime/internal/middleware"
	"github.com/brainmap/realtime/pkg/response"
)

// Router holds all handlers and creates the chi router
type Router struct {
	notifHandler *NotificationHandler
	wsHandler    *WSHandler
	jwtManager   *auth.JWTManager
	logger       *zap.Logger
}

// NewRouter creates a new router
func NewRouter(
	notifHandler *NotificationHandler,
	wsHandler *WSHandler,
	jwtManager *auth.JWTManager,
	logger *zap.Logger,
) *Router {
	return &Router{
		notifHandler: notifHandler,
		wsHandler:    wsHandler,
		jwtManager:   jwtManager,
		logger:       logger,
	}
}

// Setup configures and returns the chi router
func (rt *Router) Setup() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RecoveryMiddleware(rt.logger))
	r.Use(middleware.LoggingMiddleware(rt.logger))
	r.Use(middleware.CORSMiddleware())
	r.Use(chimiddleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		response.OK(w, map[string]string{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	// the websocket endpoint validates its own bearer token since browser
	// clients cannot always set headers on the upgrade request
	r.Get("/ws", rt.wsHandler.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(rt.jwtManager))

			r.Get("/notifications", rt.notifHandler.GetNotifications)
			r.Post("/notifications", rt.notifHandler.Publish)
			r.Put("/notifications/{id}/read", rt.notifHandler.MarkRead)
			r.Put("/project-requests/{id}", rt.notifHandler.Respond)
		})
	})

	return r
}
