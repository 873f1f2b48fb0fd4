package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/interopae/travel-concierge/backend/internal/config"
	"github.com/interopae/travel-concierge/backend/internal/handler/chat"
	"github.com/interopae/travel-concierge/backend/internal/handler/health"
	"github.com/interopae/travel-concierge/backend/internal/handler/ingress"
	"github.com/interopae/travel-concierge/backend/internal/handler/response"
	"github.com/interopae/travel-concierge/backend/internal/handler/stream"
	middlewarePkg "github.com/interopae/travel-concierge/backend/internal/middleware"
	agentService "github.com/interopae/travel-concierge/backend/internal/service/agent"
	chatService "github.com/interopae/travel-concierge/backend/internal/service/chat"
	"github.com/interopae/travel-concierge/backend/internal/session"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg *config.Config, agentSvc *agentService.Service, chatSvc *chatService.Service, registry *session.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middlewarePkg.UserIDHeader},
	}).Handler)

	auth := middlewarePkg.Auth(cfg.Auth)

	health.New(agentSvc, registry).RegisterRoutes(r)
	stream.New(agentSvc, registry).RegisterRoutes(r)
	ingress.New(registry).RegisterRoutes(r)
	response.New(agentSvc, auth).RegisterRoutes(r)
	chat.New(chatSvc, auth).RegisterRoutes(r)

	return r
}
