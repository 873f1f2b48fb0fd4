package health

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/interopae/travel-concierge/backend/pkg/utils"
)

// Backends reports which agent backends are configured.
type Backends interface {
	ModelEnabled() bool
	AudioEnabled() bool
}

// Sessions counts live sessions.
type Sessions interface {
	Len() int
}

// Status is the body of a health report.
type Status struct {
	Sessions int  `json:"sessions"`
	Model    bool `json:"model"`
	Speech   bool `json:"speech"`
}

// Handler serves liveness reports.
type Handler struct {
	backends Backends
	sessions Sessions
}

// New creates a health handler.
func New(backends Backends, sessions Sessions) *Handler {
	return &Handler{backends: backends, sessions: sessions}
}

// RegisterRoutes registers the health route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := Status{
		Sessions: h.sessions.Len(),
		Model:    h.backends.ModelEnabled(),
		Speech:   h.backends.AudioEnabled(),
	}
	utils.RespondOK(w, status, "healthy")
}
