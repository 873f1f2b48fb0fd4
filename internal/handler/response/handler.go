package response

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/interopae/travel-concierge/backend/internal/middleware"
	"github.com/interopae/travel-concierge/backend/internal/model/api"
	"github.com/interopae/travel-concierge/backend/internal/service/agent"
	"github.com/interopae/travel-concierge/backend/pkg/utils"
)

// Responder runs one request to completion.
type Responder interface {
	Respond(ctx context.Context, userID string, req api.QueryRequest) (*api.Reply, error)
}

// Handler serves the single-shot endpoint.
type Handler struct {
	agent Responder
	auth  func(http.Handler) http.Handler
}

// New creates a single-shot handler. auth resolves the caller identity and
// may be nil, in which case every caller is anonymous.
func New(agent Responder, auth func(http.Handler) http.Handler) *Handler {
	return &Handler{agent: agent, auth: auth}
}

// RegisterRoutes registers the single-shot route behind the auth middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.auth != nil {
			r.Use(h.auth)
		}
		r.Post("/response", h.handleResponse)
	})
}

func (h *Handler) handleResponse(w http.ResponseWriter, r *http.Request) {
	var payload api.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := middleware.UserID(r.Context())
	reply, err := h.agent.Respond(r.Context(), userID, payload)
	switch {
	case errors.Is(err, api.ErrEmptyQuery):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, agent.ErrModelUnavailable):
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		log.Printf("[response] agent failed for user=%s: %v", userID, err)
		utils.RespondError(w, http.StatusInternalServerError, "agent failed to respond")
		return
	}

	utils.RespondOK(w, reply, "Agent responded successfully")
}
