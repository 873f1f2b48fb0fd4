package ingress

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/interopae/travel-concierge/backend/internal/model/api"
	"github.com/interopae/travel-concierge/backend/internal/model/live"
	"github.com/interopae/travel-concierge/backend/internal/session"
	"github.com/interopae/travel-concierge/backend/pkg/utils"
)

// ErrUnsupportedMimeType is returned for payloads that are neither text nor PCM audio.
var ErrUnsupportedMimeType = errors.New("mime type not supported")

// Handler relays client messages into live sessions.
type Handler struct {
	registry *session.Registry
}

// New creates an ingress handler.
func New(registry *session.Registry) *Handler {
	return &Handler{registry: registry}
}

// RegisterRoutes registers the message ingress route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/response-streaming/{userID}", h.handleMessage)
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	queue, ok := h.registry.Lookup(userID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "Session not found")
		return
	}

	var payload api.StreamingMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := toRequest(payload)
	if errors.Is(err, ErrUnsupportedMimeType) {
		utils.RespondError(w, http.StatusBadRequest, "Mime type not supported: "+payload.MIMEType)
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := queue.Send(r.Context(), req); err != nil {
		if errors.Is(err, session.ErrQueueClosed) {
			utils.RespondError(w, http.StatusNotFound, "Session not found")
			return
		}
		log.Printf("[ingress] failed to enqueue message for user=%s: %v", userID, err)
		utils.RespondError(w, http.StatusServiceUnavailable, "failed to deliver message")
		return
	}

	logInbound(userID, req)
	utils.RespondOK(w, api.MessageAck, "Message sent successfully")
}

// toRequest converts a wire message into a queue request.
func toRequest(msg api.StreamingMessage) (live.Request, error) {
	switch msg.MIMEType {
	case "", live.MIMETextPlain:
		return live.Request{Content: live.NewTextContent(live.RoleUser, msg.Message)}, nil
	case live.MIMEAudioPCM:
		data, err := base64.StdEncoding.DecodeString(msg.Message)
		if err != nil {
			return live.Request{}, fmt.Errorf("invalid base64 audio payload: %w", err)
		}
		return live.Request{Blob: &live.Blob{MIMEType: live.MIMEAudioPCM, Data: data}}, nil
	default:
		return live.Request{}, fmt.Errorf("%w: %s", ErrUnsupportedMimeType, msg.MIMEType)
	}
}

func logInbound(userID string, req live.Request) {
	if req.Blob != nil {
		log.Printf("[CLIENT --> AGENT] user=%s audio/pcm: %d bytes", userID, len(req.Blob.Data))
		return
	}
	log.Printf("[CLIENT --> AGENT] user=%s text/plain: %s", userID, req.Content.Text())
}
