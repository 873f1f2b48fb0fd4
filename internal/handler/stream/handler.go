package stream

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	"github.com/interopae/travel-concierge/backend/internal/model/live"
	"github.com/interopae/travel-concierge/backend/internal/service/agent"
	"github.com/interopae/travel-concierge/backend/internal/session"
	"github.com/interopae/travel-concierge/backend/pkg/utils"
)

// Starter starts live agent sessions.
type Starter interface {
	StartSession(ctx context.Context, userID string, modality live.Modality) (*schema.StreamReader[*live.Event], *session.Queue, error)
}

// Handler serves the per-user event stream.
type Handler struct {
	agent    Starter
	registry *session.Registry
}

// New creates a stream handler.
func New(agent Starter, registry *session.Registry) *Handler {
	return &Handler{
		agent:    agent,
		registry: registry,
	}
}

// RegisterRoutes registers the event stream route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/events/{userID}", h.handleEvents)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		utils.RespondError(w, http.StatusBadRequest, "user id is required")
		return
	}

	modality, err := parseModality(r.URL.Query().Get("is_audio"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid is_audio value")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, queue, err := h.agent.StartSession(r.Context(), userID, modality)
	if err != nil {
		log.Printf("[stream] failed to start session for user=%s: %v", userID, err)
		utils.RespondError(w, startStatus(err), err.Error())
		return
	}

	if prev := h.registry.Register(userID, queue); prev != nil {
		log.Printf("[stream] replacing live session for user=%s", userID)
		prev.Close()
	}
	log.Printf("[stream] client connected: user=%s modality=%s", userID, modality)

	stopWatch := context.AfterFunc(r.Context(), queue.Close)
	defer func() {
		stopWatch()
		queue.Close()
		h.registry.Release(userID, queue)
		events.Close()
		log.Printf("[stream] client disconnected: user=%s", userID)
	}()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		ev, err := events.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			log.Printf("[stream] event stream failed for user=%s: %v", userID, err)
			if sendErr := utils.SendSSEError(w, flusher, err.Error()); sendErr != nil {
				log.Printf("[stream] failed to report error to user=%s: %v", userID, sendErr)
			}
			return
		}

		msg, ok := Translate(ev)
		if !ok {
			continue
		}
		if err := utils.SendSSEChunk(w, flusher, msg); err != nil {
			log.Printf("[stream] write to user=%s failed: %v", userID, err)
			return
		}
		logOutbound(userID, msg)
	}
}

func parseModality(raw string) (live.Modality, error) {
	if raw == "" {
		return live.ModalityText, nil
	}
	isAudio, err := strconv.ParseBool(raw)
	if err != nil {
		return "", err
	}
	if isAudio {
		return live.ModalityAudio, nil
	}
	return live.ModalityText, nil
}

func startStatus(err error) int {
	switch {
	case errors.Is(err, agent.ErrModelUnavailable), errors.Is(err, agent.ErrAudioUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, agent.ErrUnknownModality):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func logOutbound(userID string, msg *live.WireMessage) {
	switch {
	case msg.IsBoundary():
		log.Printf("[AGENT --> CLIENT] user=%s turn_complete=%t interrupted=%t", userID, *msg.TurnComplete, *msg.Interrupted)
	case msg.MIMEType == live.MIMEAudioPCM:
		log.Printf("[AGENT --> CLIENT] user=%s audio/pcm: %d base64 chars", userID, len(msg.Data))
	default:
		log.Printf("[AGENT --> CLIENT] user=%s text/plain: %s", userID, msg.Data)
	}
}
