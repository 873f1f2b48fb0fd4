package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/interopae/travel-concierge/backend/internal/middleware"
	"github.com/interopae/travel-concierge/backend/internal/model/chat"
	chatService "github.com/interopae/travel-concierge/backend/internal/service/chat"
	"github.com/interopae/travel-concierge/backend/pkg/utils"
)

// Transcript is a saved single-shot conversation.
type Transcript struct {
	Conversation chat.Conversation `json:"conversation"`
	Messages     []chat.Message    `json:"messages"`
}

// Handler exposes the caller's saved single-shot conversations.
type Handler struct {
	chatSvc *chatService.Service
	auth    func(http.Handler) http.Handler
}

// New creates a conversation handler. auth resolves the caller identity and
// may be nil.
func New(chatSvc *chatService.Service, auth func(http.Handler) http.Handler) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		auth:    auth,
	}
}

// RegisterRoutes registers the conversation routes behind the auth middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.auth != nil {
			r.Use(h.auth)
		}
		r.Get("/conversations/{conversationID}", h.handleGetTranscript)
		r.Delete("/conversations/{conversationID}", h.handleDeleteConversation)
	})
}

func (h *Handler) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	conversationID := chi.URLParam(r, "conversationID")

	conv, err := h.chatSvc.Get(r.Context(), userID, conversationID)
	if errors.Is(err, chatService.ErrConversationNotFound) {
		utils.RespondError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	messages, err := h.chatSvc.LoadTranscript(r.Context(), userID, conv.ID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	utils.RespondOK(w, Transcript{Conversation: conv, Messages: messages}, "Conversation loaded")
}

func (h *Handler) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	conversationID := chi.URLParam(r, "conversationID")

	h.chatSvc.Delete(r.Context(), userID, conversationID)
	utils.RespondOK(w, nil, "Conversation deleted")
}
