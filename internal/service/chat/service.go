package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/interopae/travel-concierge/backend/internal/model/chat"
)

var (
	ErrUserRequired         = errors.New("user id is required")
	ErrConversationNotFound = errors.New("conversation not found")
)

type key struct {
	userID         string
	conversationID string
}

// Service keeps conversation state in memory, keyed by (user, conversation).
// Nothing survives a restart.
type Service struct {
	appName string

	mu            sync.RWMutex
	conversations map[key]chat.Conversation
	messages      map[key][]chat.Message
}

// NewService creates an empty store whose conversations are stamped with appName.
func NewService(appName string) *Service {
	return &Service{
		appName:       appName,
		conversations: make(map[key]chat.Conversation),
		messages:      make(map[key][]chat.Message),
	}
}

// GetOrCreate returns the conversation for the pair, creating it on first use.
// An empty conversationID selects the user's default conversation. User ids
// are opaque and used exactly as given.
func (s *Service) GetOrCreate(_ context.Context, userID, conversationID string) (chat.Conversation, bool, error) {
	if userID == "" {
		return chat.Conversation{}, false, ErrUserRequired
	}
	k := key{userID: userID, conversationID: normalizeConversationID(conversationID)}

	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.conversations[k]; ok {
		return conv, false, nil
	}

	now := time.Now().UTC()
	conv := chat.Conversation{
		ID:        k.conversationID,
		UserID:    userID,
		AppName:   s.appName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[k] = conv
	s.messages[k] = make([]chat.Message, 0, 16)
	return conv, true, nil
}

// SaveMessage appends a message to the conversation history.
func (s *Service) SaveMessage(_ context.Context, userID string, message chat.Message) error {
	k := key{userID: userID, conversationID: normalizeConversationID(message.ConversationID)}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[k]
	if !ok {
		return ErrConversationNotFound
	}

	message.ID = uuid.NewString()
	message.ConversationID = k.conversationID
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	s.messages[k] = append(s.messages[k], message)
	conv.UpdatedAt = message.CreatedAt
	s.conversations[k] = conv
	return nil
}

// Get returns the conversation for the pair.
func (s *Service) Get(_ context.Context, userID, conversationID string) (chat.Conversation, error) {
	k := key{userID: userID, conversationID: normalizeConversationID(conversationID)}

	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[k]
	if !ok {
		return chat.Conversation{}, ErrConversationNotFound
	}
	return conv, nil
}

// LoadTranscript returns a copy of the stored messages, oldest first.
func (s *Service) LoadTranscript(_ context.Context, userID, conversationID string) ([]chat.Message, error) {
	k := key{userID: userID, conversationID: normalizeConversationID(conversationID)}

	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[k]
	if !ok {
		return nil, ErrConversationNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// Delete drops a conversation and its history. Missing conversations are ignored.
func (s *Service) Delete(_ context.Context, userID, conversationID string) {
	k := key{userID: userID, conversationID: normalizeConversationID(conversationID)}

	s.mu.Lock()
	delete(s.conversations, k)
	delete(s.messages, k)
	s.mu.Unlock()
}

// Len reports how many conversations are held.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

func normalizeConversationID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return chat.DefaultConversationID
	}
	return id
}

// NewConversationID returns a fresh identifier for a throwaway conversation.
func NewConversationID() string {
	return uuid.NewString()
}
