package chat

import "time"

// DefaultConversationID names the conversation used when a caller does not pick one.
const DefaultConversationID = "default"

// Conversation is the saved agent state for one (user, conversation) pair.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	AppName   string    `json:"appName"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
