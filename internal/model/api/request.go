package api

import (
	"errors"
	"strings"
)

// ErrEmptyQuery is returned when a single-shot request carries no user query.
var ErrEmptyQuery = errors.New("query is required")

// StreamingMessage is the body of POST /response-streaming/{userID}.
// MIMEType defaults to text/plain; audio/pcm payloads are base64 encoded in Message.
type StreamingMessage struct {
	Message  string `json:"message"`
	MIMEType string `json:"mime_type,omitempty"`
}

// Prompt is one role-tagged entry of a conversation history.
type Prompt struct {
	Message string `json:"message"`
	Role    string `json:"role"`
}

// QueryRequest is the body of POST /response. Either Query is set, or Request
// holds a history whose last "user" entry is the active query.
type QueryRequest struct {
	Query          string   `json:"query,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Request        []Prompt `json:"request,omitempty"`
}

// Resolve splits the request into the active query and the preceding context.
func (q QueryRequest) Resolve() (string, []Prompt, error) {
	if query := strings.TrimSpace(q.Query); query != "" {
		return query, q.Request, nil
	}

	for i := len(q.Request) - 1; i >= 0; i-- {
		entry := q.Request[i]
		if !strings.EqualFold(entry.Role, "user") {
			continue
		}
		query := strings.TrimSpace(entry.Message)
		if query == "" {
			continue
		}
		history := make([]Prompt, 0, len(q.Request)-1)
		history = append(history, q.Request[:i]...)
		history = append(history, q.Request[i+1:]...)
		return query, history, nil
	}

	return "", nil, ErrEmptyQuery
}
