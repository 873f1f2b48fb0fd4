package api

// ReplyTypeText is the only reply type produced by the single-shot endpoint.
const ReplyTypeText = "text"

// NoResponseFallback is returned when a single-shot run yields no content.
const NoResponseFallback = "No response from agent"

// Reply is the payload of a single-shot response.
type Reply struct {
	Response string `json:"response"`
	Type     string `json:"type"`
}

// TextReply builds a text reply, substituting the fallback for empty text.
func TextReply(text string) *Reply {
	if text == "" {
		text = NoResponseFallback
	}
	return &Reply{Response: text, Type: ReplyTypeText}
}

// MessageAck is returned after a message has been queued for a live session.
const MessageAck = "Message sent successfully, wait for response stream at `GET /events/{user_id}` endpoint"
