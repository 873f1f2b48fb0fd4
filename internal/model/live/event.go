package live

import "time"

// Event is one unit of agent output on a live session.
type Event struct {
	ID           string    `json:"id"`
	Author       string    `json:"author"`
	InvocationID string    `json:"invocationId,omitempty"`
	Content      *Content  `json:"content,omitempty"`
	Partial      bool      `json:"partial,omitempty"`
	TurnComplete bool      `json:"turnComplete,omitempty"`
	Interrupted  bool      `json:"interrupted,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// FirstPart returns the first content part, or nil when the event carries none.
func (e *Event) FirstPart() *Part {
	if e == nil || e.Content == nil || len(e.Content.Parts) == 0 {
		return nil
	}
	return &e.Content.Parts[0]
}

// WireMessage is the client-visible payload of one event-stream frame.
// Boundary frames set TurnComplete and Interrupted; content frames set MIMEType and Data.
type WireMessage struct {
	TurnComplete *bool  `json:"turn_complete,omitempty"`
	Interrupted  *bool  `json:"interrupted,omitempty"`
	MIMEType     string `json:"mime_type,omitempty"`
	Data         string `json:"data,omitempty"`
}

// BoundaryMessage builds a turn-boundary frame.
func BoundaryMessage(turnComplete, interrupted bool) *WireMessage {
	return &WireMessage{TurnComplete: &turnComplete, Interrupted: &interrupted}
}

// ContentMessage builds a content frame.
func ContentMessage(mimeType, data string) *WireMessage {
	return &WireMessage{MIMEType: mimeType, Data: data}
}

// IsBoundary reports whether the message marks a turn boundary.
func (m *WireMessage) IsBoundary() bool {
	return m != nil && (m.TurnComplete != nil || m.Interrupted != nil)
}
