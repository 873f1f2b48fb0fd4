package live

// Modality selects how the agent answers a live session.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityAudio Modality = "audio"
)

// Role tags who authored a content unit.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// MIME types understood by the bridge.
const (
	MIMETextPlain = "text/plain"
	MIMEAudioPCM  = "audio/pcm"
)

// Blob carries raw inline bytes tagged with a MIME type.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// Part is one fragment of a content unit. Exactly one of Text or InlineData is set.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
}

// Content is a role-tagged list of parts.
type Content struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// NewTextContent wraps text into a single-part content unit.
func NewTextContent(role Role, text string) *Content {
	return &Content{Role: role, Parts: []Part{{Text: text}}}
}

// Text concatenates every text part of the content.
func (c *Content) Text() string {
	if c == nil {
		return ""
	}
	var out string
	for _, p := range c.Parts {
		out += p.Text
	}
	return out
}

// Request is one client-originated message travelling through a session queue.
// Either Content (turn-based text) or Blob (realtime audio) is set.
type Request struct {
	Content *Content
	Blob    *Blob
}
