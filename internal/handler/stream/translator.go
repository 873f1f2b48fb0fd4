package stream

import (
	"encoding/base64"
	"strings"

	"github.com/interopae/travel-concierge/backend/internal/model/live"
)

// Translate maps one agent event to at most one wire message. The second
// result is false when the event produces nothing for the client.
func Translate(ev *live.Event) (*live.WireMessage, bool) {
	if ev == nil {
		return nil, false
	}
	if ev.TurnComplete || ev.Interrupted {
		return live.BoundaryMessage(ev.TurnComplete, ev.Interrupted), true
	}

	part := ev.FirstPart()
	if part == nil {
		return nil, false
	}

	if blob := part.InlineData; blob != nil {
		if strings.HasPrefix(blob.MIMEType, live.MIMEAudioPCM) && len(blob.Data) > 0 {
			return live.ContentMessage(live.MIMEAudioPCM, base64.StdEncoding.EncodeToString(blob.Data)), true
		}
		return nil, false
	}

	// Non-partial text repeats the streamed fragments and is not forwarded.
	if part.Text != "" && ev.Partial {
		return live.ContentMessage(live.MIMETextPlain, part.Text), true
	}
	return nil, false
}
