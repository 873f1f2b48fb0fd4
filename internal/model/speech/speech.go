package speech

import "time"

// Transcript is the recognized text of one buffered utterance.
type Transcript struct {
	SessionID string        `json:"sessionId"`
	Text      string        `json:"text"`
	Duration  time.Duration `json:"duration"`
	LogID     string        `json:"logId,omitempty"`
}

// Empty reports whether nothing was recognized.
func (t Transcript) Empty() bool {
	return t.Text == ""
}

// PCM describes the raw audio the bridge exchanges with clients.
type PCM struct {
	SampleRate int `json:"sampleRate"`
	Bits       int `json:"bits"`
	Channels   int `json:"channels"`
}

// BytesPerSecond returns the byte rate of the stream.
func (p PCM) BytesPerSecond() int {
	return p.SampleRate * p.Bits / 8 * p.Channels
}

// InputPCM is what clients stream to /response-streaming: 16 kHz mono s16le.
var InputPCM = PCM{SampleRate: 16000, Bits: 16, Channels: 1}
