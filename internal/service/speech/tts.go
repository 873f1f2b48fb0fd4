package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/interopae/travel-concierge/backend/internal/config"
)

// ErrEmptyAudio is returned when synthesis finishes without audio.
var ErrEmptyAudio = errors.New("tts returned no audio")

const (
	ttsDefaultResource = "volc.service_type.10029"
	ttsMegaResource    = "volc.megatts.default"
	ttsSeedResource    = "seed-tts-2.0"
)

type ttsRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string         `json:"speaker"`
		Text        string         `json:"text"`
		AudioParams ttsAudioParams `json:"audio_params"`
		Additions   string         `json:"additions,omitempty"`
		Language    string         `json:"language,omitempty"`
	} `json:"req_params"`
}

type ttsAudioParams struct {
	Format      string  `json:"format"`
	SampleRate  int     `json:"sample_rate"`
	SpeedRatio  float32 `json:"speed_ratio,omitempty"`
	VolumeRatio float32 `json:"volume_ratio,omitempty"`
}

type ttsServerMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
}

// Synthesizer turns agent text into raw PCM for audio sessions.
type Synthesizer struct {
	transport  *transport
	endpoint   string
	voice      string
	language   string
	sampleRate int
	speed      float32
	volume     float32
}

// NewSynthesizer creates a synthesizer from the speech configuration.
func NewSynthesizer(cfg config.SpeechConfig) *Synthesizer {
	rate := cfg.TTSSampleRate
	if rate <= 0 {
		rate = 24000
	}
	return &Synthesizer{
		transport:  newTransport(cfg),
		endpoint:   defaultTTSEndpoint,
		voice:      strings.TrimSpace(cfg.TTSVoice),
		language:   strings.TrimSpace(cfg.TTSLanguage),
		sampleRate: rate,
		speed:      cfg.TTSSpeed,
		volume:     cfg.TTSVolume,
	}
}

// SampleRate is the rate of the PCM returned by Synthesize.
func (s *Synthesizer) SampleRate() int {
	return s.sampleRate
}

// Synthesize returns 16-bit mono PCM for text. Resource ids are tried in
// order until one matches the configured voice.
func (s *Synthesizer) Synthesize(ctx context.Context, sessionID, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("tts text is empty")
	}

	var mismatch error
	for i, resourceID := range resourceCandidates(s.voice) {
		audio, err := s.synthesizeWith(ctx, resourceID, sessionID, text)
		if err == nil {
			if i > 0 {
				log.Printf("[tts] voice %s succeeded with fallback resource %s", s.voice, resourceID)
			}
			return audio, nil
		}
		if !isResourceMismatch(err) {
			return nil, err
		}
		log.Printf("[tts] voice %s resource %s mismatch: %v", s.voice, resourceID, err)
		mismatch = err
	}
	return nil, mismatch
}

func (s *Synthesizer) synthesizeWith(ctx context.Context, resourceID, sessionID, text string) ([]byte, error) {
	connectID := uuid.NewString()
	conn, _, err := s.transport.dial(ctx, "tts", s.endpoint, resourceID, connectID)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	defer unblockOnDone(ctx, conn)()

	payload, err := json.Marshal(s.buildRequest(sessionID, text))
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}
	if err := writeFrame(conn, newClientRequest(payload, NoCompression)); err != nil {
		return nil, fmt.Errorf("send tts request: %w", err)
	}

	audio, err := s.receive(conn)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return audio, err
}

func (s *Synthesizer) buildRequest(sessionID, text string) *ttsRequest {
	req := &ttsRequest{}

	req.User.UID = sessionID
	if req.User.UID == "" {
		req.User.UID = uuid.NewString()
	}

	req.ReqParams.Speaker = s.voice
	req.ReqParams.Text = text
	req.ReqParams.Language = s.language
	req.ReqParams.AudioParams.Format = "pcm"
	req.ReqParams.AudioParams.SampleRate = s.sampleRate
	if s.speed > 0 && s.speed != 1.0 {
		req.ReqParams.AudioParams.SpeedRatio = s.speed
	}
	if s.volume > 0 && s.volume != 1.0 {
		req.ReqParams.AudioParams.VolumeRatio = s.volume
	}
	req.ReqParams.Additions = `{"disable_markdown_filter":false}`
	return req
}

func (s *Synthesizer) receive(conn *websocket.Conn) ([]byte, error) {
	var audio bytes.Buffer

	for {
		f, err := readFrame(conn)
		if err != nil {
			return nil, fmt.Errorf("read tts response: %w", err)
		}

		switch f.Type {
		case ErrorMessage:
			return nil, serverError("tts", f)

		case AudioOnlyServerResponse:
			chunk, err := f.Body()
			if err != nil {
				return nil, fmt.Errorf("decompress audio chunk: %w", err)
			}
			audio.Write(chunk)

		case FullServerResponse:
			body, err := f.Body()
			if err != nil {
				return nil, fmt.Errorf("decompress tts payload: %w", err)
			}

			var msg ttsServerMessage
			if len(body) > 0 {
				if err := json.Unmarshal(body, &msg); err != nil {
					log.Printf("[tts] failed to unmarshal response payload: %v", err)
				} else {
					if msg.Code != 0 && msg.Code != 3000 {
						return nil, fmt.Errorf("tts api error %d: %s", msg.Code, msg.Message)
					}
					if msg.Data != "" {
						chunk, err := base64.StdEncoding.DecodeString(msg.Data)
						if err != nil {
							return nil, fmt.Errorf("decode base64 audio chunk: %w", err)
						}
						audio.Write(chunk)
					}
				}
			}

			finished := f.hasEvent() && f.Event == EventTypeSessionFinished
			if finished || f.IsLast() || msg.Sequence < 0 {
				if audio.Len() == 0 {
					return nil, ErrEmptyAudio
				}
				return audio.Bytes(), nil
			}

		default:
			log.Printf("[tts] unexpected message type: %d", f.Type)
		}
	}
}

// resourceCandidates orders resource ids by how likely they serve voice.
func resourceCandidates(voice string) []string {
	voice = strings.TrimSpace(voice)
	if strings.HasPrefix(voice, "S_") {
		return []string{ttsMegaResource}
	}

	normalized := strings.ToLower(voice)
	for _, hint := range []string{"bigtts", "seed", "megatts", "uranus", "venus", "jupiter", "saturn", "neptune", "mercury", "pluto", "mars"} {
		if normalized != "" && strings.Contains(normalized, hint) {
			return []string{ttsSeedResource, ttsDefaultResource}
		}
	}
	return []string{ttsDefaultResource, ttsSeedResource}
}

func isResourceMismatch(err error) bool {
	return err != nil && strings.Contains(err.Error(), "resource ID is mismatched with speaker related resource")
}
