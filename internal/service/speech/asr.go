package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/interopae/travel-concierge/backend/internal/config"
	speechmodel "github.com/interopae/travel-concierge/backend/internal/model/speech"
)

// asrChunkBytes is 200ms of 16 kHz mono s16le audio.
const asrChunkBytes = 6400

type asrRequest struct {
	User struct {
		UID string `json:"uid,omitempty"`
	} `json:"user"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec,omitempty"`
		Rate     int    `json:"rate,omitempty"`
		Bits     int    `json:"bits,omitempty"`
		Channel  int    `json:"channel,omitempty"`
	} `json:"audio"`
	Request struct {
		ModelName      string `json:"model_name"`
		EnableITN      bool   `json:"enable_itn,omitempty"`
		EnablePunc     bool   `json:"enable_punc,omitempty"`
		ShowUtterances bool   `json:"show_utterances,omitempty"`
		ResultType     string `json:"result_type,omitempty"`
		EndWindowSize  int    `json:"end_window_size,omitempty"`
	} `json:"request"`
}

type asrUtterance struct {
	Text     string `json:"text"`
	Definite bool   `json:"definite"`
}

type asrServerMessage struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Result   struct {
		Text       string         `json:"text"`
		Utterances []asrUtterance `json:"utterances,omitempty"`
	} `json:"result"`
	AudioInfo struct {
		Duration int64 `json:"duration"`
	} `json:"audio_info"`
}

// Recognizer sends buffered PCM to the streaming recognizer and waits for the
// final transcript.
type Recognizer struct {
	transport  *transport
	endpoint   string
	resourceID string
	language   string
	sampleRate int

	// chunkInterval paces audio chunks. Zero sends them back to back.
	chunkInterval time.Duration
}

// NewRecognizer creates a recognizer from the speech configuration.
func NewRecognizer(cfg config.SpeechConfig) *Recognizer {
	resourceID := "volc.bigasr.sauc.duration"
	if cfg.ConcurrentMode {
		resourceID = "volc.bigasr.sauc.concurrent"
	}
	rate := cfg.ASRSampleRate
	if rate <= 0 {
		rate = speechmodel.InputPCM.SampleRate
	}

	return &Recognizer{
		transport:  newTransport(cfg),
		endpoint:   defaultASREndpoint,
		resourceID: resourceID,
		language:   cfg.ASRLanguage,
		sampleRate: rate,
	}
}

// Transcribe recognizes one utterance of raw 16-bit mono PCM.
func (r *Recognizer) Transcribe(ctx context.Context, sessionID string, pcm []byte, language string) (speechmodel.Transcript, error) {
	if len(pcm) == 0 {
		return speechmodel.Transcript{}, fmt.Errorf("no audio data to transcribe")
	}
	if language == "" {
		language = r.language
	}

	conn, logID, err := r.transport.dial(ctx, "asr", r.endpoint, r.resourceID, uuid.NewString())
	if err != nil {
		return speechmodel.Transcript{}, err
	}
	defer conn.Close()
	defer unblockOnDone(ctx, conn)()

	payload, err := json.Marshal(r.buildRequest(sessionID, language))
	if err != nil {
		return speechmodel.Transcript{}, fmt.Errorf("marshal asr request: %w", err)
	}
	payload, err = compress(payload, GzipCompression)
	if err != nil {
		return speechmodel.Transcript{}, err
	}
	if err := writeFrame(conn, newClientRequest(payload, GzipCompression)); err != nil {
		return speechmodel.Transcript{}, fmt.Errorf("send asr request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The server may reject the session while audio is still being sent.
	sendErr := make(chan error, 1)
	go func() {
		sendErr <- r.sendAudio(ctx, conn, pcm)
	}()

	result := make(chan speechmodel.Transcript, 1)
	recvErr := make(chan error, 1)
	go func() {
		t, err := r.receive(conn, sessionID)
		if err != nil {
			recvErr <- err
			return
		}
		t.LogID = logID
		result <- t
	}()

	for {
		select {
		case err := <-sendErr:
			if err != nil {
				return speechmodel.Transcript{}, fmt.Errorf("send asr audio: %w", err)
			}
			sendErr = nil
		case t := <-result:
			return t, nil
		case err := <-recvErr:
			if ctx.Err() != nil {
				return speechmodel.Transcript{}, ctx.Err()
			}
			return speechmodel.Transcript{}, err
		}
	}
}

func (r *Recognizer) buildRequest(sessionID, language string) *asrRequest {
	req := &asrRequest{}
	req.User.UID = sessionID

	req.Audio.Format = "pcm"
	req.Audio.Codec = "raw"
	req.Audio.Language = language
	req.Audio.Rate = r.sampleRate
	req.Audio.Bits = speechmodel.InputPCM.Bits
	req.Audio.Channel = speechmodel.InputPCM.Channels

	req.Request.ModelName = "bigmodel"
	req.Request.EnableITN = true
	req.Request.EnablePunc = true
	req.Request.ShowUtterances = true
	req.Request.ResultType = "full"
	req.Request.EndWindowSize = 800
	return req
}

func (r *Recognizer) sendAudio(ctx context.Context, conn *websocket.Conn, pcm []byte) error {
	// Sequence 1 belongs to the full client request.
	seq := int32(2)
	for start := 0; start < len(pcm); start += asrChunkBytes {
		end := min(start+asrChunkBytes, len(pcm))
		last := end == len(pcm)

		chunk, err := compress(pcm[start:end], GzipCompression)
		if err != nil {
			return err
		}
		if err := writeFrame(conn, newAudioRequest(chunk, seq, last, GzipCompression)); err != nil {
			return err
		}
		seq++

		if last || r.chunkInterval <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.chunkInterval):
		}
	}
	return nil
}

func (r *Recognizer) receive(conn *websocket.Conn, sessionID string) (speechmodel.Transcript, error) {
	var (
		text     string
		duration int64
	)

	for {
		f, err := readFrame(conn)
		if err != nil {
			return speechmodel.Transcript{}, fmt.Errorf("read asr response: %w", err)
		}

		switch f.Type {
		case ErrorMessage:
			return speechmodel.Transcript{}, serverError("asr", f)

		case FullServerResponse:
			body, err := f.Body()
			if err != nil {
				return speechmodel.Transcript{}, fmt.Errorf("decompress asr payload: %w", err)
			}

			var msg asrServerMessage
			if err := json.Unmarshal(body, &msg); err != nil {
				log.Printf("[asr] failed to unmarshal response: %v", err)
				continue
			}
			if msg.Code != 0 && msg.Code != 20000000 {
				return speechmodel.Transcript{}, fmt.Errorf("asr api error %d: %s", msg.Code, msg.Message)
			}

			if candidate := msg.Result.Text; candidate != "" {
				text = candidate
			} else if joined := joinUtterances(msg.Result.Utterances); joined != "" {
				text = joined
			}
			if msg.AudioInfo.Duration > 0 {
				duration = msg.AudioInfo.Duration
			}

			if f.IsLast() || msg.Sequence < 0 {
				if text == "" {
					log.Printf("[asr] empty transcript for session %s", sessionID)
				}
				return speechmodel.Transcript{
					SessionID: sessionID,
					Text:      strings.TrimSpace(text),
					Duration:  time.Duration(duration) * time.Millisecond,
				}, nil
			}
		}
	}
}

func joinUtterances(utterances []asrUtterance) string {
	parts := make([]string, 0, len(utterances))
	for _, u := range utterances {
		if t := strings.TrimSpace(u.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
