package speech

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interopae/travel-concierge/backend/internal/config"
)

var upgrader = websocket.Upgrader{}

func testConfig() config.SpeechConfig {
	return config.SpeechConfig{
		AppID:         "app",
		AccessToken:   "token",
		ASRLanguage:   "en-US",
		TTSVoice:      "en_female_amy_jupiter_bigtts",
		TTSSampleRate: 24000,
		Timeout:       5 * time.Second,
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRecognizerTranscribe(t *testing.T) {
	var (
		mu         sync.Mutex
		gotRequest asrRequest
		gotAudio   int
		frames     int
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "app", r.Header.Get("X-Api-App-Key"))
		assert.Equal(t, "volc.bigasr.sauc.duration", r.Header.Get("X-Api-Resource-Id"))

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		first, err := readFrame(conn)
		require.NoError(t, err)
		body, err := first.Body()
		require.NoError(t, err)

		mu.Lock()
		require.NoError(t, json.Unmarshal(body, &gotRequest))
		mu.Unlock()

		for {
			f, err := readFrame(conn)
			require.NoError(t, err)
			chunk, err := f.Body()
			require.NoError(t, err)

			mu.Lock()
			gotAudio += len(chunk)
			frames++
			mu.Unlock()

			if f.IsLast() {
				break
			}
		}

		result, err := compress([]byte(`{"result":{"text":" book a room "},"audio_info":{"duration":1500}}`), GzipCompression)
		require.NoError(t, err)
		resp := &Frame{Type: FullServerResponse, Flags: NegativeSequenceNumber, Sequence: -4, Compression: GzipCompression, Payload: result}
		require.NoError(t, writeFrame(conn, resp))
	}))
	defer srv.Close()

	r := NewRecognizer(testConfig())
	r.endpoint = wsURL(srv)

	pcm := make([]byte, asrChunkBytes+1000)
	transcript, err := r.Transcribe(context.Background(), "sess-1", pcm, "")
	require.NoError(t, err)

	assert.Equal(t, "book a room", transcript.Text)
	assert.Equal(t, 1500*time.Millisecond, transcript.Duration)
	assert.Equal(t, "sess-1", transcript.SessionID)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, len(pcm), gotAudio)
	assert.Equal(t, 2, frames)
	assert.Equal(t, "pcm", gotRequest.Audio.Format)
	assert.Equal(t, 16000, gotRequest.Audio.Rate)
	assert.Equal(t, "en-US", gotRequest.Audio.Language)
}

func TestRecognizerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		_, err = readFrame(conn)
		require.NoError(t, err)
		audio, err := readFrame(conn)
		require.NoError(t, err)
		assert.True(t, audio.IsLast())
		require.NoError(t, writeFrame(conn, &Frame{Type: ErrorMessage, ErrorCode: 45000002, Payload: []byte("empty audio")}))
	}))
	defer srv.Close()

	r := NewRecognizer(testConfig())
	r.endpoint = wsURL(srv)

	_, err := r.Transcribe(context.Background(), "sess-1", []byte{0, 1}, "en-US")
	assert.ErrorContains(t, err, "empty audio")
}

func TestRecognizerRequiresCredentials(t *testing.T) {
	r := NewRecognizer(config.SpeechConfig{})
	_, err := r.Transcribe(context.Background(), "s", []byte{1}, "")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = r.Transcribe(context.Background(), "s", nil, "")
	assert.Error(t, err)
}

func TestSynthesizerFallsBackOnResourceMismatch(t *testing.T) {
	var (
		mu        sync.Mutex
		resources []string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resource := r.Header.Get("X-Api-Resource-Id")
		mu.Lock()
		resources = append(resources, resource)
		mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		req, err := readFrame(conn)
		require.NoError(t, err)
		var body ttsRequest
		require.NoError(t, json.Unmarshal(req.Payload, &body))
		assert.Equal(t, "pcm", body.ReqParams.AudioParams.Format)
		assert.Equal(t, 24000, body.ReqParams.AudioParams.SampleRate)

		if resource == ttsSeedResource {
			require.NoError(t, writeFrame(conn, &Frame{Type: ErrorMessage, ErrorCode: 1, Payload: []byte("resource ID is mismatched with speaker related resource")}))
			return
		}

		require.NoError(t, writeFrame(conn, &Frame{Type: AudioOnlyServerResponse, Payload: []byte{1, 2, 3}}))
		require.NoError(t, writeFrame(conn, &Frame{Type: AudioOnlyServerResponse, Payload: []byte{4}}))
		require.NoError(t, writeFrame(conn, &Frame{Type: FullServerResponse, Flags: WithEvent, Event: EventTypeSessionFinished, SessionID: "s"}))
	}))
	defer srv.Close()

	s := NewSynthesizer(testConfig())
	s.endpoint = wsURL(srv)

	audio, err := s.Synthesize(context.Background(), "sess-1", "Your hotel is booked.")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, audio)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{ttsSeedResource, ttsDefaultResource}, resources)
}

func TestSynthesizerEmptyAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		_, err = readFrame(conn)
		require.NoError(t, err)
		require.NoError(t, writeFrame(conn, &Frame{Type: FullServerResponse, Flags: LastPacketNoSequence}))
	}))
	defer srv.Close()

	s := NewSynthesizer(testConfig())
	s.endpoint = wsURL(srv)

	_, err := s.Synthesize(context.Background(), "sess-1", "hello")
	assert.ErrorIs(t, err, ErrEmptyAudio)

	_, err = s.Synthesize(context.Background(), "sess-1", "   ")
	assert.Error(t, err)
}

func TestResourceCandidates(t *testing.T) {
	tests := []struct {
		voice string
		want  []string
	}{
		{voice: "", want: []string{ttsDefaultResource, ttsSeedResource}},
		{voice: "S_clone_speaker", want: []string{ttsMegaResource}},
		{voice: "en_female_amy_jupiter_bigtts", want: []string{ttsSeedResource, ttsDefaultResource}},
		{voice: "en_male_legacy", want: []string{ttsDefaultResource, ttsSeedResource}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, resourceCandidates(tt.voice), "voice %q", tt.voice)
	}
}

func TestIsResourceMismatch(t *testing.T) {
	assert.False(t, isResourceMismatch(nil))
	assert.False(t, isResourceMismatch(errors.New("other")))
	assert.True(t, isResourceMismatch(errors.New(`tts error 1: {"error":"resource ID is mismatched with speaker related resource"}`)))
}

func TestServiceEnabled(t *testing.T) {
	assert.True(t, NewService(testConfig()).Enabled())
	assert.False(t, NewService(config.SpeechConfig{AppID: "app"}).Enabled())

	var nilService *Service
	assert.False(t, nilService.Enabled())
}
