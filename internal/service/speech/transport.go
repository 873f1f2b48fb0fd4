package speech

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/interopae/travel-concierge/backend/internal/config"
)

// ErrNotConfigured is returned when app id or access token are missing.
var ErrNotConfigured = errors.New("speech app id or access token missing")

const (
	defaultASREndpoint = "wss://openspeech.bytedance.com/api/v3/sauc/bigmodel_nostream"
	defaultTTSEndpoint = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"
)

// transport opens authenticated websocket connections to the speech service.
type transport struct {
	appID  string
	token  string
	dialer *websocket.Dialer
}

func newTransport(cfg config.SpeechConfig) *transport {
	return &transport{
		appID: strings.TrimSpace(cfg.AppID),
		token: strings.TrimSpace(cfg.AccessToken),
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.Timeout,
		},
	}
}

func (t *transport) dial(ctx context.Context, tag, endpoint, resourceID, connectID string) (*websocket.Conn, string, error) {
	if t.appID == "" || t.token == "" {
		return nil, "", ErrNotConfigured
	}

	header := http.Header{}
	header.Set("X-Api-App-Key", t.appID)
	header.Set("X-Api-Access-Key", t.token)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := t.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, "", fmt.Errorf("dial %s websocket: %w", tag, err)
	}

	var logID string
	if resp != nil {
		logID = resp.Header.Get("X-Tt-Logid")
		if logID != "" {
			log.Printf("[%s] connected with logid: %s", tag, logID)
		}
	}

	return conn, logID, nil
}

// unblockOnDone expires the read deadline of conn once ctx is done so a
// pending ReadMessage returns. The returned func detaches the watcher.
func unblockOnDone(ctx context.Context, conn *websocket.Conn) func() bool {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	return context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
}

func writeFrame(conn *websocket.Conn, f *Frame) error {
	return conn.WriteMessage(websocket.BinaryMessage, f.Marshal())
}

func readFrame(conn *websocket.Conn) (*Frame, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return UnmarshalFrame(data)
}

// serverError converts an error frame into an error.
func serverError(tag string, f *Frame) error {
	body, err := f.Body()
	if err != nil {
		return fmt.Errorf("%s error frame %d: %w", tag, f.ErrorCode, err)
	}
	return fmt.Errorf("%s error %d: %s", tag, f.ErrorCode, string(body))
}
