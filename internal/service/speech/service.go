package speech

import (
	"context"
	"time"

	"github.com/interopae/travel-concierge/backend/internal/config"
	speechmodel "github.com/interopae/travel-concierge/backend/internal/model/speech"
)

// Service bundles recognition and synthesis for audio sessions.
type Service struct {
	cfg         config.SpeechConfig
	recognizer  *Recognizer
	synthesizer *Synthesizer
}

// NewService creates the speech service. It is usable only when Enabled.
func NewService(cfg config.SpeechConfig) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Service{
		cfg:         cfg,
		recognizer:  NewRecognizer(cfg),
		synthesizer: NewSynthesizer(cfg),
	}
}

// Enabled reports whether credentials are configured.
func (s *Service) Enabled() bool {
	return s != nil && s.cfg.Enabled()
}

// Transcribe recognizes a buffered utterance.
func (s *Service) Transcribe(ctx context.Context, sessionID string, pcm []byte, language string) (speechmodel.Transcript, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	return s.recognizer.Transcribe(ctx, sessionID, pcm, language)
}

// Synthesize renders text as PCM at OutputSampleRate.
func (s *Service) Synthesize(ctx context.Context, sessionID, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	return s.synthesizer.Synthesize(ctx, sessionID, text)
}

// OutputSampleRate is the sample rate of synthesized audio.
func (s *Service) OutputSampleRate() int {
	return s.synthesizer.SampleRate()
}
