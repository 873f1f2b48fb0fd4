package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// ErrModelNotConfigured is returned when no Ark credentials or model are set.
var ErrModelNotConfigured = errors.New("ark credentials or model missing: set ARK_API_KEY (or ARK_ACCESS_KEY/ARK_SECRET_KEY) and ARK_MODEL")

// Config aggregates the service configuration.
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Speech SpeechConfig
	Bridge BridgeConfig
	Auth   AuthConfig
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Server.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Bridge.validate(); err != nil {
		return nil, err
	}
	cfg.Speech.normalize()

	return &cfg, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Addr is derived from Port.
	Addr string
}

func (c *ServerConfig) normalize() error {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}

	switch {
	case strings.Contains(port, " "):
		return fmt.Errorf("invalid PORT value: %q", c.Port)
	case strings.Contains(port, ":"):
		// ":8080" and "127.0.0.1:8080" are taken as-is.
		c.Addr = port
	default:
		c.Addr = ":" + port
	}
	return nil
}

// AIConfig describes the Ark chat model backing the agent.
type AIConfig struct {
	APIKey      string   `env:"ARK_API_KEY"`
	AccessKey   string   `env:"ARK_ACCESS_KEY"`
	SecretKey   string   `env:"ARK_SECRET_KEY"`
	Model       string   `env:"ARK_MODEL"`
	BaseURL     string   `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region      string   `env:"ARK_REGION" envDefault:"cn-beijing"`
	Temperature *float32 `env:"ARK_TEMPERATURE"`
	TopP        *float32 `env:"ARK_TOP_P"`
	MaxTokens   *int     `env:"ARK_MAX_TOKENS"`
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel creates a chat model from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, ErrModelNotConfigured
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		TopP:        c.TopP,
	})
}

// SpeechConfig describes the Volcengine speech backend used for audio sessions.
type SpeechConfig struct {
	AppID          string        `env:"SPEECH_APP_ID"`
	AccessToken    string        `env:"SPEECH_ACCESS_TOKEN"`
	APIKey         string        `env:"SPEECH_API_KEY"`
	ConcurrentMode bool          `env:"SPEECH_RESOURCE_CONCURRENT" envDefault:"false"`
	ASRLanguage    string        `env:"SPEECH_ASR_LANGUAGE" envDefault:"en-US"`
	ASRSampleRate  int           `env:"SPEECH_ASR_SAMPLE_RATE" envDefault:"16000"`
	TTSVoice       string        `env:"SPEECH_TTS_VOICE" envDefault:"en_female_amy_jupiter_bigtts"`
	TTSLanguage    string        `env:"SPEECH_TTS_LANGUAGE" envDefault:"en-US"`
	TTSSampleRate  int           `env:"SPEECH_TTS_SAMPLE_RATE" envDefault:"24000"`
	TTSSpeed       float32       `env:"SPEECH_TTS_SPEED" envDefault:"1.0"`
	TTSVolume      float32       `env:"SPEECH_TTS_VOLUME" envDefault:"1.0"`
	Timeout        time.Duration `env:"SPEECH_TIMEOUT" envDefault:"30s"`

	// Fallback credentials reused when no dedicated speech token is set.
	FallbackToken string `env:"ARK_API_KEY"`
}

// Enabled reports whether both an app id and an access token are available.
func (c SpeechConfig) Enabled() bool {
	return strings.TrimSpace(c.AppID) != "" && strings.TrimSpace(c.AccessToken) != ""
}

func (c *SpeechConfig) normalize() {
	if c.AccessToken == "" {
		c.AccessToken = c.APIKey
	}
	if c.AccessToken == "" {
		c.AccessToken = c.FallbackToken
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// BridgeConfig tunes the live session bridge.
type BridgeConfig struct {
	AppName          string        `env:"BRIDGE_APP_NAME" envDefault:"travel_concierge"`
	QueueCapacity    int           `env:"BRIDGE_QUEUE_CAPACITY" envDefault:"64"`
	EventBuffer      int           `env:"BRIDGE_EVENT_BUFFER" envDefault:"32"`
	AudioIdleFlush   time.Duration `env:"BRIDGE_AUDIO_IDLE_FLUSH" envDefault:"800ms"`
	AudioMaxBytes    int           `env:"BRIDGE_AUDIO_MAX_BYTES" envDefault:"320000"`
	HistoryLimit     int           `env:"BRIDGE_HISTORY_LIMIT" envDefault:"20"`
	AgentProfilePath string        `env:"AGENT_PROFILE"`

	// Specialist delegation.
	SpecialistTimeout time.Duration `env:"BRIDGE_SPECIALIST_TIMEOUT" envDefault:"30s"`
	MaxAgentSteps     int           `env:"BRIDGE_MAX_AGENT_STEPS" envDefault:"12"`
}

func (c BridgeConfig) validate() error {
	if c.QueueCapacity < 1 {
		return fmt.Errorf("invalid BRIDGE_QUEUE_CAPACITY value %d: must be positive", c.QueueCapacity)
	}
	if c.EventBuffer < 0 {
		return fmt.Errorf("invalid BRIDGE_EVENT_BUFFER value %d", c.EventBuffer)
	}
	if c.AudioIdleFlush <= 0 {
		return fmt.Errorf("invalid BRIDGE_AUDIO_IDLE_FLUSH value %s", c.AudioIdleFlush)
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("invalid BRIDGE_HISTORY_LIMIT value %d", c.HistoryLimit)
	}
	return nil
}

// AuthConfig describes how the single-shot endpoint identifies callers.
type AuthConfig struct {
	JWTSecret string `env:"AUTH_JWT_SECRET"`
	UserClaim string `env:"AUTH_USER_CLAIM" envDefault:"id"`
}

// Enabled reports whether bearer tokens are verified.
func (c AuthConfig) Enabled() bool {
	return c.JWTSecret != ""
}
