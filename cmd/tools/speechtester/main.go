package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/interopae/travel-concierge/backend/internal/config"
	speechmodel "github.com/interopae/travel-concierge/backend/internal/model/speech"
	"github.com/interopae/travel-concierge/backend/internal/service/speech"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	flagSet := pflag.NewFlagSet("speechtester", pflag.ExitOnError)
	mode := flagSet.String("mode", "", "test mode: asr or tts")
	audioPath := flagSet.String("audio", "", "raw 16kHz 16-bit mono PCM input for asr")
	text := flagSet.String("text", "", "text to synthesize for tts")
	outputPath := flagSet.String("out", "", "PCM output path for tts (default tts-output-<unix>.pcm)")
	language := flagSet.String("lang", "", "recognition language, defaults to SPEECH_ASR_LANGUAGE")
	session := flagSet.String("session", "", "session id, generated when empty")
	timeout := flagSet.Duration("timeout", 45*time.Second, "request timeout")
	envFile := flagSet.String("env-file", ".env", "dotenv file loaded before reading the environment")
	_ = flagSet.Parse(os.Args[1:])

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("[WARN] failed to load %s, using system environment: %v", *envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if !cfg.Speech.Enabled() {
		log.Fatal("speech backend disabled: set SPEECH_APP_ID and SPEECH_ACCESS_TOKEN")
	}

	if *mode != "asr" && *mode != "tts" {
		flagSet.Usage()
		log.Fatal("pick a mode with --mode=asr or --mode=tts")
	}

	sessionID := *session
	if sessionID == "" {
		sessionID = fmt.Sprintf("manual-%d", time.Now().UnixNano())
	}

	svc := speech.NewService(cfg.Speech)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *mode {
	case "asr":
		runASR(ctx, svc, cfg, sessionID, *audioPath, *language)
	case "tts":
		runTTS(ctx, svc, sessionID, *text, *outputPath)
	}
}

func runASR(ctx context.Context, svc *speech.Service, cfg *config.Config, sessionID, audioPath, language string) {
	if audioPath == "" {
		log.Fatal("asr mode needs --audio")
	}

	pcm, err := os.ReadFile(audioPath)
	if err != nil {
		log.Fatalf("failed to read audio: %v", err)
	}
	if language == "" {
		language = cfg.Speech.ASRLanguage
	}

	seconds := float64(len(pcm)) / float64(speechmodel.InputPCM.BytesPerSecond())
	log.Printf("starting asr: session=%s language=%s audio=%.1fs", sessionID, language, seconds)

	transcript, err := svc.Transcribe(ctx, sessionID, pcm, language)
	if err != nil {
		log.Fatalf("asr failed: %v", err)
	}

	log.Printf("asr succeeded: text=%q duration=%s logid=%s", transcript.Text, transcript.Duration, transcript.LogID)
}

func runTTS(ctx context.Context, svc *speech.Service, sessionID, text, outputPath string) {
	if strings.TrimSpace(text) == "" {
		log.Fatal("tts mode needs --text")
	}
	if outputPath == "" {
		outputPath = fmt.Sprintf("tts-output-%d.pcm", time.Now().Unix())
	}

	log.Printf("starting tts: session=%s sample_rate=%d", sessionID, svc.OutputSampleRate())

	audio, err := svc.Synthesize(ctx, sessionID, text)
	if err != nil {
		log.Fatalf("tts failed: %v", err)
	}

	if err := os.WriteFile(outputPath, audio, 0o644); err != nil {
		log.Fatalf("failed to write audio: %v", err)
	}

	out := speechmodel.PCM{SampleRate: svc.OutputSampleRate(), Bits: 16, Channels: 1}
	seconds := float64(len(audio)) / float64(out.BytesPerSecond())
	log.Printf("tts succeeded: wrote %s (%.1fs of audio)", outputPath, seconds)
}
