package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/interopae/travel-concierge/backend/internal/config"
	"github.com/interopae/travel-concierge/backend/internal/handler"
	"github.com/interopae/travel-concierge/backend/internal/model/profile"
	"github.com/interopae/travel-concierge/backend/internal/service/agent"
	"github.com/interopae/travel-concierge/backend/internal/service/chat"
	"github.com/interopae/travel-concierge/backend/internal/service/speech"
	"github.com/interopae/travel-concierge/backend/internal/session"
)

func main() {
	flagSet := pflag.NewFlagSet("travel-concierge", pflag.ExitOnError)
	envFile := flagSet.String("env-file", ".env", "dotenv file loaded before reading the environment")
	addr := flagSet.String("addr", "", "listen address, overrides PORT")
	profilePath := flagSet.String("profile", "", "agent profile YAML, overrides AGENT_PROFILE")
	_ = flagSet.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("warning: failed to load %s: %v", *envFile, err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *profilePath != "" {
		cfg.Bridge.AgentProfilePath = *profilePath
	}

	prof, err := profile.Load(cfg.Bridge.AgentProfilePath)
	if err != nil {
		log.Fatalf("failed to load agent profile: %v", err)
	}

	var chatModel model.ChatModel
	if cfg.AI.Enabled() {
		chatModel, err = cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.Printf("warning: failed to initialize chat model: %v", err)
			log.Println("continuing without agent functionality")
		} else {
			log.Printf("chat model %s initialized", cfg.AI.Model)
		}
	} else {
		log.Println("Ark credentials not configured, agent endpoints will report unavailable")
	}

	var speechSvc *speech.Service
	if cfg.Speech.Enabled() {
		speechSvc = speech.NewService(cfg.Speech)
		log.Println("speech service initialized")
	} else {
		log.Println("speech credentials not configured, audio sessions disabled")
	}

	chats := chat.NewService(cfg.Bridge.AppName)
	agentSvc, err := agent.NewService(ctx, chatModel, prof, chats, speechSvc, cfg.Bridge)
	if err != nil {
		log.Fatalf("failed to initialize agent: %v", err)
	}

	registry := session.NewRegistry()
	router := handler.NewRouter(cfg, agentSvc, chats, registry)

	startServer(ctx, cfg.Server, router, registry)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, registry *session.Registry) {
	// No WriteTimeout: event streams stay open for the life of a session.
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv.RegisterOnShutdown(registry.CloseAll)

	log.Printf("travel concierge backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv, serverCfg.ShutdownTimeout); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
