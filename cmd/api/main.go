package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phuslu/log"

	"scholar-project-service/internal/api"
	"scholar-project-service/internal/assistant"
	"scholar-project-service/internal/config"
	"scholar-project-service/internal/events"
	"scholar-project-service/internal/notify"
	"scholar-project-service/internal/queue"
	"scholar-project-service/internal/ratelimit"
	"scholar-project-service/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	st, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer st.Close()

	if err := st.RunMigrations(ctx); err != nil {
		log.Fatal().Err(err).Msg("migrations")
	}

	q := queue.NewRedisQueue(cfg)
	bus := queue.NewProgressBus(q.Client())
	registry := events.NewRegistry()
	limiter := ratelimit.NewTokenBucket(q.Client(), cfg.RateLimitCapacity, cfg.RateLimitRefill, time.Hour)
	notifier := notify.New(cfg.NotifyBaseURL, cfg.NotifyTimeout)

	var parser *assistant.CommandParser
	if cfg.GeminiAPIKey != "" {
		gen, err := assistant.NewGeminiClient(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("init gemini client")
		}
		parser = assistant.NewCommandParser(gen)
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set, chat assistant disabled")
	}

	// Worker progress events arrive over Redis pub/sub and fan out to any
	// SSE session registered for the job.
	go func() {
		for {
			err := bus.Subscribe(ctx, registry.Dispatch)
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("progress subscription lost, reconnecting")
			time.Sleep(time.Second)
		}
	}()

	server := api.New(cfg, st, q, bus, registry, limiter, parser, notifier)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	log.Info().Str("port", cfg.HTTPPort).Msg("api listening")
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
}

func setupLogger(cfg config.Config) {
	level := log.InfoLevel
	if cfg.Env == "dev" {
		level = log.DebugLevel
	}
	log.DefaultLogger = log.Logger{
		Level:      level,
		TimeFormat: time.RFC3339,
		Writer:     &log.ConsoleWriter{ColorOutput: cfg.Env == "dev"},
	}
}
