package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"

	"scholar-project-service/internal/assistant"
	"scholar-project-service/internal/config"
	"scholar-project-service/internal/events"
	"scholar-project-service/internal/models"
	"scholar-project-service/internal/notify"
	"scholar-project-service/internal/queue"
	"scholar-project-service/internal/store"
	"scholar-project-service/internal/telemetry"
	"scholar-project-service/internal/worker"
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
	notifier := notify.New(cfg.NotifyBaseURL, cfg.NotifyTimeout)

	artifacts, err := worker.NewArtifactStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init artifact store")
	}

	var gen assistant.Generator
	if cfg.GeminiAPIKey != "" {
		client, err := assistant.NewGeminiClient(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("init gemini client")
		}
		gen = client
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set, gap analysis and web search will fail")
	}

	processor := worker.NewProcessor(cfg, q, st, bus, notifier)
	processor.RegisterHandler(models.JobTypeCitationCheck, worker.NewCitationHandler(st).Handle)
	processor.RegisterHandler(models.JobTypeExtraction, worker.NewExtractionHandler(cfg, st, artifacts).Handle)
	processor.RegisterHandler(models.JobTypeGapAnalysis, worker.NewGapHandler(st, artifacts, gen).Handle)
	processor.RegisterHandler(models.JobTypeWebSearch, worker.NewSearchHandler(st, gen).Handle)
	processor.RegisterHandler(models.JobTypeThumbnail, worker.NewThumbnailHandler(cfg, st, artifacts).Handle)

	// Jobs stuck in running past several visibility timeouts have lost
	// their worker; fail them so subscribers stop waiting.
	sweeper := cron.New()
	_, err = sweeper.AddFunc("@every 1m", func() {
		cutoff := time.Now().Add(-4 * cfg.VisibilityTimeout)
		ids, err := st.StaleRunningJobs(ctx, cutoff, 100)
		if err != nil {
			log.Warn().Err(err).Msg("stale job sweep failed")
			return
		}
		for _, id := range ids {
			if err := st.FailJob(ctx, id, "worker lost: no progress before cutoff"); err != nil {
				continue
			}
			_ = q.DLQPush(ctx, id)
			_ = st.AppendAudit(ctx, id, "dead_letter", "stale running job swept")
			_ = bus.Publish(ctx, events.Error(id, "worker lost: no progress before cutoff"))
			log.Warn().Str("job_id", id).Msg("stale running job failed")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("schedule sweeper")
	}
	sweeper.Start()
	defer sweeper.Stop()

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			log.Warn().Err(err).Msg("metrics server stopped")
		}
	}()

	log.Info().
		Dur("visibility", cfg.VisibilityTimeout).
		Dur("backoff_initial", cfg.BackoffInitial).
		Msg("worker started")
	if err := processor.Run(ctx); err != nil {
		log.Info().Err(err).Msg("worker stopped")
	}
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
