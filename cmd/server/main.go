package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oscelab/osce-backend/internal/auth"
	"github.com/oscelab/osce-backend/internal/competition"
	"github.com/oscelab/osce-backend/internal/config"
	"github.com/oscelab/osce-backend/internal/database"
	"github.com/oscelab/osce-backend/internal/evaluation"
	"github.com/oscelab/osce-backend/internal/handler"
	"github.com/oscelab/osce-backend/internal/logger"
	"github.com/oscelab/osce-backend/internal/repository"
	"github.com/oscelab/osce-backend/internal/router"
	"github.com/oscelab/osce-backend/internal/validator"
	"github.com/oscelab/osce-backend/internal/worker"
	"github.com/oscelab/osce-backend/internal/ws"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting OSCE Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	studentRepo := repository.NewStudentRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	caseRepo := repository.NewCaseRepository(pool)
	transcriptRepo := repository.NewTranscriptRepository(pool)
	competitionStore := repository.NewCompetitionStore(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := auth.NewService(cfg, rdb)

	publisher := ws.NewRedisPublisher(rdb, log)
	engine := competition.New(competitionStore,
		competition.WithPublisher(publisher),
		competition.WithLogger(log),
	)

	llmClient := evaluation.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, log)
	evaluator := evaluation.NewCachedEvaluator(llmClient, rdb, cfg.EvalCacheTTL, log)
	transcriptBuffer := evaluation.NewTranscriptBuffer(rdb)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:               handler.NewAuthHandler(authService, studentRepo, adminRepo, log),
		Case:               handler.NewCaseHandler(caseRepo, log),
		Student:            handler.NewStudentHandler(studentRepo, authService, log),
		CompetitionAdmin:   handler.NewCompetitionAdminHandler(engine, authService, log),
		CompetitionStudent: handler.NewCompetitionStudentHandler(engine, caseRepo, evaluator, llmClient, transcriptBuffer, rdb, log),
		Monitor:            handler.NewMonitorHandler(rdb, engine, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	transcriptWorker := worker.NewTranscriptWorker(transcriptRepo, transcriptBuffer, rdb, log)
	go transcriptWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
