package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"mirage/internal/auth"
	"mirage/internal/catalog"
	"mirage/internal/config"
	"mirage/internal/engine"
	"mirage/internal/gate"
	"mirage/internal/login"
	"mirage/internal/ratelimit"
	"mirage/internal/server"
	"mirage/internal/store"
	"mirage/internal/synth"
	"mirage/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdown, err := telemetry.InitTracer("mirage", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Auth.Secret == "" {
		log.Fatal("auth.secret (or MIRAGE_AUTH__SECRET) is required")
	}

	st, err := store.Open(cfg.Storage.Path, cfg.Storage.EmbeddingDims, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	defer rdb.Close()

	var (
		locker  gate.Locker
		limiter ratelimit.Limiter
	)
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, using in-process gate and rate limiter",
			slog.String("addr", cfg.Redis.Addr), slog.String("error", err.Error()))
		locker = gate.NewMemoryLocker(time.Duration(cfg.Gate.TTLSeconds) * time.Second)
		limiter = ratelimit.NewMemoryLimiter(time.Duration(cfg.RateLimit.WindowSeconds)*time.Second, cfg.RateLimit.Limit)
	} else {
		locker = gate.NewRedisLocker(rdb, time.Duration(cfg.Gate.TTLSeconds)*time.Second)
		limiter = ratelimit.NewRedisLimiter(rdb, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second, cfg.RateLimit.Limit)
	}
	pingCancel()

	cat, err := catalog.Load(filepath.Join(cfg.Templates.Dir, "attack_templates.json"))
	if err != nil {
		logger.Warn("attack catalog unavailable, fabricating without templates",
			slog.String("error", err.Error()))
	}
	prompts, err := synth.LoadPrompts(cfg.Templates.Dir)
	if err != nil {
		log.Fatalf("Failed to load prompt templates: %v", err)
	}

	llm := synth.NewOpenAIClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.EmbeddingModel)
	synthesizer := synth.New(llm, cat, prompts, cfg.LLM.PromptTokenBudget, logger)

	issuer := auth.NewIssuer(cfg.Auth.Secret)
	eng := engine.New(st, locker, limiter, synthesizer, llm, issuer, cfg.Vector.Threshold, logger)
	handler := server.NewHandler(eng, login.NewService(st, issuer, logger), logger)

	srv := server.New(cfg.Server.Port,
		time.Duration(cfg.Server.RequestTimeoutSeconds)*time.Second, logger, handler)

	go func() {
		logger.Info("mirage listening",
			slog.Int("port", cfg.Server.Port),
			slog.Bool("vector_search", st.VectorEnabled()))
		if err := srv.Start(); err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
