package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/cupid-copilot/backend/internal/analysis"
	"github.com/cupid-copilot/backend/internal/api"
	"github.com/cupid-copilot/backend/internal/config"
	"github.com/cupid-copilot/backend/internal/conversation"
	"github.com/cupid-copilot/backend/internal/database"
	"github.com/cupid-copilot/backend/internal/llm"
	"github.com/cupid-copilot/backend/internal/middleware"
	"github.com/cupid-copilot/backend/internal/push"
	iredis "github.com/cupid-copilot/backend/internal/redis"
	"github.com/cupid-copilot/backend/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)
	logger := slog.Default()

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB.DSN(), "migrations"); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Conversation memory
	store := conversation.NewStore(redisClient)
	conversationHandler := conversation.NewHandler(store, logger)

	// Push delivery
	tokenRepo := push.NewRepository(pool)
	expoClient := push.NewExpoClient(cfg.Push.ExpoURL, logger)
	pushSvc := push.NewService(tokenRepo, expoClient, store, logger)
	pushHandler := push.NewHandler(pushSvc, logger)

	// Frame analysis
	geminiClient, err := llm.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, llm.WithBaseURL(cfg.Gemini.BaseURL))
	if err != nil {
		slog.Error("creating gemini client", "error", err)
		os.Exit(1)
	}
	analysisSvc := analysis.NewService(store, geminiClient, pushSvc, logger)
	analysisHandler := analysis.NewHandler(analysisSvc, logger)

	// Router
	rateLimiter := middleware.NewRateLimiter(redisClient, cfg.RateLimit.MaxRequests, cfg.RateLimit.WindowSec)
	router := api.NewRouter(pool, redisClient, api.RouterConfig{
		FrameRateLimiter: rateLimiter.Middleware,
	}, api.HandlerSet{
		AnalyzeFrame: analysisHandler.AnalyzeFrame,

		RegisterToken: pushHandler.RegisterToken,
		ListTokens:    pushHandler.ListTokens,

		SendNotification:    pushHandler.SendNotification,
		DeviceNotifications: pushHandler.DeviceNotifications,

		ListConversations: conversationHandler.ListConversations,
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
