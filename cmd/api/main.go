package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"google.golang.org/genai"

	"github.com/epochish/klarita/internal/activity"
	"github.com/epochish/klarita/internal/analytics"
	"github.com/epochish/klarita/internal/api"
	"github.com/epochish/klarita/internal/auth"
	"github.com/epochish/klarita/internal/breakdown"
	"github.com/epochish/klarita/internal/coach"
	"github.com/epochish/klarita/internal/config"
	"github.com/epochish/klarita/internal/database"
	"github.com/epochish/klarita/internal/embedding"
	"github.com/epochish/klarita/internal/gamification"
	"github.com/epochish/klarita/internal/llm"
	"github.com/epochish/klarita/internal/memory"
	"github.com/epochish/klarita/internal/middleware"
	inats "github.com/epochish/klarita/internal/nats"
	"github.com/epochish/klarita/internal/preferences"
	iredis "github.com/epochish/klarita/internal/redis"
	"github.com/epochish/klarita/internal/server"
	"github.com/epochish/klarita/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Migrations
	if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS is optional: without it the API runs degraded (no events, no
	// activity feed ingestion).
	var natsClient *inats.Client
	var events *inats.Publisher
	if cfg.NATS.URL == "" {
		slog.Warn("NATS url not configured, event publishing and activity feed disabled")
	} else {
		natsClient, err = inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		events = inats.NewPublisher(natsClient.JetStream())
	}

	// Gemini
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.LLM.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		slog.Error("creating genai client", "error", err)
		os.Exit(1)
	}
	llmClient := llm.NewGeminiClient(genaiClient, cfg.LLM)
	embedder, err := embedding.NewCachedEmbedder(embedding.NewGeminiEmbedder(genaiClient, cfg.LLM), cfg.Retrieval.CacheSize)
	if err != nil {
		slog.Error("creating embedder", "error", err)
		os.Exit(1)
	}

	// Auth + users
	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)
	authHandler := auth.NewHandler(authSvc, userSvc)

	// Memory corpus
	memoryRepo := memory.NewRepository(pool)
	retriever := memory.NewRetriever(memoryRepo, embedder, cfg.Retrieval)
	promotionLock := memory.NewPromotionLock(redisClient)
	writer := memory.NewWriter(memoryRepo, embedder, promotionLock, events)
	memoryHandler := memory.NewHandler(memoryRepo)

	// Preferences
	preferencesRepo := preferences.NewRepository(pool)
	learner := preferences.NewLearner(preferencesRepo)
	preferencesHandler := preferences.NewHandler(preferencesRepo)

	// Breakdowns
	breakdownRepo := breakdown.NewRepository(pool)
	composer := breakdown.NewComposer(cfg.Retrieval)
	generator := breakdown.NewGenerator(llmClient, cfg.LLM)
	breakdownSvc := breakdown.NewService(breakdownRepo, retriever, composer, generator, writer, preferencesRepo, learner, events, cfg.Retrieval)
	breakdownHandler := breakdown.NewHandler(breakdownSvc)

	// Gamification
	engine := gamification.NewEngine(cfg.XP)
	gamificationRepo := gamification.NewRepository(pool, engine)
	gamificationSvc := gamification.NewService(gamificationRepo, events)
	gamificationHandler := gamification.NewHandler(gamificationSvc)

	// Analytics
	analyticsHandler := analytics.NewHandler(analytics.NewService(analytics.NewRepository(pool)))

	// Coach
	coachHandler := coach.NewHandler(coach.NewService(llmClient, cfg.LLM))

	// Activity feed
	activityRepo := activity.NewRepository(pool)
	activityHandler := activity.NewHandler(activityRepo)

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	if natsClient != nil {
		consumerMgr := inats.NewConsumerManager(natsClient.JetStream())
		activityConsumer := activity.NewConsumer(activityRepo, consumerMgr)
		go func() {
			if err := activityConsumer.Start(consumerCtx); err != nil {
				slog.Error("activity consumer stopped", "error", err)
			}
		}()
	}

	// Rate limiters
	var authLimiter, generateLimiter func(http.Handler) http.Handler
	if cfg.RateLimit.Enabled {
		authLimiter = middleware.NewRateLimiter(redisClient, "auth", cfg.RateLimit.RequestsPerMinute, 60).Middleware
		generateLimiter = middleware.NewRateLimiter(redisClient, "generate", cfg.RateLimit.RequestsPerMinute, 60).Middleware
	}

	// Router
	router := api.NewRouter(pool, natsClient, api.RouterConfig{
		CORSAllowedOrigins:   cfg.CORS.AllowedOrigins,
		AuthRateLimiter:      authLimiter,
		BreakdownRateLimiter: generateLimiter,
	}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		Me:                authHandler.Me,
		GetPreferences:    preferencesHandler.Get,
		UpdatePreferences: preferencesHandler.Update,

		CreateBreakdown:            breakdownHandler.Create,
		ListBreakdowns:             breakdownHandler.List,
		GetBreakdown:               breakdownHandler.Get,
		SubmitFeedback:             breakdownHandler.SubmitFeedback,
		ReorderTasks:               breakdownHandler.ReorderTasks,
		MergeTasks:                 breakdownHandler.MergeTasks,
		SessionOwnershipMiddleware: breakdownHandler.OwnershipMiddleware,

		UpdateTask:   breakdownHandler.UpdateTask,
		CompleteTask: gamificationHandler.CompleteTask,

		GetGamificationProfile: gamificationHandler.GetProfile,
		GetAnalyticsSummary:    analyticsHandler.Summary,
		ListMemories:           memoryHandler.List,
		ListActivity:           activityHandler.List,
		CoachStuck:             coachHandler.Stuck,

		AuthMiddleware: auth.Middleware(authSvc),
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
