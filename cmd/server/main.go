package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forgo/rotativos/api/internal/config"
	"github.com/forgo/rotativos/api/internal/database"
	"github.com/forgo/rotativos/api/internal/handler"
	"github.com/forgo/rotativos/api/internal/jobs"
	"github.com/forgo/rotativos/api/internal/metrics"
	"github.com/forgo/rotativos/api/internal/middleware"
	"github.com/forgo/rotativos/api/internal/repository"
	"github.com/forgo/rotativos/api/internal/rules"
	"github.com/forgo/rotativos/api/internal/service"
	"github.com/forgo/rotativos/api/internal/telemetry"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Initialize structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()

	// Tracing
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, version)
	if err != nil {
		slog.Error("failed to set up telemetry", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	// Initialize database connection
	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,
	})

	if err := db.Connect(ctx); err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	slog.Info("connected to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Database),
	)

	// Initialize repositories
	rotativoRepo := repository.NewRotativoRepository(db)
	waitingListRepo := repository.NewWaitingListRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	ruleConfigRepo := repository.NewRuleConfigRepository(db)
	eventRepo := repository.NewEventRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Shared infrastructure
	collector := metrics.NewCollector(logger)
	notifier := service.NewLogNotifier(logger)
	auditor := service.NewStoreAuditor(auditRepo)
	locks := service.NewKeyedLock()
	capacities := rules.NewCapacityCache(ruleConfigRepo, cfg.Rules.CapacityTTL)

	// Rule engine
	catalog := rules.DefaultCatalog(rules.Deps{
		Capacities:  capacities,
		Blocks:      eventRepo,
		WaitingList: waitingListRepo,
		Events:      repository.NewRuleLookup(eventRepo, rotativoRepo),
	})
	engine := rules.NewEngine(rules.EngineConfig{
		Catalog: catalog,
		Configs: ruleConfigRepo,
		Metrics: collector,
	})

	// Initialize services
	balanceService := service.NewBalanceService(service.BalanceServiceConfig{
		BalanceRepo:  balanceRepo,
		EventRepo:    eventRepo,
		RotativoRepo: rotativoRepo,
		MemberRepo:   memberRepo,
		Locks:        locks,
		Auditor:      auditor,
		Metrics:      collector,
	})

	contextBuilder := service.NewContextBuilder(service.ContextBuilderConfig{
		EventRepo:    eventRepo,
		RotativoRepo: rotativoRepo,
		QueueRepo:    waitingListRepo,
		MemberRepo:   memberRepo,
		Balances:     balanceService,
		Capacities:   capacities,
	})

	waitingListService := service.NewWaitingListService(service.WaitingListServiceConfig{
		QueueRepo:    waitingListRepo,
		RotativoRepo: rotativoRepo,
		Contexts:     contextBuilder,
		Validator:    engine,
		Balances:     balanceService,
		Locks:        locks,
		Notifier:     notifier,
		Auditor:      auditor,
		Metrics:      collector,
	})

	rotativoService := service.NewRotativoService(service.RotativoServiceConfig{
		RotativoRepo: rotativoRepo,
		EventRepo:    eventRepo,
		Contexts:     contextBuilder,
		Validator:    engine,
		Queue:        waitingListService,
		Balances:     balanceService,
		Locks:        locks,
		Notifier:     notifier,
		Auditor:      auditor,
		Metrics:      collector,
	})

	ruleConfigService := service.NewRuleConfigService(service.RuleConfigServiceConfig{
		ConfigRepo: ruleConfigRepo,
		Engine:     engine,
		Caches:     []service.CacheInvalidator{capacities},
		Auditor:    auditor,
	})

	// Seed rule configs into an empty store
	if cfg.Rules.SeedFile != "" {
		records, err := rules.LoadSeedFile(cfg.Rules.SeedFile, catalog)
		if err != nil {
			slog.Error("failed to load rule seed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		n, err := ruleConfigService.Seed(ctx, records, false)
		if err != nil {
			slog.Error("failed to seed rule configs", slog.String("error", err.Error()))
			os.Exit(1)
		}
		slog.Info("rule configs seeded",
			slog.String("file", cfg.Rules.SeedFile),
			slog.Int("written", n),
		)
	}

	// Background jobs
	if cfg.Jobs.ReconcileEnabled {
		reconciler := jobs.NewBalanceReconciler(jobs.BalanceReconcilerConfig{
			Seasons:  eventRepo,
			Balances: balanceService,
			Metrics:  collector,
			Interval: cfg.Jobs.ReconcileInterval,
		})
		reconciler.Start()
		defer reconciler.Stop()
	}

	// Rate limits on the endpoints that run the rule pipeline
	requestLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Name:   "rotativos",
		Rate:   cfg.Limits.RequestsPerMinute,
		Window: time.Minute,
		Burst:  cfg.Limits.Burst,
	})
	defer requestLimiter.Stop()
	validateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Name:   "validate",
		Rate:   cfg.Limits.ValidationsPerMinute,
		Window: time.Minute,
		Burst:  cfg.Limits.Burst,
	})
	defer validateLimiter.Stop()

	// Initialize idempotency store
	idempotencyStore := middleware.NewIdempotencyStore(middleware.IdempotencyConfig{
		TTL:     24 * time.Hour,
		Cleanup: time.Hour,
	})
	defer idempotencyStore.Stop()

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(db)
	rotativoHandler := handler.NewRotativoHandler(rotativoService)
	waitingListHandler := handler.NewWaitingListHandler(waitingListService)
	balanceHandler := handler.NewBalanceHandler(balanceService)
	ruleHandler := handler.NewRuleHandler(ruleConfigService)

	member := func(h http.HandlerFunc) http.Handler {
		return middleware.Actor(h)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.Actor(middleware.RequireAdmin(h))
	}
	idempotent := middleware.Idempotency(idempotencyStore)

	// Set up routes
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler.Health)
	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, collector.Handler())
	}

	// Rotation requests
	mux.Handle("POST /v1/rotativos", middleware.Chain(http.HandlerFunc(rotativoHandler.Request), middleware.Actor, middleware.RateLimit(requestLimiter), idempotent))
	mux.Handle("POST /v1/validate", middleware.Chain(http.HandlerFunc(rotativoHandler.Validate), middleware.Actor, middleware.RateLimit(validateLimiter)))
	mux.Handle("DELETE /v1/rotativos/{id}", member(rotativoHandler.Cancel))
	mux.Handle("POST /v1/rotativos/{id}/resolve", admin(rotativoHandler.Resolve))

	// Waiting lists
	mux.Handle("GET /v1/events/{eventId}/waiting-list", member(waitingListHandler.List))
	mux.Handle("DELETE /v1/events/{eventId}/waiting-list/{userId}", member(waitingListHandler.Withdraw))
	mux.Handle("POST /v1/events/{eventId}/waiting-list/promote", admin(waitingListHandler.Promote))
	mux.Handle("DELETE /v1/seasons/{seasonId}/waiting-list", admin(waitingListHandler.Purge))

	// Balances
	mux.Handle("GET /v1/seasons/{seasonId}/balances/{userId}", member(balanceHandler.Get))
	mux.Handle("POST /v1/seasons/{seasonId}/balances/{userId}/recalculate", admin(balanceHandler.Recalculate))
	mux.Handle("PUT /v1/seasons/{seasonId}/balances/{userId}/manual-max", admin(balanceHandler.SetManualMax))

	// Rule configuration
	mux.Handle("GET /v1/rules", admin(ruleHandler.List))
	mux.Handle("PUT /v1/rules/{configKey}", admin(ruleHandler.Update))

	// Apply global middleware
	wrapped := middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.Trace,
		middleware.Logger,
		middleware.Recovery,
		middleware.CORS(cfg.Server.AllowedOrigins),
		middleware.Compress,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      wrapped,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Server.Port),
			slog.String("env", cfg.Server.Env),
			slog.String("version", version),
			slog.Int("rules", catalog.Len()),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	slog.Info("server exited")
}
