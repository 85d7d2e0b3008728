package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/background"
	"github.com/BradenHooton/sentinel/internal/config"
	"github.com/BradenHooton/sentinel/internal/database"
	"github.com/BradenHooton/sentinel/internal/handlers"
	middlewareCustom "github.com/BradenHooton/sentinel/internal/middleware"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/repositories"
	"github.com/BradenHooton/sentinel/internal/routes"
	"github.com/BradenHooton/sentinel/internal/security"
	"github.com/BradenHooton/sentinel/internal/services"
	"github.com/BradenHooton/sentinel/internal/storage"
	"github.com/BradenHooton/sentinel/migrations"
	pkgauth "github.com/BradenHooton/sentinel/pkg/auth"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
	pkglogger "github.com/BradenHooton/sentinel/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	ctx := context.Background()

	// Initialize database
	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Attempt counters live in Redis when configured
	healthChecks := map[string]handlers.HealthCheck{"database": db.HealthCheck}
	var counters services.CounterStore
	var memoryCounters *repositories.MemoryCounterStore
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		redisCounters := repositories.NewRedisCounterStore(client)
		if err := redisCounters.Ping(ctx); err != nil {
			// Brute-force checks follow the fail-open setting until Redis returns
			logger.Warn("redis unreachable at startup", slog.Any("error", err))
		}
		counters = redisCounters
		healthChecks["redis"] = redisCounters.Ping
	} else {
		logger.Warn("REDIS_ADDR not set, using in-process attempt counters")
		memoryCounters = repositories.NewMemoryCounterStore()
		counters = memoryCounters
	}

	// Object storage is optional; uploads answer 503 without it
	store, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		if !errors.Is(err, models.ErrStorageNotConfigured) {
			logger.Error("failed to initialize object storage", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Warn("object storage not configured, uploads disabled")
		store = nil
	}

	// Injection pattern table
	patterns, err := loadPatterns(cfg.Security.PatternsFile)
	if err != nil {
		logger.Error("failed to load injection patterns", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	eventRepo := repositories.NewSecurityEventRepository(db)

	// Security primitives
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	hasher := pkgauth.NewPasswordHasher(cfg.Auth.BcryptCost)
	sanitizer := security.NewSanitizer(patterns)
	fileRules := security.FileRulesFromConfig(cfg.Security.Uploads)
	fileValidator := security.NewFileValidator(fileRules)
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	eventLog := services.NewSecurityEventLog(eventRepo, pkglogger.NewSecurityLogger(logger), logger, cfg.Security.Events.PersistTimeout)

	bf := cfg.Security.BruteForce
	guard := services.NewBruteForceGuard(
		services.NewRateTracker(counters, bf.StoreTimeout),
		services.BruteForceConfig{
			MaxAttempts:   bf.MaxAttempts,
			LockoutWindow: bf.LockoutWindow,
			KeyPrefix:     bf.KeyPrefix,
			FailOpen:      bf.FailOpen,
		},
		logger,
	)

	// Initialize services
	authService := services.NewAuthService(userRepo, hasher, tokenManager, guard, eventLog, logger)
	authService.SetFailureDelay(auth.NewFailureDelay(auth.FailureDelayConfig{
		Base:   cfg.Auth.FailureDelayBase,
		Jitter: cfg.Auth.FailureDelayJitter,
	}))
	if cfg.Email.FromAddress != "" {
		notifier, err := services.NewSESLockoutNotifier(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		authService.SetLockoutNotifier(notifier)
	}

	userService := services.NewUserService(userRepo, hasher, sanitizer, eventLog, logger)
	encodePool := background.NewEncodePool(cfg.Security.Encode.Concurrency, cfg.Security.Encode.QueueWait, logger)
	var objectStore services.ObjectStore
	if store != nil {
		objectStore = store
	}
	uploadService := services.NewUploadService(fileValidator, encodePool, objectStore, eventLog, logger)

	// Retention and in-process counter expiry
	cleanupTasks := []background.CleanupTask{{
		Name: "security_events",
		Run: func(ctx context.Context) (int64, error) {
			return eventRepo.DeleteBefore(ctx, time.Now().Add(-cfg.Security.Events.Retention))
		},
	}}
	if memoryCounters != nil {
		cleanupTasks = append(cleanupTasks, background.CleanupTask{
			Name: "attempt_counters",
			Run: func(context.Context) (int64, error) {
				return int64(memoryCounters.Sweep()), nil
			},
		})
	}
	cleanupManager := background.NewCleanupManager(logger, cfg.Security.Events.CleanupInterval, cleanupTasks...)

	// Bootstrap first admin user if configured
	bootstrapCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := ensureAdminUser(bootstrapCtx, userRepo, hasher, cfg.Server.Env, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Initialize handlers
	csrf := cfg.Security.CSRF
	production := cfg.Server.Env == "production"
	csrfSettings := handlers.CSRFSettings{
		Cookie: auth.CookieConfig{
			Name:     csrf.CookieName,
			Secure:   production,
			SameSite: "strict",
		},
		HeaderName:  csrf.HeaderName,
		TokenLength: csrf.TokenLength,
		MaxAge:      csrf.MaxAge,
	}

	h := routes.Handlers{
		Auth:     handlers.NewAuthHandler(authService, userService, csrfSettings, ipConfig, logger),
		Users:    handlers.NewUserHandler(userService, ipConfig, logger),
		Uploads:  handlers.NewUploadHandler(uploadService, fileRules, cfg.Security.Uploads.MaxMultipartMemory, eventLog, ipConfig, logger),
		Security: handlers.NewSecurityHandler(patterns, eventLog),
		Health:   handlers.NewHealthHandler(healthChecks),
	}

	g := routes.Guards{
		Tokens:     tokenManager,
		BruteForce: guard,
		Sanitizer:  sanitizer,
		Events:     eventLog,
		CSRF: middlewareCustom.CSRFGuardConfig{
			CookieName:     csrf.CookieName,
			HeaderName:     csrf.HeaderName,
			ExemptPrefixes: csrf.ExemptPaths,
			FrontendOrigin: cfg.Server.FrontendOrigin,
			Production:     production,
		},
		IPConfig:         ipConfig,
		LoginPerMinute:   bf.LoginPerMinute,
		RegisterPerHour:  bf.RegisterPerHour,
		UploadsPerMinute: cfg.Security.Uploads.UploadsPerMinute,
		UploadsPerHour:   cfg.Security.Uploads.UploadsPerHour,
		Logger:           logger,
	}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins, csrf.HeaderName)))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, h, g)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(ctx)
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loadPatterns(path string) (*security.PatternTable, error) {
	if path == "" {
		return security.DefaultPatternTable()
	}
	return security.LoadPatternTable(path)
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, hasher *pkgauth.PasswordHasher, env string, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	// Check if admin already exists
	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	if err := pkgauth.ValidatePassword(adminPassword); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD rejected: %w", err)
	}

	hashedPassword, err := hasher.Hash(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Email:        adminEmail,
		PasswordHash: hashedPassword,
		FirstName:    "Admin",
		Role:         "admin",
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully", pkglogger.RedactedAttr("email", adminEmail, env))
	return nil
}
