package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/dian-gateway/internal/auth"
	"github.com/BradenHooton/dian-gateway/internal/background"
	"github.com/BradenHooton/dian-gateway/internal/clock"
	"github.com/BradenHooton/dian-gateway/internal/config"
	"github.com/BradenHooton/dian-gateway/internal/database"
	"github.com/BradenHooton/dian-gateway/internal/handlers"
	middlewareCustom "github.com/BradenHooton/dian-gateway/internal/middleware"
	"github.com/BradenHooton/dian-gateway/internal/models"
	"github.com/BradenHooton/dian-gateway/internal/repositories"
	"github.com/BradenHooton/dian-gateway/internal/routes"
	"github.com/BradenHooton/dian-gateway/internal/services"
	"github.com/BradenHooton/dian-gateway/internal/stats"
	pkgauth "github.com/BradenHooton/dian-gateway/pkg/auth"
	pkghttp "github.com/BradenHooton/dian-gateway/pkg/http"
	pkglogger "github.com/BradenHooton/dian-gateway/pkg/logger"
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

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	ipConfig, err := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("invalid TRUSTED_PROXIES", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize database
	db, err := database.Open(context.Background(), &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	userRepo := repositories.NewUserRepository(db)
	loginAttemptRepo := repositories.NewLoginAttemptRepository(db)

	clk := clock.Real()
	auditLogger := pkglogger.NewAuditLogger(logger)

	// Admission guards
	var blockOpts []services.HostBlockOption
	if cfg.Alerts.Recipient != "" {
		alerts, err := services.NewSESAlertService(context.Background(),
			cfg.Alerts.AWSRegion, cfg.Alerts.FromAddress, cfg.Alerts.Recipient, logger)
		if err != nil {
			logger.Error("failed to initialize security alerts", slog.Any("error", err))
			os.Exit(1)
		}
		blockOpts = append(blockOpts, services.WithBlockHook(alerts.HostBlocked))
		logger.Info("host block alerts enabled")
	}
	hostBlockService := services.NewHostBlockService(clk, logger, blockOpts...)
	rateLimitService := services.NewRateLimitService(clk, logger)

	// Admission stats
	memStats := stats.NewMemoryStore()
	var statsStore stats.Store = memStats
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, admission stats stay in memory", slog.Any("error", err))
		} else {
			statsStore = stats.Multi{memStats, stats.NewRedisStore(rdb,
				stats.WithPrefix(cfg.Redis.Prefix),
				stats.WithTTL(cfg.Redis.StatsTTL))}
			logger.Info("redis admission stats enabled", slog.String("addr", cfg.Redis.Addr))
		}
		cancel()
	}

	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
		clk,
	)

	authService := services.NewAuthService(
		userRepo,
		loginAttemptRepo,
		hostBlockService,
		tokenManager,
		clk,
		cfg.Auth.LoginAuditRetention,
		logger,
		auditLogger,
	)

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	cleanupManager := background.NewCleanupManager(logger, cfg.Auth.CleanupInterval,
		background.InMemory("rate_limit_windows", rateLimitService.Cleanup),
		background.InMemory("host_blocks", hostBlockService.Cleanup),
		background.Task{Name: "login_attempts", Run: loginAttemptRepo.DeleteExpired},
	)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middlewareCustom.AdmissionControl(middlewareCustom.AdmissionConfig{
		Limiter:  rateLimitService,
		Stats:    statsStore,
		IPConfig: ipConfig,
		Audit:    auditLogger,
		Logger:   logger,
		Now:      clk.Now,
	}))
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, routes.Handlers{
		Auth:   handlers.NewAuthHandler(authService, ipConfig),
		User:   handlers.NewUserHandler(authService),
		Admin:  handlers.NewAdminHandler(hostBlockService, loginAttemptRepo, memStats, ipConfig, auditLogger, logger),
		Health: handlers.Health(db),
	}, routes.RouteConfig{
		TokenManager:         tokenManager,
		IPConfig:             ipConfig,
		RefreshRatePerMinute: cfg.Auth.RefreshRatePerMinute,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
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

	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user when ADMIN_EMAIL and
// ADMIN_PASSWORD are set and the email is not registered yet
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, email, password string, logger *slog.Logger) error {
	if email == "" || password == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, email)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD rejected: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	_, err = userRepo.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hashedPassword,
		Name:         "Administrador",
		Role:         models.RoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
