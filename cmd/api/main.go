package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/thriftin-utm/account-service/internal/auth"
	"github.com/thriftin-utm/account-service/internal/background"
	"github.com/thriftin-utm/account-service/internal/config"
	"github.com/thriftin-utm/account-service/internal/database"
	"github.com/thriftin-utm/account-service/internal/handlers"
	middlewareCustom "github.com/thriftin-utm/account-service/internal/middleware"
	"github.com/thriftin-utm/account-service/internal/repositories"
	"github.com/thriftin-utm/account-service/internal/routes"
	"github.com/thriftin-utm/account-service/internal/services"
	pkgauth "github.com/thriftin-utm/account-service/pkg/auth"
	pkghttp "github.com/thriftin-utm/account-service/pkg/http"
	pkglogger "github.com/thriftin-utm/account-service/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(os.Getenv("LOG_LEVEL"))}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(ctx, cfg.Database.DSN(), logger); err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	accountRepo := repositories.NewAccountRepository(db)
	loginAttemptRepo := repositories.NewLoginAttemptRepository(db)

	emailService, err := newEmailService(ctx, cfg.Email, logger)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandomMs,
	})
	emailPolicy := pkgauth.NewEmailPolicy(cfg.Registration.StudentEmailDomain, cfg.Registration.StaffEmailDomain)
	auditLogger := pkglogger.NewAuditLogger(logger)
	ipConfig := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)

	lockout := services.LockoutPolicy{
		MaxFailedAttempts: cfg.Auth.MaxFailedAttempts,
		LockoutDuration:   cfg.Auth.LockoutDuration,
	}

	registrationService := services.NewRegistrationService(accountRepo, emailPolicy, logger, auditLogger)
	authService := services.NewAuthService(accountRepo, loginAttemptRepo, emailService, tokenManager, timingDelay, lockout, logger, auditLogger)
	resetService := services.NewPasswordResetService(accountRepo, emailService, emailPolicy, cfg.Auth.ResetCodeExpiry, logger, auditLogger)
	adminService := services.NewAdminService(accountRepo, loginAttemptRepo, emailPolicy, logger, auditLogger)

	if err := ensureAdmin(ctx, adminService, logger); err != nil {
		logger.Error("failed to ensure admin account", slog.Any("error", err))
	}

	authHandler := handlers.NewAuthHandler(authService, registrationService, resetService, ipConfig)
	adminHandler := handlers.NewAdminHandler(adminService)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, routes.Dependencies{
		AuthHandler:  authHandler,
		AdminHandler: adminHandler,
		TokenManager: tokenManager,
		Accounts:     accountRepo,
		DB:           db,
		IPConfig:     ipConfig,
		Logger:       logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	cleanupManager := background.NewCleanupManager(accountRepo, logger, cfg.Auth.CleanupInterval)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

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

// newEmailService sends through SES when a region is configured and logs
// messages otherwise
func newEmailService(ctx context.Context, cfg config.EmailConfig, logger *slog.Logger) (services.EmailService, error) {
	if cfg.AWSRegion == "" {
		logger.Warn("AWS_REGION not set, emails will be logged instead of sent")
		return services.NewLogEmailService(logger), nil
	}
	return services.NewAWSSESEmailService(ctx, cfg.AWSRegion, cfg.FromAddress, logger)
}

// ensureAdmin creates the bootstrap admin from ADMIN_EMAIL and ADMIN_PASSWORD
func ensureAdmin(ctx context.Context, admin *services.AdminService, logger *slog.Logger) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin bootstrap")
		return nil
	}

	created, err := admin.EnsureAdmin(ctx, email, password)
	if err != nil {
		return err
	}
	if created {
		logger.Info("admin account created", slog.String("email", pkglogger.SanitizedEmail(email)))
	} else {
		logger.Info("admin account already exists")
	}
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
