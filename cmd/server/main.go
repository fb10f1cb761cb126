package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"classroom/internal/config"
	"classroom/internal/handlers"
	"classroom/internal/metrics"
	"classroom/internal/oauth"
	"classroom/internal/repository"
	"classroom/internal/security"
	"classroom/internal/service"
	"classroom/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalw("Server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	startup := handlers.NewStartupStatus()

	// Open the configured backend and prepare its schema
	store, closeStore, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	startup.CompleteStep(handlers.StepStore)
	startup.CompleteStep(handlers.StepMigrations)

	m := metrics.NewDefault()

	states, err := security.NewStateSigner(cfg.StateSecret, 10*time.Minute)
	if err != nil {
		return err
	}
	if cfg.StateSecret == "" {
		logger.Warnw("STATE_SECRET not set, OAuth state is only valid for this process")
	}

	emailService, err := service.NewEmailService(ctx, cfg.AWSRegion, cfg.FromEmail, cfg.FromName, cfg.AppBaseURL, cfg.EmailDebug, logger)
	if err != nil {
		return err
	}
	if !emailService.IsEnabled() {
		logger.Warnw("Email disabled, password reset links are not delivered", "hint", "set SES_FROM_EMAIL")
	}

	// Initialize services
	credentials := service.NewCredentialStore(store.Users)
	sessions := service.NewSessionManager(store.Sessions, credentials, cfg.SessionDuration, logger, m)
	resets := service.NewPasswordResetFlow(store.ResetTokens, store.Users, sessions, emailService, cfg.ResetTokenTTL, logger, m)
	providers := oauth.FromConfig(cfg)
	bridge := service.NewOAuthBridge(providers, states, credentials, sessions, logger, m)
	users := service.NewUserService(store.Users, sessions, logger)
	classroom := service.NewClassroomService(store.Classroom, store.Users, logger)
	courses := service.NewCourseService(store.Courses, store.Users, logger)
	exams := service.NewExamService(store.Exams, store.Courses, store.Users, emailService, logger, m)
	logger.Infow("OAuth providers configured", "providers", providers.Names())
	startup.CompleteStep(handlers.StepServices)

	limiter := security.NewRateLimiter(cfg.RateLimitRPM)
	if err := limiter.TrustProxies(cfg.TrustedProxies); err != nil {
		return err
	}

	// Initialize handlers
	router := handlers.NewRouter(handlers.Routes{
		Middleware: handlers.NewMiddleware(sessions, limiter, m, logger),
		Auth:       handlers.NewAuthHandler(credentials, sessions, resets, emailService, cfg.ResetTokenInResponse, logger),
		OAuth:      handlers.NewOAuthHandler(bridge, cfg.OAuthRedirectBaseURL, logger),
		Users:      handlers.NewUserHandler(users, logger),
		Classroom:  handlers.NewClassroomHandler(classroom, logger),
		Courses:    handlers.NewCourseHandler(courses, logger),
		Exams:      handlers.NewExamHandler(exams, logger),
		Health:     handlers.NewHealthHandler(startup, store.Ping),
		Metrics:    m.Handler(),
	})

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start background cleanup of expired sessions and reset tokens
	go sweepExpired(ctx, cfg.SweepInterval, sessions, resets, limiter, logger)

	serverErr := make(chan error, 1)
	go func() {
		logger.Infow("Server starting", "addr", addr, "env", cfg.Env, "storage", cfg.DatabaseType)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()
	startup.MarkReady()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Infow("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Infow("Server stopped")
	return nil
}

// sweepExpired periodically removes expired sessions and reset tokens
func sweepExpired(ctx context.Context, interval time.Duration, sessions *service.SessionManager, resets *service.PasswordResetFlow, limiter *security.RateLimiter, logger *zap.SugaredLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if n, err := sessions.Sweep(ctx); err != nil {
			logger.Errorw("Error cleaning up expired sessions", "error", err)
		} else {
			logger.Infow("Expired sessions cleaned up", "deleted", n)
		}

		if n, err := resets.Sweep(ctx); err != nil {
			logger.Errorw("Error cleaning up expired reset tokens", "error", err)
		} else {
			logger.Infow("Expired reset tokens cleaned up", "deleted", n)
		}

		limiter.Cleanup()
	}
}
