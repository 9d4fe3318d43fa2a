package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"placement/internal/app"
	"placement/internal/config"
	"placement/internal/database"
	apphttp "placement/internal/http"
	"placement/internal/http/handlers"
	httpmw "placement/internal/http/middleware"
	"placement/internal/mailer"
	"placement/internal/observability"
	"placement/internal/repository/postgres"
	"placement/internal/security"
	"placement/internal/storage"
)

func main() {
	if err := run(); err != nil {
		slog.Error("placement api stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := database.Migrate(cfg.PostgresDSN, logger); err != nil {
			return err
		}
	}
	db, err := database.NewPostgres(ctx, database.PostgresConfig{
		DSN:             cfg.PostgresDSN,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxIdle:     cfg.DBConnMaxIdle,
		ConnMaxLifetime: cfg.DBConnMaxLife,
	}, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	location, err := cfg.Location()
	if err != nil {
		return err
	}

	driveRepo := postgres.NewDriveRepository(db)
	studentRepo := postgres.NewStudentRepository(db)
	analyticsRepo := postgres.NewAnalyticsRepository(db)

	var mail app.Mailer = mailer.NewLogMailer(logger)
	if cfg.SMTPEnabled() {
		mail = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	} else {
		logger.Warn("SMTP_HOST not set, OTP mails are only logged")
	}

	signatures, err := storage.NewLocalSignatureStore(cfg.SignatureDir)
	if err != nil {
		return err
	}

	locks := app.NewKeyedLocker()
	completion := app.RequiredFields{}
	otpIssuer := app.NewOTPIssuer(studentRepo, mail, logger, cfg.OTPTTL)
	driveService := app.NewDriveService(driveRepo, studentRepo, analyticsRepo, app.DriveServiceOptions{
		Completion: completion,
		Cache:      app.NewDriveCache(cfg.DriveCacheSize, cfg.DriveCacheTTL),
		Locks:      locks,
		Location:   location,
		Logger:     logger,
	})
	studentService := app.NewStudentService(studentRepo, completion, analyticsRepo)
	consentService := app.NewConsentService(studentRepo, otpIssuer, signatures, completion, analyticsRepo, locks, logger)

	limiter, closeLimiter := newLimiter(ctx, cfg.RedisURL, logger)
	defer closeLimiter()
	window := cfg.RateLimitWindow

	router := apphttp.NewRouter(apphttp.RouterDependencies{
		DriveHandler:    handlers.NewDriveHandler(driveService, limiter, handlers.RateLimit{Limit: cfg.ApplyRateLimit, Window: window}),
		StudentHandler:  handlers.NewStudentHandler(studentService),
		ConsentHandler:  handlers.NewConsentHandler(consentService, limiter, handlers.RateLimit{Limit: cfg.OTPRateLimit, Window: window}),
		AuthMiddleware:  httpmw.NewAuthMiddleware(security.NewJWTProvider(cfg.JWTSecret, cfg.JWTIssuer)),
		Logger:          logger,
		RequestTimeout:  cfg.RequestTimeout,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		Limiter:         limiter,
		ConsentIPLimit:  cfg.ConsentIPRateLimit,
		RateLimitWindow: window,
		Health:          pingHealth(db),
	})
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("placement api started", slog.String("addr", server.Addr), slog.String("timezone", location.String()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newLimiter prefers a shared redis limiter and falls back to process memory.
func newLimiter(ctx context.Context, redisURL string, logger *slog.Logger) (httpmw.Limiter, func()) {
	if redisURL == "" {
		return httpmw.NewRateLimiter(), func() {}
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid REDIS_URL, using in-memory rate limiter", slog.String("error", err.Error()))
		return httpmw.NewRateLimiter(), func() {}
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-memory rate limiter", slog.String("error", err.Error()))
		_ = client.Close()
		return httpmw.NewRateLimiter(), func() {}
	}
	return httpmw.NewRedisLimiter(client, "placement:ratelimit:", logger), func() { _ = client.Close() }
}

func pingHealth(db *sql.DB) func(r *http.Request) error {
	return func(r *http.Request) error {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		return db.PingContext(ctx)
	}
}
