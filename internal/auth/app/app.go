package app

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

	"github.com/aussiebroadwan/tracker/internal/auth/attempts"
	httpapi "github.com/aussiebroadwan/tracker/internal/auth/http"
	"github.com/aussiebroadwan/tracker/internal/auth/metrics"
	"github.com/aussiebroadwan/tracker/internal/auth/service"
	"github.com/aussiebroadwan/tracker/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/tracker/pkg/cryptox"
	"github.com/aussiebroadwan/tracker/pkg/httpx"
	"github.com/aussiebroadwan/tracker/pkg/jwtx"
	"github.com/aussiebroadwan/tracker/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// BuildVersion is overridden at build time with -ldflags "-X ...".
var BuildVersion = "v0.1.0"

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       *sqlite.Store
	tokens   *jwtx.HS256
	tracker  attempts.Tracker
	redis    *redis.Client // nil unless REDIS_URL is set
	registry *prometheus.Registry
	metrics  *metrics.Auth

	// Services
	authService         *service.AuthService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// NewLogger builds the process logger from the shared settings.
func NewLogger(c Common) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "auth-service",
		Version: BuildVersion,
		Env:     c.Env,
		Level:   c.LogLevel,
		Format:  c.LogFormat,
	})
}

// OpenStore opens the database and applies pending migrations.
func OpenStore(c Common, logger *slog.Logger) (*sqlite.Store, error) {
	cryptox.SetPepperPath(c.PepperFile)

	db, err := sqlite.NewStore(c.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}

	version, dirty, err := db.MigrationVersion()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to read migration version: %w", err)
	}
	logger.Info("database migrations applied successfully", "version", version, "dirty", dirty)
	return db, nil
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg:    cfg,
		logger: NewLogger(cfg.Common),
	}

	db, err := OpenStore(cfg.Common, app.logger)
	if err != nil {
		return nil, err
	}
	app.db = db

	tokens, err := jwtx.NewHS256(jwtx.HS256Config{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
		AccessTTL: cfg.AccessTTL(),
	})
	if err != nil {
		app.closeAll()
		return nil, fmt.Errorf("failed to initialize token issuer: %w", err)
	}
	app.tokens = tokens

	if err := app.initAttempts(); err != nil {
		app.closeAll()
		return nil, err
	}

	if err := app.initMetrics(); err != nil {
		app.closeAll()
		return nil, err
	}

	app.initServices()

	if err := app.seedAdmin(context.Background()); err != nil {
		app.closeAll()
		return nil, err
	}

	if err := app.initHTTP(); err != nil {
		app.closeAll()
		return nil, err
	}

	return app, nil
}

// Handler exposes the fully wired router, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			app.closeAll()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.closeAll(); err != nil {
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// closeAll releases the redis client and the database. Safe on a partly
// built Application.
func (app *Application) closeAll() error {
	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
			errs = append(errs, err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// initAttempts picks the shared Redis tracker when REDIS_URL is set and the
// process-local one otherwise.
func (app *Application) initAttempts() error {
	if app.cfg.RedisURL == "" {
		app.tracker = attempts.NewMemory(app.cfg.LockoutWindow)
		app.logger.Info("login attempt tracker: memory", "window", app.cfg.LockoutWindow)
		return nil
	}

	opts, err := redis.ParseURL(app.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("%w: REDIS_URL: %v", ErrConfig, err)
	}
	app.redis = redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tracker := attempts.NewRedis(app.redis, app.cfg.LockoutWindow)
	if err := tracker.Ping(ctx); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}

	app.tracker = tracker
	app.logger.Info("login attempt tracker: redis", "addr", opts.Addr, "window", app.cfg.LockoutWindow)
	return nil
}

func (app *Application) initMetrics() error {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m, err := metrics.New(app.registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	app.metrics = m
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.authService = &service.AuthService{
		Store:         app.db,
		Tokens:        app.tokens,
		Attempts:      app.tracker,
		Passwords:     cryptox.Argon2id{},
		Metrics:       app.metrics,
		RefreshTTL:    app.cfg.RefreshTTL(),
		ResetTokenTTL: app.cfg.ResetTokenTTL,
		Lockout:       app.cfg.LockoutPolicy(),
		AttemptWindow: app.cfg.LockoutWindow,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) seedAdmin(ctx context.Context) error {
	if app.cfg.SeedAdminEmail == "" {
		return nil
	}

	ctx = slogx.WithContext(ctx, app.logger)
	if _, err := app.authService.EnsureAdmin(ctx, service.AdminSeed{
		Email:    app.cfg.SeedAdminEmail,
		Password: app.cfg.SeedAdminPassword,
	}); err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() error {
	proxies, err := httpx.NewClientIPResolver(app.cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("%w: TRUSTED_PROXIES: %v", ErrConfig, err)
	}

	router := httpapi.NewRouter(
		app.tokens,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.AuthService = app.authService
	router.Attempts = app.tracker
	router.Metrics = app.metrics
	router.ClientIPs = proxies
	router.ExposeResetToken = app.cfg.ExposeResetToken()
	router.ApplyRoutes()

	if router.ExposeResetToken {
		app.logger.Warn("AUTH_DEBUG is set: forgot-password responses include reset tokens")
	}

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}

// SeedAdmin creates an admin account outside of serve. It needs no token
// configuration since no tokens are issued.
func SeedAdmin(ctx context.Context, c Common, logger *slog.Logger, seed service.AdminSeed) (bool, error) {
	db, err := OpenStore(c, logger)
	if err != nil {
		return false, err
	}
	defer db.Close()

	svc := &service.AuthService{Store: db, Passwords: cryptox.Argon2id{}}
	return svc.EnsureAdmin(slogx.WithContext(ctx, logger), seed)
}
