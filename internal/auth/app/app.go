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

	rediscache "github.com/aussiebroadwan/warden/internal/auth/cache/drivers/redis"
	"github.com/aussiebroadwan/warden/internal/auth/domain"
	httpapi "github.com/aussiebroadwan/warden/internal/auth/http"
	"github.com/aussiebroadwan/warden/internal/auth/messaging"
	"github.com/aussiebroadwan/warden/internal/auth/metrics"
	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/warden/pkg/slogx"
	"github.com/nsqio/go-nsq"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db        store.Store
	cache     *rediscache.Cache
	clients   domain.Clients
	metrics   *metrics.Metrics
	messenger messaging.Messenger
	producer  *nsq.Producer // nil unless AUTH_MESSAGING=nsq

	// Services
	keys                *service.SigningKeyManager
	tokens              *service.TokenIssuer
	otp                 *service.OtpEngine
	login               *service.LoginOtpService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "warden",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: metrics.New(),
	}

	clients, err := LoadClients(cfg.ClientsFile)
	if err != nil {
		return nil, err
	}
	app.clients = clients
	app.logger.Info("client registry loaded", "clients", len(clients))

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initCache(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initMessaging(); err != nil {
		_ = app.cache.Close()
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler is the root HTTP handler.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("warden starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down warden...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	// Flush pending deliveries
	if app.producer != nil {
		app.producer.Stop()
	}

	var errs []error
	if err := app.cache.Close(); err != nil {
		app.logger.Error("error closing redis", "error", err)
		errs = append(errs, err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		errs = append(errs, err)
	}

	app.logger.Info("warden stopped")
	return errors.Join(errs...)
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initCache() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := rediscache.Open(ctx, rediscache.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
		Prefix:   app.cfg.RedisPrefix,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.cache = c

	app.logger.Info("redis connected", "addr", app.cfg.RedisAddr, "prefix", app.cfg.RedisPrefix)
	return nil
}

func (app *Application) initMessaging() error {
	switch app.cfg.Messaging {
	case MessagingNSQ:
		producer, err := messaging.NewProducer(app.cfg.NSQDAddr)
		if err != nil {
			return fmt.Errorf("failed to connect to nsqd: %w", err)
		}
		app.producer = producer
		app.messenger = messaging.NewNSQMessenger(producer, messaging.Topics{
			Sms:   app.cfg.NSQSmsTopic,
			Email: app.cfg.NSQEmailTopic,
		})
		app.logger.Info("messaging via nsq", "nsqd", app.cfg.NSQDAddr)
	default:
		app.messenger = messaging.LogMessenger{}
		app.logger.Warn("messaging via log; codes are written to the log, not delivered")
	}
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.keys = InitSigningKeys(app.cfg, app.db, app.cache, app.metrics, app.logger)

	app.tokens = service.NewTokenIssuer(app.keys, app.db, app.clients, service.TokenIssuerConfig{
		Issuer:  app.cfg.Issuer,
		Leeway:  app.cfg.TokenLeeway,
		Metrics: app.metrics,
	})
	app.otp = service.NewOtpEngine(app.cache.Otp(), app.messenger, service.OtpEngineConfig{
		Metrics: app.metrics,
	})
	app.login = service.NewLoginOtpService(app.otp, app.tokens)

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.logger)

	router.Verifier = app.tokens
	router.ServiceToken = app.cfg.ServiceToken
	router.Database = app.db
	router.Cache = app.cache
	router.Metrics = app.metrics
	router.Keys = app.keys
	router.Tokens = app.tokens
	router.Otp = app.otp
	router.Login = app.login
	router.ApplyRoutes()

	if app.cfg.ServiceToken == "" {
		app.logger.Warn("AUTH_SERVICE_TOKEN not set; internal endpoints are closed")
	}

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
