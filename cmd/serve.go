package cmd

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

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/coursekit/meetingd/internal/calendar"
	"github.com/coursekit/meetingd/internal/config"
	"github.com/coursekit/meetingd/internal/google"
	"github.com/coursekit/meetingd/internal/instrumentation"
	"github.com/coursekit/meetingd/internal/logging"
	"github.com/coursekit/meetingd/internal/meeting"
	"github.com/coursekit/meetingd/internal/server"
	"github.com/coursekit/meetingd/internal/token"
)

const mongoConnectTimeout = 10 * time.Second

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

func newServeCmd() *cobra.Command {
	var (
		debugMode bool
		httpAddr  string
		storeType string
		// Metrics server configuration
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the meeting API server",
		Long: `Start the HTTP API server for creating course meetings with Google Meet
conferences.

The server manages the Google OAuth credential on its own: the operator runs
the consent flow once via /api/auth/login, and the server refreshes the
access token before expiry for as long as the refresh token stays valid.

Configuration comes from the environment (a .env file is honored):
  GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET   OAuth client (required)
  GOOGLE_REDIRECT_URI                      OAuth callback URI(s), comma-separated
  GOOGLE_OAUTH_TOKEN                       optional bootstrap token JSON
  MONGODB_URI, MONGODB_DATABASE            credential and meeting storage
  MEETINGD_STORE                           "mongo" (default) or "memory"
  MEETINGD_RETENTION_WINDOW                credential retention (default 8760h)
  MEETINGD_REFRESH_MARGIN                  pre-expiry refresh buffer (default 30m)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			metricsConfig := MetricsConfig{
				Enabled: metricsEnabled,
				Addr:    metricsAddr,
			}
			return runServe(debugMode, httpAddr, storeType, metricsConfig)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP server address. Overrides MEETINGD_HTTP_ADDR.")
	cmd.Flags().StringVar(&storeType, "store", "", "Storage backend: mongo or memory. Overrides MEETINGD_STORE.")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(debugMode bool, httpAddr, storeType string, metricsConfig MetricsConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if storeType != "" {
		cfg.StoreType = storeType
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	// Load metrics config from environment if not set via flags
	if !metricsConfig.Enabled {
		if os.Getenv("METRICS_ENABLED") == "true" {
			metricsConfig.Enabled = true
		}
	}
	if metricsConfig.Addr == "" || metricsConfig.Addr == ":9090" {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			metricsConfig.Addr = addr
		}
	}

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	// Start metrics server if enabled
	var metricsServer *server.MetricsServer
	if metricsConfig.Enabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsConfig.Addr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		select {
		case <-metricsReady:
			logger.Info("metrics server started", slog.String("addr", metricsServer.Addr()))
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
	}
	defer func() {
		if metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Error("metrics server shutdown failed", logging.Err(err))
			}
		}
	}()

	// Storage
	var (
		tokenStore   token.Store
		meetingStore meeting.Store
	)
	switch cfg.StoreType {
	case config.StoreMongo:
		connectCtx, cancelConnect := context.WithTimeout(shutdownCtx, mongoConnectTimeout)
		defer cancelConnect()

		client, err := mongo.Connect(connectCtx, mongooptions.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			return fmt.Errorf("failed to ping MongoDB: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				logger.Error("mongo disconnect failed", logging.Err(err))
			}
		}()

		db := client.Database(cfg.MongoDatabase)
		mongoTokens := token.NewMongoStore(db, cfg.RetentionWindow)
		if err := mongoTokens.EnsureIndexes(connectCtx); err != nil {
			return fmt.Errorf("failed to create token indexes: %w", err)
		}
		mongoMeetings := meeting.NewMongoStore(db)
		if err := mongoMeetings.EnsureIndexes(connectCtx); err != nil {
			return fmt.Errorf("failed to create meeting indexes: %w", err)
		}
		tokenStore = mongoTokens
		meetingStore = mongoMeetings
		logger.Info("connected to MongoDB", slog.String("database", cfg.MongoDatabase))

	case config.StoreMemory:
		tokenStore = token.NewMemoryStore(cfg.RetentionWindow)
		meetingStore = meeting.NewMemoryStore()
		logger.Warn("using in-memory storage, credentials and meetings are lost on restart")
	}

	// OAuth provider and token lifecycle manager
	oauth := google.NewOAuth(cfg)
	manager := token.NewManager(tokenStore, oauth,
		token.WithBootstrap(token.NewEnvSource(cfg.BootstrapToken)),
		token.WithRefreshMargin(cfg.RefreshMargin),
		token.WithRetentionWindow(cfg.RetentionWindow),
		token.WithLogger(logger),
		token.WithMetrics(provider.Metrics()),
	)

	// Meeting service bound to the calendar client factory
	factory := func(ctx context.Context, rec *token.Record) (meeting.CalendarAPI, error) {
		return calendar.NewClient(ctx, oauth.Config(), rec,
			calendar.WithMetrics(provider.Metrics()))
	}
	meetings := meeting.NewService(meetingStore, manager, factory,
		meeting.WithLogger(logger),
		meeting.WithMetrics(provider.Metrics()),
	)

	// API server
	apiServer := server.New(server.Config{
		Addr:       cfg.HTTPAddr,
		Tokens:     manager,
		Meetings:   meetings,
		TokenStore: tokenStore,
		Metrics:    provider.Metrics(),
		Logger:     logger,
	})

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	logger.Info("meetingd started",
		slog.String("addr", cfg.HTTPAddr),
		slog.String("store", cfg.StoreType))

	select {
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received")
		ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := apiServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("error shutting down API server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("API server stopped with error: %w", err)
		}
	}

	logger.Info("meetingd stopped")
	return nil
}
