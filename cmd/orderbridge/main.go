package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orderbridge/internal/config"
	"orderbridge/internal/constants"
	"orderbridge/internal/database"
	"orderbridge/internal/events"
	"orderbridge/internal/features"
	"orderbridge/internal/httputil"
	mediarouter "orderbridge/internal/media"
	"orderbridge/internal/metrics"
	"orderbridge/internal/migrations"
	"orderbridge/internal/models"
	"orderbridge/internal/realtime"
	"orderbridge/internal/service"
	"orderbridge/internal/tracing"
	"orderbridge/pkg/media"
	"orderbridge/pkg/whatsapp"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

type options struct {
	configPath  string
	verbose     bool
	watchConfig bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "orderbridge",
		Short:         "Order messaging backend with a permanent media pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.json", "Path to configuration file (empty for environment only)")
	rootCmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging (includes sensitive information)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}
	serveCmd.Flags().BoolVar(&opts.watchConfig, "watch-config", false, "Apply log level and feature flag edits when the config file changes")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), opts)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "orderbridge %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		},
	}

	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)
	return rootCmd
}

// newLogger builds the JSON logger. Debug output can expose message content,
// so it is only reachable through --verbose.
func newLogger(level string, verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if verbose {
		logger.SetLevel(logrus.DebugLevel)
		return logger
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		if level != "" {
			logger.Warnf("Invalid log level %q, defaulting to info", level)
		}
		parsed = logrus.InfoLevel
	}
	if parsed > logrus.InfoLevel {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}

func loadConfig(opts *options) (*models.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.LogLevel, opts.verbose)
	if opts.verbose {
		logger.Info("Verbose logging enabled - sensitive information will be logged")
	}
	return cfg, logger, nil
}

func migrate(ctx context.Context, opts *options) error {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return err
	}

	db, err := database.New(ctx, cfg.Database, cfg.Retry, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	files, err := migrations.SchemaFiles()
	if err != nil {
		return fmt.Errorf("failed to list schema files: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"path":   cfg.Database.Path,
		"schema": files,
	}).Info("Database schema applied")
	return nil
}

func run(ctx context.Context, opts *options) error {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting orderbridge")

	if cfg.Tracing.ServiceVersion == "" {
		cfg.Tracing.ServiceVersion = Version
	}
	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.WithError(err).Warn("Tracing disabled")
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.WithError(err).Warn("Failed to flush traces")
		}
	}()

	db, err := database.New(ctx, cfg.Database, cfg.Retry, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	deps, cleanup, err := buildDependencies(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if opts.watchConfig && opts.configPath != "" {
		watchConfig(ctx, opts, cfg, deps.Features, logger)
	}

	server := NewServer(*cfg, deps, logger, opts.verbose)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}

// watchConfig applies log level and feature flag edits without a restart
func watchConfig(ctx context.Context, opts *options, cfg *models.Config, flags *features.FlagManager, logger *logrus.Logger) {
	watcher := config.NewConfigWatcher(opts.configPath, cfg, 0, logger)
	if !opts.verbose {
		watcher.OnConfigChange(config.ApplyLogLevel(logger))
	}
	watcher.OnConfigChange(func(c *models.Config) {
		if err := flags.LoadFromConfig(c.Features); err != nil {
			logger.WithError(err).Warn("Ignoring feature flag changes")
			return
		}
		flags.LoadFromEnvironment()
	})

	go func() {
		if err := watcher.Start(ctx); err != nil {
			logger.WithError(err).Warn("Configuration watcher not started")
		}
	}()
}

// buildDependencies wires the media pipeline, services and realtime hub.
// The returned cleanup closes the event publisher.
func buildDependencies(ctx context.Context, cfg *models.Config, db *database.Database, logger *logrus.Logger) (Dependencies, func(), error) {
	registry := metrics.GetRegistry()

	flags := features.NewFlagManager()
	if err := flags.LoadFromConfig(cfg.Features); err != nil {
		return Dependencies{}, nil, fmt.Errorf("invalid feature flags: %w", err)
	}
	flags.LoadFromEnvironment()

	store, err := media.NewStore(cfg.Media.Dir, logger)
	if err != nil {
		return Dependencies{}, nil, fmt.Errorf("failed to initialize media store: %w", err)
	}

	hosts := media.NewHostAllowList(cfg.Media.AllowedHosts)
	fetchTimeout := time.Duration(cfg.Media.FetchTimeoutMs) * time.Millisecond
	fetcher := media.NewFetcher(media.FetcherConfig{
		AccessToken: cfg.WhatsApp.AccessToken,
		Timeout:     fetchTimeout,
		HTTPClient:  &http.Client{CheckRedirect: hosts.CheckRedirect},
	}, logger)

	waClient := whatsapp.NewClient(whatsapp.ConfigFromModel(cfg.WhatsApp), logger)

	permanence := service.NewPermanenceService(waClient, fetcher, store, hosts, service.PermanenceConfig{
		PublicBaseURL: cfg.Server.PublicBaseURL,
		FetchTimeout:  fetchTimeout,
	}, registry, logger)

	var publisher events.Publisher = events.NewNoopPublisher(logger)
	if flags.IsEnabled(features.FlagEventPublishing) {
		publisher, err = events.NewPublisher(ctx, cfg.Events, cfg.Retry, logger)
		if err != nil {
			return Dependencies{}, nil, fmt.Errorf("failed to initialize event publisher: %w", err)
		}
	}
	cleanup := func() {
		if err := publisher.Close(); err != nil {
			logger.Warnf("Failed to close event publisher: %v", err)
		}
	}

	hub := realtime.NewHub(constants.DefaultRealtimeSubscriberQueue, registry, logger)

	clientIP, err := httputil.NewClientIPResolver(cfg.Server.TrustedProxies)
	if err != nil {
		cleanup()
		return Dependencies{}, nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"media_dir":     store.Root(),
		"allowed_hosts": hosts.Domains(),
		"events":        cfg.Events.AMQPURL != "" && flags.IsEnabled(features.FlagEventPublishing),
		"features":      flags.ListFlags(),
	}).Info("Media pipeline initialized")

	return Dependencies{
		Database:   db,
		Store:      store,
		Fetcher:    fetcher,
		Hosts:      hosts,
		Uploads:    mediarouter.NewRouter(cfg.Media),
		Permanence: permanence,
		Forwarding: service.NewForwardingService(db, waClient, permanence, publisher, hub, registry, logger),
		Messages:   service.NewMessageService(db, publisher, hub, registry, logger),
		Orders:     service.NewOrderService(db, publisher, logger),
		Hub:        hub,
		Registry:   registry,
		ClientIP:   clientIP,
		Features:   flags,
	}, cleanup, nil
}
