package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"appwatch/internal/alert"
	"appwatch/internal/api"
	"appwatch/internal/appcat"
	"appwatch/internal/config"
	"appwatch/internal/metrics"
	"appwatch/internal/probe"
	"appwatch/internal/storage"
	boltstore "appwatch/internal/storage/bolt"
	filestore "appwatch/internal/storage/file"
	"appwatch/internal/track"
)

const (
	selfProcessName = "appwatch.exe"
	productName     = "AppWatch"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the AppWatch tracker",
	Long:  `Start the AppWatch tracker with foreground sampling, notification accounting, time-limit alerts, and the local HTTP API.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("data_dir", cfg.DataDir).
		Msg("Starting AppWatch")

	// Initialize storage
	store, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().Str("type", cfg.Storage.Type).Msg("Storage initialized")

	// Identity resolution
	resolver := appcat.NewResolver(selfProcessName, productName)
	clock := track.RealClock{}

	// Probes: scripted when a command is configured, native otherwise
	foreground := buildForegroundProbe(cfg.Probes.Foreground, logger)
	census := buildCensusProbe(cfg.Probes.Census, logger)
	notificationProbe := buildNotificationProbe(cfg.Probes.Notification, logger)

	// Usage accumulator
	tracker := track.NewTracker(track.TrackerConfig{
		SampleInterval:         parseDuration(cfg.Tracking.SampleInterval, track.DefaultSampleInterval),
		RunningRefreshInterval: parseDuration(cfg.Tracking.RunningRefreshInterval, track.DefaultRunningRefreshInterval),
		ElapsedCap:             parseDuration(cfg.Tracking.ElapsedCap, track.DefaultElapsedCap),
		FlushDebounce:          parseDuration(cfg.Tracking.FlushDebounce, track.DefaultFlushDebounce),
		RetentionDays:          cfg.Tracking.UsageRetentionDays,
	}, resolver, foreground, census, store.Usage(), clock, logger)

	// Notification accumulator
	notifications := track.NewNotifications(track.NotificationsConfig{
		RetentionDays: cfg.Notifications.RetentionDays,
		FlushDebounce: parseDuration(cfg.Notifications.FlushDebounce, track.DefaultNotificationFlushDebounce),
	}, notificationProbe, resolver, store.Notifications(), clock, logger)

	// Settings and time limits
	settings := track.NewSettingsManager(store.Settings(), logger)
	notifier := alert.NewNotifier(productName, logger)
	limits := track.NewLimitEvaluator(track.LimitsConfig{
		CheckInterval: parseDuration(cfg.Limits.CheckInterval, track.DefaultLimitCheckInterval),
		StartupDelay:  parseDuration(cfg.Limits.StartupDelay, track.DefaultLimitStartupDelay),
	}, tracker, settings, resolver, store.Alerts(), notifier, clock, logger)

	tracker.Start()
	limits.Start()

	// Local HTTP API
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(api.Config{
			ListenAddr: fmt.Sprintf("%s:%d", cfg.API.BindAddress, cfg.API.Port),
		}, tracker, notifications, settings, limits, notifier, logger)
		apiServer.Start()
	}

	// Metrics endpoint
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(fmt.Sprintf("%s:%d", cfg.Metrics.BindAddress, cfg.Metrics.Port), logger)
		if err := metricsServer.Start(); err != nil {
			logger.Error().Err(err).Msg("Failed to start metrics server")
		}
	}

	logger.Info().Msg("AppWatch started")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received, gracefully stopping...")

	// Stop outer surfaces first, then flush the accumulators
	if apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := apiServer.Stop(ctx); err != nil {
			logger.Error().Err(err).Msg("Failed to stop API server")
		}
		cancel()
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop metrics server")
		}
	}
	limits.Stop()
	tracker.Stop()
	notifications.Stop()

	logger.Info().Msg("AppWatch stopped")
	return nil
}

// openStorage opens the configured storage backend.
func openStorage(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "file":
		return filestore.Open(cfg.DataDir)
	case "bolt":
		return boltstore.Open(cfg.Storage.Path)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

func buildForegroundProbe(cfg config.ProbeConfig, logger zerolog.Logger) probe.ForegroundProbe {
	if len(cfg.Command) > 0 {
		return &probe.ScriptForegroundProbe{
			Command: cfg.Command,
			Timeout: parseDuration(cfg.Timeout, 3*time.Second),
			Logger:  logger,
		}
	}
	return &probe.NativeForegroundProbe{
		Timeout: parseDuration(cfg.Timeout, 3*time.Second),
		Logger:  logger,
	}
}

func buildCensusProbe(cfg config.ProbeConfig, logger zerolog.Logger) probe.CensusProbe {
	if len(cfg.Command) > 0 {
		return &probe.ScriptCensusProbe{
			Command: cfg.Command,
			Timeout: parseDuration(cfg.Timeout, 4*time.Second),
			Logger:  logger,
		}
	}
	return &probe.NativeCensusProbe{
		Timeout: parseDuration(cfg.Timeout, 4*time.Second),
		Logger:  logger,
	}
}

func buildNotificationProbe(cfg config.ProbeConfig, logger zerolog.Logger) probe.NotificationProbe {
	if len(cfg.Command) > 0 {
		return &probe.ScriptNotificationProbe{
			Command: cfg.Command,
			Timeout: parseDuration(cfg.Timeout, 30*time.Second),
			Logger:  logger,
		}
	}
	return probe.UnavailableNotificationProbe{}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
