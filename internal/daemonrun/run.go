package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"pressroom/internal/announce"
	"pressroom/internal/config"
	"pressroom/internal/daemon"
	"pressroom/internal/events"
	"pressroom/internal/fanout"
	"pressroom/internal/jobs"
	"pressroom/internal/logging"
	"pressroom/internal/notifications"
	"pressroom/internal/stages"
	"pressroom/internal/worker"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the pressroom daemon and blocks until the context is cancelled
// or the process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, logPath, err := logging.NewRunLogger(cfg, opts.LogLevel, opts.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.Info("pressroom daemon starting", logging.String("log_file", logPath))
	logConfigSnapshot(logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := jobs.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}

	hub := fanout.NewHub(cfg.Fanout.BufferSize, logger)
	bus := events.NewBus(logger)
	notifier := notifications.NewService(cfg)
	notifications.Register(bus, notifier, cfg.Notifications, logger)
	if cfg.Notifications.Announcements {
		announce.New(notifier, cfg.Notifications.AnnouncementDiscount, logger).Register(bus)
	}

	deps := stages.DepsFromConfig(cfg, store, logger)
	pool := worker.New(cfg, store, stages.NewBuilder(deps), hub, bus, logger)

	d, err := daemon.New(cfg, store, pool, hub, logger, daemon.WithPreview(stages.NewPreviewBuilder(deps)))
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check that no other daemon holds the lock and the api bind address is free"),
			logging.String(logging.FieldImpact, "no jobs will be processed"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("pressroom daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("database", cfg.DatabasePath()),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_set", strings.TrimSpace(cfg.Paths.APIToken) != ""),
		logging.Bool("llm_key_present", strings.TrimSpace(cfg.LLM.APIKey) != ""),
		logging.String("llm_model", cfg.LLM.Model),
		logging.Bool("publisher_configured", strings.TrimSpace(cfg.Publisher.BaseURL) != ""),
		logging.String("post_status", cfg.Publisher.PostStatus),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Int("concurrency", cfg.Workers.Concurrency),
	)
}
