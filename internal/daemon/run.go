package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"log/slog"

	"glossa/internal/config"
	"glossa/internal/ipc"
	"glossa/internal/ledger"
	"glossa/internal/logging"
	"glossa/internal/notifications"
	"glossa/internal/pipeline"
	"glossa/internal/preflight"
	"glossa/internal/services/whisper"
)

// drainTimeout bounds how long shutdown waits for the active job to settle
// after its context has been cancelled.
const drainTimeout = 30 * time.Second

// Run starts the glossa daemon loop and blocks until a signal or a
// control-socket shutdown stops it.
func Run(cmdCtx context.Context, cfg *config.Config, version string) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := logging.NewForDir(cfg.Paths.LogDir, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logReadinessSnapshot(logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := ledger.Open(cfg)
	if err != nil {
		logger.Error("open job ledger", logging.Error(err))
		return err
	}
	defer store.Close()

	if recovered, recoverErr := store.RecoverInterrupted(signalCtx); recoverErr != nil {
		logger.Warn("recover interrupted jobs", logging.Error(recoverErr))
	} else if recovered > 0 {
		logger.Info("marked interrupted jobs as failed",
			logging.String(logging.FieldEventType, "jobs_recovered"),
			logging.Int64("jobs", recovered),
		)
	}

	registry := whisper.NewRegistry(cfg.Transcription.ModelDir, logger)
	defer registry.Close()

	notifier := notifications.NewService(cfg)
	orch := pipeline.New(cfg, store, registry, logger, pipeline.WithNotifier(notifier))
	orch.Start(signalCtx)

	d, err := New(cfg, store, orch, notifier, logger, version)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Lock(); err != nil {
		return err
	}
	defer d.Unlock()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	logger.Info("glossa daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("version", version),
		logging.Int("pid", os.Getpid()),
		logging.String("socket", ipcServer.Path()),
		logging.String("db", store.Path()),
		logging.String("lock", cfg.LockPath()),
	)

	select {
	case <-signalCtx.Done():
		logger.Info("shutdown signal received")
	case <-d.ShutdownRequested():
		logger.Info("shutdown requested over control socket")
		cancel()
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), drainTimeout)
	defer drainCancel()
	if err := orch.Wait(drainCtx); err != nil {
		logger.Warn("active job did not settle before shutdown deadline",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the job will be marked interrupted on next start"),
		)
	}

	logger.Info("glossa daemon stopped")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// logReadinessSnapshot records one line summarizing every preflight check
// plus a warning per failed check, so a misconfigured install is visible in
// the log before the first job fails.
func logReadinessSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	results := preflight.RunAll(cfg)
	attrs := make([]any, 0, len(results)+1)
	attrs = append(attrs, logging.String(logging.FieldEventType, "readiness_snapshot"))
	for _, result := range results {
		key := strings.ReplaceAll(strings.ToLower(result.Name), " ", "_") + "_ok"
		attrs = append(attrs, logging.Bool(key, result.Passed))
	}
	logger.Info("readiness snapshot", attrs...)

	for _, result := range preflight.Failures(results) {
		logger.Warn("readiness check failed",
			logging.String(logging.FieldEventType, "readiness_check_failed"),
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "jobs may fail until this is fixed"),
		)
	}
}
