package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"glossa/internal/config"
	"glossa/internal/ipc"
	"glossa/internal/ledger"
	"glossa/internal/logging"
	"glossa/internal/notifications"
	"glossa/internal/pipeline"
	"glossa/internal/services"
)

// Daemon owns long-running process state: the single-instance lock, the job
// ledger, the pipeline orchestrator, and the control-socket backend surface.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *ledger.Store
	orch     *pipeline.Orchestrator
	notifier notifications.Service

	version   string
	startedAt time.Time

	lockPath string
	lock     *flock.Flock

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

var _ ipc.Backend = (*Daemon)(nil)

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *ledger.Store, orch *pipeline.Orchestrator, notifier notifications.Service, logger *slog.Logger, version string) (*Daemon, error) {
	if cfg == nil || store == nil || orch == nil {
		return nil, errors.New("daemon requires config, store, and orchestrator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      store,
		orch:       orch,
		notifier:   notifier,
		version:    version,
		startedAt:  time.Now().UTC(),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		shutdownCh: make(chan struct{}),
	}, nil
}

// Lock acquires the single-instance lock, failing fast when another daemon
// already holds it.
func (d *Daemon) Lock() error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !ok {
		return errors.New("another glossa daemon instance is already running")
	}
	return nil
}

// Unlock releases the single-instance lock.
func (d *Daemon) Unlock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Submit hands a new job to the orchestrator. A running job rejects the
// submission with a busy error; nothing is queued.
func (d *Daemon) Submit(ctx context.Context, req pipeline.Request) (*ledger.Job, error) {
	return d.orch.Submit(ctx, req)
}

// Cancel stops the named running job.
func (d *Daemon) Cancel(ctx context.Context, id string) error {
	return d.orch.Cancel(ctx, id)
}

// Job looks up a single job by ID.
func (d *Daemon) Job(ctx context.Context, id string) (*ledger.Job, error) {
	return d.store.GetByID(ctx, id)
}

// Active returns the currently running job, if any.
func (d *Daemon) Active(ctx context.Context) (*ledger.Job, error) {
	return d.store.Active(ctx)
}

// Recent returns the newest jobs first.
func (d *Daemon) Recent(ctx context.Context, limit int) ([]*ledger.Job, error) {
	return d.store.Recent(ctx, limit)
}

// Stats returns job counts grouped by state.
func (d *Daemon) Stats(ctx context.Context) (map[ledger.State]int, error) {
	return d.store.Stats(ctx)
}

// LedgerHealth returns database diagnostics.
func (d *Daemon) LedgerHealth(ctx context.Context) (ledger.Health, error) {
	return d.store.Health(ctx)
}

// TestNotification sends a test push through the configured topic.
func (d *Daemon) TestNotification(ctx context.Context) error {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return services.Wrap(services.ErrConfiguration, "daemon", "test notification", "ntfy topic not configured", nil)
	}
	return d.notifier.TestNotification(ctx)
}

// Info reports process identity for status displays.
func (d *Daemon) Info() ipc.DaemonInfo {
	return ipc.DaemonInfo{
		PID:        os.Getpid(),
		Version:    d.version,
		StartedAt:  d.startedAt,
		SocketPath: d.cfg.SocketPath(),
		LockPath:   d.lockPath,
		DBPath:     d.cfg.DatabasePath(),
	}
}

// Shutdown asks the run loop to exit. Safe to call more than once.
func (d *Daemon) Shutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdownCh) })
}

// ShutdownRequested signals that a control-socket shutdown arrived.
func (d *Daemon) ShutdownRequested() <-chan struct{} {
	return d.shutdownCh
}
