// Package daemon runs the pipeline on a schedule with an admin HTTP
// surface, Prometheus metrics and live configuration reload.
package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/docship/internal/config"
	"git.home.luguber.info/inful/docship/internal/history"
	"git.home.luguber.info/inful/docship/internal/logfields"
	"git.home.luguber.info/inful/docship/internal/metrics"
	"git.home.luguber.info/inful/docship/internal/notify"
	"git.home.luguber.info/inful/docship/internal/runner"
)

// RunStatus is the last run summary exposed on /status.
type RunStatus struct {
	RunID    string        `json:"run_id"`
	Version  string        `json:"version,omitempty"`
	Outcome  string        `json:"outcome"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// Daemon schedules pipeline runs and serves the admin endpoints.
type Daemon struct {
	configPath string

	mu      sync.RWMutex
	cfg     *config.Config
	lastRun *RunStatus
	runBusy bool

	recorder metrics.Recorder
	promRec  *metrics.PrometheusRecorder
	store    history.Store
	notifier *notify.Notifier

	scheduler gocron.Scheduler
	jobID     string
	runCtx    context.Context
}

// New creates a daemon for a loaded configuration. The config must have a
// daemon section.
func New(configPath string, cfg *config.Config) (*Daemon, error) {
	if cfg.Daemon == nil {
		return nil, fmt.Errorf("daemon section missing from configuration")
	}
	d := &Daemon{
		configPath: configPath,
		cfg:        cfg,
		recorder:   metrics.NoopRecorder{},
	}
	if cfg.Daemon.Metrics {
		d.promRec = metrics.NewPrometheusRecorder(nil)
		d.recorder = d.promRec
	}
	return d, nil
}

// Run starts the scheduler, config watcher and admin server, then blocks
// until ctx is canceled. Shutdown is graceful: an in-flight run finishes.
func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.config()

	if cfg.History != nil && cfg.History.Path != "" {
		store, err := history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("open run history: %w", err)
		}
		d.store = store
		defer func() {
			_ = store.Close()
		}()
	}

	if cfg.Daemon.NATS != nil {
		notifier, err := notify.NewNotifier(cfg.Daemon.NATS, cfg.Project.Name)
		if err != nil {
			// Degrade, notifications are not worth refusing to start over.
			slog.Warn("Notifications disabled", logfields.Error(err))
		} else {
			d.notifier = notifier
			defer notifier.Close()
		}
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	d.scheduler = scheduler
	d.runCtx = ctx

	interval := cfg.DaemonInterval()
	job, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(d.runScheduled),
		gocron.WithName("pipeline-run"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule pipeline job: %w", err)
	}
	d.jobID = job.ID().String()

	watcher, err := NewConfigWatcher(d.configPath, d.applyConfig)
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start config watcher: %w", err)
	}
	defer func() {
		_ = watcher.Stop()
	}()

	server := d.newAdminServer(cfg.Daemon.Listen)
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Admin server listening", slog.String("address", cfg.Daemon.Listen))
		serverErr <- server.ListenAndServe()
	}()

	scheduler.Start()
	slog.Info("Daemon started",
		slog.String("project", cfg.Project.Name),
		slog.Duration("interval", interval))

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("admin server failed: %w", err)
		}
	}

	slog.Info("Shutting down daemon")
	if err := scheduler.Shutdown(); err != nil {
		slog.Error("Scheduler shutdown failed", logfields.Error(err))
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Admin server shutdown failed", logfields.Error(err))
	}
	return nil
}

// runScheduled is the gocron task body. It reads the daemon's run context
// so rescheduled jobs still observe shutdown cancellation.
func (d *Daemon) runScheduled() {
	ctx := d.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}

	d.mu.Lock()
	if d.runBusy {
		d.mu.Unlock()
		slog.Warn("Skipping scheduled run, previous run still in progress")
		return
	}
	d.runBusy = true
	cfg := d.cfg
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.runBusy = false
		d.mu.Unlock()
	}()

	state, err := runner.Execute(ctx, cfg, runner.Options{
		Push:     true,
		Recorder: d.recorder,
		Store:    d.store,
		Notifier: d.notifier,
	})

	status := &RunStatus{
		RunID:   state.RunID,
		Version: state.DevVersion(),
		Outcome: "success",
		Started: state.StartedAt,
	}
	for _, r := range state.Results {
		status.Duration += r.Duration
	}
	if err != nil {
		status.Outcome = "failed"
		slog.Error("Scheduled run failed", logfields.RunID(state.RunID), logfields.Error(err))
	}

	d.mu.Lock()
	d.lastRun = status
	d.mu.Unlock()
}

// applyConfig swaps in a reloaded configuration and reschedules the job when
// the interval changed. Listen address changes need a restart.
func (d *Daemon) applyConfig(newCfg *config.Config) error {
	if newCfg.Daemon == nil {
		return fmt.Errorf("reloaded configuration has no daemon section")
	}

	d.mu.Lock()
	old := d.cfg
	d.cfg = newCfg
	d.mu.Unlock()

	if newCfg.Daemon.Listen != old.Daemon.Listen {
		slog.Warn("Listen address change requires a restart to take effect")
	}

	if newCfg.DaemonInterval() != old.DaemonInterval() && d.scheduler != nil {
		if err := d.reschedule(newCfg.DaemonInterval()); err != nil {
			return err
		}
		slog.Info("Rescheduled pipeline job", slog.Duration("interval", newCfg.DaemonInterval()))
	}
	return nil
}

func (d *Daemon) reschedule(interval time.Duration) error {
	for _, job := range d.scheduler.Jobs() {
		if job.ID().String() == d.jobID {
			if err := d.scheduler.RemoveJob(job.ID()); err != nil {
				return fmt.Errorf("remove scheduled job: %w", err)
			}
			break
		}
	}
	job, err := d.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(d.runScheduled),
		gocron.WithName("pipeline-run"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("reschedule pipeline job: %w", err)
	}
	d.jobID = job.ID().String()
	return nil
}

func (d *Daemon) config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

func (d *Daemon) status() (*config.Config, *RunStatus, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg, d.lastRun, d.runBusy
}
