// Package daemon wires the denoise service together and manages its
// lifecycle.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"hush/internal/artifacts"
	"hush/internal/config"
	"hush/internal/history"
	"hush/internal/jobs"
	"hush/internal/logging"
	"hush/internal/model"
	"hush/internal/pipeline"
	"hush/internal/runner"
	"hush/internal/server"
	"hush/internal/visualize"
)

// Daemon owns every long-running component of the service.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	registry  *jobs.Registry
	artifacts *artifacts.Store
	ledger    *history.Store
	predictor model.Predictor
	runner    *runner.Runner
	sweeper   *jobs.ExpirySweeper
	api       *server.Server

	lockPath string
	lock     *flock.Flock

	cancel context.CancelFunc
}

// Version is stamped at build time via -ldflags.
var Version = "dev"

// New constructs the daemon and resolves the model capability. A missing
// or unloadable external model fails construction rather than silently
// degrading.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	predictor, err := model.New(model.Options{
		Mode:    cfg.Model.Mode,
		Command: cfg.Model.Command,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("resolve model: %w", err)
	}

	ledger, err := history.Open(filepath.Join(cfg.Paths.LogDir, "history.db"))
	if err != nil {
		return nil, err
	}

	registry := jobs.NewRegistry()
	store := artifacts.NewStore(cfg.Paths.DataDir)
	pipe := pipeline.New(predictor, visualize.RenderSpectrogram, logger)
	run := runner.New(registry, pipe, ledger, logger)
	sweeper := jobs.NewExpirySweeper(
		registry,
		store,
		time.Duration(cfg.Jobs.SweepIntervalSeconds)*time.Second,
		time.Duration(cfg.Jobs.TTLSeconds)*time.Second,
		logger,
	)

	api, err := server.New(server.Options{
		Bind:           cfg.Paths.APIBind,
		Registry:       registry,
		Runner:         run,
		Artifacts:      store,
		Ledger:         ledger,
		ModelName:      predictor.Name(),
		Version:        Version,
		MaxUploadBytes: int64(cfg.Jobs.MaxUploadMB) << 20,
		Logger:         logger,
	})
	if err != nil {
		_ = ledger.Close()
		return nil, err
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "hushd.lock")
	return &Daemon{
		cfg:       cfg,
		logger:    logger.With(logging.String("component", "daemon")),
		registry:  registry,
		artifacts: store,
		ledger:    ledger,
		predictor: predictor,
		runner:    run,
		sweeper:   sweeper,
		api:       api,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the API server and sweeper.
func (d *Daemon) Start(ctx context.Context) error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another hushd instance holds %s", d.lockPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.sweeper.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	if err := d.api.Start(runCtx); err != nil {
		d.sweeper.Stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.logger.Info("hushd started",
		logging.String("bind", d.cfg.Paths.APIBind),
		logging.String("model", d.predictor.Name()),
		logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts everything down in dependency order: no new uploads, wait for
// in-flight jobs, stop the sweeper, then release resources.
func (d *Daemon) Stop() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.Stop()
	d.runner.Wait()
	d.sweeper.Stop()

	if err := d.ledger.Close(); err != nil {
		d.logger.Warn("failed to close history ledger", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.logger.Info("hushd stopped")
}

// Addr reports the API listen address once started.
func (d *Daemon) Addr() string { return d.api.Addr() }
