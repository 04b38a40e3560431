package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"hush/internal/logging"
)

const (
	// DefaultSweepInterval is how often the sweeper scans the registry.
	DefaultSweepInterval = 600 * time.Second
	// DefaultTTL is how long a job record and its artifacts are retained.
	DefaultTTL = 3600 * time.Second
)

// ArtifactRemover deletes the on-disk artifacts belonging to a job.
// Missing files are not an error.
type ArtifactRemover interface {
	RemoveJob(id string) error
}

// ExpirySweeper periodically drops job records older than the TTL and
// removes their artifacts.
type ExpirySweeper struct {
	registry  *Registry
	artifacts ArtifactRemover
	interval  time.Duration
	ttl       time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewExpirySweeper builds a sweeper. Zero interval or TTL fall back to
// the defaults.
func NewExpirySweeper(registry *Registry, artifacts ArtifactRemover, interval, ttl time.Duration, logger *slog.Logger) *ExpirySweeper {
	if logger == nil {
		logger = logging.NewNop()
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ExpirySweeper{
		registry:  registry,
		artifacts: artifacts,
		interval:  interval,
		ttl:       ttl,
		logger:    logger.With(logging.String("component", "sweeper")),
		now:       time.Now,
	}
}

// Start launches the background sweep loop.
func (s *ExpirySweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("expiry sweeper already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.loop(runCtx)
	return nil
}

// Stop halts the sweep loop and waits for the current tick to finish.
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *ExpirySweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep removes every job older than the TTL along with its artifacts.
// Artifact removal is best-effort; a failed removal is logged and the
// record is dropped anyway.
func (s *ExpirySweeper) Sweep() int {
	cutoff := s.now().Add(-s.ttl)
	expired := s.registry.Expired(cutoff)
	for _, id := range expired {
		if s.artifacts != nil {
			if err := s.artifacts.RemoveJob(id); err != nil {
				s.logger.Warn("failed to remove job artifacts",
					logging.String("job_id", id),
					logging.Error(err))
			}
		}
		s.registry.Delete(id)
		s.logger.Info("expired job removed", logging.String("job_id", id))
	}
	return len(expired)
}
