// Package runner executes denoise jobs in the background and guarantees
// every job reaches a terminal registry state.
package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"hush/internal/history"
	"hush/internal/jobs"
	"hush/internal/logging"
	"hush/internal/pipeline"
)

// Submission describes one job handed to the runner.
type Submission struct {
	JobID    string
	Filename string
	Request  pipeline.Request

	// Spectrogram references stored on the completed result; empty when
	// rendering is disabled.
	InputSpecURL  string
	OutputSpecURL string
}

// Runner owns the background goroutines that drive the pipeline. The model
// is treated as a single non-reentrant resource: runs are serialized.
type Runner struct {
	registry *jobs.Registry
	pipe     *pipeline.Pipeline
	ledger   *history.Store
	logger   *slog.Logger

	modelMu sync.Mutex
	wg      sync.WaitGroup
}

// New builds a runner. ledger may be nil to skip history persistence.
func New(registry *jobs.Registry, pipe *pipeline.Pipeline, ledger *history.Store, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		registry: registry,
		pipe:     pipe,
		ledger:   ledger,
		logger:   logger.With(logging.String("component", "runner")),
	}
}

// Submit starts a background run for the job. The registry entry must
// already exist in the processing state.
func (r *Runner) Submit(ctx context.Context, sub Submission) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(ctx, sub)
	}()
}

// Wait blocks until all in-flight jobs have finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) execute(ctx context.Context, sub Submission) {
	logger := r.logger.With(logging.String("job_id", sub.JobID))

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("denoise run panicked", logging.Any("panic", rec))
			r.registry.Fail(sub.JobID, "internal error")
		}
	}()

	sink := func(percent float64, message string) {
		r.registry.UpdateProgress(sub.JobID, percent, message)
	}

	r.modelMu.Lock()
	result, err := r.pipe.Run(ctx, sub.Request, sink)
	r.modelMu.Unlock()

	if err != nil {
		logger.Error("denoise run failed",
			logging.String("kind", pipeline.Kind(err)),
			logging.Error(err))
		r.registry.Fail(sub.JobID, err.Error())
		return
	}

	r.registry.Complete(sub.JobID, &jobs.Result{
		NoiseReductionDB:  result.NoiseReductionDB,
		SNRImprovementDB:  result.SNRImprovementDB,
		ConfidenceScore:   result.ConfidenceScore,
		ProcessingTime:    result.ProcessingTime,
		Duration:          result.Duration,
		SampleRate:        result.SampleRate,
		InputSpectrogram:  sub.InputSpecURL,
		OutputSpectrogram: sub.OutputSpecURL,
	})

	if r.ledger != nil {
		rec := history.Record{
			JobID:            sub.JobID,
			Filename:         sub.Filename,
			NoiseReductionDB: result.NoiseReductionDB,
			SNRImprovementDB: result.SNRImprovementDB,
			ConfidenceScore:  result.ConfidenceScore,
			ProcessingTime:   result.ProcessingTime,
			Duration:         result.Duration,
			CompletedAt:      time.Now().UTC(),
		}
		if err := r.ledger.Append(context.WithoutCancel(ctx), rec); err != nil {
			logger.Warn("failed to persist history record", logging.Error(err))
		}
	}
}
