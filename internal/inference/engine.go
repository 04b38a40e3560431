// Package inference runs the denoising model over an arbitrarily long
// spectrogram in fixed-width chunks so per-call memory stays bounded
// regardless of input duration.
package inference

import (
	"context"
	"fmt"
	"log/slog"

	"hush/internal/logging"
	"hush/internal/model"
)

const (
	// DefaultChunkFrames is the chunk width fed to the model per call.
	DefaultChunkFrames = 128
	// ChunkAlign is the frame alignment the model requires per chunk.
	ChunkAlign = 32
)

// ProgressFunc receives the completed-chunk fraction in [0, 1] and a
// human-readable message. It may be nil.
type ProgressFunc func(fraction float64, message string)

// ModelError wraps a model invocation failure with the chunk it happened in.
type ModelError struct {
	Chunk int
	Err   error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model inference failed at chunk %d: %v", e.Chunk, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// Kind classifies the error for job failure reporting.
func (e *ModelError) Kind() string { return "model_inference" }

// Engine slices a spectrogram along the time axis, runs each slice through
// the model, and reassembles the outputs. Chunks are processed strictly in
// order; the engine never holds more than one chunk of input plus the
// full-size output accumulator.
type Engine struct {
	predictor model.Predictor
	chunk     int
	logger    *slog.Logger
}

// NewEngine builds an engine around a predictor. chunkFrames must be a
// positive multiple of ChunkAlign; 0 selects the default.
func NewEngine(predictor model.Predictor, chunkFrames int, logger *slog.Logger) (*Engine, error) {
	if predictor == nil {
		return nil, fmt.Errorf("inference: predictor is required")
	}
	if chunkFrames == 0 {
		chunkFrames = DefaultChunkFrames
	}
	if chunkFrames <= 0 || chunkFrames%ChunkAlign != 0 {
		return nil, fmt.Errorf("inference: chunk size must be a positive multiple of %d: %d", ChunkAlign, chunkFrames)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		predictor: predictor,
		chunk:     chunkFrames,
		logger:    logger.With(logging.String("component", "inference")),
	}, nil
}

// Run processes the full spectrogram chunk by chunk. The input's frame
// count is expected to be pre-aligned to ChunkAlign by preprocessing; a
// trailing slice that still misses the alignment is zero-padded
// defensively and the padding is stripped before write-back, so the
// assembled output always matches the input shape exactly.
//
// Cancellation is honored between chunks, never mid-chunk.
func (e *Engine) Run(ctx context.Context, in *model.Tensor, progress ProgressFunc) (*model.Tensor, error) {
	if in == nil || in.Bins <= 0 || in.Frames <= 0 {
		return nil, fmt.Errorf("inference: empty input tensor")
	}

	total := in.Frames
	numChunks := (total + e.chunk - 1) / e.chunk
	out := model.NewTensor(in.Bins, total)

	for i := 0; i < numChunks; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report(progress, float64(i)/float64(numChunks),
			fmt.Sprintf("processing chunk %d/%d", i+1, numChunks))

		start := i * e.chunk
		end := start + e.chunk
		if end > total {
			end = total
		}
		width := end - start

		padded := width
		if rem := width % ChunkAlign; rem != 0 {
			padded += ChunkAlign - rem
		}

		slice := model.NewTensor(in.Bins, padded)
		for bin := 0; bin < in.Bins; bin++ {
			copy(slice.Row(bin), in.Row(bin)[start:end])
		}

		result, err := e.predictor.Predict(ctx, slice)
		if err != nil {
			return nil, &ModelError{Chunk: i, Err: err}
		}
		if !result.SameShape(slice) {
			return nil, &ModelError{
				Chunk: i,
				Err:   fmt.Errorf("output shape %dx%d does not match input %dx%d", result.Bins, result.Frames, slice.Bins, slice.Frames),
			}
		}

		// Alignment padding never makes it into the accumulator; only the
		// first width frames are written back.
		for bin := 0; bin < in.Bins; bin++ {
			copy(out.Row(bin)[start:end], result.Row(bin)[:width])
		}
	}

	report(progress, 1, fmt.Sprintf("processed %d chunks", numChunks))
	e.logger.Debug("inference complete",
		logging.Int("frames", total),
		logging.Int("chunks", numChunks),
	)
	return out, nil
}

func report(progress ProgressFunc, fraction float64, message string) {
	if progress == nil {
		return
	}
	progress(fraction, message)
}
