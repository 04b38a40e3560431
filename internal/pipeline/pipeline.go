// Package pipeline orchestrates a full denoise run: decode, spectral
// analysis, chunked model inference, reconstruction, metrics, export.
package pipeline

import (
	"context"
	"log/slog"
	"math"
	"time"

	"hush/internal/audio"
	"hush/internal/dsp"
	"hush/internal/inference"
	"hush/internal/logging"
	"hush/internal/model"
)

const (
	// metricsEpsilon keeps the noise-reduction ratio finite on silence.
	metricsEpsilon = 1e-10
)

// exportPeak is the target amplitude after peak normalization, -1 dBFS.
var exportPeak = math.Pow(10, -1.0/20)

// ProgressSink receives coarse progress as a percentage in [0,100] with a
// human-readable message. A nil sink is valid.
type ProgressSink func(percent float64, message string)

// Request names the files one denoise run reads and writes. The
// spectrogram paths may be empty to skip rendering.
type Request struct {
	InputPath      string
	OutputPath     string
	InputSpecPath  string
	OutputSpecPath string
}

// Result carries the quality metrics of a completed run.
type Result struct {
	NoiseReductionDB float64
	SNRImprovementDB float64
	ConfidenceScore  float64
	ProcessingTime   float64
	Duration         float64
	SampleRate       int
}

// Renderer turns a magnitude spectrogram into an image file. Failures are
// logged and skipped, never fatal to the run.
type Renderer func(mag [][]float64, path string) error

// Pipeline runs denoise jobs against a fixed model. Safe for sequential
// use; concurrent runs must be serialized by the caller when the model is
// not reentrant.
type Pipeline struct {
	predictor model.Predictor
	render    Renderer
	logger    *slog.Logger
}

// New builds a pipeline around the given model. render may be nil to
// disable spectrogram output entirely.
func New(predictor model.Predictor, render Renderer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		predictor: predictor,
		render:    render,
		logger:    logger.With(logging.String("component", "pipeline")),
	}
}

// Run executes one denoise job. Progress moves monotonically through the
// stages; inference occupies the 50-80 band proportionally to chunks done.
func (p *Pipeline) Run(ctx context.Context, req Request, sink ProgressSink) (*Result, error) {
	started := time.Now()
	report := func(percent float64, message string) {
		if sink != nil {
			sink(percent, message)
		}
	}

	samples, err := audio.Decode(req.InputPath)
	if err != nil {
		return nil, &AudioLoadError{Path: req.InputPath, Err: err}
	}
	report(10, "audio loaded")

	stft, err := dsp.NewSTFT()
	if err != nil {
		return nil, err
	}
	spec, err := stft.Forward(samples)
	if err != nil {
		return nil, &AudioLoadError{Path: req.InputPath, Err: err}
	}
	p.renderSpectrogram(spec.Magnitude, req.InputSpecPath, "input")
	report(20, "input spectrogram ready")

	origFrames := spec.Frames()
	scale := dsp.Normalize(spec.Magnitude)
	padded, err := dsp.PadFrames(spec.Magnitude, dsp.FrameAlign)
	if err != nil {
		return nil, err
	}
	phase, err := dsp.PadFrames(spec.Phase, dsp.FrameAlign)
	if err != nil {
		return nil, err
	}
	report(35, "spectrogram normalized")

	engine, err := inference.NewEngine(p.predictor, inference.DefaultChunkFrames, p.logger)
	if err != nil {
		return nil, err
	}
	report(50, "starting inference")
	tensor := tensorFromMagnitude(padded)
	denoised, err := engine.Run(ctx, tensor, func(fraction float64, message string) {
		report(50+30*fraction, message)
	})
	if err != nil {
		return nil, err
	}

	magOut := magnitudeFromTensor(denoised)
	magOut, err = dsp.CropFrames(magOut, origFrames)
	if err != nil {
		return nil, &ReconstructionError{Err: err}
	}
	phase, err = dsp.CropFrames(phase, origFrames)
	if err != nil {
		return nil, &ReconstructionError{Err: err}
	}
	dsp.Denormalize(magOut, scale)
	cleaned, err := stft.Inverse(magOut, phase)
	if err != nil {
		return nil, &ReconstructionError{Err: err}
	}
	report(80, "waveform reconstructed")

	p.renderSpectrogram(magOut, req.OutputSpecPath, "output")
	report(85, "output spectrogram ready")

	result := p.computeMetrics(samples, cleaned)
	report(90, "metrics computed")

	peakNormalize(cleaned)
	report(95, "exporting audio")
	if err := audio.Encode(req.OutputPath, cleaned); err != nil {
		return nil, &ExportError{Path: req.OutputPath, Err: err}
	}
	report(100, "processing complete")

	result.ProcessingTime = time.Since(started).Seconds()
	p.logger.Info("denoise run finished",
		logging.Float64("duration_secs", result.Duration),
		logging.Float64("noise_reduction_db", result.NoiseReductionDB),
		logging.Float64("processing_secs", result.ProcessingTime))
	return result, nil
}

func (p *Pipeline) computeMetrics(in, out []float64) *Result {
	ratio := (dsp.MeanSquare(in) + metricsEpsilon) / (dsp.MeanSquare(out) + metricsEpsilon)
	reduction := 10 * math.Log10(ratio)

	confidence := 100 - math.Abs(reduction)
	if confidence < 0 {
		confidence = 0
	} else if confidence > 100 {
		confidence = 100
	}

	return &Result{
		NoiseReductionDB: reduction,
		SNRImprovementDB: reduction,
		ConfidenceScore:  confidence,
		Duration:         float64(len(in)) / dsp.SampleRate,
		SampleRate:       dsp.SampleRate,
	}
}

func (p *Pipeline) renderSpectrogram(mag [][]float64, path, label string) {
	if p.render == nil || path == "" {
		return
	}
	if err := p.render(mag, path); err != nil {
		p.logger.Warn("spectrogram rendering failed",
			logging.String("which", label),
			logging.Error(err))
	}
}

// peakNormalize scales samples so the loudest one sits at -1 dBFS.
// Silent audio is left untouched.
func peakNormalize(samples []float64) {
	peak := dsp.Peak(samples)
	if peak == 0 {
		return
	}
	gain := exportPeak / peak
	for i := range samples {
		samples[i] *= gain
	}
}

func tensorFromMagnitude(mag [][]float64) *model.Tensor {
	bins := len(mag)
	frames := 0
	if bins > 0 {
		frames = len(mag[0])
	}
	tensor := model.NewTensor(bins, frames)
	for b, row := range mag {
		for f, v := range row {
			tensor.Set(b, f, float32(v))
		}
	}
	return tensor
}

func magnitudeFromTensor(t *model.Tensor) [][]float64 {
	mag := make([][]float64, t.Bins)
	for b := 0; b < t.Bins; b++ {
		row := make([]float64, t.Frames)
		src := t.Row(b)
		for f, v := range src {
			row[f] = float64(v)
		}
		mag[b] = row
	}
	return mag
}
