package model

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"hush/internal/logging"
)

// Predictor is the model capability: one spectrogram chunk in, one chunk of
// identical shape out. Implementations must be deterministic for fixed
// weights and must report any failure as a single error, never partial data.
type Predictor interface {
	// Predict runs inference on a [bins x frames] magnitude tensor.
	Predict(ctx context.Context, in *Tensor) (*Tensor, error)
	// Name identifies the backend for health reporting and logs.
	Name() string
}

// Options selects and configures the model backend.
type Options struct {
	// Mode is one of "command", "spectral_gate", or "identity".
	Mode string
	// Command is the external inference binary for the command mode.
	Command string
}

// New resolves a predictor from options. A missing or unresolvable backend
// is a LoadError surfaced to startup; the builtin fallbacks are only ever
// selected explicitly, and their use is logged.
func New(opts Options, logger *slog.Logger) (Predictor, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	mode := strings.ToLower(strings.TrimSpace(opts.Mode))
	switch mode {
	case "", "command":
		cmd, err := NewCommand(opts.Command)
		if err != nil {
			return nil, err
		}
		return cmd, nil
	case "spectral_gate":
		logger.Warn("using builtin spectral gate model; output quality differs from a trained model",
			logging.String("component", "model"))
		return NewSpectralGate(), nil
	case "identity":
		logger.Warn("using identity model; output will equal input",
			logging.String("component", "model"))
		return Identity{}, nil
	default:
		return nil, &LoadError{Path: opts.Command, Err: fmt.Errorf("unknown model mode %q", opts.Mode)}
	}
}

// Identity passes the input through unchanged. Used by tests and the
// explicit identity simulation mode.
type Identity struct{}

// Predict returns a copy of the input.
func (Identity) Predict(ctx context.Context, in *Tensor) (*Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	return in.Clone(), nil
}

// Name implements Predictor.
func (Identity) Name() string { return "identity" }

// LoadError reports a model backend that could not be initialized at
// startup.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("model load: %v", e.Err)
	}
	return fmt.Sprintf("model load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
