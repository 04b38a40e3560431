package model

import (
	"context"
	"sort"
)

// SpectralGate is a deliberately simple builtin denoiser: it estimates a
// per-bin noise floor from the quietest frames and applies a Wiener-style
// soft mask against it. It exists as a named, opt-in stand-in for an
// external model, not as a silent fallback.
type SpectralGate struct {
	// FloorQuantile selects the magnitude quantile per bin treated as the
	// noise floor estimate.
	FloorQuantile float64
	// Strength scales the floor before masking; higher values gate harder.
	Strength float64
}

// NewSpectralGate returns a gate with the default tuning.
func NewSpectralGate() *SpectralGate {
	return &SpectralGate{FloorQuantile: 0.2, Strength: 1.5}
}

// Name implements Predictor.
func (g *SpectralGate) Name() string { return "spectral_gate" }

// Predict applies the soft mask bin by bin. The output shape always equals
// the input shape.
func (g *SpectralGate) Predict(ctx context.Context, in *Tensor) (*Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	out := NewTensor(in.Bins, in.Frames)
	sorted := make([]float32, in.Frames)
	for bin := 0; bin < in.Bins; bin++ {
		row := in.Row(bin)
		copy(sorted, row)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		idx := int(g.FloorQuantile * float64(in.Frames-1))
		floor := float64(sorted[idx]) * g.Strength

		dst := out.Row(bin)
		for f, v := range row {
			m := float64(v)
			denom := m*m + floor*floor
			if denom <= 0 {
				dst[f] = 0
				continue
			}
			dst[f] = float32(m * (m * m / denom))
		}
	}
	return out, nil
}
