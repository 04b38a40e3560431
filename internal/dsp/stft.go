package dsp

import (
	"errors"
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"
)

const (
	// SampleRate is the fixed processing rate for the whole pipeline.
	SampleRate = 16000
	// FrameSize is the FFT size and analysis window length.
	FrameSize = 512
	// HopSize is the STFT hop in samples.
	HopSize = 128
	// Bins is the number of non-redundant frequency bins.
	Bins = FrameSize/2 + 1
	// FrameAlign is the time-axis alignment the model requires.
	FrameAlign = 32

	overlapNormFloor = 1e-12
)

// Spectrum holds magnitude and phase planes indexed [bin][frame].
// Both planes always share identical dimensions.
type Spectrum struct {
	Magnitude [][]float64
	Phase     [][]float64
}

// Frames returns the time-axis length of the spectrum.
func (s *Spectrum) Frames() int {
	if s == nil || len(s.Magnitude) == 0 {
		return 0
	}
	return len(s.Magnitude[0])
}

// STFT computes centered forward and inverse short-time Fourier transforms
// with a periodic Hann window. It is not safe for concurrent use; each
// pipeline run owns its own instance.
type STFT struct {
	frameSize int
	hop       int
	plan      *algofft.Plan[complex128]
	window    []float64

	spec []complex128
	time []complex128
	re   []float64
	im   []float64
	abs  []float64
}

// NewSTFT creates a transform with the fixed model parameters.
func NewSTFT() (*STFT, error) {
	plan, err := algofft.NewPlan64(FrameSize)
	if err != nil {
		return nil, fmt.Errorf("stft: create FFT plan: %w", err)
	}

	window := make([]float64, FrameSize)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/FrameSize))
	}

	return &STFT{
		frameSize: FrameSize,
		hop:       HopSize,
		plan:      plan,
		window:    window,
		spec:      make([]complex128, FrameSize),
		time:      make([]complex128, FrameSize),
		re:        make([]float64, Bins),
		im:        make([]float64, Bins),
		abs:       make([]float64, Bins),
	}, nil
}

// Forward computes the magnitude/phase spectrum of samples. The input is
// reflect-padded by half a frame on each side, so the frame count is
// 1 + len(samples)/hop.
func (t *STFT) Forward(samples []float64) (*Spectrum, error) {
	if len(samples) == 0 {
		return nil, errors.New("stft: empty input")
	}

	half := t.frameSize / 2
	padded := reflectPad(samples, half)
	frames := 1 + (len(padded)-t.frameSize)/t.hop

	mag := make([][]float64, Bins)
	phase := make([][]float64, Bins)
	for k := range mag {
		mag[k] = make([]float64, frames)
		phase[k] = make([]float64, frames)
	}

	for f := 0; f < frames; f++ {
		off := f * t.hop
		for i := 0; i < t.frameSize; i++ {
			t.spec[i] = complex(padded[off+i]*t.window[i], 0)
		}
		if err := t.plan.Forward(t.spec, t.spec); err != nil {
			return nil, fmt.Errorf("stft: forward FFT at frame %d: %w", f, err)
		}
		for k := 0; k < Bins; k++ {
			t.re[k] = real(t.spec[k])
			t.im[k] = imag(t.spec[k])
		}
		vecmath.Magnitude(t.abs, t.re, t.im)
		for k := 0; k < Bins; k++ {
			mag[k][f] = t.abs[k]
			phase[k][f] = math.Atan2(t.im[k], t.re[k])
		}
	}

	return &Spectrum{Magnitude: mag, Phase: phase}, nil
}

// Inverse reconstructs samples from magnitude and phase planes via
// overlap-add synthesis. The output length follows the framing rule,
// (frames-1)*hop; cropping to any original sample count is the caller's
// responsibility.
func (t *STFT) Inverse(mag, phase [][]float64) ([]float64, error) {
	if len(mag) != Bins || len(phase) != Bins {
		return nil, fmt.Errorf("stft: expected %d bins, got %d magnitude / %d phase", Bins, len(mag), len(phase))
	}
	frames := len(mag[0])
	if frames == 0 {
		return nil, errors.New("stft: empty spectrum")
	}
	for k := 0; k < Bins; k++ {
		if len(mag[k]) != frames || len(phase[k]) != frames {
			return nil, fmt.Errorf("stft: ragged spectrum at bin %d", k)
		}
	}

	half := t.frameSize / 2
	outLen := t.frameSize + (frames-1)*t.hop
	acc := make([]float64, outLen)
	norm := make([]float64, outLen)

	for f := 0; f < frames; f++ {
		for k := 0; k <= half; k++ {
			m := mag[k][f]
			p := phase[k][f]
			t.spec[k] = complex(m*math.Cos(p), m*math.Sin(p))
		}
		// Force DC and Nyquist real and mirror the conjugate half so the
		// synthesized frame is purely real.
		t.spec[0] = complex(real(t.spec[0]), 0)
		t.spec[half] = complex(real(t.spec[half]), 0)
		for k := 1; k < half; k++ {
			v := t.spec[k]
			t.spec[t.frameSize-k] = complex(real(v), -imag(v))
		}

		if err := t.plan.Inverse(t.time, t.spec); err != nil {
			return nil, fmt.Errorf("stft: inverse FFT at frame %d: %w", f, err)
		}

		off := f * t.hop
		for i := 0; i < t.frameSize; i++ {
			w := t.window[i]
			acc[off+i] += real(t.time[i]) * w
			norm[off+i] += w * w
		}
	}

	for i := range acc {
		if norm[i] > overlapNormFloor {
			acc[i] /= norm[i]
		}
	}

	return acc[half : outLen-half], nil
}

// reflectPad mirrors the signal around its endpoints without repeating the
// edge samples, folding as needed for inputs shorter than the pad width.
func reflectPad(x []float64, pad int) []float64 {
	n := len(x)
	out := make([]float64, n+2*pad)
	copy(out[pad:], x)
	for i := 1; i <= pad; i++ {
		out[pad-i] = x[reflectIndex(i, n)]
		out[pad+n-1+i] = x[reflectIndex(n-1-i, n)]
	}
	return out
}

func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}
