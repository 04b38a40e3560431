package model

import "fmt"

// Tensor is a single-channel magnitude spectrogram laid out row-major as
// [bin*Frames + frame] float32. The batch and channel axes of the model's
// wire contract are always 1 and therefore implicit.
type Tensor struct {
	Bins   int
	Frames int
	Data   []float32
}

// NewTensor allocates a zero-filled tensor.
func NewTensor(bins, frames int) *Tensor {
	return &Tensor{Bins: bins, Frames: frames, Data: make([]float32, bins*frames)}
}

// At returns the value at (bin, frame). Bounds are the caller's problem.
func (t *Tensor) At(bin, frame int) float32 {
	return t.Data[bin*t.Frames+frame]
}

// Set stores v at (bin, frame).
func (t *Tensor) Set(bin, frame int, v float32) {
	t.Data[bin*t.Frames+frame] = v
}

// Row returns the time axis of a single bin as a shared slice.
func (t *Tensor) Row(bin int) []float32 {
	return t.Data[bin*t.Frames : (bin+1)*t.Frames]
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	out := NewTensor(t.Bins, t.Frames)
	copy(out.Data, t.Data)
	return out
}

// SameShape reports whether two tensors have identical dimensions.
func (t *Tensor) SameShape(other *Tensor) bool {
	return other != nil && t.Bins == other.Bins && t.Frames == other.Frames
}

func (t *Tensor) validate() error {
	if t == nil {
		return fmt.Errorf("model: nil tensor")
	}
	if t.Bins <= 0 || t.Frames <= 0 {
		return fmt.Errorf("model: invalid tensor shape %dx%d", t.Bins, t.Frames)
	}
	if len(t.Data) != t.Bins*t.Frames {
		return fmt.Errorf("model: tensor data length %d != %d*%d", len(t.Data), t.Bins, t.Frames)
	}
	return nil
}
