package pipeline

import (
	"errors"
	"fmt"
)

// AudioLoadError marks a failure to read or decode the uploaded audio.
type AudioLoadError struct {
	Path string
	Err  error
}

func (e *AudioLoadError) Error() string {
	return fmt.Sprintf("load audio %s: %v", e.Path, e.Err)
}

func (e *AudioLoadError) Unwrap() error { return e.Err }

// Kind identifies the failure class for status reporting.
func (e *AudioLoadError) Kind() string { return "audio_load" }

// ReconstructionError marks a failure to rebuild the waveform from the
// denoised spectrogram.
type ReconstructionError struct {
	Err error
}

func (e *ReconstructionError) Error() string {
	return fmt.Sprintf("reconstruct waveform: %v", e.Err)
}

func (e *ReconstructionError) Unwrap() error { return e.Err }

// Kind identifies the failure class for status reporting.
func (e *ReconstructionError) Kind() string { return "reconstruction" }

// ExportError marks a failure to write the denoised audio to disk.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export audio %s: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// Kind identifies the failure class for status reporting.
func (e *ExportError) Kind() string { return "export" }

type kinder interface {
	Kind() string
}

// Kind walks the error chain and returns the first failure class it finds,
// or "internal" when no classified error is present.
func Kind(err error) string {
	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return "internal"
}
