package testsupport

import (
	"math"
	"testing"

	"hush/internal/audio"
)

// WriteTone writes a mono 16 kHz sine wave WAV file to path and returns
// the samples it encoded.
func WriteTone(t testing.TB, path string, freq, seconds float64) []float64 {
	t.Helper()

	n := int(seconds * audio.ProcessingRate)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.4 * math.Sin(2*math.Pi*freq*float64(i)/audio.ProcessingRate)
	}
	if err := audio.Encode(path, samples); err != nil {
		t.Fatalf("write tone %s: %v", path, err)
	}
	return samples
}
