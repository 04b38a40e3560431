package dsp_test

import (
	"math"
	"testing"

	"hush/internal/dsp"
)

func sine(freq float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/dsp.SampleRate)
	}
	return out
}

func TestForwardShape(t *testing.T) {
	st, err := dsp.NewSTFT()
	if err != nil {
		t.Fatalf("NewSTFT failed: %v", err)
	}

	samples := sine(440, 2*dsp.SampleRate)
	spec, err := st.Forward(samples)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	wantFrames := 1 + len(samples)/dsp.HopSize
	if len(spec.Magnitude) != dsp.Bins || len(spec.Phase) != dsp.Bins {
		t.Fatalf("expected %d bins, got %d/%d", dsp.Bins, len(spec.Magnitude), len(spec.Phase))
	}
	if spec.Frames() != wantFrames {
		t.Fatalf("expected %d frames, got %d", wantFrames, spec.Frames())
	}
	for k := range spec.Magnitude {
		if len(spec.Magnitude[k]) != len(spec.Phase[k]) {
			t.Fatalf("bin %d: magnitude/phase length mismatch", k)
		}
	}
}

func TestForwardEmptyInput(t *testing.T) {
	st, err := dsp.NewSTFT()
	if err != nil {
		t.Fatalf("NewSTFT failed: %v", err)
	}
	if _, err := st.Forward(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestRoundTripIdentity(t *testing.T) {
	st, err := dsp.NewSTFT()
	if err != nil {
		t.Fatalf("NewSTFT failed: %v", err)
	}

	samples := sine(440, 2*dsp.SampleRate)
	spec, err := st.Forward(samples)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	recon, err := st.Inverse(spec.Magnitude, spec.Phase)
	if err != nil {
		t.Fatalf("Inverse failed: %v", err)
	}

	if diff := len(samples) - len(recon); diff < 0 || diff >= dsp.HopSize {
		t.Fatalf("length drift %d exceeds one hop (%d)", diff, dsp.HopSize)
	}
	for i := range recon {
		if math.Abs(recon[i]-samples[i]) > 1e-6 {
			t.Fatalf("sample %d: got %v, want %v", i, recon[i], samples[i])
		}
	}
}

func TestInverseShapeMismatch(t *testing.T) {
	st, err := dsp.NewSTFT()
	if err != nil {
		t.Fatalf("NewSTFT failed: %v", err)
	}
	mag := make([][]float64, dsp.Bins)
	phase := make([][]float64, dsp.Bins)
	for k := range mag {
		mag[k] = make([]float64, 8)
		phase[k] = make([]float64, 8)
	}
	phase[3] = make([]float64, 7)
	if _, err := st.Inverse(mag, phase); err == nil {
		t.Fatal("expected error for ragged phase plane")
	}
	if _, err := st.Inverse(mag[:10], phase[:10]); err == nil {
		t.Fatal("expected error for wrong bin count")
	}
}

func TestNormalizeRoundTrip(t *testing.T) {
	mag := [][]float64{{0.5, 2, 1}, {4, 0.25, 0}}
	scale := dsp.Normalize(mag)
	if scale != 4 {
		t.Fatalf("expected scale 4, got %v", scale)
	}
	if mag[1][0] != 1 {
		t.Fatalf("expected peak normalized to 1, got %v", mag[1][0])
	}
	dsp.Denormalize(mag, scale)
	want := [][]float64{{0.5, 2, 1}, {4, 0.25, 0}}
	for i := range want {
		for j := range want[i] {
			if math.Abs(mag[i][j]-want[i][j]) > 1e-12 {
				t.Fatalf("[%d][%d]: got %v, want %v", i, j, mag[i][j], want[i][j])
			}
		}
	}
}

func TestNormalizeSilentInput(t *testing.T) {
	mag := [][]float64{{0, 0}, {0, 0}}
	if scale := dsp.Normalize(mag); scale != 0 {
		t.Fatalf("expected sentinel 0, got %v", scale)
	}
	for _, row := range mag {
		for _, v := range row {
			if v != 0 {
				t.Fatalf("silent input must stay unchanged, got %v", v)
			}
		}
	}
	// Denormalize with the sentinel must be a no-op, not a division blow-up.
	dsp.Denormalize(mag, 0)
}

func TestPadFrames(t *testing.T) {
	rows := make([][]float64, 3)
	for i := range rows {
		rows[i] = make([]float64, 251)
		rows[i][250] = 1
	}
	padded, err := dsp.PadFrames(rows, dsp.FrameAlign)
	if err != nil {
		t.Fatalf("PadFrames failed: %v", err)
	}
	if len(padded[0]) != 256 {
		t.Fatalf("expected 256 frames, got %d", len(padded[0]))
	}
	if padded[0][250] != 1 || padded[0][255] != 0 {
		t.Fatal("padding must preserve data and zero-fill the tail")
	}

	aligned, err := dsp.PadFrames(padded, dsp.FrameAlign)
	if err != nil {
		t.Fatalf("PadFrames failed: %v", err)
	}
	if len(aligned[0]) != 256 {
		t.Fatalf("aligned input must keep its frame count, got %d", len(aligned[0]))
	}
}

func TestCropFrames(t *testing.T) {
	rows := [][]float64{{1, 2, 3, 4}, {5, 6, 7, 8}}
	cropped, err := dsp.CropFrames(rows, 3)
	if err != nil {
		t.Fatalf("CropFrames failed: %v", err)
	}
	if len(cropped[0]) != 3 || cropped[1][2] != 7 {
		t.Fatalf("unexpected crop result: %v", cropped)
	}
	if _, err := dsp.CropFrames(rows, 5); err == nil {
		t.Fatal("expected error cropping beyond frame count")
	}
}

func TestMeanSquare(t *testing.T) {
	x := []float64{2, 2, 2, 2}
	if got := dsp.MeanSquare(x); math.Abs(got-4) > 1e-12 {
		t.Fatalf("expected 4, got %v", got)
	}
	if got := dsp.MeanSquare(nil); got != 0 {
		t.Fatalf("expected 0 for empty input, got %v", got)
	}
}
