package model_test

import (
	"context"
	"errors"
	"testing"

	"hush/internal/logging"
	"hush/internal/model"
)

func testTensor(bins, frames int) *model.Tensor {
	in := model.NewTensor(bins, frames)
	for i := range in.Data {
		in.Data[i] = float32(i%7) * 0.25
	}
	return in
}

func TestIdentityPredict(t *testing.T) {
	in := testTensor(16, 32)
	out, err := model.Identity{}.Predict(context.Background(), in)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if !out.SameShape(in) {
		t.Fatalf("shape changed: %dx%d", out.Bins, out.Frames)
	}
	out.Data[0] = 99
	if in.Data[0] == 99 {
		t.Fatal("identity must return a copy, not alias the input")
	}
}

func TestSpectralGateShape(t *testing.T) {
	gate := model.NewSpectralGate()
	in := testTensor(16, 64)
	out, err := gate.Predict(context.Background(), in)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if !out.SameShape(in) {
		t.Fatalf("shape changed: %dx%d", out.Bins, out.Frames)
	}

	silent := model.NewTensor(16, 64)
	out, err = gate.Predict(context.Background(), silent)
	if err != nil {
		t.Fatalf("Predict on silence failed: %v", err)
	}
	for _, v := range out.Data {
		if v != 0 {
			t.Fatalf("silent input must stay silent, got %v", v)
		}
	}
}

func TestSpectralGateAttenuates(t *testing.T) {
	gate := model.NewSpectralGate()
	in := model.NewTensor(1, 32)
	for f := 0; f < 32; f++ {
		in.Set(0, f, 0.1) // uniform noise floor
	}
	in.Set(0, 5, 1) // one strong component
	out, err := gate.Predict(context.Background(), in)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if out.At(0, 5) < 0.8 {
		t.Fatalf("strong component should survive the gate, got %v", out.At(0, 5))
	}
	if out.At(0, 6) >= in.At(0, 6) {
		t.Fatalf("floor-level component should be attenuated, got %v", out.At(0, 6))
	}
}

func TestNewModeResolution(t *testing.T) {
	logger := logging.NewNop()

	p, err := model.New(model.Options{Mode: "identity"}, logger)
	if err != nil {
		t.Fatalf("identity mode failed: %v", err)
	}
	if p.Name() != "identity" {
		t.Fatalf("unexpected name %q", p.Name())
	}

	p, err = model.New(model.Options{Mode: "spectral_gate"}, logger)
	if err != nil {
		t.Fatalf("spectral_gate mode failed: %v", err)
	}
	if p.Name() != "spectral_gate" {
		t.Fatalf("unexpected name %q", p.Name())
	}

	if _, err := model.New(model.Options{Mode: "simulate"}, logger); err == nil {
		t.Fatal("unknown mode must fail")
	}

	var loadErr *model.LoadError
	_, err = model.New(model.Options{Mode: "command", Command: ""}, logger)
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError for missing command, got %v", err)
	}
	_, err = model.New(model.Options{Mode: "command", Command: "definitely-not-a-binary-9f2c"}, logger)
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError for unresolvable command, got %v", err)
	}
}

func TestCommandRoundTrip(t *testing.T) {
	// cat passes the frame through untouched, making it a real external
	// identity model.
	cmd, err := model.NewCommand("cat")
	if err != nil {
		t.Skipf("cat unavailable: %v", err)
	}
	in := testTensor(8, 16)
	out, err := cmd.Predict(context.Background(), in)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if !out.SameShape(in) {
		t.Fatalf("shape changed: %dx%d", out.Bins, out.Frames)
	}
	for i := range in.Data {
		if in.Data[i] != out.Data[i] {
			t.Fatalf("payload mismatch at %d: %v != %v", i, in.Data[i], out.Data[i])
		}
	}
}

func TestCommandFailure(t *testing.T) {
	cmd, err := model.NewCommand("false")
	if err != nil {
		t.Skipf("false unavailable: %v", err)
	}
	if _, err := cmd.Predict(context.Background(), testTensor(4, 8)); err == nil {
		t.Fatal("expected error from failing command")
	}
}
