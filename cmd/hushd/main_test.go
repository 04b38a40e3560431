package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "hushd ") {
		t.Fatalf("unexpected version output %q", out)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "config", "init", "--path", path)
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Fatalf("init output does not mention target path: %q", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	if _, err := runCommand(t, "config", "init", "--path", path); err == nil {
		t.Fatal("second init without --overwrite must fail")
	}
	if _, err := runCommand(t, "config", "init", "--path", path, "--overwrite"); err != nil {
		t.Fatalf("init with --overwrite failed: %v", err)
	}

	out, err = runCommand(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, "model.mode = command") {
		t.Fatalf("show output missing model mode: %q", out)
	}
}

func TestRenderPairs(t *testing.T) {
	out := renderPairs("Metric", "Value", [][2]string{
		{"Noise reduction", "4.20 dB"},
		{"Confidence", "95.8 %"},
	}, true)
	for _, want := range []string{"Metric", "Value", "Noise reduction", "95.8 %"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

func TestProcessRejectsMissingInput(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := "[model]\nmode = \"identity\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := runCommand(t, "--config", configPath, "process", filepath.Join(dir, "missing.wav"))
	if err == nil {
		t.Fatal("process must fail for missing input")
	}
}
