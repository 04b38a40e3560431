package server_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"hush/internal/artifacts"
	"hush/internal/history"
	"hush/internal/jobs"
	"hush/internal/model"
	"hush/internal/pipeline"
	"hush/internal/runner"
	"hush/internal/server"
	"hush/internal/testsupport"
	"hush/internal/visualize"
)

type fixture struct {
	registry *jobs.Registry
	runner   *runner.Runner
	store    *artifacts.Store
	ledger   *history.Store
	srv      *server.Server
	ts       *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	registry := jobs.NewRegistry()
	store := artifacts.NewStore(dir)
	ledger, err := history.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close() })

	pipe := pipeline.New(model.Identity{}, visualize.RenderSpectrogram, nil)
	run := runner.New(registry, pipe, ledger, nil)

	srv, err := server.New(server.Options{
		Bind:      "127.0.0.1:0",
		Registry:  registry,
		Runner:    run,
		Artifacts: store,
		Ledger:    ledger,
		ModelName: "identity",
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("server.New failed: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &fixture{registry: registry, runner: run, store: store, ledger: ledger, srv: srv, ts: ts}
}

func toneWAV(t *testing.T) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	testsupport.WriteTone(t, path, 440, 0.5)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read tone: %v", err)
	}
	return data
}

func uploadRequest(t *testing.T, url, filename string, payload []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, url+"/api/denoise", &body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestDenoiseEndToEnd(t *testing.T) {
	fx := newFixture(t)

	resp, err := http.DefaultClient.Do(uploadRequest(t, fx.ts.URL, "voice.wav", toneWAV(t)))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("upload status %d, want 202", resp.StatusCode)
	}
	accepted := decodeJSON[map[string]string](t, resp)
	id := accepted["job_id"]
	if id == "" {
		t.Fatal("response missing job_id")
	}
	if accepted["check_status_url"] != "/api/status/"+id {
		t.Fatalf("check_status_url %q", accepted["check_status_url"])
	}

	fx.runner.Wait()

	resp, err = http.Get(fx.ts.URL + "/api/status/" + id)
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	status := decodeJSON[map[string]any](t, resp)
	if status["status"] != "completed" {
		t.Fatalf("job finished as %v (%v)", status["status"], status["error"])
	}
	if status["progress"].(float64) != 100 {
		t.Fatalf("progress %v, want 100", status["progress"])
	}
	result, ok := status["result"].(map[string]any)
	if !ok {
		t.Fatal("completed job missing result")
	}
	if result["sample_rate"].(float64) != 16000 {
		t.Fatalf("sample rate %v", result["sample_rate"])
	}
	if result["input_spectrogram"] != "/api/jobs/"+id+"/spec/input" {
		t.Fatalf("input spectrogram ref %v", result["input_spectrogram"])
	}

	resp, err = http.Get(fx.ts.URL + "/api/download/" + id)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/wav" {
		t.Fatalf("download content type %q", ct)
	}

	for _, which := range []string{"input", "output"} {
		resp, err := http.Get(fx.ts.URL + "/api/jobs/" + id + "/spec/" + which)
		if err != nil {
			t.Fatalf("spectrogram request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s spectrogram status %d", which, resp.StatusCode)
		}
	}

	resp, err = http.Get(fx.ts.URL + "/api/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	metrics := decodeJSON[history.Aggregates](t, resp)
	if metrics.TotalProcessed != 1 {
		t.Fatalf("metrics total %d, want 1", metrics.TotalProcessed)
	}
}

func TestDenoiseRejectsUnsupportedExtension(t *testing.T) {
	fx := newFixture(t)

	resp, err := http.DefaultClient.Do(uploadRequest(t, fx.ts.URL, "song.mp3", []byte("not audio")))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
	if got := len(fx.registry.List()); got != 0 {
		t.Fatalf("rejected upload created %d jobs", got)
	}
}

func TestStatusUnknownJob(t *testing.T) {
	fx := newFixture(t)

	resp, err := http.Get(fx.ts.URL + "/api/status/deadbeef")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", resp.StatusCode)
	}
}

func TestDownloadBeforeCompletion(t *testing.T) {
	fx := newFixture(t)
	id := fx.registry.Create("pending.wav")

	resp, err := http.Get(fx.ts.URL + "/api/download/" + id)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
}

func TestDeleteJobRemovesRecordAndArtifacts(t *testing.T) {
	fx := newFixture(t)

	resp, err := http.DefaultClient.Do(uploadRequest(t, fx.ts.URL, "voice.wav", toneWAV(t)))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	accepted := decodeJSON[map[string]string](t, resp)
	id := accepted["job_id"]
	fx.runner.Wait()

	req, err := http.NewRequest(http.MethodDelete, fx.ts.URL+"/api/jobs/"+id, nil)
	if err != nil {
		t.Fatalf("build delete request: %v", err)
	}
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status %d", resp.StatusCode)
	}

	if _, err := fx.registry.Get(id); err != jobs.ErrNotFound {
		t.Fatal("job record survived deletion")
	}
	if _, err := fx.store.FindInput(id); err == nil {
		t.Fatal("input artifact survived deletion")
	}
}

func TestHealth(t *testing.T) {
	fx := newFixture(t)

	resp, err := http.Get(fx.ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	health := decodeJSON[map[string]string](t, resp)
	if health["status"] != "ok" || health["model"] != "identity" {
		t.Fatalf("unexpected health payload: %v", health)
	}
}

func TestMetricsEmptyLedger(t *testing.T) {
	fx := newFixture(t)

	resp, err := http.Get(fx.ts.URL + "/api/metrics")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	metrics := decodeJSON[history.Aggregates](t, resp)
	if metrics.TotalProcessed != 0 {
		t.Fatalf("empty ledger reports %d processed", metrics.TotalProcessed)
	}
}

