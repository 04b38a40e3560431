package jobs_test

import (
	"sync"
	"testing"
	"time"

	"hush/internal/jobs"
)

func TestCreateAndGet(t *testing.T) {
	registry := jobs.NewRegistry()
	id := registry.Create("speech.wav")
	if id == "" {
		t.Fatal("expected non-empty job ID")
	}

	job, err := registry.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if job.Status != jobs.StatusProcessing {
		t.Fatalf("status %q, want %q", job.Status, jobs.StatusProcessing)
	}
	if job.Filename != "speech.wav" {
		t.Fatalf("filename %q, want speech.wav", job.Filename)
	}
	if job.Progress != 0 {
		t.Fatalf("new job progress %v, want 0", job.Progress)
	}
	if !job.CompletedAt.IsZero() {
		t.Fatal("new job must not carry a completion timestamp")
	}

	if _, err := registry.Get("nope"); err != jobs.ErrNotFound {
		t.Fatalf("unknown ID error %v, want ErrNotFound", err)
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	registry := jobs.NewRegistry()
	id := registry.Create("a.wav")

	registry.UpdateProgress(id, 50, "inference")
	registry.UpdateProgress(id, 35, "stale update")

	job, err := registry.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if job.Progress != 50 {
		t.Fatalf("progress %v, want 50 (backwards update must be ignored)", job.Progress)
	}
	if job.Message != "inference" {
		t.Fatalf("message %q, want inference", job.Message)
	}
}

func TestTerminalTransitionsAreAtMostOnce(t *testing.T) {
	registry := jobs.NewRegistry()
	id := registry.Create("a.wav")

	registry.Complete(id, &jobs.Result{NoiseReductionDB: 4.2})
	registry.Fail(id, "should be ignored")
	registry.UpdateProgress(id, 10, "should also be ignored")

	job, err := registry.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if job.Status != jobs.StatusCompleted {
		t.Fatalf("status %q, want completed", job.Status)
	}
	if job.Progress != 100 {
		t.Fatalf("progress %v, want 100", job.Progress)
	}
	if job.Result == nil || job.Result.NoiseReductionDB != 4.2 {
		t.Fatalf("result not preserved: %+v", job.Result)
	}
	if job.CompletedAt.IsZero() {
		t.Fatal("completed job must carry a completion timestamp")
	}
}

func TestFailRecordsError(t *testing.T) {
	registry := jobs.NewRegistry()
	id := registry.Create("a.wav")

	registry.Fail(id, "model exploded")
	registry.Complete(id, &jobs.Result{})

	job, err := registry.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if job.Status != jobs.StatusError {
		t.Fatalf("status %q, want error", job.Status)
	}
	if job.Error != "model exploded" {
		t.Fatalf("error %q, want model exploded", job.Error)
	}
	if job.Result != nil {
		t.Fatal("failed job must not carry a result")
	}
}

func TestWritesToUnknownJobsAreIgnored(t *testing.T) {
	registry := jobs.NewRegistry()
	registry.UpdateProgress("ghost", 50, "x")
	registry.Complete("ghost", &jobs.Result{})
	registry.Fail("ghost", "x")
	registry.Delete("ghost")
	if got := len(registry.List()); got != 0 {
		t.Fatalf("registry should stay empty, has %d jobs", got)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	registry := jobs.NewRegistry()
	id := registry.Create("a.wav")
	registry.Complete(id, &jobs.Result{ConfidenceScore: 90})

	job, err := registry.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	job.Result.ConfidenceScore = 1

	again, err := registry.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if again.Result.ConfidenceScore != 90 {
		t.Fatal("mutating a snapshot leaked into the registry")
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	registry := jobs.NewRegistry()
	ids := make([]string, 8)
	for i := range ids {
		ids[i] = registry.Create("a.wav")
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			for p := 0; p <= 100; p += 5 {
				registry.UpdateProgress(id, float64(p), "working")
			}
			registry.Complete(id, &jobs.Result{})
		}(id)
		go func(id string) {
			defer wg.Done()
			var last float64 = -1
			for i := 0; i < 100; i++ {
				job, err := registry.Get(id)
				if err != nil {
					t.Errorf("Get failed: %v", err)
					return
				}
				if job.Progress < last {
					t.Errorf("observed progress going backwards: %v after %v", job.Progress, last)
					return
				}
				last = job.Progress
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		job, err := registry.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if job.Status != jobs.StatusCompleted {
			t.Fatalf("job %s finished as %q", id, job.Status)
		}
	}
}

func TestListOrdering(t *testing.T) {
	registry := jobs.NewRegistry()
	first := registry.Create("first.wav")
	time.Sleep(2 * time.Millisecond)
	second := registry.Create("second.wav")

	list := registry.List()
	if len(list) != 2 {
		t.Fatalf("list length %d, want 2", len(list))
	}
	if list[0].ID != second || list[1].ID != first {
		t.Fatal("expected newest-first ordering")
	}
}
