package daemon_test

import (
	"context"
	"net/http"
	"testing"

	"hush/internal/daemon"
	"hush/internal/testsupport"
)

func TestStartStop(t *testing.T) {
	d, err := daemon.New(testsupport.NewConfig(t), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	resp, err := http.Get("http://" + d.Addr() + "/api/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", resp.StatusCode)
	}

	d.Stop()
}

func TestLockExcludesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	first, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer first.Stop()

	second, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second instance must fail to acquire the lock")
	}
}

func TestMissingModelCommandFailsConstruction(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithModelMode("command", "definitely-not-a-real-binary-xyz"))

	if _, err := daemon.New(cfg, nil); err == nil {
		t.Fatal("unresolvable model command must fail daemon construction")
	}
}
