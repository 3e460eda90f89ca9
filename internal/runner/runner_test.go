package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xz-dev/juststart/internal/envbuild"
	"github.com/xz-dev/juststart/internal/runnerconfig"
	"github.com/xz-dev/juststart/internal/scheduler"
)

func writeScript(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
}

func waitForStatus(t *testing.T, r *Runner, key StatusKey, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if r.StatusSnapshot().Status.Key == key {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %q, last was %q", key, r.StatusSnapshot().Status.Key)
}

func TestRunnerStartRunsOnceWhenAutoRestartZero(t *testing.T) {
	dir := t.TempDir()
	svcPath := filepath.Join(dir, "run")
	marker := filepath.Join(dir, "ran")
	writeScript(t, svcPath, "echo hi >> "+marker+"\n")

	cfg := runnerconfig.RunnerConfig{
		AutoRestart: 0,
		Env:         envbuild.EnvMap{},
		Stdin:       filepath.Join(dir, "std", "in"),
		Stdout:      filepath.Join(dir, "std", "log"),
		Stderr:      filepath.Join(dir, "std", "log"),
	}
	r := New(svcPath, cfg)
	sched := scheduler.New(4)
	defer sched.Shutdown(context.Background())

	if err := r.Start(sched); err != nil {
		t.Fatal(err)
	}

	waitForStatus(t, r, StatusStopped, 2*time.Second)

	snap := r.StatusSnapshot()
	if snap.BootedNum != 1 {
		t.Errorf("got BootedNum=%d, want 1 (auto_restart=0 spawns exactly once)", snap.BootedNum)
	}
}

func TestRunnerStopEscalatesAndReportsStopped(t *testing.T) {
	dir := t.TempDir()
	svcPath := filepath.Join(dir, "run")
	writeScript(t, svcPath, "trap '' TERM\nsleep 30\n")

	cfg := runnerconfig.RunnerConfig{
		AutoRestart: infiniteRestart,
		Env:         envbuild.EnvMap{},
		Stdin:       filepath.Join(dir, "std", "in"),
		Stdout:      filepath.Join(dir, "std", "log"),
		Stderr:      filepath.Join(dir, "std", "log"),
	}
	r := New(svcPath, cfg)
	sched := scheduler.New(4)
	defer sched.Shutdown(context.Background())

	if err := r.Start(sched); err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, r, StatusRunning, 2*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if r.IsRunning() {
		t.Fatal("runner still reports running after Stop")
	}
}

func TestRunnerStatusSnapshotIsConsistent(t *testing.T) {
	dir := t.TempDir()
	svcPath := filepath.Join(dir, "run")
	writeScript(t, svcPath, "exit 0\n")

	r := New(svcPath, runnerconfig.RunnerConfig{
		AutoRestart: 0,
		Env:         envbuild.EnvMap{"FOO": "bar"},
		Stdin:       filepath.Join(dir, "std", "in"),
		Stdout:      filepath.Join(dir, "std", "log"),
		Stderr:      filepath.Join(dir, "std", "log"),
	})

	snap := r.StatusSnapshot()
	if snap.Path != svcPath {
		t.Errorf("Path=%q, want %q", snap.Path, svcPath)
	}
	if snap.Env["FOO"] != "bar" {
		t.Errorf("Env[FOO]=%q, want bar", snap.Env["FOO"])
	}
	if snap.Status.Key != StatusStopped {
		t.Errorf("initial status=%q, want STOPPED", snap.Status.Key)
	}
}
