package manager

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xz-dev/juststart/internal/roster"
	"github.com/xz-dev/juststart/internal/scheduler"
)

func writeExecutable(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
}

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	rosterCfg, err := roster.Open(filepath.Join(dir, "runner_list"))
	if err != nil {
		t.Fatal(err)
	}
	sched := scheduler.New(4)
	t.Cleanup(func() { sched.Shutdown(context.Background()) })
	m := New(rosterCfg, sched, "", filepath.Join(dir, "runtime_tmp"), nil, false)
	return m, dir
}

func TestStartRunnerThenGetRunner(t *testing.T) {
	m, dir := newTestManager(t)
	svcPath := filepath.Join(dir, "svc", "run")
	writeExecutable(t, svcPath, "sleep 30\n")

	if err := m.StartRunner(context.Background(), svcPath, nil); err != nil {
		t.Fatal(err)
	}
	r, err := m.GetRunner(svcPath)
	if err != nil {
		t.Fatal(err)
	}
	if r.Path() != svcPath {
		t.Errorf("got path %q", r.Path())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := m.StopRunner(ctx, svcPath, false); err != nil {
		t.Fatal(err)
	}
	if _, err := m.GetRunner(svcPath); err == nil {
		t.Fatal("expected GetRunner to fail after StopRunner removed the entry")
	}
}

func TestStartRunnerOnExistingPathDelegatesToReload(t *testing.T) {
	m, dir := newTestManager(t)
	svcPath := filepath.Join(dir, "svc", "run")
	writeExecutable(t, svcPath, "exit 0\n")

	if err := m.StartRunner(context.Background(), svcPath, nil); err != nil {
		t.Fatal(err)
	}
	// A second StartRunner call on the same path must not error; it
	// delegates to ReloadRunner rather than double-registering.
	if err := m.StartRunner(context.Background(), svcPath, nil); err != nil {
		t.Fatal(err)
	}
}

func TestGetRunnerFailsWhenNotInTable(t *testing.T) {
	m, dir := newTestManager(t)
	if _, err := m.GetRunner(filepath.Join(dir, "nope")); err == nil {
		t.Fatal("expected error for unknown path")
	}
}

func TestGetRunnerStatusDictFlagsRosterAndTableEntries(t *testing.T) {
	m, dir := newTestManager(t)
	enabled := filepath.Join(dir, "enabled", "run")
	disabled := filepath.Join(dir, "disabled", "run")
	untracked := filepath.Join(dir, "untracked", "run")
	writeExecutable(t, enabled, "exit 0\n")
	writeExecutable(t, disabled, "exit 0\n")
	writeExecutable(t, untracked, "sleep 30\n")

	if err := m.roster.Add(enabled); err != nil {
		t.Fatal(err)
	}
	if err := m.roster.Enable(enabled); err != nil {
		t.Fatal(err)
	}
	if err := m.roster.Add(disabled); err != nil {
		t.Fatal(err)
	}
	if err := m.StartRunner(context.Background(), untracked, nil); err != nil {
		t.Fatal(err)
	}

	report := m.GetRunnerStatusDict()
	byPath := map[string][]BootStatus{}
	for _, entry := range report {
		byPath[entry.Path] = entry.Flags
	}

	if !containsFlag(byPath[enabled], EnabledBoot) || !containsFlag(byPath[enabled], NotInitedBoot) {
		t.Errorf("enabled entry flags = %v", byPath[enabled])
	}
	if !containsFlag(byPath[disabled], DisabledBoot) {
		t.Errorf("disabled entry flags = %v", byPath[disabled])
	}
	if !containsFlag(byPath[untracked], InitedNotSavedBoot) {
		t.Errorf("untracked entry flags = %v", byPath[untracked])
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	m.StopRunner(ctx, untracked, false)
}

func containsFlag(flags []BootStatus, want BootStatus) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}

func TestCleanRunnerReapsOnlyNonRunning(t *testing.T) {
	m, dir := newTestManager(t)
	stopped := filepath.Join(dir, "stopped", "run")
	writeExecutable(t, stopped, "exit 0\n")

	if err := m.StartRunner(context.Background(), stopped, nil); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r, _ := m.GetRunner(stopped)
		if r != nil && !r.IsRunning() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	reaped, err := m.CleanRunner()
	if err != nil {
		t.Fatal(err)
	}
	if len(reaped) != 1 || reaped[0] != stopped {
		t.Fatalf("got %v, want [%s]", reaped, stopped)
	}
	if _, err := m.GetRunner(stopped); err == nil {
		t.Fatal("expected the reaped entry to be gone from the table")
	}
}
