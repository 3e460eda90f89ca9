package roster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xz-dev/juststart/internal/juststarterr"
)

func writeExecutable(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestAddRejectsNonExecutable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "svc")
	if err := os.WriteFile(path, []byte("not executable"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Open(filepath.Join(dir, "runner_list"))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Add(path); err == nil {
		t.Fatal("expected error adding a non-executable file")
	}
}

func TestAddThenAddAgainFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "svc")
	writeExecutable(t, path)
	c, err := Open(filepath.Join(dir, "runner_list"))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Add(path); err != nil {
		t.Fatal(err)
	}
	if err := c.Add(path); err == nil {
		t.Fatal("expected error on duplicate add")
	}
}

func TestEnableThenEnableAgainFailsAtInfoLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "svc")
	writeExecutable(t, path)
	c, err := Open(filepath.Join(dir, "runner_list"))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Add(path); err != nil {
		t.Fatal(err)
	}
	if err := c.Enable(path); err != nil {
		t.Fatal(err)
	}
	err = c.Enable(path)
	if err == nil {
		t.Fatal("expected error on duplicate enable")
	}
	je, ok := juststarterr.As(err)
	if !ok {
		t.Fatalf("expected a *juststarterr.Error, got %T", err)
	}
	if je.Level != juststarterr.LevelInfo {
		t.Errorf("got level %q, want info", je.Level)
	}
}

func TestDisableSymmetric(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "svc")
	writeExecutable(t, path)
	c, err := Open(filepath.Join(dir, "runner_list"))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Add(path); err != nil {
		t.Fatal(err)
	}
	if err := c.Disable(path); err == nil {
		t.Fatal("expected error disabling an already-disabled (default) entry")
	}
}

func TestRoundtripWriteThenReadYieldsSameEntries(t *testing.T) {
	dir := t.TempDir()
	rosterPath := filepath.Join(dir, "runner_list")
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	writeExecutable(t, a)
	writeExecutable(t, b)

	c, err := Open(rosterPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Add(a); err != nil {
		t.Fatal(err)
	}
	if err := c.Add(b); err != nil {
		t.Fatal(err)
	}
	if err := c.Enable(a); err != nil {
		t.Fatal(err)
	}

	c2, err := Open(rosterPath)
	if err != nil {
		t.Fatal(err)
	}
	entries := c2.Entries()
	if !entries[a] {
		t.Errorf("entry %q should be enabled", a)
	}
	if entries[b] {
		t.Errorf("entry %q should be disabled", b)
	}
}

func TestPersistedFileIsSortedWithDashPrefixForDisabled(t *testing.T) {
	dir := t.TempDir()
	rosterPath := filepath.Join(dir, "runner_list")
	z := filepath.Join(dir, "z-svc")
	a := filepath.Join(dir, "a-svc")
	writeExecutable(t, z)
	writeExecutable(t, a)

	c, err := Open(rosterPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Add(z); err != nil {
		t.Fatal(err)
	}
	if err := c.Add(a); err != nil {
		t.Fatal(err)
	}
	if err := c.Enable(a); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(rosterPath)
	if err != nil {
		t.Fatal(err)
	}
	want := a + "\n- " + z + "\n"
	if string(raw) != want {
		t.Fatalf("got %q, want %q", string(raw), want)
	}
}

func TestCheckFlagsBrokenEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "svc")
	writeExecutable(t, path)
	c, err := Open(filepath.Join(dir, "runner_list"))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Add(path); err != nil {
		t.Fatal(err)
	}
	if !c.Check(path) {
		t.Fatal("expected Check to report the entry as valid")
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if c.Check(path) {
		t.Fatal("expected Check to report the entry as broken after removal")
	}
}
