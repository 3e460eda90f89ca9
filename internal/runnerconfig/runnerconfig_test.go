package runnerconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/xz-dev/juststart/internal/envbuild"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestApplyArgsTokensClearWildcard(t *testing.T) {
	acc := ApplyArgsTokens(nil, []string{"-x", "-y"})
	acc = ApplyArgsTokens(acc, []string{"-*", "-z"})
	if len(acc) != 1 || acc[0] != "-z" {
		t.Fatalf("got %v, want [-z]", acc)
	}
}

func TestApplyArgsTokensStripsPriorBareValue(t *testing.T) {
	acc := ApplyArgsTokens(nil, []string{"value"})
	acc = ApplyArgsTokens(acc, []string{"-value"})
	if len(acc) != 0 {
		t.Fatalf("got %v, want []", acc)
	}
}

func TestHierarchicalConfigAutoRestart(t *testing.T) {
	root := t.TempDir()
	svcDir := filepath.Join(root, "svc")
	childDir := filepath.Join(svcDir, "a")
	writeFile(t, filepath.Join(svcDir, "config"), "auto_restart=3\n")
	writeFile(t, filepath.Join(childDir, "config"), "auto_restart=5\n")
	svcPath := filepath.Join(childDir, "run")
	writeFile(t, svcPath, "")
	os.Chmod(svcPath, 0o755)

	cfg, err := Resolve(context.Background(), svcPath, "", t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AutoRestart != 5 {
		t.Errorf("got auto_restart=%d, want 5", cfg.AutoRestart)
	}
}

func TestArgsLayering(t *testing.T) {
	root := t.TempDir()
	svcDir := filepath.Join(root, "svc")
	childDir := filepath.Join(svcDir, "a")
	writeFile(t, filepath.Join(svcDir, "args"), "-x\n-y\n")
	writeFile(t, filepath.Join(childDir, "args"), "-*\n-z\n")
	svcPath := filepath.Join(childDir, "run")
	writeFile(t, svcPath, "")

	cfg, err := Resolve(context.Background(), svcPath, "", t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Args) != 1 || cfg.Args[0] != "-z" {
		t.Fatalf("got %v, want [-z]", cfg.Args)
	}
}

func TestConfigDisableAutoRestartLeavesStreamsUntouched(t *testing.T) {
	root := t.TempDir()
	svcDir := filepath.Join(root, "svc")
	writeFile(t, filepath.Join(svcDir, "config"), "stdout=/tmp/custom-out\n")
	childDir := filepath.Join(svcDir, "a")
	writeFile(t, filepath.Join(childDir, "config"), "-auto_restart\n-stdout\n")
	svcPath := filepath.Join(childDir, "run")
	writeFile(t, svcPath, "")

	cfg, err := Resolve(context.Background(), svcPath, "", t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AutoRestart != 0 {
		t.Errorf("got auto_restart=%d, want 0", cfg.AutoRestart)
	}
	if cfg.Stdout != "/tmp/custom-out" {
		t.Errorf("got stdout=%q, want the enclosing layer's value, unchanged by -stdout", cfg.Stdout)
	}
}

func TestUnknownConfigKeyErrors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "config"), "bogus=1\n")
	if _, err := ParseConfigFile(filepath.Join(root, "config")); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestDefaultProfileLayering(t *testing.T) {
	root := t.TempDir()
	profileDir := filepath.Join(root, "default")
	writeFile(t, filepath.Join(profileDir, "config"), "auto_restart=7\n")
	svcPath := filepath.Join(root, "svc", "run")
	writeFile(t, svcPath, "")

	cfg, err := Resolve(context.Background(), svcPath, profileDir, t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AutoRestart != 7 {
		t.Errorf("got auto_restart=%d, want profile's 7", cfg.AutoRestart)
	}
}

func TestBuiltinDefaultStreamPaths(t *testing.T) {
	tmpRoot := t.TempDir()
	svcPath := filepath.Join(t.TempDir(), "svc", "run")
	cfg, err := Resolve(context.Background(), svcPath, "", tmpRoot, nil)
	if err != nil {
		t.Fatal(err)
	}
	wantStd := filepath.Join(tmpRoot, "runner", svcPath, "std")
	if cfg.Stdin != filepath.Join(wantStd, "in") {
		t.Errorf("stdin=%q", cfg.Stdin)
	}
	if cfg.Stdout != filepath.Join(wantStd, "log") || cfg.Stderr != filepath.Join(wantStd, "log") {
		t.Errorf("stdout=%q stderr=%q, want both to default to .../std/log", cfg.Stdout, cfg.Stderr)
	}
	if cfg.AutoRestart != 1 {
		t.Errorf("auto_restart=%d, want builtin default 1", cfg.AutoRestart)
	}
	if len(cfg.Env) != 0 {
		t.Errorf("env=%v, want empty", cfg.Env)
	}
}

func TestEnvFileLayering(t *testing.T) {
	root := t.TempDir()
	svcDir := filepath.Join(root, "svc")
	writeFile(t, filepath.Join(svcDir, "env"), "-*\n")
	svcPath := filepath.Join(svcDir, "run")
	writeFile(t, svcPath, "")

	cfg, err := Resolve(context.Background(), svcPath, "", t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Env) != 0 {
		t.Errorf("got %v, want empty env", cfg.Env)
	}
	_ = envbuild.EnvMap{}
}
