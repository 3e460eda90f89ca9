// Package daemon is the juststart server frame: it acquires the
// singleton lock file, constructs the Manager and roster, binds the
// authenticated RPC endpoint, and serves until a shutdown RPC or
// SIGINT/SIGTERM arrives. Grounded almost verbatim on mux_server.go —
// the same acquireLock/startDaemonServer/waitForShutdown/Shutdown
// shape — adapted from a unix-domain-socket transport to TCP
// `address:port` (spec.md §6) and with every handler wrapped by
// internal/rpcauth instead of relying on filesystem socket
// permissions.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/xz-dev/juststart/internal/envbuild"
	"github.com/xz-dev/juststart/internal/manager"
	"github.com/xz-dev/juststart/internal/roster"
	"github.com/xz-dev/juststart/internal/rpcauth"
	"github.com/xz-dev/juststart/internal/scheduler"
	"github.com/xz-dev/juststart/internal/telemetry"
	"github.com/xz-dev/juststart/version"
)

const (
	lockFileName     = "lock"
	rosterFileName   = "runner_list"
	passwordFileName = "password"
	tmpDirName       = "runtime_tmp"
	defaultProfile   = "default"
)

// Plugin is a compile-time startup extension. juststart replaces the
// teacher lineage's `monkey_patch/` directory of dynamically-executed
// files (never a safe pattern to carry forward) with a typed registry
// populated by blank imports of packages that call RegisterStartupHook
// in their init().
type Plugin func(m *manager.Manager) error

var startupHooks []Plugin

// RegisterStartupHook adds a hook run once, after the Manager and
// before daemon.Boot is called.
func RegisterStartupHook(p Plugin) {
	startupHooks = append(startupHooks, p)
}

// Options configures one daemon instance.
type Options struct {
	ConfigDir    string
	Address      string
	Port         int
	OTLPEndpoint string // empty disables trace export
	RunitCompat  bool
}

// Daemon owns the listener, lock file, Manager, and shutdown plumbing.
type Daemon struct {
	opts Options

	manager *manager.Manager
	roster  *roster.Config
	sched   *scheduler.Scheduler

	listener  net.Listener
	lockFile  *os.File
	shutdown  chan struct{}
	startedAt time.Time

	tracerShutdown func(context.Context) error
}

// New constructs (but does not yet run) a Daemon from opts.
func New(opts Options) (*Daemon, error) {
	tmpDir := filepath.Join(opts.ConfigDir, tmpDirName)
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating tmp dir: %w", err)
	}

	rosterCfg, err := roster.Open(filepath.Join(opts.ConfigDir, rosterFileName))
	if err != nil {
		return nil, fmt.Errorf("opening roster: %w", err)
	}

	sched := scheduler.New(0)
	defaultProfileDir := filepath.Join(opts.ConfigDir, defaultProfile)
	mgr := manager.New(rosterCfg, sched, defaultProfileDir, tmpDir, envbuild.NewDefaultDumper(), opts.RunitCompat)

	return &Daemon{
		opts:     opts,
		manager:  mgr,
		roster:   rosterCfg,
		sched:    sched,
		shutdown: make(chan struct{}),
	}, nil
}

// acquireLock mirrors mux_server.go's acquireLock: an O_CREATE|O_RDWR
// file, non-blocking flock, PID written on success. A second daemon
// against the same config dir fails here.
func acquireLock(lockFilePath string) (*os.File, error) {
	file, err := os.OpenFile(lockFilePath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		return nil, fmt.Errorf("daemon already running against %q", lockFilePath)
	}
	file.Truncate(0)
	fmt.Fprintf(file, "%d", os.Getpid())
	return file, nil
}

func loadOrCreatePassword(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading password file %q: %w", path, err)
	}
	secret, genErr := rpcauth.GenerateSecret()
	if genErr != nil {
		return nil, genErr
	}
	if err := os.WriteFile(path, []byte(secret), 0o600); err != nil {
		return nil, fmt.Errorf("writing password file %q: %w", path, err)
	}
	return []byte(secret), nil
}

// Serve acquires the lock, binds the TCP listener, starts the RPC
// server and every enabled roster entry, then blocks until ctx is
// cancelled, SIGINT/SIGTERM arrives, or a /utils/shutdown RPC lands.
func (d *Daemon) Serve(ctx context.Context) error {
	d.startedAt = time.Now()
	lockPath := filepath.Join(d.opts.ConfigDir, tmpDirName, lockFileName)
	lockFile, err := acquireLock(lockPath)
	if err != nil {
		return err
	}
	d.lockFile = lockFile

	shutdownTracer, err := telemetry.Init(ctx, version.Get().GitCommit, d.opts.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	d.tracerShutdown = shutdownTracer

	secret, err := loadOrCreatePassword(filepath.Join(d.opts.ConfigDir, passwordFileName))
	if err != nil {
		return err
	}
	auth := rpcauth.New(secret)

	addr := fmt.Sprintf("%s:%d", d.opts.Address, d.opts.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %q: %w", addr, err)
	}
	d.listener = listener

	for _, hook := range startupHooks {
		if err := hook(d.manager); err != nil {
			return fmt.Errorf("startup hook failed: %w", err)
		}
	}

	if err := d.manager.Boot(ctx); err != nil {
		slog.ErrorContext(ctx, "daemon boot", "err", err)
	}

	go d.waitForShutdown(ctx)
	go d.serveHTTP(auth)

	<-d.shutdown
	return nil
}

func (d *Daemon) waitForShutdown(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		d.Shutdown(context.Background())
	case <-sigChan:
		d.Shutdown(context.Background())
	case <-d.shutdown:
	}
}

// Shutdown cancels all outstanding scheduler tasks, stops the Manager,
// closes the listener, flushes tracing, and removes the lock file.
func (d *Daemon) Shutdown(ctx context.Context) {
	slog.InfoContext(ctx, "daemon shutting down", "pid", os.Getpid())

	if d.listener != nil {
		d.listener.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := d.manager.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(ctx, "manager shutdown", "err", err)
	}

	if d.tracerShutdown != nil {
		d.tracerShutdown(shutdownCtx)
	}

	if d.lockFile != nil {
		syscall.Flock(int(d.lockFile.Fd()), syscall.LOCK_UN)
		d.lockFile.Close()
		lockPath := filepath.Join(d.opts.ConfigDir, tmpDirName, lockFileName)
		if err := os.Remove(lockPath); err != nil {
			slog.ErrorContext(ctx, "removing lock file", "err", err)
		}
	}

	select {
	case <-d.shutdown:
	default:
		close(d.shutdown)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, err error, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
