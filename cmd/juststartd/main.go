// Command juststartd is the juststart supervisor daemon. It owns the
// roster, the service table, and the authenticated RPC endpoint;
// administration happens out-of-process via the juststart CLI.
// Grounded on cmd/sand/daemon_cmd.go's start/stop/status verbs,
// collapsed here into a single long-running foreground process since
// juststart ships the daemon as its own binary rather than a CLI
// subcommand that forks itself.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xz-dev/juststart/internal/daemon"
)

func main() {
	configDir := flag.String("config", "~/.juststart", "daemon config directory")
	address := flag.String("address", "127.0.0.1", "TCP address to bind")
	port := flag.Int("port", 7654, "TCP port to bind")
	otlpEndpoint := flag.String("otlp-endpoint", "", "OTLP/gRPC trace exporter endpoint; empty disables export")
	runitCompat := flag.Bool("runit-compat", false, "treat a bare sibling 'down' file as a down-hook")
	logFile := flag.String("log-file", "", "log file path; empty logs to a random tmp/ path")
	logLevel := flag.String("log-level", "info", "debug|info|warn|error")
	flag.Parse()

	initSlog(*logFile, *logLevel)

	resolvedConfigDir := expandHome(*configDir)
	if err := os.MkdirAll(resolvedConfigDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "creating config dir %q: %v\n", resolvedConfigDir, err)
		os.Exit(1)
	}

	d, err := daemon.New(daemon.Options{
		ConfigDir:    resolvedConfigDir,
		Address:      *address,
		Port:         *port,
		OTLPEndpoint: *otlpEndpoint,
		RunitCompat:  *runitCompat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "constructing daemon: %v\n", err)
		os.Exit(1)
	}

	slog.Info("juststartd starting", "configDir", resolvedConfigDir, "address", *address, "port", *port)
	if err := d.Serve(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "daemon exited: %v\n", err)
		os.Exit(1)
	}
}

func initSlog(logFile, logLevel string) {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var f *os.File
	var err error
	if logFile == "" {
		f, err = os.CreateTemp("", "juststartd-log")
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(logFile), 0o755); mkErr != nil {
			panic(mkErr)
		}
		f, err = os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	}
	if err != nil {
		panic(err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})))
}

func expandHome(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
