// Command juststart is the administrative client for the juststart
// service supervisor: it signs and sends one RPC per invocation against
// a running juststartd daemon. Grounded on cmd/sand/main.go's
// CLI/Context/initSlog shape.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"
	kongcompletion "github.com/jotaen/kong-completion"
	"golang.org/x/term"

	"github.com/xz-dev/juststart/internal/rpcclient"
)

// Context carries dependencies every subcommand's Run method receives.
type Context struct {
	Address  string
	Port     int
	JSON     bool
	client   *rpcclient.Client
}

// CLI is the top-level kong command tree. Verbs mirror spec.md §6's CLI
// surface verbatim: serve, add, del, enable, disable, start, stop,
// restart, reload, status, list, gc, shutdown.
type CLI struct {
	Address    string `default:"127.0.0.1" help:"daemon address to connect to (or bind to, for serve)"`
	Port       int    `default:"7654" help:"daemon TCP port"`
	Password   string `placeholder:"<secret>" help:"shared-secret RPC password; defaults to reading <config-dir>/password"`
	ConfigDir  string `name:"config" default:"~/.juststart" help:"daemon config directory (roster, default profile, tmp, password file)"`
	JSON       bool   `help:"emit machine-readable JSON instead of human text"`
	LogFile    string `default:"" help:"log file path; empty logs to a random tmp/ path"`
	LogLevel   string `default:"info" placeholder:"<debug|info|warn|error>"`

	Serve      ServeCmd      `cmd:"" help:"run the juststart daemon in the foreground"`
	Add        AddCmd        `cmd:"" help:"add a service to the roster (disabled by default)"`
	Del        DelCmd        `cmd:"" help:"remove a service from the roster"`
	Enable     EnableCmd     `cmd:"" help:"enable a roster entry for boot"`
	Disable    DisableCmd    `cmd:"" help:"disable a roster entry for boot"`
	Start      StartCmd      `cmd:"" help:"start one or more services"`
	Stop       StopCmd       `cmd:"" help:"stop one or more services"`
	Restart    RestartCmd    `cmd:"" help:"restart one or more services"`
	Reload     ReloadCmd     `cmd:"" help:"reload one or more services' resolved configuration"`
	Status     StatusCmd     `cmd:"" help:"show per-service boot/running status"`
	List       ListCmd       `cmd:"" help:"list roster entries"`
	Gc         GcCmd         `cmd:"" help:"reap non-running services and prune their tmp directories"`
	Shutdown   ShutdownCmd   `cmd:"" help:"shut down the daemon"`
}

func (c *CLI) initSlog() {
	var level slog.Level
	switch c.LogLevel {
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
	if c.LogFile == "" {
		f, err = os.CreateTemp("", "juststart-log")
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(c.LogFile), 0o755); mkErr != nil {
			panic(mkErr)
		}
		f, err = os.OpenFile(c.LogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
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

func loadPassword(cli *CLI) ([]byte, error) {
	if cli.Password != "" {
		return []byte(cli.Password), nil
	}
	passPath := filepath.Join(expandHome(cli.ConfigDir), "password")
	data, err := os.ReadFile(passPath)
	if err == nil {
		return data, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("reading password file %q: %w (and stdin is not a terminal to prompt)", passPath, err)
	}
	fmt.Fprint(os.Stderr, "password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password from terminal: %w", err)
	}
	return pw, nil
}

func main() {
	var cli CLI

	parser, err := kong.New(&cli,
		kong.Configuration(kongyaml.Loader, "~/.juststart.yaml"),
		kong.Description("Administer the juststart service supervisor daemon."))
	if err != nil {
		panic(err)
	}

	kongcompletion.Register(parser)

	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	cli.initSlog()

	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	if !isTTY {
		cli.JSON = true
	}

	appCtx := &Context{
		Address: cli.Address,
		Port:    cli.Port,
		JSON:    cli.JSON,
	}

	if kctx.Command() != "serve" && kctx.Command() != "completion" {
		secret, err := loadPassword(&cli)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		appCtx.client = rpcclient.New(fmt.Sprintf("%s:%d", cli.Address, cli.Port), secret)
	}

	err = kctx.Run(appCtx)
	kctx.FatalIfErrorf(err)
}
