package main

import (
	"context"
	"fmt"

	"github.com/xz-dev/juststart/internal/daemon"
)

// ServeCmd runs the daemon in the foreground of the juststart process
// itself, rather than requiring the separate juststartd binary — useful
// for supervisors (systemd, launchd) that want a single unit file.
type ServeCmd struct {
	ConfigDir    string `name:"config-dir" default:"~/.juststart" help:"daemon config directory"`
	OTLPEndpoint string `name:"otlp-endpoint" default:"" help:"OTLP/gRPC trace exporter endpoint; empty disables export"`
	RunitCompat  bool   `name:"runit-compat" help:"treat a bare sibling 'down' file as a down-hook"`
}

func (cmd *ServeCmd) Run(appCtx *Context) error {
	d, err := daemon.New(daemon.Options{
		ConfigDir:    expandHome(cmd.ConfigDir),
		Address:      appCtx.Address,
		Port:         appCtx.Port,
		OTLPEndpoint: cmd.OTLPEndpoint,
		RunitCompat:  cmd.RunitCompat,
	})
	if err != nil {
		return fmt.Errorf("constructing daemon: %w", err)
	}
	return d.Serve(context.Background())
}
