package main

import (
	"context"
	"fmt"
)

// StopCmd stops one or more services.
type StopCmd struct {
	Paths        []string `arg:"" name:"path" help:"service path(s), literal or glob"`
	CheckRunning bool     `name:"check-running" help:"skip the stop if the service is not currently running"`
}

func (cmd *StopCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	resolved, err := resolveAgainstKnown(ctx, appCtx, cmd.Paths)
	if err != nil {
		return err
	}
	for _, path := range resolved {
		if err := appCtx.client.Stop(ctx, path, cmd.CheckRunning); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("stopped %s\n", path)
	}
	return nil
}
