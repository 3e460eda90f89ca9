package main

import (
	"context"
	"fmt"
)

// RestartCmd stops (tolerating "not running") then starts one or more
// services.
type RestartCmd struct {
	Paths []string `arg:"" name:"path" help:"service path(s), literal or glob"`
}

func (cmd *RestartCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	resolved, err := resolveAgainstKnown(ctx, appCtx, cmd.Paths)
	if err != nil {
		return err
	}
	for _, path := range resolved {
		if err := appCtx.client.Restart(ctx, path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("restarted %s\n", path)
	}
	return nil
}
