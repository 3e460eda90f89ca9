package main

import (
	"context"
	"fmt"
)

// ReloadCmd reconciles one or more running services against their
// freshly resolved configuration.
type ReloadCmd struct {
	Paths []string `arg:"" name:"path" help:"service path(s), literal or glob"`
}

func (cmd *ReloadCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	resolved, err := resolveAgainstKnown(ctx, appCtx, cmd.Paths)
	if err != nil {
		return err
	}
	for _, path := range resolved {
		if err := appCtx.client.Reload(ctx, path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("reloaded %s\n", path)
	}
	return nil
}
