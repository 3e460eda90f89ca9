package main

import (
	"context"
	"fmt"
)

// EnableCmd marks one or more roster entries enabled-at-boot.
type EnableCmd struct {
	Paths []string `arg:"" name:"path" help:"service path(s), literal or glob"`
}

func (cmd *EnableCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	resolved, err := resolveAgainstRoster(ctx, appCtx, cmd.Paths)
	if err != nil {
		return err
	}
	for _, path := range resolved {
		if err := appCtx.client.RosterEnable(ctx, path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("enabled %s\n", path)
	}
	return nil
}
