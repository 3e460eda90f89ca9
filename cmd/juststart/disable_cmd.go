package main

import (
	"context"
	"fmt"
)

// DisableCmd marks one or more roster entries disabled-at-boot.
type DisableCmd struct {
	Paths []string `arg:"" name:"path" help:"service path(s), literal or glob"`
}

func (cmd *DisableCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	resolved, err := resolveAgainstRoster(ctx, appCtx, cmd.Paths)
	if err != nil {
		return err
	}
	for _, path := range resolved {
		if err := appCtx.client.RosterDisable(ctx, path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("disabled %s\n", path)
	}
	return nil
}
