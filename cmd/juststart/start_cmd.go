package main

import (
	"context"
	"fmt"
)

// StartCmd starts one or more services, resolved against the current
// roster and running table.
type StartCmd struct {
	Paths []string `arg:"" name:"path" help:"service path(s), literal or glob"`
}

func (cmd *StartCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	resolved, err := resolveAgainstKnown(ctx, appCtx, cmd.Paths)
	if err != nil {
		return err
	}
	for _, path := range resolved {
		if err := appCtx.client.Start(ctx, path, nil); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("started %s\n", path)
	}
	return nil
}
