package main

import (
	"context"
	"fmt"
)

// AddCmd adds a service executable to the roster, disabled by default.
type AddCmd struct {
	Path string `arg:"" help:"absolute path to the service executable"`
}

func (cmd *AddCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	if err := appCtx.client.RosterAdd(ctx, cmd.Path); err != nil {
		return err
	}
	fmt.Printf("added %s\n", cmd.Path)
	return nil
}
